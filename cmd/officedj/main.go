// Package main provides the OfficeDJ service entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"officedj/internal/auth"
	"officedj/internal/catalog"
	"officedj/internal/core"
	"officedj/internal/httpapi"
	"officedj/internal/i18n"
	"officedj/internal/player"
	"officedj/internal/realtime"
	"officedj/internal/soundboard"
	"officedj/internal/store"
)

const defaultServerHost = "0.0.0.0"

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "officedj",
	Short: "OfficeDJ - shared office music queue and soundboard",
	Long: `OfficeDJ runs the shared music queue for an office: everyone adds tracks
from a browser, playback happens on one Spotify device or an embedded video
player, and a soundboard plays clips on every connected client at once.`,
	RunE: runOfficeDJ,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")
	rootCmd.PersistentFlags().String("redis-addr", "localhost:6379", "Redis address")
	rootCmd.PersistentFlags().String("redis-password", "", "Redis password")
	rootCmd.PersistentFlags().Int("redis-db", 0, "Redis database number")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().String("spotify-redirect-url", "", "Spotify OAuth redirect URL")
	rootCmd.PersistentFlags().String("spotify-device-name", "OfficeDJ Player", "Spotify Connect device name")
	rootCmd.PersistentFlags().String("spotify-playback-user", "", "Profile ID whose linked account drives playback")
	rootCmd.PersistentFlags().String("player-backend", "spotify", "Playback backend (spotify, embedded)")
	rootCmd.PersistentFlags().String("jwt-secret", "", "HMAC secret for session tokens")
	rootCmd.PersistentFlags().String("soundboard-db-path", "./soundboard.db", "Soundboard SQLite database path")
	rootCmd.PersistentFlags().String("server-host", defaultServerHost, "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	rootCmd.PersistentFlags().String("language", i18n.DefaultLanguage, fmt.Sprintf("Notice language (%s)", supportedLangs))
	rootCmd.PersistentFlags().Int("flood-limit-per-minute", 6, "Maximum mutating requests per user per minute")
	rootCmd.PersistentFlags().Int("history-limit", 20, "Number of history entries served and aggregated")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix("OFFICEDJ")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	if url := viper.GetString("database-url"); url != "" {
		cfg.Database.URL = url
	}
	cfg.Redis.Addr = viper.GetString("redis-addr")
	cfg.Redis.Password = viper.GetString("redis-password")
	cfg.Redis.DB = viper.GetInt("redis-db")

	configureSpotify(cfg)
	configurePlayer(cfg)
	configureServer(cfg)
	configureApp(cfg)

	return cfg
}

func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.DeviceName = viper.GetString("spotify-device-name")
	cfg.Spotify.PlaybackUserID = viper.GetString("spotify-playback-user")

	if url := viper.GetString("spotify-redirect-url"); url != "" {
		cfg.Spotify.RedirectURL = url
	} else {
		serverHost := viper.GetString("server-host")
		if serverHost == defaultServerHost || serverHost == "" {
			serverHost = "127.0.0.1"
		}
		cfg.Spotify.RedirectURL = fmt.Sprintf("http://%s:%d/api/spotify/auth/callback",
			serverHost, viper.GetInt("server-port"))
	}
}

func configurePlayer(cfg *core.Config) {
	cfg.Player.Backend = viper.GetString("player-backend")
	cfg.Soundboard.DBPath = viper.GetString("soundboard-db-path")
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Auth.JWTSecret = viper.GetString("jwt-secret")
	cfg.Log.Level = viper.GetString("log-level")
}

func configureApp(cfg *core.Config) {
	cfg.App.Language = viper.GetString("language")
	if cfg.App.Language == "" {
		cfg.App.Language = i18n.DefaultLanguage
	}
	supported := false
	for _, lang := range i18n.GetSupportedLanguages() {
		if cfg.App.Language == lang {
			supported = true
			break
		}
	}
	if !supported {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', falling back to '%s'\n",
			cfg.App.Language, i18n.DefaultLanguage)
		cfg.App.Language = i18n.DefaultLanguage
	}

	cfg.App.FloodLimitPerMinute = viper.GetInt("flood-limit-per-minute")
	if cfg.App.FloodLimitPerMinute <= 0 {
		cfg.App.FloodLimitPerMinute = core.DefaultConfig().App.FloodLimitPerMinute
	}
	cfg.App.HistoryLimit = viper.GetInt("history-limit")
	if cfg.App.HistoryLimit <= 0 {
		cfg.App.HistoryLimit = core.DefaultConfig().App.HistoryLimit
	}
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func validateConfig() error {
	if config.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if config.Spotify.ClientID == "" || config.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client ID and secret are required")
	}

	switch config.Player.Backend {
	case "spotify":
		if config.Spotify.PlaybackUserID == "" {
			return fmt.Errorf("spotify playback user is required for the spotify backend")
		}
	case "embedded":
	default:
		return fmt.Errorf("unknown player backend: %s", config.Player.Backend)
	}
	return nil
}

func runOfficeDJ(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting OfficeDJ",
		zap.String("player_backend", config.Player.Backend),
		zap.String("language", config.App.Language))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	services, err := initializeServices(ctx)
	if err != nil {
		return err
	}
	defer services.close()

	return runServices(ctx, services)
}

type services struct {
	pool          *pgxpool.Pool
	rdb           *redis.Client
	hub           *realtime.Hub
	broker        *realtime.Broker
	syncer        *core.Syncer
	coordinator   *core.Coordinator
	playerAdapter core.PlayerAdapter
	spotifyPlayer *player.SpotifyPlayer
	sounds        *soundboard.Store
	httpServer    *httpapi.Server
}

func (s *services) close() {
	if s.playerAdapter != nil {
		s.playerAdapter.Close()
	}
	if s.sounds != nil {
		if err := s.sounds.Close(); err != nil {
			logger.Debug("Failed to close soundboard store", zap.Error(err))
		}
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			logger.Debug("Failed to close Redis client", zap.Error(err))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func initializeServices(ctx context.Context) (*services, error) {
	pool, err := pgxpool.New(ctx, config.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.AutoMigrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	hub := realtime.NewHub(logger.Named("hub"))
	broker := realtime.NewBroker(rdb, hub, logger.Named("broker"))
	localizer := i18n.NewLocalizer(config.App.Language)

	queueStore := store.NewQueueStore(pool, broker, logger.Named("store"))
	reactionStore := store.NewReactionStore(pool, broker, logger.Named("store"))
	historyStore := store.NewHistoryStore(pool, config.App.HistoryLimit)
	tokenStore := store.NewTokenStore(pool)

	authBroker := auth.NewBroker(config.Spotify, tokenStore, logger.Named("auth"))
	syncer := core.NewSyncer(queueStore, broker.Subscribe(), broker, localizer, logger.Named("syncer"))

	svcs := &services{
		pool:   pool,
		rdb:    rdb,
		hub:    hub,
		broker: broker,
		syncer: syncer,
	}

	var positions httpapi.PositionSink
	switch config.Player.Backend {
	case "embedded":
		embedded := player.NewEmbeddedPlayer(broker, config.Player, logger.Named("player"))
		svcs.playerAdapter = embedded
		positions = embedded
	default:
		tokenSource := authBroker.TokenSource(config.Spotify.PlaybackUserID)
		spotifyPlayer := player.NewSpotifyPlayer(ctx, tokenSource, *config, logger.Named("player"))
		svcs.playerAdapter = spotifyPlayer
		svcs.spotifyPlayer = spotifyPlayer
	}

	svcs.coordinator = core.NewCoordinator(queueStore, syncer, svcs.playerAdapter,
		broker, localizer, logger.Named("coordinator"))

	cache := catalog.NewLookupCache(1024, 8192, 0.001)
	lookup := catalog.NewYouTubeLookup(catalog.DefaultMirrors, config.App.LookupTimeout, cache, logger.Named("catalog"))
	resolver := catalog.NewResolver(lookup, queueStore, logger.Named("catalog"))
	searcher := catalog.NewSpotifySearcher(ctx, config.Spotify, logger.Named("catalog"))

	sounds, err := soundboard.Open(config.Soundboard.DBPath)
	if err != nil {
		svcs.close()
		return nil, fmt.Errorf("failed to open soundboard store: %w", err)
	}
	svcs.sounds = sounds

	svcs.httpServer = httpapi.NewServer(httpapi.Deps{
		Config:     config,
		Logger:     logger.Named("http"),
		Localizer:  localizer,
		Queue:      queueStore,
		Reactions:  reactionStore,
		History:    historyStore,
		Playback:   svcs.coordinator,
		Syncer:     syncer,
		Searcher:   searcher,
		Finder:     lookup,
		Resolver:   resolver,
		Sounds:     sounds,
		SoundsOut:  broker,
		AuthBroker: authBroker,
		WSHandler:  realtime.NewHandler(hub, logger.Named("ws")),
		Positions:  positions,
	})

	return svcs, nil
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		svcs.hub.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		return svcs.broker.Run(gCtx)
	})
	g.Go(func() error {
		return svcs.syncer.Run(gCtx)
	})
	g.Go(func() error {
		return svcs.coordinator.Run(gCtx)
	})
	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	if svcs.spotifyPlayer != nil {
		svcs.spotifyPlayer.Start(gCtx)
	}

	logger.Info("OfficeDJ started",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("OfficeDJ stopped with error", zap.Error(err))
		return err
	}

	logger.Info("OfficeDJ stopped gracefully")
	return nil
}
