// Package httpapi exposes the queue, catalog, soundboard and auth endpoints
// consumed by the browser client.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"officedj/internal/auth"
	"officedj/internal/core"
	"officedj/internal/flood"
	"officedj/internal/i18n"
	"officedj/internal/soundboard"
	"officedj/internal/store"
)

// Searcher is the catalog search surface.
type Searcher interface {
	Search(ctx context.Context, query string) ([]core.Track, error)
}

// VideoFinder resolves a fallback video for a track.
type VideoFinder interface {
	Find(ctx context.Context, artist, title string) (string, error)
}

// EntryResolver backfills fallback videos onto queued entries.
type EntryResolver interface {
	ResolveAsync(entry core.QueueEntry)
}

// Reactions is the reaction mutation surface.
type Reactions interface {
	ListReactions(ctx context.Context, songIDs []string) ([]core.Reaction, error)
	SetReaction(ctx context.Context, songID, userID, userName, emoji string) (*core.Reaction, error)
}

// History is the read-only archive surface.
type History interface {
	ListHistory(ctx context.Context) ([]core.HistoryEntry, error)
	Leaderboard(ctx context.Context) (*store.Leaderboard, error)
}

// Playback is the coordinator surface the API needs.
type Playback interface {
	Start(ctx context.Context) error
	Skip(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Toggle(ctx context.Context) error
	SetVolume(ctx context.Context, volume float64) error
	State() core.PlaybackState
}

// PositionSink ingests progress reports from the embedded playback tab. A
// nil sink means the Spotify backend is active and reports are rejected.
type PositionSink interface {
	ReportPosition(positionMs, durationMs int)
	ReportEnded(entryID string)
}

// SoundPublisher broadcasts soundboard triggers.
type SoundPublisher interface {
	PublishSound(ctx context.Context, event any)
}

// Server wires the HTTP surface together.
type Server struct {
	config     *core.ServerConfig
	logger     *zap.Logger
	metrics    *Metrics
	server     *http.Server
	localizer  *i18n.Localizer
	floodgate  *flood.Floodgate

	queue      core.QueueStore
	reactions  Reactions
	history    History
	playback   Playback
	syncer     *core.Syncer
	searcher   Searcher
	finder     VideoFinder
	resolver   EntryResolver
	sounds     *soundboard.Store
	soundsOut  SoundPublisher
	authBroker *auth.Broker
	wsHandler  http.Handler
	positions  PositionSink
	jwtSecret  []byte
}

// Deps carries everything the server needs; all fields are required unless
// noted otherwise.
type Deps struct {
	Config    *core.Config
	Logger    *zap.Logger
	Localizer *i18n.Localizer
	Registry  prometheus.Registerer

	Queue      core.QueueStore
	Reactions  Reactions
	History    History
	Playback   Playback
	Syncer     *core.Syncer
	Searcher   Searcher
	Finder     VideoFinder
	Resolver   EntryResolver
	Sounds     *soundboard.Store
	SoundsOut  SoundPublisher
	AuthBroker *auth.Broker
	WSHandler  http.Handler
	Positions  PositionSink // nil unless the embedded backend is active
}

func NewServer(deps Deps) *Server {
	if deps.Registry == nil {
		deps.Registry = prometheus.DefaultRegisterer
	}

	s := &Server{
		config:     &deps.Config.Server,
		logger:     deps.Logger,
		metrics:    NewMetrics(deps.Registry),
		localizer:  deps.Localizer,
		floodgate:  flood.New(deps.Config.App.FloodLimitPerMinute),
		queue:      deps.Queue,
		reactions:  deps.Reactions,
		history:    deps.History,
		playback:   deps.Playback,
		syncer:     deps.Syncer,
		searcher:   deps.Searcher,
		finder:     deps.Finder,
		resolver:   deps.Resolver,
		sounds:     deps.Sounds,
		soundsOut:  deps.SoundsOut,
		authBroker: deps.AuthBroker,
		wsHandler:  deps.WSHandler,
		positions:  deps.Positions,
		jwtSecret:  []byte(deps.Config.Auth.JWTSecret),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s
}

// Router builds the chi router; exposed separately for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authed := auth.Middleware(s.jwtSecret)

	if s.wsHandler != nil {
		r.With(authed).Get("/ws", s.wsHandler.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		// The OAuth callback is hit by the accounts service redirect and
		// cannot carry a session token.
		r.Get("/spotify/auth/callback", s.authBroker.HandleCallback)

		r.Group(func(r chi.Router) {
			r.Use(authed)

			r.Get("/spotify/auth/authorize", s.authBroker.HandleAuthorize)
			r.Get("/spotify/auth/token", s.authBroker.HandleToken)
			r.Post("/spotify/auth/refresh", s.authBroker.HandleRefresh)
			r.Get("/spotify/search", s.handleSearch)
			r.Get("/spotify/youtube", s.handleYouTubeLookup)

			r.Route("/queue", func(r chi.Router) {
				r.Get("/", s.handleListQueue)
				r.Post("/", s.handleAddTrack)
				r.Post("/reorder", s.handleReorder)
				r.Post("/skip", s.handleSkip)
				r.Post("/start", s.handleStart)
				r.Delete("/{songID}", s.handleDeleteTrack)
				r.Get("/{songID}/reactions", s.handleListReactions)
				r.Post("/{songID}/reactions", s.handleSetReaction)
			})

			r.Route("/player", func(r chi.Router) {
				r.Post("/pause", s.handlePause)
				r.Post("/resume", s.handleResume)
				r.Post("/toggle", s.handleToggle)
				r.Post("/volume", s.handleVolume)
				r.Post("/embedded/position", s.handleEmbeddedPosition)
				r.Post("/embedded/ended", s.handleEmbeddedEnded)
			})

			r.Route("/history", func(r chi.Router) {
				r.Get("/", s.handleListHistory)
				r.Get("/leaderboard", s.handleLeaderboard)
			})

			r.Route("/soundboard", func(r chi.Router) {
				r.Get("/", s.handleListSounds)
				r.Post("/", s.handleAddSound)
				r.Post("/{soundID}/play", s.handlePlaySound)
				r.Post("/{soundID}/favorite", s.handleFavoriteSound)
				r.Delete("/{soundID}", s.handleDeleteSound)
			})
		})
	})

	return r
}

// Start runs the server until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	s.floodgate.Stop()
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "officedj"})
}

// handleReadyz is ready only once the queue mirror has synced; load
// balancers should not route before that.
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if s.syncer.State() != core.SyncStateSynced {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "syncing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "service": "officedj"})
}
