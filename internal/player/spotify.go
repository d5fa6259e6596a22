package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"officedj/internal/core"
)

// SpotifyPlayer drives playback on a Spotify Connect device owned by the
// office account. Position sampling goes through the Web API player state,
// which is also what keeps the connected flag honest.
type SpotifyPlayer struct {
	client       *spotify.Client
	deviceName   string
	pollInterval time.Duration
	detector     *EndDetector
	logger       *zap.Logger

	mutex       sync.Mutex
	deviceID    *spotify.ID
	lastEntryID string
	connected   bool

	// lastProgressMs is only touched from the sampling path.
	lastProgressMs int

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSpotifyPlayer(ctx context.Context, tokenSource oauth2.TokenSource, cfg core.Config, logger *zap.Logger) *SpotifyPlayer {
	httpClient := oauth2.NewClient(ctx, tokenSource)
	return &SpotifyPlayer{
		client:       spotify.New(httpClient, spotify.WithRetry(true)),
		deviceName:   cfg.Spotify.DeviceName,
		pollInterval: cfg.Player.PollInterval,
		detector:     NewEndDetector(cfg.Player.EndToleranceMs, cfg.Player.EndSampleCount, logger),
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Start launches the polling loop.
func (p *SpotifyPlayer) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.poll(ctx)
}

// Play starts the given entry on the configured device. Repeated calls for
// the entry already in playback are no-ops.
func (p *SpotifyPlayer) Play(ctx context.Context, entry core.QueueEntry) error {
	p.mutex.Lock()
	if p.lastEntryID == entry.ID {
		p.mutex.Unlock()
		return nil
	}
	p.mutex.Unlock()

	deviceID, err := p.findDevice(ctx)
	if err != nil {
		return err
	}

	uri := spotify.URI("spotify:track:" + entry.SpotifySongID)
	if err := p.client.PlayOpt(ctx, &spotify.PlayOptions{
		DeviceID: deviceID,
		URIs:     []spotify.URI{uri},
	}); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}

	p.mutex.Lock()
	p.lastEntryID = entry.ID
	p.mutex.Unlock()
	p.detector.Rearm()

	p.logger.Info("Started Spotify playback",
		zap.String("track", entry.Title), zap.String("spotifyID", entry.SpotifySongID))
	return nil
}

func (p *SpotifyPlayer) Pause(ctx context.Context) error {
	if err := p.client.Pause(ctx); err != nil {
		return fmt.Errorf("pause playback: %w", err)
	}
	return nil
}

func (p *SpotifyPlayer) Resume(ctx context.Context) error {
	if err := p.client.Play(ctx); err != nil {
		return fmt.Errorf("resume playback: %w", err)
	}
	return nil
}

func (p *SpotifyPlayer) Seek(ctx context.Context, positionMs int) error {
	if err := p.client.Seek(ctx, positionMs); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

func (p *SpotifyPlayer) SetVolume(ctx context.Context, volume float64) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("volume out of range: %v", volume)
	}
	if err := p.client.Volume(ctx, int(volume*100)); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	return nil
}

func (p *SpotifyPlayer) IsReady() bool {
	return p.client != nil
}

func (p *SpotifyPlayer) IsConnected() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.connected
}

func (p *SpotifyPlayer) OnTrackEnd(fn func()) {
	p.detector.OnTrackEnd(fn)
}

func (p *SpotifyPlayer) Close() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

// findDevice resolves the configured device name, preferring an exact name
// match and falling back to whatever device is currently active.
func (p *SpotifyPlayer) findDevice(ctx context.Context) (*spotify.ID, error) {
	p.mutex.Lock()
	if p.deviceID != nil {
		id := *p.deviceID
		p.mutex.Unlock()
		return &id, nil
	}
	p.mutex.Unlock()

	devices, err := p.client.PlayerDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var active *spotify.ID
	for i := range devices {
		if devices[i].Name == p.deviceName {
			id := devices[i].ID
			p.mutex.Lock()
			p.deviceID = &id
			p.mutex.Unlock()
			return &id, nil
		}
		if devices[i].Active {
			id := devices[i].ID
			active = &id
		}
	}
	if active != nil {
		return active, nil
	}
	return nil, fmt.Errorf("no spotify device available")
}

// poll samples player state on the configured interval and feeds the end
// detector.
func (p *SpotifyPlayer) poll(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, err := p.client.PlayerState(ctx)
			if err != nil {
				p.setConnected(false)
				p.logger.Debug("Player state poll failed", zap.Error(err))
				continue
			}
			if state == nil || state.Item == nil {
				p.setConnected(state != nil && state.Device.ID != "")
				continue
			}
			p.setConnected(true)
			p.feedSample(state.Playing, int(state.Progress), int(state.Item.Duration))
		}
	}
}

// feedSample routes one player-state reading to the end detector. Paused
// readings count too: a single-track playback that finishes parks paused,
// either still at its final position or already reset to zero. The reset
// case carries no near-end position to sample, so a pause at zero right
// after mid-track progress latches the end directly.
func (p *SpotifyPlayer) feedSample(playing bool, progressMs, durationMs int) {
	if !playing && progressMs == 0 && p.lastProgressMs > 0 {
		p.lastProgressMs = 0
		p.detector.ForceFire()
		return
	}
	p.lastProgressMs = progressMs
	p.detector.Sample(progressMs, durationMs)
}

func (p *SpotifyPlayer) setConnected(connected bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.connected != connected && !connected {
		// Device cache might be stale once the connection drops.
		p.deviceID = nil
	}
	p.connected = connected
}
