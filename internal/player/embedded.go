package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"officedj/internal/core"
)

// connectionGrace is how long a browser player stays "connected" after its
// last position report.
const connectionGrace = 10 * time.Second

// EmbeddedCommand is one control instruction for the browser-embedded video
// player. Commands fan out over the broadcast channel; only the elected
// playback tab acts on them.
type EmbeddedCommand struct {
	Action     string  `json:"action"` // play, pause, resume, seek, volume
	VideoID    string  `json:"video_id,omitempty"`
	EntryID    string  `json:"entry_id,omitempty"`
	PositionMs int     `json:"position_ms,omitempty"`
	Volume     float64 `json:"volume,omitempty"`
}

// CommandPublisher pushes embedded player commands to the clients.
type CommandPublisher interface {
	PublishPlayerCommand(ctx context.Context, cmd EmbeddedCommand)
}

// EmbeddedPlayer bridges playback to a video player running inside a browser
// tab. The server sends commands out over the realtime channel and the tab
// reports positions back over HTTP; end detection runs server-side on those
// reports so every client sees the same queue advancement.
type EmbeddedPlayer struct {
	commands CommandPublisher
	detector *EndDetector
	logger   *zap.Logger

	mutex       sync.Mutex
	lastEntryID string
	lastReport  time.Time
}

func NewEmbeddedPlayer(commands CommandPublisher, cfg core.PlayerConfig, logger *zap.Logger) *EmbeddedPlayer {
	return &EmbeddedPlayer{
		commands: commands,
		detector: NewEndDetector(cfg.EndToleranceMs, cfg.EndSampleCount, logger),
		logger:   logger,
	}
}

// Play instructs the playback tab to load the entry's fallback video.
// Entries without a resolved video cannot be played on this backend.
func (p *EmbeddedPlayer) Play(ctx context.Context, entry core.QueueEntry) error {
	p.mutex.Lock()
	if p.lastEntryID == entry.ID {
		p.mutex.Unlock()
		return nil
	}
	p.mutex.Unlock()

	if entry.YouTubeVideoID == nil || *entry.YouTubeVideoID == "" {
		return fmt.Errorf("entry %s has no fallback video", entry.ID)
	}

	p.commands.PublishPlayerCommand(ctx, EmbeddedCommand{
		Action:  "play",
		VideoID: *entry.YouTubeVideoID,
		EntryID: entry.ID,
	})

	p.mutex.Lock()
	p.lastEntryID = entry.ID
	p.mutex.Unlock()
	p.detector.Rearm()

	p.logger.Info("Started embedded playback",
		zap.String("track", entry.Title), zap.String("videoID", *entry.YouTubeVideoID))
	return nil
}

func (p *EmbeddedPlayer) Pause(ctx context.Context) error {
	p.commands.PublishPlayerCommand(ctx, EmbeddedCommand{Action: "pause"})
	return nil
}

func (p *EmbeddedPlayer) Resume(ctx context.Context) error {
	p.commands.PublishPlayerCommand(ctx, EmbeddedCommand{Action: "resume"})
	return nil
}

func (p *EmbeddedPlayer) Seek(ctx context.Context, positionMs int) error {
	p.commands.PublishPlayerCommand(ctx, EmbeddedCommand{Action: "seek", PositionMs: positionMs})
	return nil
}

func (p *EmbeddedPlayer) SetVolume(ctx context.Context, volume float64) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("volume out of range: %v", volume)
	}
	p.commands.PublishPlayerCommand(ctx, EmbeddedCommand{Action: "volume", Volume: volume})
	return nil
}

func (p *EmbeddedPlayer) IsReady() bool {
	return true
}

// IsConnected reports whether a playback tab has checked in recently.
func (p *EmbeddedPlayer) IsConnected() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return time.Since(p.lastReport) < connectionGrace
}

func (p *EmbeddedPlayer) OnTrackEnd(fn func()) {
	p.detector.OnTrackEnd(fn)
}

func (p *EmbeddedPlayer) Close() {}

// ReportPosition ingests one progress sample from the playback tab.
func (p *EmbeddedPlayer) ReportPosition(positionMs, durationMs int) {
	p.mutex.Lock()
	p.lastReport = time.Now()
	p.mutex.Unlock()
	p.detector.Sample(positionMs, durationMs)
}

// ReportEnded handles the player's own ended event, which can arrive before
// the sampling detector has seen enough near-end positions. The detector's
// fired latch keeps the two paths from double-advancing.
func (p *EmbeddedPlayer) ReportEnded(entryID string) {
	p.mutex.Lock()
	current := p.lastEntryID
	p.mutex.Unlock()
	if entryID != "" && entryID != current {
		p.logger.Debug("Stale ended report ignored", zap.String("entryID", entryID))
		return
	}
	// Force the latch through the sampling path with a synthetic final sample.
	p.detector.ForceFire()
}
