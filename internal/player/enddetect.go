// Package player implements the playback backends and the shared
// end-of-track detection that drives queue advancement.
package player

import (
	"sync"

	"go.uber.org/zap"
)

// detectorState is the debounce state of the end detector.
type detectorState int

const (
	detectorArmed detectorState = iota
	detectorCounting
	detectorFired
)

// EndDetector decides when a track has finished from periodic position
// samples. A sample counts as "near the end" when it lies within the
// tolerance of the track duration; the callback fires only after enough
// consecutive near-end samples, and exactly once per armed cycle. A position
// regression (seek backwards or a new track starting at zero) rearms the
// detector.
type EndDetector struct {
	toleranceMs int
	required    int
	logger      *zap.Logger

	mutex      sync.Mutex
	state      detectorState
	count      int
	lastPosMs  int
	onTrackEnd func()
}

func NewEndDetector(toleranceMs, requiredSamples int, logger *zap.Logger) *EndDetector {
	return &EndDetector{
		toleranceMs: toleranceMs,
		required:    requiredSamples,
		logger:      logger,
		state:       detectorArmed,
	}
}

// OnTrackEnd registers the fire callback. It is invoked synchronously from
// Sample; callers that need to do store work should hop goroutines.
func (d *EndDetector) OnTrackEnd(fn func()) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.onTrackEnd = fn
}

// Rearm resets the detector for a new track.
func (d *EndDetector) Rearm() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.state = detectorArmed
	d.count = 0
	d.lastPosMs = 0
}

// ForceFire trips the latch immediately, skipping the sample debounce. Used
// when the backend delivers an authoritative ended signal of its own. Fires
// at most once per armed cycle, like Sample.
func (d *EndDetector) ForceFire() {
	d.mutex.Lock()
	if d.state == detectorFired {
		d.mutex.Unlock()
		return
	}
	d.state = detectorFired
	fn := d.onTrackEnd
	d.mutex.Unlock()

	if fn != nil {
		fn()
	}
}

// Sample feeds one position reading. durationMs below or equal zero rearms:
// without a duration there is no end to detect.
func (d *EndDetector) Sample(positionMs, durationMs int) {
	d.mutex.Lock()

	if durationMs <= 0 {
		d.state = detectorArmed
		d.count = 0
		d.lastPosMs = 0
		d.mutex.Unlock()
		return
	}

	// A jump backwards means a seek or a track change.
	if positionMs < d.lastPosMs {
		d.state = detectorArmed
		d.count = 0
	}
	d.lastPosMs = positionMs

	if d.state == detectorFired {
		d.mutex.Unlock()
		return
	}

	nearEnd := positionMs >= durationMs-d.toleranceMs
	if !nearEnd {
		d.state = detectorArmed
		d.count = 0
		d.mutex.Unlock()
		return
	}

	d.state = detectorCounting
	d.count++
	if d.count < d.required {
		d.mutex.Unlock()
		return
	}

	d.state = detectorFired
	fn := d.onTrackEnd
	d.mutex.Unlock()

	d.logger.Debug("Track end detected",
		zap.Int("positionMs", positionMs), zap.Int("durationMs", durationMs))
	if fn != nil {
		fn()
	}
}
