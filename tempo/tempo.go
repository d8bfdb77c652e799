// Package tempo converts a BPM value into a 16th-note step interval.
package tempo

import "time"

const (
	MinBPM     = 60
	MaxBPM     = 180
	DefaultBPM = 90
)

// Clock holds the current tempo. It is owned by the playback engine;
// other goroutines only see BPM through the engine's state snapshot.
type Clock struct {
	bpm int
}

// New creates a Clock, clamping the initial BPM to [MinBPM, MaxBPM].
func New(bpm int) *Clock {
	c := &Clock{}
	c.SetBPM(bpm)
	return c
}

// SetBPM clamps to [MinBPM, MaxBPM]. Out-of-range values saturate at the
// nearest bound - tempo is a live performance control, not a validated input.
func (c *Clock) SetBPM(bpm int) {
	if bpm < MinBPM {
		bpm = MinBPM
	}
	if bpm > MaxBPM {
		bpm = MaxBPM
	}
	c.bpm = bpm
}

// Adjust applies a relative change through the same clamp.
func (c *Clock) Adjust(delta int) {
	c.SetBPM(c.bpm + delta)
}

// BPM returns the current tempo.
func (c *Clock) BPM() int {
	return c.bpm
}

// StepDuration returns the duration of one 16th-note step: 60s / bpm / 4.
func (c *Clock) StepDuration() time.Duration {
	return time.Minute / time.Duration(c.bpm) / 4
}
