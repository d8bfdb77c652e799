// Package pattern holds the immutable step data for a single patch:
// a monophonic bass line and a parallel drum loop of equal length.
package pattern

// BassStep is one 16th-note slot in the bass line. A Rest step lets the
// previous note keep ringing. A step with a note but velocity 0 is a
// hard-cut: it silences the sounding note without starting a new one.
type BassStep struct {
	Note     uint8
	Velocity uint8
	Label    string
	Rest     bool
}

// HardCut reports whether this step chokes the sounding note.
func (s BassStep) HardCut() bool {
	return !s.Rest && s.Velocity == 0
}

// Sounds reports whether this step triggers a new note.
func (s BassStep) Sounds() bool {
	return !s.Rest && s.Velocity > 0
}

// DrumHit is a single rhythm voice trigger on a step.
type DrumHit struct {
	Voice    uint8
	Velocity uint8
}

// DrumStep is the set of drum hits on one step. May be empty.
type DrumStep struct {
	Hits []DrumHit
}

// Pattern is a loaded patch. Immutable once constructed: a reload
// produces a new Pattern, never mutates one the engine may be playing.
//
// Invariant: len(Bass) == len(Drums). The loader rejects files where
// the two cannot be reconciled.
type Pattern struct {
	ID          string // source file name, sans extension
	Name        string
	Description string
	RootNote    uint8
	Bass        []BassStep
	Drums       []DrumStep
}

// Length returns the number of steps in the loop.
func (p *Pattern) Length() int {
	return len(p.Bass)
}
