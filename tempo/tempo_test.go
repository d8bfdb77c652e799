package tempo

import (
	"testing"
	"time"
)

func TestStepDuration(t *testing.T) {
	t.Run("Formula", func(t *testing.T) {
		for bpm := MinBPM; bpm <= MaxBPM; bpm++ {
			c := New(bpm)
			want := time.Minute / time.Duration(bpm) / 4
			if got := c.StepDuration(); got != want {
				t.Fatalf("bpm=%d: StepDuration=%v, want %v", bpm, got, want)
			}
		}
	})

	t.Run("MonotonicallyDecreasing", func(t *testing.T) {
		prev := New(MinBPM).StepDuration()
		for bpm := MinBPM + 1; bpm <= MaxBPM; bpm++ {
			d := New(bpm).StepDuration()
			if d >= prev {
				t.Fatalf("bpm=%d: StepDuration %v not below %v at bpm=%d", bpm, d, prev, bpm-1)
			}
			prev = d
		}
	})

	t.Run("KnownValues", func(t *testing.T) {
		if d := New(60).StepDuration(); d != 250*time.Millisecond {
			t.Errorf("60 bpm: got %v, want 250ms", d)
		}
		if d := New(120).StepDuration(); d != 125*time.Millisecond {
			t.Errorf("120 bpm: got %v, want 125ms", d)
		}
	})
}

func TestClamp(t *testing.T) {
	t.Run("NewClamps", func(t *testing.T) {
		if c := New(0); c.BPM() != MinBPM {
			t.Errorf("New(0): bpm=%d, want %d", c.BPM(), MinBPM)
		}
		if c := New(999); c.BPM() != MaxBPM {
			t.Errorf("New(999): bpm=%d, want %d", c.BPM(), MaxBPM)
		}
	})

	t.Run("AdjustSaturatesHigh", func(t *testing.T) {
		c := New(179)
		for i := 0; i < 5; i++ {
			c.Adjust(+5)
		}
		if c.BPM() != MaxBPM {
			t.Errorf("bpm=%d, want %d", c.BPM(), MaxBPM)
		}
	})

	t.Run("AdjustSaturatesLow", func(t *testing.T) {
		c := New(62)
		for i := 0; i < 10; i++ {
			c.Adjust(-2)
		}
		if c.BPM() != MinBPM {
			t.Errorf("bpm=%d, want %d", c.BPM(), MinBPM)
		}
	})

	t.Run("AdjustStaysInRange", func(t *testing.T) {
		c := New(DefaultBPM)
		deltas := []int{+100, -300, +7, -1, +500, -2}
		for _, d := range deltas {
			c.Adjust(d)
			if c.BPM() < MinBPM || c.BPM() > MaxBPM {
				t.Fatalf("after Adjust(%d): bpm=%d out of range", d, c.BPM())
			}
		}
	})
}
