package tui

import (
	"fmt"
	"strings"

	"acid-looper/pattern"
)

// Visual widgets for the now-playing line. All pure string builders.

var progressBlocks = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// StepIndicator renders loop progress: "[▄]  5/16 ( 31%)".
func StepIndicator(step, total int) string {
	if total <= 0 {
		return "[ ]  0/0  (  0%)"
	}
	filled := (step % total) + 1
	idx := (filled * 8) / total
	if idx > 8 {
		idx = 8
	}
	pct := (filled * 100) / total
	return fmt.Sprintf("[%c] %2d/%-2d (%3d%%)", progressBlocks[idx], filled, total, pct)
}

// Bass range shown by the note visualizer.
const (
	vizMinNote = 28
	vizMaxNote = 60
)

// NoteBars renders an 8-dot column for a note's height in the bass
// range, top row first.
func NoteBars(note uint8) string {
	height := 0
	switch {
	case int(note) < vizMinNote:
		height = 0
	case int(note) > vizMaxNote:
		height = 8
	default:
		height = (int(note) - vizMinNote) * 8 / (vizMaxNote - vizMinNote)
	}

	var b strings.Builder
	for i := 8; i >= 1; i-- {
		if i <= height {
			b.WriteRune('●')
		} else {
			b.WriteRune('○')
		}
	}
	return b.String()
}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName formats a MIDI note number: 36 -> "C2".
func NoteName(note uint8) string {
	octave := int(note)/12 - 1
	return fmt.Sprintf("%s%d", noteNames[note%12], octave)
}

// DrumSymbols renders a compact K/S/H tag for a step's drum hits.
func DrumSymbols(hits []pattern.DrumHit) string {
	var b strings.Builder
	for _, h := range hits {
		switch h.Voice {
		case pattern.VoiceKick:
			b.WriteByte('K')
		case pattern.VoiceSnare:
			b.WriteByte('S')
		case pattern.VoiceClosedHH, pattern.VoiceOpenHH:
			b.WriteByte('H')
		}
	}
	return b.String()
}
