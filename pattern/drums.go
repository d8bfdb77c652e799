package pattern

// Rhythm voice notes for the target device (T-8 layout, GM-adjacent).
const (
	VoiceKick     uint8 = 36
	VoiceSnare    uint8 = 38
	VoiceClosedHH uint8 = 42
	VoiceOpenHH   uint8 = 46
	VoiceTomHigh  uint8 = 50
	VoiceTomMid   uint8 = 47
	VoiceTomLow   uint8 = 45
	VoiceClap     uint8 = 39
)

// Voices maps drum voice names (as used in patch files) to note numbers.
var Voices = map[string]uint8{
	"kick":      VoiceKick,
	"snare":     VoiceSnare,
	"closed_hh": VoiceClosedHH,
	"open_hh":   VoiceOpenHH,
	"tom_high":  VoiceTomHigh,
	"tom_mid":   VoiceTomMid,
	"tom_low":   VoiceTomLow,
	"clap":      VoiceClap,
}

// generators are the named drum patterns a patch file can reference
// instead of spelling out explicit steps.
var generators = map[string]func() []DrumStep{
	"tech64": GenerateTechDrums64,
}

// GenerateTechDrums64 builds the 64-step elaborate tech drum loop:
// broken kick, backbeat snare, alternating-accent closed hats, open hat
// on the 8th and 16th of every bar.
func GenerateTechDrums64() []DrumStep {
	kickMask := []int{1, 0, 1, 0, 0, 1, 0, 1}
	snareMask := []int{0, 0, 0, 1, 0, 0, 0, 1}

	steps := make([]DrumStep, 64)
	for i := range steps {
		var hits []DrumHit

		if kickMask[i%len(kickMask)] == 1 {
			vel := uint8(115)
			if i%8 == 0 {
				vel = 120
			}
			hits = append(hits, DrumHit{Voice: VoiceKick, Velocity: vel})
		}
		if snareMask[i%len(snareMask)] == 1 {
			vel := uint8(105)
			if i%16 == 0 {
				vel = 110
			}
			hits = append(hits, DrumHit{Voice: VoiceSnare, Velocity: vel})
		}
		if i%2 == 0 {
			hits = append(hits, DrumHit{Voice: VoiceClosedHH, Velocity: 75})
		} else {
			hits = append(hits, DrumHit{Voice: VoiceClosedHH, Velocity: 65})
		}
		if i%16 == 7 || i%16 == 15 {
			hits = append(hits, DrumHit{Voice: VoiceOpenHH, Velocity: 80})
		}

		steps[i] = DrumStep{Hits: hits}
	}
	return steps
}

// Generator looks up a named drum generator.
func Generator(name string) (func() []DrumStep, bool) {
	g, ok := generators[name]
	return g, ok
}
