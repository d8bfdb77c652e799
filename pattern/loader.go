package pattern

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for the load failure modes. Loading is all-or-nothing:
// no partially valid Pattern ever escapes Load.
var (
	ErrMalformed       = errors.New("not well-formed json")
	ErrSchemaViolation = errors.New("schema violation")
	ErrLengthMismatch  = errors.New("bass/drum length mismatch")
)

// LoadError wraps a load failure with the patch id and detail.
type LoadError struct {
	ID     string
	Detail string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("patch %s: %s: %v", e.ID, e.Detail, e.Err)
	}
	return fmt.Sprintf("patch %s: %v", e.ID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// fileSchema mirrors the patch file wire format.
type fileSchema struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	RootNote    int               `json:"root_note"`
	BassPattern []json.RawMessage `json:"bass_pattern"`
	DrumPattern *drumSchema       `json:"drum_pattern"`
}

// drumSchema is either a named generator or explicit per-step hit lists.
// Generator wins when both are present.
type drumSchema struct {
	Generator string    `json:"generator"`
	Steps     [][][]int `json:"steps"`
}

// Load parses a patch file. The second return value lists warnings for
// entries that were dropped (out-of-range pitch/velocity/voice) - dropped,
// never silently clamped into a different note.
func Load(id string, data []byte) (*Pattern, []string, error) {
	var f fileSchema
	if err := json.Unmarshal(data, &f); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, nil, &LoadError{ID: id, Detail: err.Error(), Err: ErrSchemaViolation}
		}
		return nil, nil, &LoadError{ID: id, Detail: err.Error(), Err: ErrMalformed}
	}

	if f.Name == "" {
		return nil, nil, &LoadError{ID: id, Detail: "missing name", Err: ErrSchemaViolation}
	}
	if len(f.BassPattern) == 0 {
		return nil, nil, &LoadError{ID: id, Detail: "missing bass_pattern", Err: ErrSchemaViolation}
	}

	var warnings []string

	bass := make([]BassStep, len(f.BassPattern))
	for i, raw := range f.BassPattern {
		step, warn, err := parseBassStep(i, raw)
		if err != nil {
			return nil, nil, &LoadError{ID: id, Detail: err.Error(), Err: ErrSchemaViolation}
		}
		if warn != "" {
			warnings = append(warnings, warn)
		}
		bass[i] = step
	}

	drums, dwarn, err := parseDrums(f.DrumPattern, len(bass))
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.ID = id
			return nil, nil, le
		}
		return nil, nil, &LoadError{ID: id, Err: err}
	}
	warnings = append(warnings, dwarn...)

	rootNote := uint8(0)
	if f.RootNote >= 0 && f.RootNote <= 127 {
		rootNote = uint8(f.RootNote)
	} else {
		warnings = append(warnings, fmt.Sprintf("root_note %d out of range, ignored", f.RootNote))
	}

	return &Pattern{
		ID:          id,
		Name:        f.Name,
		Description: f.Description,
		RootNote:    rootNote,
		Bass:        bass,
		Drums:       drums,
	}, warnings, nil
}

// parseBassStep decodes one entry: null for a rest, otherwise a
// [note, velocity, label] triple. Out-of-range values drop the entry
// to a rest with a warning.
func parseBassStep(i int, raw json.RawMessage) (BassStep, string, error) {
	if string(raw) == "null" {
		return BassStep{Rest: true}, "", nil
	}

	var tri []any
	if err := json.Unmarshal(raw, &tri); err != nil {
		return BassStep{}, "", fmt.Errorf("bass step %d: not a [note, velocity, label] triple", i)
	}
	if len(tri) < 2 {
		return BassStep{}, "", fmt.Errorf("bass step %d: triple has %d elements", i, len(tri))
	}

	note, ok1 := tri[0].(float64)
	vel, ok2 := tri[1].(float64)
	if !ok1 || !ok2 {
		return BassStep{}, "", fmt.Errorf("bass step %d: note/velocity not numeric", i)
	}

	label := ""
	if len(tri) >= 3 {
		s, ok := tri[2].(string)
		if !ok {
			return BassStep{}, "", fmt.Errorf("bass step %d: label not a string", i)
		}
		label = s
	}

	if note < 0 || note > 127 || float64(int(note)) != note {
		return BassStep{Rest: true}, fmt.Sprintf("bass step %d: note %v out of range, dropped", i, note), nil
	}
	if vel < 0 || vel > 127 || float64(int(vel)) != vel {
		return BassStep{Rest: true}, fmt.Sprintf("bass step %d: velocity %v out of range, dropped", i, vel), nil
	}

	return BassStep{Note: uint8(note), Velocity: uint8(vel), Label: label}, "", nil
}

// parseDrums resolves the drum section and forces it to bassLen steps.
// A shorter explicit list that divides bassLen is tiled; a missing section
// becomes all rests; anything else is a length mismatch.
func parseDrums(d *drumSchema, bassLen int) ([]DrumStep, []string, error) {
	if d == nil {
		return make([]DrumStep, bassLen), nil, nil
	}

	if d.Generator != "" {
		gen, ok := Generator(d.Generator)
		if !ok {
			return nil, nil, &LoadError{Detail: fmt.Sprintf("unknown drum generator %q", d.Generator), Err: ErrSchemaViolation}
		}
		return fitSteps(gen(), bassLen), nil, nil
	}

	if len(d.Steps) == 0 {
		return make([]DrumStep, bassLen), nil, nil
	}

	var warnings []string
	steps := make([]DrumStep, len(d.Steps))
	for i, rawHits := range d.Steps {
		for _, hit := range rawHits {
			if len(hit) < 2 {
				return nil, nil, &LoadError{Detail: fmt.Sprintf("drum step %d: hit is not a [voice, velocity] pair", i), Err: ErrSchemaViolation}
			}
			voice, vel := hit[0], hit[1]
			if voice < 0 || voice > 127 {
				warnings = append(warnings, fmt.Sprintf("drum step %d: voice %d out of range, dropped", i, voice))
				continue
			}
			if vel < 0 || vel > 127 {
				warnings = append(warnings, fmt.Sprintf("drum step %d: velocity %d out of range, dropped", i, vel))
				continue
			}
			steps[i].Hits = append(steps[i].Hits, DrumHit{Voice: uint8(voice), Velocity: uint8(vel)})
		}
	}

	switch {
	case len(steps) == bassLen:
		return steps, warnings, nil
	case len(steps) < bassLen && bassLen%len(steps) == 0:
		return fitSteps(steps, bassLen), warnings, nil
	default:
		return nil, nil, &LoadError{
			Detail: fmt.Sprintf("%d drum steps vs %d bass steps", len(steps), bassLen),
			Err:    ErrLengthMismatch,
		}
	}
}

// fitSteps tiles or truncates steps to exactly n entries.
func fitSteps(steps []DrumStep, n int) []DrumStep {
	out := make([]DrumStep, n)
	for i := range out {
		out[i] = steps[i%len(steps)]
	}
	return out
}
