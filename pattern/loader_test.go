package pattern

import (
	"errors"
	"testing"
)

func TestLoadValid(t *testing.T) {
	data := []byte(`{
		"name": "Acid Line",
		"description": "classic",
		"root_note": 36,
		"bass_pattern": [
			[36, 100, "C2"],
			null,
			[39, 110, "D#2"],
			[39, 0, "cut"]
		],
		"drum_pattern": {
			"steps": [
				[[36, 120], [42, 75]],
				[],
				[[38, 105]],
				[[42, 65]]
			]
		}
	}`)

	p, warnings, err := Load("acid", data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if p.ID != "acid" || p.Name != "Acid Line" || p.RootNote != 36 {
		t.Errorf("metadata: id=%q name=%q root=%d", p.ID, p.Name, p.RootNote)
	}
	if p.Length() != 4 || len(p.Drums) != 4 {
		t.Fatalf("lengths: bass=%d drums=%d", p.Length(), len(p.Drums))
	}
	if !p.Bass[0].Sounds() || p.Bass[0].Note != 36 || p.Bass[0].Label != "C2" {
		t.Errorf("step 0: %+v", p.Bass[0])
	}
	if !p.Bass[1].Rest {
		t.Errorf("step 1 should be a rest: %+v", p.Bass[1])
	}
	if !p.Bass[3].HardCut() {
		t.Errorf("step 3 should be a hard cut: %+v", p.Bass[3])
	}
	if len(p.Drums[0].Hits) != 2 || p.Drums[0].Hits[0].Voice != VoiceKick {
		t.Errorf("drum step 0: %+v", p.Drums[0])
	}
	if len(p.Drums[1].Hits) != 0 {
		t.Errorf("drum step 1 should be empty: %+v", p.Drums[1])
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
	}{
		{"NotJSON", `{not json`, ErrMalformed},
		{"MissingName", `{"bass_pattern": [[36, 100, "C2"]]}`, ErrSchemaViolation},
		{"MissingBass", `{"name": "x"}`, ErrSchemaViolation},
		{"WrongFieldType", `{"name": 5, "bass_pattern": [[36, 100, "C2"]]}`, ErrSchemaViolation},
		{"BassStepNotTriple", `{"name": "x", "bass_pattern": ["nope"]}`, ErrSchemaViolation},
		{"BadHitShape", `{"name": "x", "bass_pattern": [[36, 100, "C2"]], "drum_pattern": {"steps": [[[36]]]}}`, ErrSchemaViolation},
		{"UnknownGenerator", `{"name": "x", "bass_pattern": [[36, 100, "C2"]], "drum_pattern": {"generator": "nope"}}`, ErrSchemaViolation},
		{
			"DrumsLonger",
			`{"name": "x", "bass_pattern": [[36, 100, "C2"], null], "drum_pattern": {"steps": [[], [], []]}}`,
			ErrLengthMismatch,
		},
		{
			"DrumsDontDivide",
			`{"name": "x", "bass_pattern": [[36,100,"a"], [37,100,"b"], [38,100,"c"], [39,100,"d"]], "drum_pattern": {"steps": [[], [], []]}}`,
			ErrLengthMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, _, err := Load("bad", []byte(tc.data))
			if p != nil {
				t.Fatalf("got a pattern from invalid input")
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v, want %v", err, tc.want)
			}
			var le *LoadError
			if !errors.As(err, &le) || le.ID != "bad" {
				t.Errorf("error should carry the patch id: %v", err)
			}
		})
	}
}

func TestLoadDropsOutOfRange(t *testing.T) {
	data := []byte(`{
		"name": "ranges",
		"bass_pattern": [[200, 100, "bad"], [36, 300, "bad"], [40, 90, "ok"]],
		"drum_pattern": {
			"steps": [[[250, 100]], [[36, 200]], [[36, 100]]]
		}
	}`)

	p, warnings, err := Load("ranges", data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 4 {
		t.Errorf("want 4 warnings, got %d: %v", len(warnings), warnings)
	}
	// Dropped, not clamped: the bad steps become rests / empty hit sets.
	if !p.Bass[0].Rest || !p.Bass[1].Rest {
		t.Errorf("out-of-range bass steps should become rests: %+v %+v", p.Bass[0], p.Bass[1])
	}
	if !p.Bass[2].Sounds() {
		t.Errorf("valid step dropped: %+v", p.Bass[2])
	}
	if len(p.Drums[0].Hits) != 0 || len(p.Drums[1].Hits) != 0 {
		t.Errorf("out-of-range hits should be dropped: %+v %+v", p.Drums[0], p.Drums[1])
	}
	if len(p.Drums[2].Hits) != 1 {
		t.Errorf("valid hit dropped: %+v", p.Drums[2])
	}
}

func TestLoadDrumReconciliation(t *testing.T) {
	t.Run("TilesShorterDrums", func(t *testing.T) {
		data := []byte(`{
			"name": "tile",
			"bass_pattern": [[36,100,"a"], [37,100,"b"], [38,100,"c"], [39,100,"d"]],
			"drum_pattern": {"steps": [[[36, 120]], []]}
		}`)
		p, _, err := Load("tile", data)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(p.Drums) != 4 {
			t.Fatalf("drums=%d, want 4", len(p.Drums))
		}
		if len(p.Drums[2].Hits) != 1 || len(p.Drums[3].Hits) != 0 {
			t.Errorf("tiling wrong: %+v", p.Drums)
		}
	})

	t.Run("MissingSectionIsRests", func(t *testing.T) {
		data := []byte(`{"name": "quiet", "bass_pattern": [[36,100,"a"], null]}`)
		p, _, err := Load("quiet", data)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(p.Drums) != 2 || len(p.Drums[0].Hits) != 0 {
			t.Errorf("drums: %+v", p.Drums)
		}
	})

	t.Run("GeneratorFitsBassLength", func(t *testing.T) {
		bass := `[36,100,"a"]`
		steps := bass
		for i := 1; i < 16; i++ {
			steps += "," + bass
		}
		data := []byte(`{"name": "gen", "bass_pattern": [` + steps + `], "drum_pattern": {"generator": "tech64"}}`)
		p, _, err := Load("gen", data)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(p.Drums) != 16 {
			t.Fatalf("drums=%d, want 16 (truncated from 64)", len(p.Drums))
		}
	})
}
