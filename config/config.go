package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// UIConfig stores UI preferences
type UIConfig struct {
	LastTempo int `json:"lastTempo,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	PatchesDir    string   `json:"patchesDir,omitempty"`
	Port          string   `json:"port,omitempty"` // substring match against MIDI output port names
	BassChannel   uint8    `json:"bassChannel"`
	RhythmChannel uint8    `json:"rhythmChannel"`
	UI            UIConfig `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
// Channels match the Roland T-8 factory layout: bass on channel 2,
// rhythm on channel 10 (0-based on the wire: 1 and 9).
func DefaultConfig() *Config {
	return &Config{
		PatchesDir:    "patches",
		Port:          "T-8",
		BassChannel:   1,
		RhythmChannel: 9,
		UI: UIConfig{
			LastTempo: 90,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "acid-looper"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
