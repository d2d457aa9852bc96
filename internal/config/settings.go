package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds persistent CLI defaults loaded from a config file.
// Flags override settings; settings override the built-in defaults.
type Settings struct {
	Interpreter string            `yaml:"interpreter"`
	ExtraPaths  []string          `yaml:"extra_paths"`
	Env         map[string]string `yaml:"env"`
	Workdir     string            `yaml:"workdir"`
	Timeout     time.Duration     `yaml:"timeout"`
	GracePeriod time.Duration     `yaml:"grace_period"`
	Unbuffered  bool              `yaml:"unbuffered"` // pass -u to the interpreter
	HistoryDB   string            `yaml:"history_db"`
	Display     string            `yaml:"display"` // full, minimal, off, auto
}

// defaultSettings are the values used when the config file is absent or
// silent on a key.
func defaultSettings() Settings {
	return Settings{
		Interpreter: "python3",
		GracePeriod: 5 * time.Second,
		Unbuffered:  true,
		Display:     "auto",
	}
}

// DefaultPath returns the default config file location, ~/.pyrun.yml,
// falling back to the working directory when the home dir is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pyrun.yml"
	}
	return filepath.Join(home, ".pyrun.yml")
}

// LoadSettings reads a YAML config file into Settings. If the file does not
// exist, it returns the defaults and nil error.
func LoadSettings(path string) (*Settings, error) {
	s := defaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &s, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &s, nil
}
