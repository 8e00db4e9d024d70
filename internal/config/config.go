// Package config loads the YAML configuration shared by the CLI and the
// editor host.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/csicar/tables/internal/core/history"
	"github.com/csicar/tables/internal/core/storage"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	History  HistoryConfig  `yaml:"history"`
	Autosave AutosaveConfig `yaml:"autosave"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error none off"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" validate:"required,oneof=memory disk sqlite"`
	// Path is the base directory for disk and the database file for sqlite.
	Path string `yaml:"path" validate:"required_unless=Backend memory"`
	// Key names the document the CLI works on.
	Key string `yaml:"key" validate:"required"`
}

type HistoryConfig struct {
	Divisor int `yaml:"divisor" validate:"gte=2"`
}

type AutosaveConfig struct {
	// Interval between autosaves; zero disables autosave.
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:      LogConfig{Level: "info"},
		Storage:  StorageConfig{Backend: storage.BackendDisk, Path: "tables-data", Key: "document"},
		History:  HistoryConfig{Divisor: history.DefaultDivisor},
		Autosave: AutosaveConfig{Interval: 5 * time.Second},
	}
}

// Load reads the file at path over the defaults. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes YAML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse the config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Write stores c as YAML at path.
func (c Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
