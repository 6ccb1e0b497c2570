// Package config holds the per-user defaults that prefill new projects.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults is stored in ~/.config/stackgen/defaults.yaml and shared across all projects.
type Defaults struct {
	Email     string `yaml:"email" validate:"omitempty,email"`
	Domain    string `yaml:"domain" validate:"omitempty,fqdn"`
	Staging   bool   `yaml:"staging"`
	TimeZone  string `yaml:"timezone"`   // TZ of the database containers
	NodeImage string `yaml:"node_image"` // used when no package manager is installed locally
}

const (
	DefaultTimeZone  = "UTC"
	DefaultNodeImage = "node:20-alpine"
)

// Environment overrides, applied after the file.
const (
	EnvEmail     = "STACKGEN_EMAIL"
	EnvNodeImage = "STACKGEN_NODE_IMAGE"
)

const fileName = "defaults.yaml"

// configDir is replaced in tests.
var configDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "stackgen"), nil
}

// Path returns the location of the defaults file.
func Path() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// LoadDefaults reads the defaults file. A missing file yields the built-in defaults.
func LoadDefaults() (*Defaults, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	var d Defaults
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading defaults: %w", err)
	default:
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if v := os.Getenv(EnvEmail); v != "" {
		d.Email = v
	}
	if v := os.Getenv(EnvNodeImage); v != "" {
		d.NodeImage = v
	}
	if err := validator.New().Struct(d); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	applyDefaults(&d)
	return &d, nil
}

// SaveDefaults writes d to the defaults file. Values LoadDefaults would reject
// are not written.
func SaveDefaults(d *Defaults) error {
	if err := validator.New().Struct(d); err != nil {
		return err
	}
	dir, err := configDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fileName), data, 0600)
}

func applyDefaults(d *Defaults) {
	if d.TimeZone == "" {
		d.TimeZone = DefaultTimeZone
	}
	if d.NodeImage == "" {
		d.NodeImage = DefaultNodeImage
	}
}
