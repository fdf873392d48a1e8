// Package config loads pumpq API definitions from YAML or JSONC files.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	query "github.com/pumped-fn/pumped-query"
)

// SQLitePrefix marks a base URL that names a sqlite database instead of an
// HTTP server, e.g. "sqlite:app.db".
const SQLitePrefix = "sqlite:"

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("cannot read config file")
	errConfigInvalid      = errors.New("invalid config")
	errBaseURLEmpty       = errors.New("base_url is required")
	errEndpointName       = errors.New("endpoint name is required")
	errEndpointDuplicate  = errors.New("duplicate endpoint")
	errEndpointKind       = errors.New("endpoint kind must be query or mutation")
	errEndpointPath       = errors.New("endpoint path is required")
	errTagEmpty           = errors.New("tag type is required")
	errUnknownFormat      = errors.New("unknown config format")
)

// Config describes one API: where requests go and which endpoints exist.
type Config struct {
	BaseURL      string            `yaml:"base_url" json:"base_url"`
	CacheTimeout Duration          `yaml:"cache_timeout,omitempty" json:"cache_timeout,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Retries      int               `yaml:"retries,omitempty" json:"retries,omitempty"`
	TagTypes     []string          `yaml:"tag_types,omitempty" json:"tag_types,omitempty"`
	Endpoints    []EndpointConfig  `yaml:"endpoints" json:"endpoints"`
}

// Overrides are the command-line values applied after the file. Zero values
// leave the file's setting alone.
type Overrides struct {
	BaseURL      string
	CacheTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CacheTimeout: Duration{query.DefaultCacheTimeout},
		Retries:      2,
	}
}

// Load reads the config at path on top of the defaults and applies the
// overrides. The format follows the extension: .json and .jsonc are parsed
// as JSON with comments, everything else as YAML. An empty path loads only
// defaults and overrides.
func Load(path string, overrides Overrides) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return Config{}, fmt.Errorf("%w: %s", errConfigFileNotFound, path)
			}
			return Config{}, fmt.Errorf("%w: %s", errConfigFileRead, path)
		}

		if err := Parse(data, formatOf(path), &cfg); err != nil {
			return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
		}
	}

	if overrides.BaseURL != "" {
		cfg.BaseURL = overrides.BaseURL
	}
	if overrides.CacheTimeout > 0 {
		cfg.CacheTimeout = Duration{overrides.CacheTimeout}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", errConfigInvalid, err)
	}
	return cfg, nil
}

// Format names a config file syntax.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSONC Format = "jsonc"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSONC
	default:
		return FormatYAML
	}
}

// Parse decodes data onto cfg. Keys missing from data keep the value cfg
// already holds; unknown keys are an error.
func Parse(data []byte, format Format, cfg *Config) error {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("invalid YAML: %w", err)
		}
		return nil
	case FormatJSONC:
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return fmt.Errorf("invalid JSONC: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader(standardized))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownFormat, format)
	}
}

// Validate checks the config for errors.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errBaseURLEmpty
	}

	seen := make(map[string]bool, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("endpoints[%d]: %w", i, errEndpointName)
		}
		if seen[ep.Name] {
			return fmt.Errorf("%w: %s", errEndpointDuplicate, ep.Name)
		}
		seen[ep.Name] = true

		if _, err := ep.kind(); err != nil {
			return fmt.Errorf("endpoint %s: %w", ep.Name, err)
		}
		if strings.TrimSpace(ep.Path) == "" {
			return fmt.Errorf("endpoint %s: %w", ep.Name, errEndpointPath)
		}
		for _, tags := range [][]TagConfig{ep.Provides, ep.Invalidates} {
			for _, t := range tags {
				if t.Type == "" {
					return fmt.Errorf("endpoint %s: %w", ep.Name, errTagEmpty)
				}
			}
		}
	}
	return nil
}

// SQLiteDSN returns the database DSN when the base URL has SQLitePrefix.
func (c Config) SQLiteDSN() (string, bool) {
	return strings.CutPrefix(c.BaseURL, SQLitePrefix)
}

// Duration is a time.Duration written as "30s" or "5m" in config files.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	return d.parse(s)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) parse(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("negative duration %q", s)
	}
	d.Duration = parsed
	return nil
}
