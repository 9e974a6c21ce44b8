package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/philipp01105/hierlog/appender"
	"github.com/philipp01105/hierlog/core"
)

// Format is a configuration file syntax.
type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
	JSON Format = "json"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	case ".json":
		return JSON, nil
	default:
		return "", errors.Errorf("unsupported config extension %q; expected .yaml, .yml, .toml or .json", filepath.Ext(path))
	}
}

// LoadFile reads and decodes the configuration at path. "~" and
// environment variables in path are expanded.
func LoadFile(path string) (*Config, error) {
	expanded, err := appender.ExpandPath(path)
	if err != nil {
		return nil, &core.ConfigError{Op: "load", Err: err}
	}
	format, err := FormatOf(expanded)
	if err != nil {
		return nil, &core.ConfigError{Op: "load", Err: err}
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, &core.ConfigError{Op: "load", Err: errors.Wrap(err, "config file cannot be read")}
	}
	return Parse(data, format)
}

// Load decodes a configuration read from r.
func Load(r io.Reader, format Format) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &core.ConfigError{Op: "load", Err: errors.Wrap(err, "config cannot be read")}
	}
	return Parse(data, format)
}

// Parse decodes a configuration document.
func Parse(data []byte, format Format) (*Config, error) {
	raw, err := parseRaw(data, format)
	if err != nil {
		return nil, &core.ConfigError{Op: "load", Err: err}
	}
	cfg, err := Decode(raw)
	if err != nil {
		return nil, &core.ConfigError{Op: "load", Err: err}
	}
	return cfg, nil
}

func parseRaw(data []byte, format Format) (map[string]interface{}, error) {
	raw := map[string]interface{}{}
	switch format {
	case YAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(err, "invalid YAML")
		}
	case TOML:
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return nil, errors.Wrap(err, "invalid TOML")
		}
		raw = tree.ToMap()
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.Wrap(err, "invalid JSON")
		}
	default:
		return nil, errors.Errorf("unknown config format %q", format)
	}
	return raw, nil
}

// Decode converts a generic document into a Config. Unknown keys are
// errors, and scalars are converted where unambiguous (10 to "10").
func Decode(raw map[string]interface{}) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot create decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "cannot decode config")
	}
	return &cfg, nil
}
