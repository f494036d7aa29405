// Package config loads dtscheck settings from the config file, the
// environment and the package manifest.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/dtscheck/internal/model"
)

const (
	// FileName is the config file looked up in the checked root.
	FileName = ".dtscheck.yaml"
	// ManifestName is the package manifest carrying checkApiVersion.
	ManifestName = "package.json"

	EnvAPIVersion = "DTSCHECK_API_VERSION"
	EnvFormat     = "DTSCHECK_FORMAT"
)

// ErrNoAPIVersion is returned when a manifest does not configure a usable
// checkApiVersion.
var ErrNoAPIVersion = errors.New("manifest does not configure checkApiVersion")

// Config holds the settings of one run. Command-line flags override it.
type Config struct {
	APIVersion  int      `yaml:"api_version,omitempty" validate:"gte=0"`
	Format      string   `yaml:"format,omitempty" validate:"omitempty,oneof=json jsonl xlsx toon text"`
	Output      string   `yaml:"output,omitempty"`
	Checks      []string `yaml:"checks,omitempty" validate:"dive,errortype"`
	Exclude     []string `yaml:"exclude,omitempty" validate:"dive,required"`
	MaxFindings int      `yaml:"max_findings,omitempty" validate:"gte=0"`
	MaxFileSize int64    `yaml:"max_file_size,omitempty" validate:"gte=0"`
	Workers     int      `yaml:"workers,omitempty" validate:"gte=0,lte=256"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("errortype", func(fl validator.FieldLevel) bool {
		_, err := model.ParseErrorType(fl.Field().String())
		return err == nil
	})
}

// Load reads a YAML config file. A missing file yields an empty Config
// unless required is set.
func Load(path string, required bool) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	parsed, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return parsed, nil
}

// Parse decodes YAML config data. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}

// Env returns a lookup over the process environment that falls back to the
// .env file in dir, if there is one. The process environment is not
// modified.
func Env(dir string) (func(string) string, error) {
	dotenv, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", filepath.Join(dir, ".env"), err)
	}
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvAPIVersion)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", EnvAPIVersion, v)
		}
		c.APIVersion = n
	}
	if v := strings.TrimSpace(getenv(EnvFormat)); v != "" {
		c.Format = v
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ErrorTypes resolves Checks into error types.
func (c *Config) ErrorTypes() ([]model.ErrorType, error) {
	var out []model.ErrorType
	for _, s := range c.Checks {
		et, err := model.ParseErrorType(s)
		if err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	return out, nil
}

type manifest struct {
	CheckAPIVersion json.Number `json:"checkApiVersion"`
}

// ReadManifest returns the checkApiVersion of a package.json file. A
// missing, zero or non-numeric value yields ErrNoAPIVersion.
func ReadManifest(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return 0, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(m.CheckAPIVersion.String()))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s: %w", path, ErrNoAPIVersion)
	}
	return v, nil
}

// Marshal renders c as YAML.
func (c *Config) Marshal() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	return string(data), nil
}
