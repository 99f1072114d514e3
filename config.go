// Package qjunit holds the configuration shared by the qjunit reporter and
// its command line front end.
package qjunit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rlch/qjunit/junit"
)

// Console formats.
const (
	FormatDots    = "dots"
	FormatVerbose = "verbose"
	FormatJSON    = "json"
)

// Config represents the .qjunit.yaml configuration file.
type Config struct {
	// Dest is the directory reports are written to.
	Dest string `yaml:"dest,omitempty"`

	// Namer is an expr expression deriving the report classname from the
	// spawned source, bound as `source`. Empty means the base name without
	// its ".html" suffix.
	Namer string `yaml:"namer,omitempty"`

	// Timeout after which a spawned subject that never finished is
	// reported as timed out. Zero disables the watchdog.
	Timeout Duration `yaml:"timeout,omitempty"`

	// Format selects the console progress output.
	Format string `yaml:"format,omitempty"`

	// Strict makes the CLI exit non-zero when any test failed.
	Strict bool `yaml:"strict,omitempty"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Dest:   junit.DefaultDest,
		Format: FormatDots,
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Dest == "" {
		c.Dest = junit.DefaultDest
	}

	if c.Format == "" {
		c.Format = FormatDots
	}
}

// Validate checks field values that the schema cannot express.
func (c *Config) Validate() error {
	switch c.Format {
	case "", FormatDots, FormatVerbose, FormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, c.Format)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidConfig, c.Timeout)
	}

	return nil
}

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

// UnmarshalYAML parses strings such as "30s" or "1m30s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	if s == "" {
		*d = 0
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("timeout: %w", err)
	}

	*d = Duration(parsed)

	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfigNames are the filenames we search for.
var DefaultConfigNames = []string{".qjunit.yaml", ".qjunit.yml", "qjunit.yaml", "qjunit.yml"}

// LoadConfig finds and loads the nearest .qjunit.yaml walking up from dir.
func LoadConfig(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	return LoadConfigFile(path)
}

// FindConfig searches for a config file starting from dir and walking up.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for dir := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(dir, name)

			_, err := os.Stat(path)
			if err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}

		dir = parent
	}
}

// LoadConfigFile loads a config from a specific path. The document is
// checked against the config schema before decoding.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	return ParseConfig(data)
}

// ParseConfig validates and decodes a YAML config document. Unset fields
// get their defaults.
func ParseConfig(data []byte) (*Config, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	cfg := Default()

	err := yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
