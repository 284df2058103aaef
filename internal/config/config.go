package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDateFmt  = "%Y-%m-%d %H:%M"
	DefaultTimeout  = 10 * time.Second
	DefaultProvider = ProviderSunrise
)

// Sun position providers
const (
	ProviderSunrise = "sunrise"
	ProviderNOAA    = "noaa"
)

var (
	// ErrMissingField is returned when a required key is absent from the file.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalid is returned when values violate a configuration invariant.
	ErrInvalid = errors.New("invalid configuration")
)

// requiredFields lists dotted key paths that must be present in every config file.
var requiredFields = []string{
	"coord.latitude",
	"coord.longitude",
	"clock.timezone",
	"clock.server",
	"brightness.min",
	"brightness.max",
	"brightness.step",
	"brightness.num",
}

// Config represents the application configuration
type Config struct {
	Coord      CoordConfig      `yaml:"coord"`
	Clock      ClockConfig      `yaml:"clock"`
	Brightness BrightnessConfig `yaml:"brightness"`
}

// CoordConfig contains the geographic location used for sun calculations
type CoordConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Provider  string  `yaml:"provider"` // "sunrise" (default) or "noaa"
}

// ClockConfig contains the display device connection settings
type ClockConfig struct {
	Timezone int      `yaml:"timezone"` // Hours east of UTC
	Server   string   `yaml:"server"`   // ws:// or wss:// URL
	DateFmt  string   `yaml:"date_fmt"` // strftime layout for suninfo output
	Timeout  Duration `yaml:"timeout"`  // Per read/write deadline on the socket (0 = none)
}

// BrightnessConfig contains brightness bounds and the addressed channel
type BrightnessConfig struct {
	Min       uint8    `yaml:"min"`
	Max       uint8    `yaml:"max"`
	Step      uint8    `yaml:"step"`
	Num       uint8    `yaml:"num"`        // Device channel id
	StepDelay Duration `yaml:"step_delay"` // Pause between transition steps (0 = none)
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes configuration from YAML bytes, applies defaults and validates it
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
		return nil, err
	}

	for _, field := range requiredFields {
		if lookup(&doc, field) == nil {
			return nil, fmt.Errorf("%w %q", ErrMissingField, field)
		}
	}

	var cfg Config
	if err := doc.Decode(&cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Clock.DateFmt == "" {
		cfg.Clock.DateFmt = DefaultDateFmt
	}
	// An explicit 0 disables socket deadlines
	if lookup(&doc, "clock.timeout") == nil {
		cfg.Clock.Timeout = Duration(DefaultTimeout)
	}
	if cfg.Coord.Provider == "" {
		cfg.Coord.Provider = DefaultProvider
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the invariants the rest of the program relies on
func (c *Config) Validate() error {
	if c.Brightness.Min > c.Brightness.Max {
		return fmt.Errorf("%w: brightness.min (%d) is greater than brightness.max (%d)",
			ErrInvalid, c.Brightness.Min, c.Brightness.Max)
	}
	if c.Brightness.Step == 0 {
		return fmt.Errorf("%w: brightness.step must be greater than zero", ErrInvalid)
	}
	if c.Clock.Timeout < 0 || c.Brightness.StepDelay < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalid)
	}
	switch c.Coord.Provider {
	case ProviderSunrise, ProviderNOAA:
	default:
		return fmt.Errorf("%w: unknown coord.provider %q", ErrInvalid, c.Coord.Provider)
	}
	return nil
}

// lookup walks a dotted key path through nested YAML mappings
func lookup(node *yaml.Node, path string) *yaml.Node {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		node = node.Content[0]
	}

	for _, key := range strings.Split(path, ".") {
		if node.Kind != yaml.MappingNode {
			return nil
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == key {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return nil
		}
		node = next
	}

	// An explicit null counts as missing
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		return nil
	}
	return node
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
