package schema

import (
	"fmt"
	"os"

	"google.golang.org/protobuf/reflect/protoreflect"
	"gopkg.in/yaml.v3"
)

// Settings is the YAML side file describing what the descriptor does not:
//
//	message: Config
//	version_field: boardVersion
//	max_count:
//	  ProfileOptions.gpioMappingsSets: 3
type Settings struct {
	Message      string         `yaml:"message"`
	VersionField string         `yaml:"version_field"`
	MaxCount     map[string]int `yaml:"max_count"`
}

// ParseSettings decodes and validates a settings document.
func ParseSettings(data []byte) (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse schema settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings reads a settings file.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read schema settings: %w", err)
	}
	s, err := ParseSettings(data)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate rejects non-positive bounds.
func (s Settings) Validate() error {
	for field, n := range s.MaxCount {
		if n <= 0 {
			return fmt.Errorf("max_count for %s must be positive, got %d", field, n)
		}
	}
	return nil
}

// Bounds converts the max_count table.
func (s Settings) Bounds() Bounds {
	b := make(Bounds, len(s.MaxCount))
	for field, n := range s.MaxCount {
		b[protoreflect.FullName(field)] = n
	}
	return b
}

// Options returns the schema options the settings describe.
func (s Settings) Options() []Option {
	return []Option{WithBounds(s.Bounds()), WithVersionField(s.VersionField)}
}
