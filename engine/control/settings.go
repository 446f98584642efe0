// Package control is the external control surface of the swarm: the settings the control panel
// exposes, their YAML file form, and the hot-reload plumbing that turns file edits into
// pipeline rebuilds.
package control

import (
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/style"
	"github.com/Carmen-Shannon/oxy-swarm/engine/swarm"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSettings matches every validation and decoding error of settings.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings mirrors the control panel.
type Settings struct {
	// Renderer names the execution model: "gl" (rasterStreamOut) or "wgpu" (computeDispatch).
	Renderer string `mapstructure:"renderer" yaml:"renderer"`
	// ParticleType names the visual style: "point", "quad" or "texture".
	ParticleType    string  `mapstructure:"particleType" yaml:"particleType"`
	BackgroundColor string  `mapstructure:"backgroundColor" yaml:"backgroundColor"`
	ParticleSize    float64 `mapstructure:"particleSize" yaml:"particleSize"`
	ParticleCount   int     `mapstructure:"particleCount" yaml:"particleCount"`
	ParticleSpeed   float64 `mapstructure:"particleSpeed" yaml:"particleSpeed"`
}

// DefaultSettings returns the settings the control panel starts with.
func DefaultSettings() Settings {
	return Settings{
		Renderer:        "gl",
		ParticleType:    "texture",
		BackgroundColor: "#000000",
		ParticleSize:    10,
		ParticleCount:   5000,
		ParticleSpeed:   0.001,
	}
}

// Validate checks the settings by converting them.
//
// Returns:
//   - error: an error wrapping ErrInvalidSettings, or nil
func (s Settings) Validate() error {
	_, err := s.Config()
	return err
}

// Config converts the settings to a pipeline configuration.
//
// Returns:
//   - swarm.Config: the configuration
//   - error: an error wrapping ErrInvalidSettings if a name, color or range is invalid
func (s Settings) Config() (swarm.Config, error) {
	model, err := renderer.ParseExecutionModel(s.Renderer)
	if err != nil {
		return swarm.Config{}, fmt.Errorf("%w: renderer: %v", ErrInvalidSettings, err)
	}
	vs, err := style.ParseVisualStyle(s.ParticleType)
	if err != nil {
		return swarm.Config{}, fmt.Errorf("%w: particleType: %v", ErrInvalidSettings, err)
	}
	bg, err := common.HexToRGBA(s.BackgroundColor)
	if err != nil {
		return swarm.Config{}, fmt.Errorf("%w: backgroundColor: %v", ErrInvalidSettings, err)
	}
	if s.ParticleCount < 0 || s.ParticleCount > swarm.MaxParticleCount {
		return swarm.Config{}, fmt.Errorf("%w: particleCount %d outside [0, %d]", ErrInvalidSettings, s.ParticleCount, swarm.MaxParticleCount)
	}

	cfg := swarm.Config{
		Model:         model,
		Style:         vs,
		ParticleCount: uint32(s.ParticleCount),
		ParticleSpeed: float32(s.ParticleSpeed),
		ParticleSize:  float32(s.ParticleSize),
		Background:    bg,
	}
	if err := cfg.Validate(); err != nil {
		return swarm.Config{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return cfg, nil
}

// ParseSettings decodes a YAML document onto the defaults. Values are weakly typed, so
// particleCount: "5000" and particleCount: 5000 are the same. Unknown keys are rejected.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - Settings: the decoded settings
//   - error: an error wrapping ErrInvalidSettings if decoding or validation fails
func ParseSettings(data []byte) (Settings, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	s := DefaultSettings()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &s,
	})
	if err != nil {
		return Settings{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings reads and parses a settings file.
//
// Parameters:
//   - path: the YAML file
//
// Returns:
//   - Settings: the decoded settings
//   - error: a read error, or an error wrapping ErrInvalidSettings
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	s, err := ParseSettings(data)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Marshal encodes the settings as YAML.
func (s Settings) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}
