// Package config loads the engine configuration from TOML. The Config is
// built once in main and handed to every subsystem that needs it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// framesInFlight is the only ring depth the renderer supports.
const framesInFlight = 2

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	Scene    SceneConfig    `toml:"scene"`
	Log      LogConfig      `toml:"log"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	X      int    `toml:"x"`
	Y      int    `toml:"y"`
}

type RendererConfig struct {
	FramesInFlight int  `toml:"frames_in_flight"`
	Validation     bool `toml:"validation"`
	MSAA           bool `toml:"msaa"`
	Samples        int  `toml:"samples"`
	// FenceTimeout of zero waits forever.
	FenceTimeout Duration   `toml:"fence_timeout"`
	ClearColor   [4]float32 `toml:"clear_color"`
}

type AssetsConfig struct {
	// Model is a glTF file. Empty renders the built-in cube.
	Model          string `toml:"model"`
	VertexShader   string `toml:"vertex_shader"`
	FragmentShader string `toml:"fragment_shader"`
}

type SceneConfig struct {
	Instances int     `toml:"instances"`
	Spacing   float32 `toml:"spacing"`
	// SpinSpeed is in degrees per second.
	SpinSpeed float32 `toml:"spin_speed"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Duration reads Go duration strings such as "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Lumen",
			Width:  1280,
			Height: 720,
			X:      100,
			Y:      100,
		},
		Renderer: RendererConfig{
			FramesInFlight: framesInFlight,
			MSAA:           true,
			Samples:        4,
			ClearColor:     [4]float32{0.02, 0.02, 0.03, 1},
		},
		Assets: AssetsConfig{
			VertexShader:   "shaders/mesh.vert.spv",
			FragmentShader: "shaders/mesh.frag.spv",
		},
		Scene: SceneConfig{
			Instances: 9,
			Spacing:   3,
			SpinSpeed: 45,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and validates the result. Unknown keys
// are rejected so that typos do not go unnoticed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return nil, fmt.Errorf("%w:\n%s", err, serr.String())
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("line %d column %d: %w", row, col, err)
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if c.Renderer.FramesInFlight != framesInFlight {
		errs = append(errs, fmt.Errorf("frames_in_flight must be %d, got %d", framesInFlight, c.Renderer.FramesInFlight))
	}
	if !validSampleCount(c.Renderer.Samples) {
		errs = append(errs, fmt.Errorf("samples must be a power of two up to 64, got %d", c.Renderer.Samples))
	}
	if c.Renderer.FenceTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("fence_timeout must not be negative"))
	}
	for i, v := range c.Renderer.ClearColor {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("clear_color[%d] = %v is outside [0, 1]", i, v))
		}
	}
	if c.Assets.VertexShader == "" || c.Assets.FragmentShader == "" {
		errs = append(errs, errors.New("both shader paths are required"))
	}
	if c.Scene.Instances <= 0 {
		errs = append(errs, fmt.Errorf("scene needs at least one instance, got %d", c.Scene.Instances))
	}
	return errors.Join(errs...)
}

func validSampleCount(n int) bool {
	switch n {
	case 1, 2, 4, 8, 16, 32, 64:
		return true
	}
	return false
}
