// Package config loads the abhinaya YAML configuration.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/abhinaya/internal/capture"
	"github.com/ayusman/abhinaya/internal/detector"
	"github.com/ayusman/abhinaya/internal/overlay"
	"github.com/ayusman/abhinaya/internal/render"
)

// Filename is the config file looked up in the data directory.
const Filename = "abhinaya.yml"

// Config is the full application configuration.
type Config struct {
	Addr     string `yaml:"addr"`
	DataDir  string `yaml:"data_dir"`
	AssetDir string `yaml:"asset_dir"`
	LogLevel string `yaml:"log_level"`

	// MaxFaces caps poses, accessory instances and occluder meshes.
	MaxFaces int `yaml:"max_faces"`
	// Canvas is the output size the video is covered onto.
	Canvas Size `yaml:"canvas"`

	Camera   capture.Options `yaml:"camera"`
	Detector detector.Config `yaml:"detector"`
	Overlay  overlay.Params  `yaml:"overlay"`

	// MockDetector replaces the MediaPipe subprocess with the synthetic grid face.
	MockDetector bool `yaml:"mock_detector"`
	// Preview renders the composed frames for the MJPEG stream.
	Preview bool           `yaml:"preview"`
	Render  render.Options `yaml:"render"`
	// Tray shows the system tray menu.
	Tray bool `yaml:"tray"`
	// WebDir holds the static web UI. Empty searches the usual places.
	WebDir string `yaml:"web_dir"`
}

// Size is a width and height in pixels.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DefaultDataDir returns ~/.abhinaya, or a relative .abhinaya when the home
// directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".abhinaya"
	}
	return filepath.Join(home, ".abhinaya")
}

// Default returns the built-in configuration.
func Default() Config {
	dataDir := DefaultDataDir()
	return Config{
		Addr:     "127.0.0.1:8600",
		DataDir:  dataDir,
		AssetDir: filepath.Join(dataDir, "assets"),
		LogLevel: "info",
		MaxFaces: 2,
		Canvas:   Size{Width: 1280, Height: 720},
		Camera:   capture.Options{Width: capture.DefaultWidth, Height: capture.DefaultHeight, FPS: capture.DefaultFPS},
		Detector: detector.DefaultConfig(),
		Overlay:  overlay.DefaultParams(),
		Preview:  true,
		Render:   render.Options{JPEGQuality: render.DefaultJPEGQuality},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write config %s", path)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var err error
	if c.MaxFaces <= 0 {
		err = multierr.Append(err, errors.Errorf("max_faces must be positive, got %d", c.MaxFaces))
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		err = multierr.Append(err, errors.Errorf("canvas must have a positive size, got %dx%d", c.Canvas.Width, c.Canvas.Height))
	}
	if c.DataDir == "" {
		err = multierr.Append(err, errors.New("data_dir must be set"))
	}
	if q := c.Render.JPEGQuality; q < 0 || q > 100 {
		err = multierr.Append(err, errors.Errorf("render.jpeg_quality must be within 0..100, got %d", q))
	}
	err = multierr.Append(err, errors.Wrap(c.Overlay.Validate(), "overlay"))
	return err
}

// DBPath is the sqlite database location inside the data directory.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "abhinaya.db")
}
