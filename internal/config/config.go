// Package config loads service settings from defaults, an optional config
// file, MINGSHAN_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ayusman/mingshan/internal/blend"
	"github.com/ayusman/mingshan/internal/capture"
	"github.com/ayusman/mingshan/internal/detector"
	"github.com/ayusman/mingshan/internal/gesture"
	"github.com/ayusman/mingshan/internal/terrain"
)

// EnvPrefix prefixes environment overrides, e.g. MINGSHAN_SERVER_ADDR.
const EnvPrefix = "MINGSHAN"

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr   string `mapstructure:"addr"`
	WebDir string `mapstructure:"webDir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TerrainConfig sizes the generated field. Seed 0 draws a seed from the clock.
type TerrainConfig struct {
	Count int     `mapstructure:"count"`
	Width float64 `mapstructure:"width"`
	Depth float64 `mapstructure:"depth"`
	Seed  uint64  `mapstructure:"seed"`
}

// GestureConfig mirrors gesture.Config.
type GestureConfig struct {
	ExtensionRatio  float64 `mapstructure:"extensionRatio"`
	OpenRange       float64 `mapstructure:"openRange"`
	PointingRange   float64 `mapstructure:"pointingRange"`
	Mirror          bool    `mapstructure:"mirror"`
	ThumbOnlyIsFist bool    `mapstructure:"thumbOnlyIsFist"`
}

// BlendConfig mirrors blend.Config plus the render rate.
type BlendConfig struct {
	DisperseAlpha  float64 `mapstructure:"disperseAlpha"`
	RotationAlpha  float64 `mapstructure:"rotationAlpha"`
	AutoRotateStep float64 `mapstructure:"autoRotateStep"`
	RenderFPS      int     `mapstructure:"renderFPS"`
}

// CaptureConfig holds camera and detector settings.
type CaptureConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	Device        int     `mapstructure:"device"`
	Width         int     `mapstructure:"width"`
	Height        int     `mapstructure:"height"`
	FPS           int     `mapstructure:"fps"`
	Preview       bool    `mapstructure:"preview"`
	MinConfidence float64 `mapstructure:"minConfidence"`
	MinTracking   float64 `mapstructure:"minTracking"`
	Python        string  `mapstructure:"python"`
	Script        string  `mapstructure:"script"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// TrayConfig toggles the menu-bar indicator.
type TrayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Terrain TerrainConfig `mapstructure:"terrain"`
	Gesture GestureConfig `mapstructure:"gesture"`
	Blend   BlendConfig   `mapstructure:"blend"`
	Capture CaptureConfig `mapstructure:"capture"`
	Store   StoreConfig   `mapstructure:"store"`
	Tray    TrayConfig    `mapstructure:"tray"`
}

// DataDir returns ~/.mingshan, or .mingshan when there is no home directory.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mingshan"
	}
	return filepath.Join(home, ".mingshan")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.webDir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("terrain.count", terrain.DefaultCount)
	v.SetDefault("terrain.width", terrain.DefaultWidth)
	v.SetDefault("terrain.depth", terrain.DefaultDepth)
	v.SetDefault("terrain.seed", 0)

	g := gesture.DefaultConfig()
	v.SetDefault("gesture.extensionRatio", g.ExtensionRatio)
	v.SetDefault("gesture.openRange", g.OpenRange)
	v.SetDefault("gesture.pointingRange", g.PointingRange)
	v.SetDefault("gesture.mirror", g.Mirror)
	v.SetDefault("gesture.thumbOnlyIsFist", g.ThumbOnlyIsFist)

	b := blend.DefaultConfig()
	v.SetDefault("blend.disperseAlpha", b.DisperseAlpha)
	v.SetDefault("blend.rotationAlpha", b.RotationAlpha)
	v.SetDefault("blend.autoRotateStep", b.AutoRotateStep)
	v.SetDefault("blend.renderFPS", 60)

	d := detector.DefaultConfig()
	v.SetDefault("capture.enabled", true)
	v.SetDefault("capture.device", 0)
	v.SetDefault("capture.width", capture.DefaultWidth)
	v.SetDefault("capture.height", capture.DefaultHeight)
	v.SetDefault("capture.fps", capture.DefaultFPS)
	v.SetDefault("capture.preview", true)
	v.SetDefault("capture.minConfidence", d.MinConfidence)
	v.SetDefault("capture.minTracking", d.MinTrackingConf)
	v.SetDefault("capture.python", "")
	v.SetDefault("capture.script", "")

	v.SetDefault("store.path", filepath.Join(DataDir(), "mingshan.db"))

	v.SetDefault("tray.enabled", true)
}

// Flags returns the command-line flags Load understands.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("mingshan", pflag.ContinueOnError)
	fs.String("config", "", "config file (default: ./mingshan.yaml or ~/.mingshan/mingshan.yaml)")
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("log-level", "info", "log level: trace, debug, info, warn, error")
	fs.Uint64("seed", 0, "terrain seed, 0 for random")
	fs.Int("camera", 0, "camera device id")
	fs.Bool("no-tray", false, "run without the menu-bar indicator")
	fs.Bool("no-camera", false, "start with gesture control disabled")
	return fs
}

// flagKeys binds flag names to config keys.
var flagKeys = map[string]string{
	"addr":      "server.addr",
	"log-level": "log.level",
	"seed":      "terrain.seed",
	"camera":    "capture.device",
}

// Load builds a Config. flags may be nil; only flags that were set on the
// command line override other sources.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var file string
	if flags != nil {
		file, _ = flags.GetString("config")
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
		if f := flags.Lookup("no-tray"); f != nil && f.Changed {
			v.Set("tray.enabled", f.Value.String() != "true")
		}
		if f := flags.Lookup("no-camera"); f != nil && f.Changed {
			v.Set("capture.enabled", f.Value.String() != "true")
		}
	}

	if err := readFile(v, file); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		return nil
	}

	v.SetConfigName("mingshan")
	v.AddConfigPath(".")
	v.AddConfigPath(DataDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Terrain.Count <= 0 || c.Terrain.Width <= 0 || c.Terrain.Depth <= 0 {
		return fmt.Errorf("config: %w", terrain.ErrInvalidDimensions)
	}
	if err := c.Classifier().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Blender().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Blend.RenderFPS <= 0 || c.Capture.FPS <= 0 {
		return errors.New("config: frame rates must be positive")
	}
	return nil
}

// Classifier returns the gesture classifier settings.
func (c *Config) Classifier() gesture.Config {
	return gesture.Config{
		ExtensionRatio:  c.Gesture.ExtensionRatio,
		OpenRange:       c.Gesture.OpenRange,
		PointingRange:   c.Gesture.PointingRange,
		Mirror:          c.Gesture.Mirror,
		ThumbOnlyIsFist: c.Gesture.ThumbOnlyIsFist,
	}
}

// Blender returns the animation smoothing settings.
func (c *Config) Blender() blend.Config {
	return blend.Config{
		DisperseAlpha:  c.Blend.DisperseAlpha,
		RotationAlpha:  c.Blend.RotationAlpha,
		AutoRotateStep: c.Blend.AutoRotateStep,
	}
}

// Camera returns the webcam settings.
func (c *Config) Camera() capture.CameraConfig {
	return capture.CameraConfig{
		Device: c.Capture.Device,
		Width:  c.Capture.Width,
		Height: c.Capture.Height,
		FPS:    c.Capture.FPS,
	}
}

// Detector returns the landmark detector settings.
func (c *Config) Detector() detector.Config {
	d := detector.DefaultConfig()
	d.MinConfidence = c.Capture.MinConfidence
	d.MinTrackingConf = c.Capture.MinTracking
	d.Python = c.Capture.Python
	d.Script = c.Capture.Script
	return d
}

// TerrainOptions returns the generator options.
func (c *Config) TerrainOptions() []terrain.Option {
	if c.Terrain.Seed == 0 {
		return nil
	}
	return []terrain.Option{terrain.WithSeed(c.Terrain.Seed)}
}
