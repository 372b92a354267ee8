// Package config loads the YAML settings used by the brdfseed command.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/setanarut/brdfseed"
	"github.com/setanarut/brdfseed/optimize"
	"github.com/setanarut/brdfseed/preview"
	"github.com/setanarut/brdfseed/utils"
)

type Palette struct {
	Colors int    `yaml:"colors"`
	Method string `yaml:"method"`
}

type Optimizer struct {
	Iterations int           `yaml:"iterations"`
	NoiseScale float64       `yaml:"noise_scale"`
	Interval   time.Duration `yaml:"interval"`
	Seed       uint64        `yaml:"seed"`
}

type Preview struct {
	Size int `yaml:"size"`
}

type Config struct {
	// AnalysisSize is the side of the square photos are resampled to.
	AnalysisSize int       `yaml:"analysis_size"`
	OutputDir    string    `yaml:"output_dir"`
	LogLevel     string    `yaml:"log_level"`
	Palette      Palette   `yaml:"palette"`
	Optimizer    Optimizer `yaml:"optimizer"`
	Preview      Preview   `yaml:"preview"`
}

func Default() Config {
	opt := optimize.DefaultOptions()
	return Config{
		AnalysisSize: brdfseed.DefaultAnalysisSize,
		OutputDir:    ".",
		LogLevel:     "info",
		Palette:      Palette{Colors: 5, Method: utils.PaletteMethodDominantColor.String()},
		Optimizer: Optimizer{
			Iterations: opt.Iterations,
			NoiseScale: opt.NoiseScale,
			Interval:   opt.Interval,
		},
		Preview: Preview{Size: preview.DefaultOptions().Size},
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, errors.Wrapf(cfg.Validate(), "config %s", path)
}

func (c Config) Validate() error {
	switch {
	case c.AnalysisSize <= 0:
		return errors.Errorf("analysis_size must be positive, got %d", c.AnalysisSize)
	case c.Palette.Colors < 0:
		return errors.Errorf("palette.colors must not be negative, got %d", c.Palette.Colors)
	case c.Optimizer.Iterations <= 0:
		return errors.Errorf("optimizer.iterations must be positive, got %d", c.Optimizer.Iterations)
	case c.Optimizer.NoiseScale < 0:
		return errors.Errorf("optimizer.noise_scale must not be negative, got %g", c.Optimizer.NoiseScale)
	case c.Optimizer.Interval < 0:
		return errors.Errorf("optimizer.interval must not be negative, got %s", c.Optimizer.Interval)
	case c.Preview.Size <= 0:
		return errors.Errorf("preview.size must be positive, got %d", c.Preview.Size)
	}
	if _, err := utils.ParsePaletteMethod(c.Palette.Method); err != nil {
		return errors.Wrap(err, "palette.method")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, errors.Wrap(err, "log_level")
	}
	return l, nil
}

func (c Config) PaletteMethod() utils.PaletteMethod {
	m, _ := utils.ParsePaletteMethod(c.Palette.Method)
	return m
}

func (c Config) OptimizeOptions() optimize.Options {
	return optimize.Options{
		Iterations: c.Optimizer.Iterations,
		NoiseScale: c.Optimizer.NoiseScale,
		Interval:   c.Optimizer.Interval,
		Seed:       c.Optimizer.Seed,
	}
}

func (c Config) PreviewOptions() preview.Options {
	opt := preview.DefaultOptions()
	opt.Size = c.Preview.Size
	return opt
}
