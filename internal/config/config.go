package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	"github.com/xperimental/git-seek/internal/preset"
	"github.com/xperimental/git-seek/internal/render"
)

const defaultConfigFile = "git-seek.yml"

// Logger provides an application-wide definition of a Logger interface.
type Logger interface {
	logrus.FieldLogger
	WriterLevel(level logrus.Level) *io.PipeWriter
}

// Config contains the application configuration.
type Config struct {
	LogLevel   logrus.Level    `yaml:"logLevel"`
	Repository string          `yaml:"repository"`
	Format     render.Format   `yaml:"format"`
	Server     Server          `yaml:"server"`
	Presets    []preset.Preset `yaml:"presets"`
}

// Server contains configuration for the HTTP server.
type Server struct {
	ListenAddress   string        `yaml:"listenAddress"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Flags holds the command-line parameters shared by all commands.
type Flags struct {
	ConfigFile string
	Repository string
	LogLevel   string
}

// Register adds the flags to a flag set.
func (f *Flags) Register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.ConfigFile, "config", "c", "", fmt.Sprintf("Path to configuration file (default %q if present).", defaultConfigFile))
	flags.StringVarP(&f.Repository, "repo", "r", "", "Path to the git repository (default \".\").")
	flags.StringVar(&f.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error).")
}

// Load reads the configuration file and applies flag overrides. A missing
// default configuration file is not an error.
func Load(f Flags) (Config, error) {
	var cfg Config

	file, explicit := f.ConfigFile, f.ConfigFile != ""
	if !explicit {
		file = defaultConfigFile
	}

	err := readFile(file, &cfg)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return Config{}, err
	default:
	}

	if f.Repository != "" {
		cfg.Repository = f.Repository
	}

	if f.LogLevel != "" {
		level, err := logrus.ParseLevel(f.LogLevel)
		if err != nil {
			return Config{}, fmt.Errorf("can not parse log level: %w", err)
		}
		cfg.LogLevel = level
	}

	setDefaults(&cfg)

	return cfg, nil
}

func readFile(fileName string, cfg *Config) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("can not open configuration file %q: %w", fileName, err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil && err != io.EOF {
		return fmt.Errorf("can not parse configuration file: %w", err)
	}

	return nil
}

func setDefaults(cfg *Config) {
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logrus.InfoLevel
	}

	if cfg.Repository == "" {
		cfg.Repository = "."
	}

	if cfg.Format == "" {
		cfg.Format = render.FormatRaw
	}

	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":8080"
	}

	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 2 * time.Second
	}
}
