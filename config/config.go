// Package config loads the settings of the clinicsim tools from defaults, a
// YAML file, a .env file, the environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/clinicsim/clinic"
)

// EnvPrefix prefixes every environment variable, e.g. CLINICSIM_SIM_LAMBDA.
const EnvPrefix = "CLINICSIM"

// Config is the complete tool configuration.
type Config struct {
	Sim    SimConfig    `mapstructure:"sim" yaml:"sim"`
	Serve  ServeConfig  `mapstructure:"serve" yaml:"serve"`
	Record RecordConfig `mapstructure:"record" yaml:"record"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// SimConfig holds the model parameters and how long and in which increments
// a headless run advances.
type SimConfig struct {
	Lambda    float64 `mapstructure:"lambda" yaml:"lambda"`
	Mu        float64 `mapstructure:"mu" yaml:"mu"`
	Servers   int     `mapstructure:"servers" yaml:"servers"`
	Priority  float64 `mapstructure:"priority" yaml:"priority"`
	TimeScale float64 `mapstructure:"time_scale" yaml:"time_scale"`
	Seed      uint64  `mapstructure:"seed" yaml:"seed"`
	Step      float64 `mapstructure:"step" yaml:"step"`
	Duration  float64 `mapstructure:"duration" yaml:"duration"`
}

// ServeConfig configures the monitoring server.
type ServeConfig struct {
	Port        int           `mapstructure:"port" yaml:"port"`
	Tick        time.Duration `mapstructure:"tick" yaml:"tick"`
	OpenBrowser bool          `mapstructure:"open_browser" yaml:"open_browser"`
}

// MarshalYAML writes the tick as a duration string.
func (s ServeConfig) MarshalYAML() (any, error) {
	return struct {
		Port        int    `yaml:"port"`
		Tick        string `yaml:"tick"`
		OpenBrowser bool   `yaml:"open_browser"`
	}{s.Port, s.Tick.String(), s.OpenBrowser}, nil
}

// RecordConfig configures SQLite recording. An empty path picks a generated
// file name.
type RecordConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := clinic.DefaultParams()

	return Config{
		Sim: SimConfig{
			Lambda:    p.Lambda,
			Mu:        p.Mu,
			Servers:   p.Servers,
			Priority:  p.Priority,
			TimeScale: p.TimeScale,
			Seed:      1,
			Step:      0.1,
			Duration:  8,
		},
		Serve: ServeConfig{
			Port: 0,
			Tick: 50 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// New creates a viper instance carrying the defaults and reading
// CLINICSIM_ environment variables.
func New() *viper.Viper {
	v := viper.New()

	d := Default()
	v.SetDefault("sim.lambda", d.Sim.Lambda)
	v.SetDefault("sim.mu", d.Sim.Mu)
	v.SetDefault("sim.servers", d.Sim.Servers)
	v.SetDefault("sim.priority", d.Sim.Priority)
	v.SetDefault("sim.time_scale", d.Sim.TimeScale)
	v.SetDefault("sim.seed", d.Sim.Seed)
	v.SetDefault("sim.step", d.Sim.Step)
	v.SetDefault("sim.duration", d.Sim.Duration)
	v.SetDefault("serve.port", d.Serve.Port)
	v.SetDefault("serve.tick", d.Serve.Tick)
	v.SetDefault("serve.open_browser", d.Serve.OpenBrowser)
	v.SetDefault("record.enabled", d.Record.Enabled)
	v.SetDefault("record.path", d.Record.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadDotEnv loads environment variables from a .env file. A missing file
// is not an error. Variables already set win over the file.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: loading %s: %w", path, err)
	}

	return nil
}

// ReadFile reads file into v. Without an explicit file, clinicsim.yaml in
// the working directory and .clinicsim.yaml in the home directory are
// tried, and finding neither is not an error.
func ReadFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading %s: %w", file, err)
		}

		return nil
	}

	v.SetConfigType("yaml")
	v.SetConfigName("clinicsim")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err == nil {
		return nil
	} else if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return fmt.Errorf("config: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	v.SetConfigName(".clinicsim")
	v.AddConfigPath(home)

	if err := v.ReadInConfig(); err != nil &&
		!errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var c Config

	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate rejects settings that make the tools meaningless. Model
// parameters are not checked: the model degrades on its own.
func (c Config) Validate() error {
	var errs []error

	if !(c.Sim.Step > 0) || math.IsInf(c.Sim.Step, 0) {
		errs = append(errs, fmt.Errorf("sim.step must be positive, got %v", c.Sim.Step))
	}

	if !(c.Sim.Duration >= 0) || math.IsInf(c.Sim.Duration, 0) {
		errs = append(errs, fmt.Errorf("sim.duration must not be negative, got %v", c.Sim.Duration))
	}

	if c.Serve.Tick <= 0 {
		errs = append(errs, fmt.Errorf("serve.tick must be positive, got %v", c.Serve.Tick))
	}

	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		errs = append(errs, fmt.Errorf("serve.port out of range: %d", c.Serve.Port))
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}

	return nil
}

// Params converts the model settings into clinic parameters.
func (c Config) Params() clinic.Params {
	return clinic.Params{
		Lambda:    c.Sim.Lambda,
		Mu:        c.Sim.Mu,
		Servers:   c.Sim.Servers,
		Priority:  c.Sim.Priority,
		TimeScale: c.Sim.TimeScale,
	}
}

// ConfigureLogger applies the level and format to logger.
func (c Config) ConfigureLogger(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.SetLevel(level)

	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return nil
}

// WriteYAML writes c as YAML.
func (c Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("config: encoding yaml: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("config: encoding yaml: %w", err)
	}

	return nil
}
