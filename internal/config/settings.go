package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/handiism/spritefetch/internal/logger"
	"github.com/handiism/spritefetch/internal/source"
)

// EnvPrefix prefixes every environment override, e.g. SPRITEFETCH_CONCURRENCY.
const EnvPrefix = "SPRITEFETCH"

// WorkerEnv carries JSON encoded Settings from a parent run to its worker
// processes.
const WorkerEnv = EnvPrefix + "_WORKER_SETTINGS"

// Strategies lists the accepted values of Settings.Strategy.
var Strategies = []string{"sequential", "threads", "processes", "async"}

// Settings holds all configuration options.
type Settings struct {
	// Output is the output root: a directory, or a bucket URL such as
	// s3://bucket/prefix. Normally set from the command line.
	Output string `mapstructure:"output" yaml:"output,omitempty" json:"output"`

	// Clean empties Output before a run. It never reaches worker processes.
	Clean bool `mapstructure:"clean" yaml:"-" json:"-"`

	// Download settings
	Strategy    string        `mapstructure:"strategy" yaml:"strategy" json:"strategy"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	UserAgent   string        `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`

	// File naming
	Extension string `mapstructure:"extension" yaml:"extension" json:"extension"`

	// Input columns
	Columns source.Columns `mapstructure:"columns" yaml:"columns" json:"columns"`

	// Image handling
	Verify       bool `mapstructure:"verify" yaml:"verify" json:"verify"`
	MaxImageSize int  `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`

	// Journal is the path of a SQLite run journal; empty disables it.
	Journal string `mapstructure:"journal" yaml:"journal,omitempty" json:"journal"`

	// Log configures diagnostics output.
	Log logger.Config `mapstructure:"log" yaml:"log" json:"log"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		Strategy:    "threads",
		Concurrency: 8,
		Timeout:     25 * time.Second,
		UserAgent:   "spritefetch/1.0",
		Extension:   ".png",
		Columns:     source.DefaultColumns(),
		Log: logger.Config{
			Level:  logger.DefaultLevel,
			Format: logger.DefaultFormat,
		},
	}
}

// FlagKeys maps command-line flag names to settings keys.
var FlagKeys = map[string]string{
	"clean":       "clean",
	"strategy":    "strategy",
	"concurrency": "concurrency",
	"timeout":     "timeout",
	"user-agent":  "user_agent",
	"extension":   "extension",
	"verify":      "verify",
	"max-size":    "max_image_size",
	"journal":     "journal",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

// Load reads settings from a YAML file and SPRITEFETCH_* environment
// variables, on top of DefaultSettings. A missing file is not an error;
// path may be empty to only apply the environment.
func Load(path string) (*Settings, error) {
	return LoadWithFlags(path, nil)
}

// LoadWithFlags is Load with command-line flags taking precedence over
// the environment and the file. Only flags named in FlagKeys that the
// user actually set are applied.
func LoadWithFlags(path string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	setDefaults(v, DefaultSettings())

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return settings, nil
}

func setDefaults(v *viper.Viper, d *Settings) {
	v.SetDefault("output", d.Output)
	v.SetDefault("clean", d.Clean)
	v.SetDefault("strategy", d.Strategy)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("extension", d.Extension)
	v.SetDefault("columns.name", d.Columns.Name)
	v.SetDefault("columns.category", d.Columns.Category)
	v.SetDefault("columns.url", d.Columns.URL)
	v.SetDefault("verify", d.Verify)
	v.SetDefault("max_image_size", d.MaxImageSize)
	v.SetDefault("journal", d.Journal)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Save writes settings to a YAML file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate reports the first invalid setting.
func (s *Settings) Validate() error {
	if !slices.Contains(Strategies, s.Strategy) {
		return fmt.Errorf("unknown strategy %q (want one of %s)", s.Strategy, strings.Join(Strategies, ", "))
	}
	if s.Concurrency < 0 {
		return fmt.Errorf("concurrency must be >= 0, got %d", s.Concurrency)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	if !strings.HasPrefix(s.Extension, ".") {
		return fmt.Errorf("extension must start with a dot, got %q", s.Extension)
	}
	if s.MaxImageSize < 0 {
		return fmt.Errorf("max_image_size must be >= 0, got %d", s.MaxImageSize)
	}
	if s.Columns.Name == "" || s.Columns.Category == "" || s.Columns.URL == "" {
		return errors.New("columns.name, columns.category and columns.url are required")
	}
	return nil
}

// EncodeWorkerEnv returns the WorkerEnv entry ("KEY=value") for s.
func (s *Settings) EncodeWorkerEnv() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return WorkerEnv + "=" + string(data), nil
}

// DecodeWorkerEnv reads Settings from the WorkerEnv environment variable.
func DecodeWorkerEnv() (*Settings, error) {
	raw := os.Getenv(WorkerEnv)
	if raw == "" {
		return nil, fmt.Errorf("%s is not set", WorkerEnv)
	}
	settings := DefaultSettings()
	if err := json.Unmarshal([]byte(raw), settings); err != nil {
		return nil, fmt.Errorf("decode %s: %w", WorkerEnv, err)
	}
	return settings, nil
}
