// Package config loads the luabind CLI configuration.
//
// The file lives at os.UserConfigDir()/luabind/config.yaml unless --config
// names another one:
//
//	scripts:
//	  dir: ./scripts          # local overrides, searched first
//	  s3:
//	    bucket: my-bucket
//	    prefix: lua/
//	    region: us-east-1
//	    endpoint: http://localhost:9000
//	    path_style: true
//	kv:
//	  backend: badger         # memory (default) or badger
//	  dir: /var/lib/luabind
//	log:
//	  level: info
//	debug:
//	  liveness: true
//	  trace: 64
//	  max_fallback_depth: 64
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/luabind/pkg/cli"
	"github.com/haivivi/luabind/pkg/luabind"
)

// AppName is the directory name under os.UserConfigDir().
const AppName = "luabind"

// KV backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config is the CLI configuration.
type Config struct {
	Scripts ScriptsConfig `yaml:"scripts"`
	KV      KVConfig      `yaml:"kv"`
	Log     LogConfig     `yaml:"log"`
	Debug   DebugConfig   `yaml:"debug"`

	// Path is the file the config was read from; empty for defaults.
	Path string `yaml:"-"`
}

// ScriptsConfig lists where scripts are looked up besides the embedded
// lessons.
type ScriptsConfig struct {
	Dir string    `yaml:"dir,omitempty"`
	S3  *S3Config `yaml:"s3,omitempty"`
}

// S3Config points at a bucket prefix holding scripts.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// KVConfig selects the store behind the kvs_* builtins.
type KVConfig struct {
	Backend string `yaml:"backend,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

// DebugConfig exposes interpreter diagnostics.
type DebugConfig struct {
	Liveness         bool `yaml:"liveness,omitempty"`
	Trace            int  `yaml:"trace,omitempty"`
	MaxFallbackDepth int  `yaml:"max_fallback_depth,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		KV:  KVConfig{Backend: BackendMemory},
		Log: LogConfig{Level: "warn"},
	}
}

// DefaultPath returns os.UserConfigDir()/luabind/config.yaml.
func DefaultPath() (string, error) {
	p, err := cli.NewPaths(AppName)
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return p.ConfigFile(), nil
}

// Load reads the config at path. An empty path means DefaultPath, and a
// missing default file yields Default(); a missing explicit file is an
// error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes YAML config data over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field combinations.
func (c *Config) Validate() error {
	switch c.KV.Backend {
	case "", BackendMemory:
	case BackendBadger:
		if c.KV.Dir == "" {
			return errors.New("kv.dir is required for the badger backend")
		}
	default:
		return fmt.Errorf("unknown kv backend %q", c.KV.Backend)
	}
	if c.Scripts.S3 != nil && c.Scripts.S3.Bucket == "" {
		return errors.New("scripts.s3.bucket is required")
	}
	if c.Debug.Trace < 0 || c.Debug.MaxFallbackDepth < 0 {
		return errors.New("debug values must not be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level; empty means warn.
func (c *Config) LogLevel() (slog.Level, error) {
	if c.Log.Level == "" {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// InterpreterOptions turns the debug section into interpreter options.
func (c *Config) InterpreterOptions() []luabind.Option {
	var opts []luabind.Option
	if c.Debug.Liveness {
		opts = append(opts, luabind.WithLivenessCheck(true))
	}
	if c.Debug.Trace > 0 {
		opts = append(opts, luabind.WithTrace(c.Debug.Trace))
	}
	if c.Debug.MaxFallbackDepth > 0 {
		opts = append(opts, luabind.WithMaxFallbackDepth(c.Debug.MaxFallbackDepth))
	}
	return opts
}

// Marshal encodes the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
