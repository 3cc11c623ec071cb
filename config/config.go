// Package config loads editor settings from built-in defaults, an optional
// YAML file, and VISTA_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "VISTA_CONFIG"

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: VISTA_EDITOR__LONG_PRESS=400ms sets editor.long_press.
const EnvPrefix = "VISTA_"

// DefaultPaths are searched in order when PathEnvVar is unset.
var DefaultPaths = []string{"vista.yaml", "vista.yml"}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Tour      TourConfig      `koanf:"tour"`
	Editor    EditorConfig    `koanf:"editor"`
	Reconnect ReconnectConfig `koanf:"reconnect"`
	Window    WindowConfig    `koanf:"window"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	WSURL        string `koanf:"ws_url" validate:"required,url"`
	UploadURL    string `koanf:"upload_url" validate:"required,url"`
	AssetBaseURL string `koanf:"asset_base_url" validate:"required,url"`
}

type TourConfig struct {
	// ID of the tour to edit. Zero opens an exported tour file instead.
	ID int64 `koanf:"id" validate:"gte=0"`
	// ExportPath is a tourData.js export viewed read-only when ID is zero.
	ExportPath string `koanf:"export_path"`
}

type EditorConfig struct {
	LongPress         time.Duration `koanf:"long_press" validate:"gt=0"`
	PanSensitivity    float64       `koanf:"pan_sensitivity" validate:"gt=0"`
	Dampening         float64       `koanf:"dampening" validate:"gt=0,lt=1"`
	MomentumEpsilon   float64       `koanf:"momentum_epsilon" validate:"gt=0"`
	DragDeadZone      float64       `koanf:"drag_dead_zone" validate:"gte=0"`
	TextureRetryDelay time.Duration `koanf:"texture_retry_delay" validate:"gte=0"`
	Debug             bool          `koanf:"debug"`
}

type ReconnectConfig struct {
	MaxAttempts     int           `koanf:"max_attempts" validate:"gte=1"`
	InitialInterval time.Duration `koanf:"initial_interval" validate:"gt=0"`
	MaxInterval     time.Duration `koanf:"max_interval" validate:"gtefield=InitialInterval"`
}

type WindowConfig struct {
	Title  string `koanf:"title"`
	Width  int    `koanf:"width" validate:"gte=320"`
	Height int    `koanf:"height" validate:"gte=240"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			WSURL:        "ws://localhost:1112/connect",
			UploadURL:    "http://localhost:1112/upload",
			AssetBaseURL: "http://localhost:1112/assets/",
		},
		Editor: EditorConfig{
			LongPress:         300 * time.Millisecond,
			PanSensitivity:    0.1,
			Dampening:         0.92,
			MomentumEpsilon:   0.01,
			DragDeadZone:      4,
			TextureRetryDelay: 2 * time.Second,
		},
		Reconnect: ReconnectConfig{
			MaxAttempts:     5,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
		},
		Window: WindowConfig{
			Title:  "Vista Tour Editor",
			Width:  1280,
			Height: 720,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the configuration. path may be empty, in which case
// PathEnvVar and then DefaultPaths are consulted; a missing file is not an
// error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ErrInvalid wraps validation failures.
var ErrInvalid = errors.New("config: invalid")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Tour.ID == 0 && c.Tour.ExportPath == "" {
		return fmt.Errorf("%w: one of tour.id or tour.export_path is required", ErrInvalid)
	}
	return nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envKey maps VISTA_EDITOR__LONG_PRESS to editor.long_press.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
