package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/vonshlovens/roomboard/internal/canvas"
	"github.com/vonshlovens/roomboard/internal/geom"
)

// Config holds all application configuration
type Config struct {
	Name     string         `mapstructure:"name" yaml:"name"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database" validate:"required"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Canvas   CanvasConfig   `mapstructure:"canvas" yaml:"canvas"`
	Sync     SyncConfig     `mapstructure:"sync" yaml:"sync"`
	Inbox    InboxConfig    `mapstructure:"inbox" yaml:"inbox"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host" yaml:"host" validate:"required"`
	Port     int    `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`
	User     string `mapstructure:"user" yaml:"user" validate:"required"`
	Password string `mapstructure:"password" yaml:"password" validate:"required"`
	Database string `mapstructure:"database" yaml:"database" validate:"required"`
	Schema   string `mapstructure:"schema" yaml:"schema,omitempty"` // Optional: derived from the board name
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" validate:"required"`

	// SessionTTLMinutes drops idle UI sessions; 0 keeps them until deleted.
	SessionTTLMinutes int `mapstructure:"session_ttl_minutes" yaml:"session_ttl_minutes" validate:"min=0"`
}

// CanvasConfig holds layout and viewport settings handed to sessions
type CanvasConfig struct {
	Layout   LayoutConfig   `mapstructure:"layout" yaml:"layout"`
	Viewport ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
}

// LayoutConfig controls the auto-layout grid. Columns 0 derives the row
// width from the client's viewport.
type LayoutConfig struct {
	Columns     int     `mapstructure:"columns" yaml:"columns" validate:"min=0"`
	ColumnWidth float64 `mapstructure:"column_width" yaml:"column_width" validate:"gt=0"`
	HGap        float64 `mapstructure:"h_gap" yaml:"h_gap" validate:"min=0"`
	VGap        float64 `mapstructure:"v_gap" yaml:"v_gap" validate:"min=0"`
	KeepInView  bool    `mapstructure:"keep_in_view" yaml:"keep_in_view"`
}

// ViewportConfig holds the default screen size and zoom bounds
type ViewportConfig struct {
	Width      float64 `mapstructure:"width" yaml:"width" validate:"gt=0"`
	Height     float64 `mapstructure:"height" yaml:"height" validate:"gt=0"`
	MinScale   float64 `mapstructure:"min_scale" yaml:"min_scale" validate:"gt=0"`
	MaxScale   float64 `mapstructure:"max_scale" yaml:"max_scale" validate:"gtfield=MinScale"`
	BaseScale  float64 `mapstructure:"base_scale" yaml:"base_scale" validate:"gt=0"`
	ComfortMin float64 `mapstructure:"comfort_min" yaml:"comfort_min" validate:"gt=0"`
	ComfortMax float64 `mapstructure:"comfort_max" yaml:"comfort_max" validate:"gtfield=ComfortMin"`
	RoomScale  float64 `mapstructure:"room_scale" yaml:"room_scale" validate:"gt=0"`
	HomeScale  float64 `mapstructure:"home_scale" yaml:"home_scale" validate:"gt=0"`
}

// SyncConfig holds sync behavior settings
type SyncConfig struct {
	DebounceMs     int `mapstructure:"debounce_ms" yaml:"debounce_ms" validate:"min=0"`
	BatchSize      int `mapstructure:"batch_size" yaml:"batch_size" validate:"min=1"`
	RetryAttempts  int `mapstructure:"retry_attempts" yaml:"retry_attempts" validate:"min=0"`
	RetryDelayMs   int `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms" validate:"min=0"`
	PollIntervalMs int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms" validate:"min=0"`
}

// InboxConfig holds the drop folder settings. An empty path disables it.
type InboxConfig struct {
	Path            string   `mapstructure:"path" yaml:"path,omitempty" validate:"omitempty,dir"`
	IgnorePatterns  []string `mapstructure:"ignore_patterns" yaml:"ignore_patterns"`
	IncludePatterns []string `mapstructure:"include_patterns" yaml:"include_patterns,omitempty"`
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, sslMode,
	)
	// Set search_path to use the board's schema
	if d.Schema != "" {
		connStr += "&search_path=" + d.Schema + ",public"
	}
	return connStr
}

// Limits returns the zoom bounds
func (v ViewportConfig) Limits() geom.Limits {
	return geom.Limits{
		Min:        v.MinScale,
		Max:        v.MaxScale,
		Base:       v.BaseScale,
		ComfortMin: v.ComfortMin,
		ComfortMax: v.ComfortMax,
	}
}

// LayoutOptions returns the layout grid for the canvas engine
func (c CanvasConfig) LayoutOptions() canvas.LayoutOptions {
	return canvas.LayoutOptions{
		Columns:     c.Layout.Columns,
		ColumnWidth: c.Layout.ColumnWidth,
		HGap:        c.Layout.HGap,
		VGap:        c.Layout.VGap,
	}
}

// SessionOptions returns the options new sessions start with
func (c CanvasConfig) SessionOptions() canvas.SessionOptions {
	return canvas.SessionOptions{
		Screen:     geom.Size{W: c.Viewport.Width, H: c.Viewport.Height},
		Limits:     c.Viewport.Limits(),
		Layout:     c.LayoutOptions(),
		RoomScale:  c.Viewport.RoomScale,
		HomeScale:  c.Viewport.HomeScale,
		KeepInView: c.Layout.KeepInView,
	}
}

// Debounce returns the per-entity push delay
func (s SyncConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMs) * time.Millisecond
}

// RetryDelay returns the delay between push attempts
func (s SyncConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMs) * time.Millisecond
}

// PollInterval returns how often the store is polled for remote changes
func (s SyncConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

// SessionTTL returns the idle session lifetime
func (s ServerConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLMinutes) * time.Minute
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	limits := geom.DefaultLimits
	layout := canvas.DefaultLayout
	return &Config{
		Name: "roomboard",
		Database: DatabaseConfig{
			Port:    5432,
			SSLMode: "require",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			SessionTTLMinutes: 120,
		},
		Canvas: CanvasConfig{
			Layout: LayoutConfig{
				Columns:     layout.Columns,
				ColumnWidth: layout.ColumnWidth,
				HGap:        layout.HGap,
				VGap:        layout.VGap,
				KeepInView:  true,
			},
			Viewport: ViewportConfig{
				Width:      1440,
				Height:     900,
				MinScale:   limits.Min,
				MaxScale:   limits.Max,
				BaseScale:  limits.Base,
				ComfortMin: limits.ComfortMin,
				ComfortMax: limits.ComfortMax,
				RoomScale:  1.0,
				HomeScale:  limits.Base,
			},
		},
		Sync: SyncConfig{
			DebounceMs:     500,
			BatchSize:      100,
			RetryAttempts:  3,
			RetryDelayMs:   1000,
			PollIntervalMs: 5000,
		},
		Inbox: InboxConfig{
			IgnorePatterns: []string{
				".git/**",
				".trash/**",
				"**/.DS_Store",
				"**/*.tmp",
				"**/~*",
			},
		},
	}
}

// Load reads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	setDefaults(v, defaults)

	// Configure config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(getConfigDir())
	}

	// Enable environment variable substitution
	v.AutomaticEnv()
	v.SetEnvPrefix("ROOMBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is okay if we have environment variables
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Database.Password = os.ExpandEnv(cfg.Database.Password)
	cfg.Inbox.Path = expandPath(cfg.Inbox.Path)

	if cfg.Database.Schema == "" {
		cfg.Database.Schema = SanitizeIdentifier(cfg.Name)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("name", d.Name)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.sslmode", d.Database.SSLMode)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.session_ttl_minutes", d.Server.SessionTTLMinutes)

	v.SetDefault("canvas.layout.columns", d.Canvas.Layout.Columns)
	v.SetDefault("canvas.layout.column_width", d.Canvas.Layout.ColumnWidth)
	v.SetDefault("canvas.layout.h_gap", d.Canvas.Layout.HGap)
	v.SetDefault("canvas.layout.v_gap", d.Canvas.Layout.VGap)
	v.SetDefault("canvas.layout.keep_in_view", d.Canvas.Layout.KeepInView)

	vp := d.Canvas.Viewport
	v.SetDefault("canvas.viewport.width", vp.Width)
	v.SetDefault("canvas.viewport.height", vp.Height)
	v.SetDefault("canvas.viewport.min_scale", vp.MinScale)
	v.SetDefault("canvas.viewport.max_scale", vp.MaxScale)
	v.SetDefault("canvas.viewport.base_scale", vp.BaseScale)
	v.SetDefault("canvas.viewport.comfort_min", vp.ComfortMin)
	v.SetDefault("canvas.viewport.comfort_max", vp.ComfortMax)
	v.SetDefault("canvas.viewport.room_scale", vp.RoomScale)
	v.SetDefault("canvas.viewport.home_scale", vp.HomeScale)

	v.SetDefault("sync.debounce_ms", d.Sync.DebounceMs)
	v.SetDefault("sync.batch_size", d.Sync.BatchSize)
	v.SetDefault("sync.retry_attempts", d.Sync.RetryAttempts)
	v.SetDefault("sync.retry_delay_ms", d.Sync.RetryDelayMs)
	v.SetDefault("sync.poll_interval_ms", d.Sync.PollIntervalMs)

	v.SetDefault("inbox.ignore_patterns", d.Inbox.IgnorePatterns)
}

// Validate checks cfg against its struct tags
func Validate(cfg *Config) error {
	validate := validator.New()

	// Register custom validation for directory existence
	validate.RegisterValidation("dir", func(fl validator.FieldLevel) bool {
		path := fl.Field().String()
		if path == "" {
			return false
		}
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		return info.IsDir()
	})

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// getConfigDir returns the appropriate config directory for the OS
func getConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "roomboard")
		}
		return filepath.Join(os.Getenv("USERPROFILE"), ".config", "roomboard")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "roomboard")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "roomboard")
	}
}

// ConfigDir returns the directory searched for config.yaml
func ConfigDir() string { return getConfigDir() }

// GetStateDir returns the directory for storing state files
func GetStateDir() (string, error) {
	dir := getConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return dir, nil
}

// expandPath expands ~ and environment variables in a path
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}
	return os.ExpandEnv(path)
}

var (
	invalidIdentChars   = regexp.MustCompile(`[^a-z0-9_]`)
	repeatedUnderscores = regexp.MustCompile(`_+`)
)

// SanitizeIdentifier converts a board name into a valid PostgreSQL identifier.
// Rules:
// - Lowercase only
// - Starts with letter or underscore
// - Contains only letters, digits, underscores
// - Spaces and hyphens become underscores
// - Max 63 characters (PostgreSQL limit)
func SanitizeIdentifier(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")

	name = invalidIdentChars.ReplaceAllString(name, "")
	name = repeatedUnderscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	// Ensure it starts with a letter
	if len(name) == 0 {
		name = "board"
	} else if unicode.IsDigit(rune(name[0])) {
		name = "board_" + name
	}

	// PostgreSQL max identifier length is 63 characters
	if len(name) > 63 {
		name = name[:63]
		name = strings.TrimRight(name, "_")
	}

	return name
}
