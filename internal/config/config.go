package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"civiccircle/internal/fsutil"
)

// SessionConfig controls launch-time session handling.
type SessionConfig struct {
	// SplashDelay is waited before the stored token is inspected.
	SplashDelay time.Duration `yaml:"splash_delay" json:"splash_delay"`
	// NoticeDelay bounds how long the "session expired" notice is shown
	// before routing to login when nobody dismisses it.
	NoticeDelay time.Duration `yaml:"notice_delay" json:"notice_delay"`
}

// NotificationsConfig controls the local reminder platform.
type NotificationsConfig struct {
	// Enabled is the answer given to authorization requests.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// InitialDelay is the delay of the "starts soon" reminder.
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	// MaxDaily caps daily reminders registered for one event window.
	MaxDaily int `yaml:"max_daily" json:"max_daily"`
	// Poll is how often the dispatcher reloads the reminder queue.
	Poll time.Duration `yaml:"poll" json:"poll"`
}

// MockAPIConfig configures the development API server.
type MockAPIConfig struct {
	Listen     string        `yaml:"listen" json:"listen"`
	TokenTTL   time.Duration `yaml:"token_ttl" json:"token_ttl"`
	SigningKey string        `yaml:"signing_key" json:"signing_key"`
}

// Config is the top-level application configuration.
type Config struct {
	// APIBaseURL is the root of the REST API, e.g. "http://localhost:3000/api/".
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url"`

	// Timezone is the IANA timezone used to interpret event dates and print
	// reminders (e.g. "America/Toronto"). Empty means the system zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DataDir holds the credential file and the reminder queue.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// MetricsListen, if set, exposes reminder metrics on /metrics while the
	// dispatcher runs.
	MetricsListen string `yaml:"metrics_listen,omitempty" json:"metrics_listen,omitempty"`

	Session       SessionConfig       `yaml:"session" json:"session"`
	Notifications NotificationsConfig `yaml:"notifications" json:"notifications"`
	MockAPI       MockAPIConfig       `yaml:"mock_api" json:"mock_api"`
}

// Error carries the config path of a failed load.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	defaultAPIBaseURL   = "http://localhost:3000/api/"
	defaultNoticeDelay  = 2 * time.Second
	defaultInitialDelay = 15 * time.Second
	defaultMaxDaily     = 5000
	defaultPoll         = 30 * time.Second
	defaultMockListen   = "127.0.0.1:3000"
	defaultTokenTTL     = 24 * time.Hour
)

// DefaultDir returns the per-user config directory, e.g. ~/.config/civic.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".", ".civic")
	}
	return filepath.Join(dir, "civic")
}

// DefaultPath returns the config.yaml path inside DefaultDir.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL: defaultAPIBaseURL,
		DataDir:    DefaultDir(),
		LogLevel:   "info",
		Session: SessionConfig{
			NoticeDelay: defaultNoticeDelay,
		},
		Notifications: NotificationsConfig{
			Enabled:      true,
			InitialDelay: defaultInitialDelay,
			MaxDaily:     defaultMaxDaily,
			Poll:         defaultPoll,
		},
		MockAPI: MockAPIConfig{
			Listen:   defaultMockListen,
			TokenTTL: defaultTokenTTL,
		},
	}
}

// Normalize replaces zero or out-of-range values with defaults.
func (c *Config) Normalize() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDir()
	}
	c.LogLevel = normalizeLogLevel(c.LogLevel)
	if c.Session.SplashDelay < 0 {
		c.Session.SplashDelay = 0
	}
	if c.Session.NoticeDelay <= 0 {
		c.Session.NoticeDelay = defaultNoticeDelay
	}
	if c.Notifications.InitialDelay <= 0 {
		c.Notifications.InitialDelay = defaultInitialDelay
	}
	if c.Notifications.MaxDaily <= 0 {
		c.Notifications.MaxDaily = defaultMaxDaily
	}
	if c.Notifications.Poll <= 0 {
		c.Notifications.Poll = defaultPoll
	}
	if c.MockAPI.Listen == "" {
		c.MockAPI.Listen = defaultMockListen
	}
	if c.MockAPI.TokenTTL <= 0 {
		c.MockAPI.TokenTTL = defaultTokenTTL
	}
}

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("api_base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_base_url: unsupported scheme %q", u.Scheme)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// CredentialsPath is the file backing the session credential store.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.DataDir, "credentials.json")
}

// ICSCachePath holds downloaded calendars and their HTTP validators.
func (c *Config) ICSCachePath() string {
	return filepath.Join(c.DataDir, "ics-cache")
}

// RemindersPath is the file backing the pending reminder queue.
func (c *Config) RemindersPath() string {
	return filepath.Join(c.DataDir, "reminders.json")
}

// Load reads the YAML config at path. A missing file is created with the
// defaults (mode 0600) and those defaults are returned. An existing file is
// read over the defaults, then normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, &Error{Path: path, Err: errors.New("config path is empty")}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// The defaults are still usable.
				return cfg, &Error{Path: path, Err: err}
			}
			return cfg, nil
		}
		return nil, &Error{Path: path, Err: err}
	}

	// Keys missing from the file keep their defaults.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	return cfg, nil
}

// Save normalizes cfg and writes it as YAML through fsutil.WriteFileAtomic,
// so the file is replaced in one rename and stays private (0600).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data)
}

// Save writes c to path.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

func normalizeLogLevel(v string) string {
	switch v {
	case "debug", "info", "error":
		return v
	default:
		return "info"
	}
}
