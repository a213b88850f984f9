package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen         = "127.0.0.1:8080"
	defaultTimezone       = "UTC"
	defaultCalendar       = "Personal"
	defaultRefresh        = "*/15 * * * *"
	defaultHorizonDays    = 365
	defaultMaxOccurrences = 5000
	defaultCacheDir       = "./var/ics-cache"
	defaultLogLevel       = "info"
)

// ICSConfig is one ICS input of a calendar. Exactly one of URL and Path
// is expected; Path wins when both are set.
type ICSConfig struct {
	ID   string `yaml:"id" json:"id"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// CalendarConfig declares a calendar and the ICS sources imported into it.
type CalendarConfig struct {
	Name     string      `yaml:"name" json:"name"`
	Timezone string      `yaml:"timezone" json:"timezone"`
	ICS      []ICSConfig `yaml:"ics" json:"ics"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the read API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is used for calendars that do not name one.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Active names the calendar made active after loading. Empty keeps the
	// first calendar listed.
	Active string `yaml:"active" json:"active"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron schedule (e.g. "*/15 * * * *") for re-importing
	// every calendar while serving.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is how far past today ICS rules that cannot be stored
	// as a series are expanded.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// MaxOccurrences caps the occurrences one recurring event may produce.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	// CacheDir stores the last good body of every ICS URL.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns the configuration written on first run: one empty
// calendar in UTC.
func DefaultConfig() *Config {
	return &Config{
		Listen:         defaultListen,
		Timezone:       defaultTimezone,
		Active:         defaultCalendar,
		LogLevel:       defaultLogLevel,
		RefreshCron:    defaultRefresh,
		HorizonDays:    defaultHorizonDays,
		MaxOccurrences: defaultMaxOccurrences,
		CacheDir:       defaultCacheDir,
		Calendars: []CalendarConfig{
			{Name: defaultCalendar, Timezone: defaultTimezone, ICS: []ICSConfig{}},
		},
	}
}

// Normalize fills zero values with defaults so partially-filled files
// still load.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = defaultMaxOccurrences
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	for i := range c.Calendars {
		cal := &c.Calendars[i]
		if cal.Timezone == "" {
			cal.Timezone = c.Timezone
		}
		if cal.ICS == nil {
			cal.ICS = []ICSConfig{}
		}
		for j := range cal.ICS {
			if cal.ICS[j].ID == "" {
				cal.ICS[j].ID = fmt.Sprintf("%s-%d", cal.Name, j+1)
			}
		}
	}
	if c.Active == "" && len(c.Calendars) > 0 {
		c.Active = c.Calendars[0].Name
	}
}

// Validate reports structural problems Normalize cannot repair. Names and
// zones themselves are checked when the registry is built.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.Calendars))
	for _, cal := range c.Calendars {
		if seen[cal.Name] {
			errs = append(errs, fmt.Errorf("calendar %q is listed twice", cal.Name))
		}
		seen[cal.Name] = true
		for _, src := range cal.ICS {
			if src.URL == "" && src.Path == "" {
				errs = append(errs, fmt.Errorf("calendar %q: ics %q has neither url nor path", cal.Name, src.ID))
			}
		}
	}
	if c.Active != "" && len(c.Calendars) > 0 && !seen[c.Active] {
		errs = append(errs, fmt.Errorf("active calendar %q is not listed", c.Active))
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "") != (c.BasicAuth.Password == "") {
		errs = append(errs, errors.New("basic_auth needs both username and password"))
	}
	return errors.Join(errs...)
}

// Load reads the YAML file at path. A missing file is created with
// DefaultConfig (0600, parent directory 0700) and that default is returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg atomically: a temp file in the same directory is synced,
// set to 0600 and renamed over path.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".vcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
