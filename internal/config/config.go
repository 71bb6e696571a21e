// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type BookingConfig struct {
	// Timezone is the venue's IANA zone. Booking dates and the current hour
	// used for past-slot blocking are both read in it.
	Timezone string `yaml:"timezone"`
	// PhoneRegion is the ISO region assumed for national-format numbers.
	PhoneRegion string `yaml:"phone_region"`
	// CourtsFile is the YAML court catalog applied at startup.
	CourtsFile string `yaml:"courts_file"`
	// CalendarMaxDays caps the calendar endpoint's range.
	CalendarMaxDays int `yaml:"calendar_max_days"`

	location *time.Location
}

// Location returns the parsed venue timezone.
func (b BookingConfig) Location() *time.Location {
	if b.location == nil {
		return time.Local
	}
	return b.location
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	Password string `yaml:"-"` // Loaded from environment
}

type EmailConfig struct {
	Enabled bool   `yaml:"enabled"`
	Region  string `yaml:"region"`
	Sender  string `yaml:"sender"`
	// SendTimeout bounds each asynchronous notification send.
	SendTimeout time.Duration `yaml:"send_timeout"`

	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
}

type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
	// ReminderCron is a standard five-field cron expression in the venue timezone.
	ReminderCron string `yaml:"reminder_cron"`
}

type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	// Attempts is the per-address budget of reservation writes per Window.
	Attempts int `yaml:"attempts"`
	// CustomerAttempts is the per-phone budget of new reservations per Window.
	CustomerAttempts int           `yaml:"customer_attempts"`
	Window           time.Duration `yaml:"window"`
	// TrustProxy reads the client address from X-Forwarded-For.
	TrustProxy bool `yaml:"trust_proxy"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
		// VenueName is shown in customer emails.
		VenueName       string        `yaml:"venue_name"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Booking   BookingConfig   `yaml:"booking"`
	Redis     RedisConfig     `yaml:"redis"`
	Email     EmailConfig     `yaml:"email"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Load sensitive values from environment
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Email.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.Email.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.VenueName == "" {
		c.App.VenueName = c.App.Name
	}
	if c.App.ShutdownTimeout == 0 {
		c.App.ShutdownTimeout = 30 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "Asia/Manila"
	}
	if c.Booking.PhoneRegion == "" {
		c.Booking.PhoneRegion = "PH"
	}
	if c.Booking.CalendarMaxDays == 0 {
		c.Booking.CalendarMaxDays = 62
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "picklepoint:bookings"
	}
	if c.Email.SendTimeout == 0 {
		c.Email.SendTimeout = 10 * time.Second
	}
	if c.Scheduler.ReminderCron == "" {
		c.Scheduler.ReminderCron = "0 18 * * *"
	}
	if c.RateLimit.Attempts == 0 {
		c.RateLimit.Attempts = 10
	}
	if c.RateLimit.CustomerAttempts == 0 {
		c.RateLimit.CustomerAttempts = 5
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
}

// IsDevelopment reports whether the app runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.App.Environment, "development")
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return fmt.Errorf("invalid booking timezone %q: %w", c.Booking.Timezone, err)
	}
	c.Booking.location = loc
	if len(c.Booking.PhoneRegion) != 2 {
		return fmt.Errorf("booking phone_region must be a two-letter region code")
	}
	if c.Booking.CalendarMaxDays < 1 {
		return fmt.Errorf("booking calendar_max_days must be positive")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}

	if c.Email.Enabled {
		if c.Email.Region == "" {
			return fmt.Errorf("email region is required when email is enabled")
		}
		if c.Email.Sender == "" {
			return fmt.Errorf("email sender is required when email is enabled")
		}
	}
	if c.Email.SendTimeout < 0 {
		return fmt.Errorf("email send_timeout must not be negative")
	}

	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.ReminderCron); err != nil {
			return fmt.Errorf("invalid scheduler reminder_cron %q: %w", c.Scheduler.ReminderCron, err)
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Attempts < 1 || c.RateLimit.CustomerAttempts < 1 {
			return fmt.Errorf("ratelimit attempts must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("ratelimit window must be positive")
		}
	}

	return nil
}
