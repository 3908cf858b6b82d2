// Package config loads the static service configuration. It is read once at startup and the
// resulting Config is handed to each component that needs it.
package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/furfur/central/internal/log"
)

var (
	ErrReadConfig   = errors.New("failed to read config file")
	ErrFormatConfig = errors.New("config file format invalid")
	ErrInvalidValue = errors.New("invalid config value")
)

type RunMode string

const (
	ReleaseMode RunMode = "release"
	DebugMode   RunMode = "debug"
	TestMode    RunMode = "test"
)

func (mode RunMode) String() string {
	return string(mode)
}

// GrantMode selects how long a donation triggered whitelist grant lasts.
type GrantMode string

const (
	// GrantModeDonation reuses the donation's own duration.
	GrantModeDonation GrantMode = "donation"
	// GrantModeFixed uses Donation.FixedDays.
	GrantModeFixed GrantMode = "fixed"
)

type NotificationBackend string

const (
	NotificationNone  NotificationBackend = "none"
	NotificationRedis NotificationBackend = "redis"
	NotificationAMQP  NotificationBackend = "amqp"
)

type Config struct {
	General      General      `mapstructure:"general"`
	HTTP         HTTP         `mapstructure:"http"`
	Database     Database     `mapstructure:"database"`
	Log          log.Config   `mapstructure:"log"`
	Sentry       Sentry       `mapstructure:"sentry"`
	Notification Notification `mapstructure:"notification"`
	Redis        Redis        `mapstructure:"redis"`
	AMQP         AMQP         `mapstructure:"amqp"`
	Discord      Discord      `mapstructure:"discord"`
	Link         Link         `mapstructure:"link"`
	Whitelist    Whitelist    `mapstructure:"whitelist"`
	Donation     Donation     `mapstructure:"donation"`
}

type General struct {
	SiteName    string  `mapstructure:"site_name"`
	Mode        RunMode `mapstructure:"mode"`
	ExternalURL string  `mapstructure:"external_url"`
}

type HTTP struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	CorsOrigins       []string      `mapstructure:"cors_origins"`
	PProfEnabled      bool          `mapstructure:"pprof_enabled"`
	PrometheusEnabled bool          `mapstructure:"prometheus_enabled"`
	ClientTimeout     time.Duration `mapstructure:"client_timeout"`
	// Requests per second allowed per client IP on the public link endpoints.
	PublicRateLimit float64 `mapstructure:"public_rate_limit"`
	PublicRateBurst int     `mapstructure:"public_rate_burst"`
}

// Addr returns the address in host:port format.
func (h HTTP) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

type Database struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	LogQueries  bool   `mapstructure:"log_queries"`
}

type Sentry struct {
	DSN        string  `mapstructure:"dsn"`
	Trace      bool    `mapstructure:"trace"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

type Notification struct {
	Backend NotificationBackend `mapstructure:"backend"`
	// Published channel names take the form "<prefix>.<channel>".
	Prefix  string `mapstructure:"prefix"`
	Channel string `mapstructure:"channel"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AMQP struct {
	URL string `mapstructure:"url"`
}

type Discord struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// Full URL of the /v1/link/callback route as registered with the discord application.
	RedirectURL       string `mapstructure:"redirect_url"`
	APIURL            string `mapstructure:"api_url"`
	RequestsPerSecond int    `mapstructure:"requests_per_second"`
}

type Link struct {
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type Whitelist struct {
	GrantDays int `mapstructure:"grant_days"`
	BanDays   int `mapstructure:"ban_days"`
}

type Donation struct {
	DurationDays int `mapstructure:"duration_days"`
	// Donations with a tier at or above MinTier grant every category in Categories.
	MinTier    int       `mapstructure:"min_tier"`
	Categories []string  `mapstructure:"categories"`
	GrantMode  GrantMode `mapstructure:"grant_mode"`
	FixedDays  int       `mapstructure:"fixed_days"`
	// Discord id of the player recorded as the issuing admin of donation grants.
	AdminDiscordID string `mapstructure:"admin_discord_id"`
}

// GrantDays returns the whitelist duration for a grant created from a donation lasting donationDays.
func (d Donation) GrantDays(donationDays int) int {
	if d.GrantMode == GrantModeFixed {
		return d.FixedDays
	}

	return donationDays
}

// Validate checks for values that would otherwise only fail deep inside a request.
func (c Config) Validate() error {
	if !slices.Contains([]RunMode{ReleaseMode, DebugMode, TestMode}, c.General.Mode) {
		return fmt.Errorf("%w: general.mode %q", ErrInvalidValue, c.General.Mode)
	}

	if !slices.Contains([]NotificationBackend{NotificationNone, NotificationRedis, NotificationAMQP}, c.Notification.Backend) {
		return fmt.Errorf("%w: notification.backend %q", ErrInvalidValue, c.Notification.Backend)
	}

	if c.Donation.GrantMode != GrantModeDonation && c.Donation.GrantMode != GrantModeFixed {
		return fmt.Errorf("%w: donation.grant_mode %q", ErrInvalidValue, c.Donation.GrantMode)
	}

	if c.Donation.GrantMode == GrantModeFixed && c.Donation.FixedDays <= 0 {
		return fmt.Errorf("%w: donation.fixed_days must be positive", ErrInvalidValue)
	}

	if c.Donation.DurationDays <= 0 || c.Whitelist.GrantDays <= 0 || c.Whitelist.BanDays <= 0 {
		return fmt.Errorf("%w: default durations must be positive", ErrInvalidValue)
	}

	if len(c.Donation.Categories) > 0 && c.Donation.AdminDiscordID == "" {
		return fmt.Errorf("%w: donation.admin_discord_id is required when categories are set", ErrInvalidValue)
	}

	if c.Link.TokenTTL <= 0 {
		return fmt.Errorf("%w: link.token_ttl must be positive", ErrInvalidValue)
	}

	return nil
}
