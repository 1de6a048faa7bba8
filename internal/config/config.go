package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	cron "github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/untiswatch/untiswatch/internal/timetable"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultRefreshInterval = 5 * time.Minute
	DefaultFetchTimeout    = 15 * time.Second
	DefaultHTTPPort        = 8080
	DefaultNotifyCooldown  = 15 * time.Minute
)

// Config is the top-level untiswatch configuration.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Upstream UpstreamConfig          `yaml:"upstream"`
	Refresh  RefreshConfig           `yaml:"refresh"`
	HTTP     HTTPConfig              `yaml:"http"`
	Compare  timetable.ComparePolicy `yaml:"compare"`
	Notify   NotifyConfig            `yaml:"notify"`
}

// UpstreamConfig identifies the WebUntis instance and account to poll.
type UpstreamConfig struct {
	// Host is the WebUntis server hostname (e.g. "ikarus.webuntis.com").
	Host string `yaml:"host"`

	// School is the school/tenant identifier passed on every RPC call.
	School string `yaml:"school"`

	// User is the WebUntis account used to read the timetable.
	User string `yaml:"user"`

	// PasswordEnv is the name of the environment variable that holds the
	// account password.
	PasswordEnv string `yaml:"password_env"`

	// Timeout bounds every upstream HTTP request. Default: 15s.
	Timeout time.Duration `yaml:"timeout"`
}

// Password returns the account password resolved from the environment.
// Returns empty string if PasswordEnv is unset or the variable is not found.
func (u UpstreamConfig) Password() string {
	if u.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(u.PasswordEnv)
}

// RefreshConfig controls the fetch→diff→publish cycle cadence.
type RefreshConfig struct {
	// Interval is the fixed time between refresh cycles. Default: 5m.
	Interval time.Duration `yaml:"interval"`

	// Crons holds optional additional cron expressions that trigger an
	// extra refresh (e.g. "0 7 * * MON-FRI" right before school starts).
	// A trigger that fires while a cycle is already running is skipped.
	Crons []string `yaml:"crons"`
}

// HTTPConfig holds the listener settings for the REST API, the WebSocket
// stream, and the metrics endpoint.
type HTTPConfig struct {
	// Port is the port everything listens on (default 8080).
	Port int `yaml:"port"`
}

// NotifyConfig controls change notifications pushed on each publish.
type NotifyConfig struct {
	// MinChanges is the minimum number of changed lessons in a diff before
	// any notification is sent. 0 means notify on every non-empty diff.
	MinChanges int `yaml:"min_changes"`

	// Cooldown suppresses repeat notifications for this duration after one
	// is sent. Default: 15m.
	Cooldown time.Duration `yaml:"cooldown"`

	// Targets is the list of delivery targets.
	Targets []Target `yaml:"targets"`
}

// Target defines one notification delivery target.
type Target struct {
	// Type is one of: slack | teams | http | telegram.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook
	// URL. Used by the slack, teams and http types.
	URLEnv string `yaml:"url_env"`

	// TokenEnv is the name of the environment variable that holds the
	// Telegram bot token. Used by the telegram type.
	TokenEnv string `yaml:"token_env"`

	// ChatID is the Telegram chat the bot posts to. Used by the telegram type.
	ChatID int64 `yaml:"chat_id"`
}

// URL returns the webhook URL resolved from the environment.
func (t Target) URL() string {
	if t.URLEnv == "" {
		return ""
	}
	return os.Getenv(t.URLEnv)
}

// Token returns the bot token resolved from the environment.
func (t Target) Token() string {
	if t.TokenEnv == "" {
		return ""
	}
	return os.Getenv(t.TokenEnv)
}

// Load reads and parses the config file at path. An optional .env file in the
// working directory is loaded first so that *_env references resolve in
// development; existing environment variables are never overridden.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			Timeout: DefaultFetchTimeout,
		},
		Refresh: RefreshConfig{
			Interval: DefaultRefreshInterval,
		},
		HTTP: HTTPConfig{
			Port: DefaultHTTPPort,
		},
		Notify: NotifyConfig{
			Cooldown: DefaultNotifyCooldown,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
// Anything that would make the process loop uselessly forever is rejected
// here so it surfaces at startup instead.
func validate(cfg *Config) error {
	if cfg.Upstream.Host == "" {
		return fmt.Errorf("upstream.host is required")
	}
	if cfg.Upstream.School == "" {
		return fmt.Errorf("upstream.school is required")
	}
	if cfg.Upstream.User == "" {
		return fmt.Errorf("upstream.user is required")
	}
	if cfg.Upstream.PasswordEnv == "" {
		return fmt.Errorf("upstream.password_env is required")
	}
	if cfg.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if cfg.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive")
	}
	for _, spec := range cfg.Refresh.Crons {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("refresh.crons %q: %w", spec, err)
		}
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d is out of range [1, 65535]", cfg.HTTP.Port)
	}
	if cfg.Notify.MinChanges < 0 {
		return fmt.Errorf("notify.min_changes must not be negative")
	}
	if cfg.Notify.Cooldown < 0 {
		return fmt.Errorf("notify.cooldown must not be negative")
	}
	for _, t := range cfg.Notify.Targets {
		switch t.Type {
		case "slack", "teams", "http":
			if t.URLEnv == "" {
				return fmt.Errorf("notify target %q: url_env is required", t.Type)
			}
		case "telegram":
			if t.TokenEnv == "" || t.ChatID == 0 {
				return fmt.Errorf("notify target telegram: token_env and chat_id are required")
			}
		default:
			return fmt.Errorf("notify target type %q unknown: want slack|teams|http|telegram", t.Type)
		}
	}
	return nil
}
