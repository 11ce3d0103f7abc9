// Package config assembles the relay's application settings.
//
// Precedence, lowest first: built-in defaults, the YAML overlay named by
// RELAY_CONFIG_FILE, then environment variables. Malformed optional values
// fall back (see internal/pkg/config) and show up in Warnings; missing
// required values are reported by Validate.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	pkgconfig "reel-relay/internal/pkg/config"
)

// Role selects which settings Validate treats as required.
type Role string

const (
	RoleAPI    Role = "api"
	RoleWorker Role = "worker"
	RoleCLI    Role = "cli"
)

const (
	QueueBackendPostgres = "postgres"
	QueueBackendRedis    = "redis"

	minJWTSecretLength = 32
)

type MetaConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Version     string        `yaml:"version"`
	AccessToken string        `yaml:"-"`
	AppSecret   string        `yaml:"-"`
	VerifyToken string        `yaml:"-"`
	MinInterval time.Duration `yaml:"min_interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

type TelegramConfig struct {
	BotToken        string        `yaml:"-"`
	BaseURL         string        `yaml:"base_url"`
	SendMinInterval time.Duration `yaml:"send_min_interval"`
	Timeout         time.Duration `yaml:"timeout"`
	// TargetChatID は bot_config に値が無いときの既定の配信先。
	TargetChatID    string `yaml:"target_chat_id"`
	GroupInviteLink string `yaml:"group_invite_link"`
}

type PipelineConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffMax  time.Duration `yaml:"backoff_max"`
	// Classifier names the failure classifier; empty retries every failure.
	Classifier string `yaml:"classifier"`
}

type QueueConfig struct {
	Backend           string        `yaml:"backend"`
	RedisAddr         string        `yaml:"redis_addr"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	MaxDeliveries     int           `yaml:"max_deliveries"`
}

type EventsConfig struct {
	BusCapacity  int      `yaml:"bus_capacity"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

type ServerConfig struct {
	Port          string        `yaml:"port"`
	DatabaseURL   string        `yaml:"-"`
	JWTSecret     string        `yaml:"-"`
	AdminTokenTTL time.Duration `yaml:"admin_token_ttl"`
	// SubmitRatePerMinute and SubmitBurst bound POST /v1/requests per client IP.
	SubmitRatePerMinute int `yaml:"submit_rate_per_minute"`
	SubmitBurst         int `yaml:"submit_burst"`
	// TrustedProxies may set X-Forwarded-For for the submit limiter.
	TrustedProxies []string `yaml:"trusted_proxies"`
	// ConfigRefreshSchedule drives the periodic runtime config reload in the api.
	ConfigRefreshSchedule string `yaml:"config_refresh_schedule"`
}

type WorkerConfig struct {
	ReconcileSchedule   string        `yaml:"reconcile_schedule"`
	Timezone            string        `yaml:"timezone"`
	ReconcileStaleAfter time.Duration `yaml:"reconcile_stale_after"`
	HealthPort          string        `yaml:"health_port"`
	MetricsPort         string        `yaml:"metrics_port"`
}

type ObservabilityConfig struct {
	TracingEnabled bool    `yaml:"tracing_enabled"`
	SampleRatio    float64 `yaml:"sample_ratio"`
}

// RelayConfig is the full application configuration.
type RelayConfig struct {
	Meta          MetaConfig          `yaml:"meta"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Queue         QueueConfig         `yaml:"queue"`
	Events        EventsConfig        `yaml:"events"`
	Server        ServerConfig        `yaml:"server"`
	Worker        WorkerConfig        `yaml:"worker"`
	Observability ObservabilityConfig `yaml:"observability"`

	// Warnings describe values that fell back to their default.
	Warnings []string `yaml:"-"`
	// Fallbacks lists the env keys behind Warnings, for metrics.
	Fallbacks []string `yaml:"-"`
}

// Default returns the built-in defaults.
func Default() *RelayConfig {
	return &RelayConfig{
		Meta: MetaConfig{
			BaseURL:     "https://graph.facebook.com",
			Version:     "v23.0",
			MinInterval: 200 * time.Millisecond,
			Timeout:     10 * time.Second,
		},
		Telegram: TelegramConfig{
			BaseURL:         "https://api.telegram.org",
			SendMinInterval: 120 * time.Millisecond,
			Timeout:         10 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxAttempts: 3,
			BackoffBase: 500 * time.Millisecond,
			BackoffMax:  30 * time.Second,
		},
		Queue: QueueConfig{
			Backend:           QueueBackendPostgres,
			PollInterval:      time.Second,
			VisibilityTimeout: 5 * time.Minute,
			MaxDeliveries:     5,
		},
		Events: EventsConfig{
			BusCapacity: 256,
			KafkaTopic:  "relay.domain-events",
		},
		Server: ServerConfig{
			Port:                  "3000",
			AdminTokenTTL:         24 * time.Hour,
			SubmitRatePerMinute:   30,
			SubmitBurst:           10,
			ConfigRefreshSchedule: "@every 1m",
		},
		Worker: WorkerConfig{
			ReconcileSchedule:   "*/5 * * * *",
			Timezone:            "UTC",
			ReconcileStaleAfter: 15 * time.Minute,
			HealthPort:          "9091",
			MetricsPort:         "9090",
		},
		Observability: ObservabilityConfig{SampleRatio: 1.0},
	}
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the optional YAML overlay and
// the environment. It fails only when the overlay file cannot be read or parsed.
func Load() (*RelayConfig, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("RELAY_CONFIG_FILE")); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *RelayConfig) overlayFile(path string) error {
	// #nosec G304 -- path comes from the operator's environment
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

type envLoader struct {
	warnings  []string
	fallbacks []string
}

func track[T any](l *envLoader, key string, r pkgconfig.Result[T]) T {
	if r.FallbackApplied {
		l.fallbacks = append(l.fallbacks, key)
		l.warnings = append(l.warnings, r.Warnings...)
	}
	return r.Value
}

// applyEnv は現在の値をデフォルトとして環境変数で上書きする。
func (c *RelayConfig) applyEnv() {
	l := &envLoader{}
	pos := pkgconfig.ValidatePositiveDuration

	c.Meta.BaseURL = track(l, "META_GRAPH_API_BASE_URL", pkgconfig.LoadEnvWithFallback("META_GRAPH_API_BASE_URL", c.Meta.BaseURL, pkgconfig.ValidateHTTPURL))
	c.Meta.Version = pkgconfig.LoadEnvString("META_GRAPH_API_VERSION", c.Meta.Version)
	c.Meta.AccessToken = pkgconfig.LoadEnvString("IG_ACCESS_TOKEN", c.Meta.AccessToken)
	c.Meta.AppSecret = pkgconfig.LoadEnvString("META_APP_SECRET", c.Meta.AppSecret)
	c.Meta.VerifyToken = pkgconfig.LoadEnvString("META_VERIFY_TOKEN", c.Meta.VerifyToken)
	c.Meta.MinInterval = track(l, "META_API_MIN_INTERVAL", pkgconfig.LoadEnvDuration("META_API_MIN_INTERVAL", c.Meta.MinInterval, pos))
	c.Meta.Timeout = track(l, "META_API_TIMEOUT", pkgconfig.LoadEnvDuration("META_API_TIMEOUT", c.Meta.Timeout, pos))

	c.Telegram.BotToken = pkgconfig.LoadEnvString("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	c.Telegram.BaseURL = track(l, "TELEGRAM_API_BASE_URL", pkgconfig.LoadEnvWithFallback("TELEGRAM_API_BASE_URL", c.Telegram.BaseURL, pkgconfig.ValidateHTTPURL))
	c.Telegram.SendMinInterval = track(l, "TELEGRAM_SEND_MIN_INTERVAL", pkgconfig.LoadEnvDuration("TELEGRAM_SEND_MIN_INTERVAL", c.Telegram.SendMinInterval, pos))
	c.Telegram.Timeout = track(l, "TELEGRAM_TIMEOUT", pkgconfig.LoadEnvDuration("TELEGRAM_TIMEOUT", c.Telegram.Timeout, pos))
	c.Telegram.TargetChatID = pkgconfig.LoadEnvString("TARGET_TELEGRAM_CHAT_ID", c.Telegram.TargetChatID)
	c.Telegram.GroupInviteLink = pkgconfig.LoadEnvString("GROUP_INVITE_LINK", c.Telegram.GroupInviteLink)

	c.Pipeline.MaxAttempts = track(l, "PROCESS_MAX_ATTEMPTS", pkgconfig.LoadEnvInt("PROCESS_MAX_ATTEMPTS", c.Pipeline.MaxAttempts, pkgconfig.IntBetween(1, 20)))
	c.Pipeline.BackoffBase = track(l, "PROCESS_BACKOFF_BASE", pkgconfig.LoadEnvDuration("PROCESS_BACKOFF_BASE", c.Pipeline.BackoffBase, pos))
	c.Pipeline.BackoffMax = track(l, "PROCESS_BACKOFF_MAX", pkgconfig.LoadEnvDuration("PROCESS_BACKOFF_MAX", c.Pipeline.BackoffMax, pos))
	c.Pipeline.Classifier = strings.ToLower(pkgconfig.LoadEnvString("PROCESS_FAILURE_CLASSIFIER", c.Pipeline.Classifier))

	c.Queue.Backend = strings.ToLower(pkgconfig.LoadEnvString("QUEUE_BACKEND", c.Queue.Backend))
	c.Queue.RedisAddr = pkgconfig.LoadEnvString("REDIS_ADDR", c.Queue.RedisAddr)
	c.Queue.PollInterval = track(l, "QUEUE_POLL_INTERVAL", pkgconfig.LoadEnvDuration("QUEUE_POLL_INTERVAL", c.Queue.PollInterval, pos))
	c.Queue.VisibilityTimeout = track(l, "QUEUE_VISIBILITY_TIMEOUT", pkgconfig.LoadEnvDuration("QUEUE_VISIBILITY_TIMEOUT", c.Queue.VisibilityTimeout, pos))
	c.Queue.MaxDeliveries = track(l, "QUEUE_MAX_DELIVERIES", pkgconfig.LoadEnvInt("QUEUE_MAX_DELIVERIES", c.Queue.MaxDeliveries, pkgconfig.ValidatePositiveInt))

	c.Events.BusCapacity = track(l, "EVENT_BUS_CAPACITY", pkgconfig.LoadEnvInt("EVENT_BUS_CAPACITY", c.Events.BusCapacity, pkgconfig.ValidatePositiveInt))
	c.Events.KafkaBrokers = pkgconfig.LoadEnvList("EVENT_KAFKA_BROKERS", c.Events.KafkaBrokers)
	c.Events.KafkaTopic = pkgconfig.LoadEnvString("EVENT_KAFKA_TOPIC", c.Events.KafkaTopic)

	c.Server.Port = pkgconfig.LoadEnvString("PORT", c.Server.Port)
	c.Server.DatabaseURL = pkgconfig.LoadEnvString("DATABASE_URL", c.Server.DatabaseURL)
	c.Server.JWTSecret = os.Getenv("JWT_SECRET")
	c.Server.AdminTokenTTL = track(l, "ADMIN_TOKEN_TTL", pkgconfig.LoadEnvDuration("ADMIN_TOKEN_TTL", c.Server.AdminTokenTTL, pos))
	c.Server.SubmitRatePerMinute = track(l, "SUBMIT_RATE_PER_MINUTE", pkgconfig.LoadEnvInt("SUBMIT_RATE_PER_MINUTE", c.Server.SubmitRatePerMinute, pkgconfig.IntBetween(1, 6000)))
	c.Server.SubmitBurst = track(l, "SUBMIT_RATE_BURST", pkgconfig.LoadEnvInt("SUBMIT_RATE_BURST", c.Server.SubmitBurst, pkgconfig.IntBetween(1, 1000)))
	c.Server.TrustedProxies = pkgconfig.LoadEnvList("TRUSTED_PROXIES", c.Server.TrustedProxies)
	c.Server.ConfigRefreshSchedule = track(l, "CONFIG_REFRESH_SCHEDULE", pkgconfig.LoadEnvWithFallback("CONFIG_REFRESH_SCHEDULE", c.Server.ConfigRefreshSchedule, pkgconfig.ValidateCronSchedule))

	c.Worker.ReconcileSchedule = track(l, "RECONCILE_SCHEDULE", pkgconfig.LoadEnvWithFallback("RECONCILE_SCHEDULE", c.Worker.ReconcileSchedule, pkgconfig.ValidateCronSchedule))
	c.Worker.Timezone = track(l, "WORKER_TIMEZONE", pkgconfig.LoadEnvWithFallback("WORKER_TIMEZONE", c.Worker.Timezone, pkgconfig.ValidateTimezone))
	c.Worker.ReconcileStaleAfter = track(l, "RECONCILE_STALE_AFTER", pkgconfig.LoadEnvDuration("RECONCILE_STALE_AFTER", c.Worker.ReconcileStaleAfter, pkgconfig.DurationBetween(time.Minute, 24*time.Hour)))
	c.Worker.HealthPort = pkgconfig.LoadEnvString("WORKER_HEALTH_PORT", c.Worker.HealthPort)
	c.Worker.MetricsPort = pkgconfig.LoadEnvString("METRICS_PORT", c.Worker.MetricsPort)

	c.Observability.TracingEnabled = track(l, "OTEL_ENABLED", pkgconfig.LoadEnvBool("OTEL_ENABLED", c.Observability.TracingEnabled))
	c.Observability.SampleRatio = track(l, "OTEL_SAMPLE_RATIO", pkgconfig.LoadEnvFloat("OTEL_SAMPLE_RATIO", c.Observability.SampleRatio, pkgconfig.ValidateRatio))

	c.Warnings = l.warnings
	c.Fallbacks = l.fallbacks
}

// Validate reports every missing or inconsistent setting for role at once.
func (c *RelayConfig) Validate(role Role) error {
	var errs []error
	fail := func(field, msg string) {
		errs = append(errs, fmt.Errorf("%s: %s", field, msg))
	}

	if c.Server.DatabaseURL == "" {
		fail("DATABASE_URL", "is required")
	}

	switch c.Queue.Backend {
	case QueueBackendPostgres:
	case QueueBackendRedis:
		if c.Queue.RedisAddr == "" {
			fail("REDIS_ADDR", "is required when QUEUE_BACKEND=redis")
		}
	default:
		fail("QUEUE_BACKEND", fmt.Sprintf("must be %q or %q, got %q", QueueBackendPostgres, QueueBackendRedis, c.Queue.Backend))
	}

	if c.Pipeline.BackoffMax < c.Pipeline.BackoffBase {
		fail("PROCESS_BACKOFF_MAX", "must not be below PROCESS_BACKOFF_BASE")
	}

	if role == RoleAPI || role == RoleWorker {
		if c.Telegram.BotToken == "" {
			fail("TELEGRAM_BOT_TOKEN", "is required")
		}
		if c.Meta.AccessToken == "" {
			fail("IG_ACCESS_TOKEN", "is required")
		}
	}

	if role == RoleAPI {
		if len(c.Server.JWTSecret) < minJWTSecretLength {
			fail("JWT_SECRET", fmt.Sprintf("must be at least %d characters", minJWTSecretLength))
		}
		if c.Meta.AppSecret == "" {
			fail("META_APP_SECRET", "is required")
		}
		if c.Meta.VerifyToken == "" {
			fail("META_VERIFY_TOKEN", "is required")
		}
		if err := pkgconfig.ValidateListenAddr(c.Addr()); err != nil {
			fail("PORT", err.Error())
		}
	}

	return errors.Join(errs...)
}

// Addr is the api listen address.
func (c *RelayConfig) Addr() string {
	return ":" + strings.TrimPrefix(c.Server.Port, ":")
}

