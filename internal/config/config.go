package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Redis         RedisConfig        `mapstructure:"redis"`
	JWT           JWTConfig          `mapstructure:"jwt"`
	Log           LogConfig          `mapstructure:"log"`
	LLM           LLMConfig          `mapstructure:"llm"`
	EdgeFunctions EdgeFunctionConfig `mapstructure:"edge_functions"`
	Skills        SkillsConfig       `mapstructure:"skills"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	RateLimit     RateLimitConfig    `mapstructure:"rate_limit"`
	CORS          CORSConfig         `mapstructure:"cors"`
	Dashboard     DashboardConfig    `mapstructure:"dashboard"`
	Transfer      TransferConfig     `mapstructure:"transfer"`
	Outbox        OutboxConfig       `mapstructure:"outbox"`
	Schedule      ScheduleConfig     `mapstructure:"schedule"`
	Secrets       Secrets            `mapstructure:"-"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	WorkerPort      int           `mapstructure:"worker_port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN renders a lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// URL renders the postgres:// form used by migrations
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type LLMModelConfig struct {
	Tier      string  `mapstructure:"tier"`
	Name      string  `mapstructure:"name"`
	CostPer1K float64 `mapstructure:"cost_per_1k"`
}

type LLMConfig struct {
	BaseURL    string           `mapstructure:"base_url"`
	Models     []LLMModelConfig `mapstructure:"models"`
	Timeout    time.Duration    `mapstructure:"timeout"`
	MaxRetries int              `mapstructure:"max_retries"`
	MaxTokens  int              `mapstructure:"max_tokens"`
}

type EdgeFunctionConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type SkillsConfig struct {
	Mode             string `mapstructure:"mode"`
	AccuracyTracking bool   `mapstructure:"accuracy_tracking"`
}

type SMTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	From string `mapstructure:"from"`
}

type NotificationConfig struct {
	SMTP               SMTPConfig    `mapstructure:"smtp"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff"`
	SocialWorkerRole   string        `mapstructure:"social_worker_role"`
	TransferCenterRole string        `mapstructure:"transfer_center_role"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DashboardConfig struct {
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type TransferConfig struct {
	EscalateCritical time.Duration `mapstructure:"escalate_critical"`
	EscalateEmergent time.Duration `mapstructure:"escalate_emergent"`
	EscalateUrgent   time.Duration `mapstructure:"escalate_urgent"`
	EscalateRoutine  time.Duration `mapstructure:"escalate_routine"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Retention     time.Duration `mapstructure:"retention"`
}

type ScheduleConfig struct {
	Forecast           string `mapstructure:"forecast"`
	Escalation         string `mapstructure:"escalation"`
	NotificationRetry  string `mapstructure:"notification_retry"`
	Cleanup            string `mapstructure:"cleanup"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

// Secrets are never read from the config file
type Secrets struct {
	LLMAPIKey       string `envconfig:"LLM_API_KEY"`
	EdgeFunctionKey string `envconfig:"EDGE_FUNCTION_KEY"`
	JWTSecret       string `envconfig:"JWT_SECRET" required:"true"`
	SMTPPassword    string `envconfig:"SMTP_PASSWORD"`
	DatabasePass    string `envconfig:"DATABASE_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.worker_port", 8081)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.request_timeout", "45s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("jwt.audience", "authenticated")
	v.SetDefault("jwt.ttl", "1h")
	v.SetDefault("log.level", "info")

	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("edge_functions.timeout", "30s")
	v.SetDefault("edge_functions.max_retries", 1)
	v.SetDefault("skills.mode", "local")
	v.SetDefault("skills.accuracy_tracking", true)

	v.SetDefault("notifications.smtp.port", 587)
	v.SetDefault("notifications.max_attempts", 3)
	v.SetDefault("notifications.retry_backoff", "5s")
	v.SetDefault("notifications.social_worker_role", "social_worker_on_call")
	v.SetDefault("notifications.transfer_center_role", "transfer_center")

	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("dashboard.cache_ttl", "30s")
	v.SetDefault("dashboard.poll_interval", "30s")

	v.SetDefault("transfer.escalate_critical", "2h")
	v.SetDefault("transfer.escalate_emergent", "4h")
	v.SetDefault("transfer.escalate_urgent", "8h")
	v.SetDefault("transfer.escalate_routine", "24h")

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", "2s")
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", "500ms")
	v.SetDefault("outbox.retention", "168h")

	v.SetDefault("schedule.forecast", "0 */6 * * *")
	v.SetDefault("schedule.escalation", "*/5 * * * *")
	v.SetDefault("schedule.notification_retry", "@every 10s")
	v.SetDefault("schedule.cleanup", "30 3 * * *")
	v.SetDefault("schedule.audit_retention_days", 2190)
}

// LoadConfig reads config.yaml (optional) and overlays the environment.
// Nested keys map to CAREOPS_<SECTION>_<KEY>.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)
	v.SetEnvPrefix("careops")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Secrets); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	if cfg.Secrets.DatabasePass != "" {
		cfg.Database.Password = cfg.Secrets.DatabasePass
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	switch c.Skills.Mode {
	case "local", "remote":
	default:
		return fmt.Errorf("skills.mode must be local or remote, got %q", c.Skills.Mode)
	}
	if c.Skills.Mode == "local" && c.LLM.BaseURL != "" && len(c.LLM.Models) == 0 {
		return errors.New("llm.models must configure at least one tier")
	}
	if c.Skills.Mode == "remote" && c.EdgeFunctions.BaseURL == "" {
		return errors.New("edge_functions.base_url is required in remote skills mode")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.RetryAttempts <= 0 {
		return errors.New("outbox batch_size and retry_attempts must be positive")
	}
	if c.Notifications.MaxAttempts <= 0 {
		return errors.New("notifications.max_attempts must be positive")
	}
	return nil
}
