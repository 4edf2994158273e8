package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Source   SourceConfig   `yaml:"source"`
	Slack    SlackConfig    `yaml:"slack"`
	Store    StoreConfig    `yaml:"store"`
	Events   EventsConfig   `yaml:"events"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	DryRun   bool           `yaml:"dry_run"`
	LogLevel string         `yaml:"log_level"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type SourceConfig struct {
	URL       string        `yaml:"url" validate:"required,url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
	Retry     RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" validate:"gte=1,lte=10"`
	InitialBackoff time.Duration `yaml:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `yaml:"max_backoff" validate:"gtefield=InitialBackoff"`
}

type SlackConfig struct {
	Token     string  `yaml:"token" validate:"required"`
	ChannelID string  `yaml:"channel_id" validate:"required"`
	APIURL    string  `yaml:"api_url" validate:"omitempty,url"`
	RateLimit float64 `yaml:"rate_limit" validate:"gt=0"` // calls per second
}

type StoreConfig struct {
	Backend  string         `yaml:"backend" validate:"oneof=redis postgres"`
	Redis    RedisConfig    `yaml:"redis" validate:"-"`
	Postgres PostgresConfig `yaml:"postgres" validate:"-"`
}

// RedisConfig accepts either a full URL or the discrete NAIS-style settings.
type RedisConfig struct {
	URL       string `yaml:"url"`
	Host      string `yaml:"host" validate:"required_without=URL"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	TLS       bool   `yaml:"tls"`
	KeyPrefix string `yaml:"key_prefix"`
}

// URI returns the connection string, preferring an explicit URL.
func (r RedisConfig) URI() string {
	if r.URL != "" {
		return r.URL
	}
	u := url.URL{
		Scheme: "redis",
		Host:   net.JoinHostPort(r.Host, strconv.Itoa(r.Port)),
	}
	if r.TLS {
		u.Scheme = "rediss"
	}
	if r.Username != "" || r.Password != "" {
		u.User = url.UserPassword(r.Username, r.Password)
	}
	return u.String()
}

type PostgresConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"gt=0"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname" validate:"required"`
	SSLMode  string `yaml:"sslmode"`
}

func (d PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type EventsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url" validate:"required"`
	Exchange   string `yaml:"exchange" validate:"required"`
	RoutingKey string `yaml:"routing_key" validate:"required"`
	QueueName  string `yaml:"queue_name" validate:"required"`
}

type ScheduleConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

type TimeoutsConfig struct {
	Run   time.Duration `yaml:"run" validate:"gt=0"`
	Fetch time.Duration `yaml:"fetch" validate:"gt=0"`
	Store time.Duration `yaml:"store" validate:"gt=0"`
	Sink  time.Duration `yaml:"sink" validate:"gt=0"`
}

// Load reads, defaults and validates the config file. dryRun forces dry-run
// mode on top of the file and environment settings.
func Load(path string, dryRun bool) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if dryRun {
		cfg.DryRun = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse expands environment references in data and decodes it. The DRY_RUN
// environment variable, when set to any value, forces dry-run mode.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if _, ok := os.LookupEnv("DRY_RUN"); ok {
		cfg.DryRun = true
	}

	cfg.setDefaults()

	return &cfg, nil
}

type section struct {
	name string
	val  any
}

// Validate checks the settings required by the selected mode. Slack, store and
// event settings are not inspected in dry-run mode.
func (c *Config) Validate() error {
	v := validator.New()

	sections := []section{
		{"server", c.Server},
		{"source", c.Source},
		{"schedule", c.Schedule},
		{"timeouts", c.Timeouts},
	}
	if !c.DryRun {
		sections = append(sections, section{"slack", c.Slack}, section{"store", c.Store})
		switch c.Store.Backend {
		case BackendRedis:
			sections = append(sections, section{"store.redis", c.Store.Redis})
		case BackendPostgres:
			sections = append(sections, section{"store.postgres", c.Store.Postgres})
		}
		if c.Events.Enabled {
			sections = append(sections, section{"events", c.Events})
		}
	}

	for _, sec := range sections {
		if err := v.Struct(sec.val); err != nil {
			return fmt.Errorf("invalid %s config: %w", sec.name, err)
		}
	}

	if err := v.Var(c.LogLevel, "oneof=debug info warn error"); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}

	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Source.URL == "" {
		c.Source.URL = "https://nais.io/log/rss.xml"
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = "Announcer/1.0"
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 30 * time.Second
	}
	if c.Source.Retry.MaxAttempts == 0 {
		c.Source.Retry.MaxAttempts = 3
	}
	if c.Source.Retry.InitialBackoff == 0 {
		c.Source.Retry.InitialBackoff = 1 * time.Second
	}
	if c.Source.Retry.MaxBackoff == 0 {
		c.Source.Retry.MaxBackoff = 30 * time.Second
	}
	if c.Slack.RateLimit == 0 {
		c.Slack.RateLimit = 1
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendRedis
	}
	if c.Store.Redis.URL == "" && c.Store.Redis.Host == "" {
		c.Store.Redis.URL = "redis://localhost:6379"
	}
	if c.Store.Redis.Port == 0 {
		c.Store.Redis.Port = 6379
	}
	if c.Store.Postgres.Port == 0 {
		c.Store.Postgres.Port = 5432
	}
	if c.Store.Postgres.SSLMode == "" {
		c.Store.Postgres.SSLMode = "disable"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "announcer"
	}
	if c.Events.RoutingKey == "" {
		c.Events.RoutingKey = "announcements"
	}
	if c.Events.QueueName == "" {
		c.Events.QueueName = "announcement_events"
	}
	if c.Schedule.Interval == 0 {
		c.Schedule.Interval = 15 * time.Minute
	}
	if c.Timeouts.Run == 0 {
		c.Timeouts.Run = 5 * time.Minute
	}
	if c.Timeouts.Fetch == 0 {
		c.Timeouts.Fetch = 2 * time.Minute
	}
	if c.Timeouts.Store == 0 {
		c.Timeouts.Store = 5 * time.Second
	}
	if c.Timeouts.Sink == 0 {
		c.Timeouts.Sink = 15 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
