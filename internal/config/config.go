package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir       = ".ingestion"
	DefaultConfigFile      = "config.yaml"
	DefaultEnvFile         = ".env"
	DefaultUserAgent       = "ingestion-engine/1.0"
	DefaultPageLimit       = 25
	DefaultHNWorkers       = 5
	DefaultHNRatePerSecond = 10
	DefaultSinkKind        = SinkFile
	DefaultSinkDir         = ".ingestion/artifacts"
	DefaultSQLitePath      = ".ingestion/ingestion.db"
	DefaultKafkaTopic      = "ingested-posts"

	DefaultRedditClientIDEnv     = "REDDIT_CLIENT_ID"
	DefaultRedditClientSecretEnv = "REDDIT_CLIENT_SECRET"
	DefaultRedditUsernameEnv     = "REDDIT_USERNAME"
	DefaultRedditPasswordEnv     = "REDDIT_PASSWORD"
	DefaultRedditUserAgentEnv    = "REDDIT_USER_AGENT"
	DefaultPostgresDSNEnv        = "DATABASE_URL"
	DefaultGCSCredentialsEnv     = "GCS_CREDENTIALS_JSON"
	DefaultGCSBucketEnv          = "GCS_BUCKET_NAME"
)

// Sink kinds.
const (
	SinkFile     = "file"
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
	SinkGCS      = "gcs"
	SinkKafka    = "kafka"
)

type Config struct {
	Sources []SourceDescriptor `yaml:"sources"`
	Reddit  RedditConfig       `yaml:"reddit"`
	HN      HNConfig           `yaml:"hn"`
	RSS     RSSConfig          `yaml:"rss"`
	Sink    SinkConfig         `yaml:"sink"`
	Privacy PrivacyConfig      `yaml:"privacy"`
}

// SourceDescriptor names one source to ingest. Type selects the strategy;
// unknown types are kept and skipped at dispatch time.
type SourceDescriptor struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type RedditConfig struct {
	ClientIDEnv     string `yaml:"client_id_env"`
	ClientSecretEnv string `yaml:"client_secret_env"`
	UsernameEnv     string `yaml:"username_env"`
	PasswordEnv     string `yaml:"password_env"`
	UserAgent       string `yaml:"user_agent"`
	Limit           int    `yaml:"limit"`

	// Resolved from env vars at load time.
	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
	Username     string `yaml:"-"`
	Password     string `yaml:"-"`
}

type HNConfig struct {
	Limit             int     `yaml:"limit"`
	Workers           int     `yaml:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type RSSConfig struct {
	Limit int `yaml:"limit"`
}

type SinkConfig struct {
	Kind     string         `yaml:"kind"`
	Dir      string         `yaml:"dir"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	GCS      GCSConfig      `yaml:"gcs"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	DSNEnv string `yaml:"dsn_env"`

	DSN string `yaml:"-"`
}

type GCSConfig struct {
	Bucket             string `yaml:"bucket"`
	CredentialsFileEnv string `yaml:"credentials_file_env"`

	CredentialsFile string `yaml:"-"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type PrivacyConfig struct {
	Redact RedactConfig `yaml:"redact"`
}

type RedactConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Patterns []string `yaml:"patterns"`
}

// Load reads config.yaml from dir, loads .env files, applies defaults,
// resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads dir/.env and ./.env when present. Variables already set
// in the process environment are not overridden.
func loadDotEnv(dir string) error {
	for _, path := range []string{filepath.Join(dir, DefaultEnvFile), DefaultEnvFile} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	for i := range cfg.Sources {
		d := &cfg.Sources[i]
		d.Type = strings.ToLower(strings.TrimSpace(d.Type))
		d.Name = strings.TrimSpace(d.Name)
		if d.URL != "" || d.Name == "" {
			continue
		}
		switch {
		case strings.Contains(d.Name, "://"):
			d.URL = d.Name
		case d.Type == "reddit":
			d.URL = "https://www.reddit.com/r/" + strings.TrimPrefix(strings.TrimPrefix(d.Name, "/"), "r/") + "/"
		}
	}

	if cfg.Reddit.ClientIDEnv == "" {
		cfg.Reddit.ClientIDEnv = DefaultRedditClientIDEnv
	}
	if cfg.Reddit.ClientSecretEnv == "" {
		cfg.Reddit.ClientSecretEnv = DefaultRedditClientSecretEnv
	}
	if cfg.Reddit.UsernameEnv == "" {
		cfg.Reddit.UsernameEnv = DefaultRedditUsernameEnv
	}
	if cfg.Reddit.PasswordEnv == "" {
		cfg.Reddit.PasswordEnv = DefaultRedditPasswordEnv
	}
	if cfg.Reddit.Limit <= 0 {
		cfg.Reddit.Limit = DefaultPageLimit
	}

	if cfg.HN.Limit <= 0 {
		cfg.HN.Limit = DefaultPageLimit
	}
	if cfg.HN.Workers <= 0 {
		cfg.HN.Workers = DefaultHNWorkers
	}
	if cfg.HN.RequestsPerSecond <= 0 {
		cfg.HN.RequestsPerSecond = DefaultHNRatePerSecond
	}

	if cfg.RSS.Limit <= 0 {
		cfg.RSS.Limit = DefaultPageLimit
	}

	if cfg.Sink.Kind == "" {
		cfg.Sink.Kind = DefaultSinkKind
	}
	cfg.Sink.Kind = strings.ToLower(cfg.Sink.Kind)
	if cfg.Sink.Dir == "" {
		cfg.Sink.Dir = DefaultSinkDir
	}
	if cfg.Sink.SQLite.Path == "" {
		cfg.Sink.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Sink.Postgres.DSNEnv == "" {
		cfg.Sink.Postgres.DSNEnv = DefaultPostgresDSNEnv
	}
	if cfg.Sink.GCS.CredentialsFileEnv == "" {
		cfg.Sink.GCS.CredentialsFileEnv = DefaultGCSCredentialsEnv
	}
	if cfg.Sink.Kafka.Topic == "" {
		cfg.Sink.Kafka.Topic = DefaultKafkaTopic
	}
}

func resolveEnv(cfg *Config) {
	cfg.Reddit.ClientID = strings.TrimSpace(os.Getenv(cfg.Reddit.ClientIDEnv))
	cfg.Reddit.ClientSecret = strings.TrimSpace(os.Getenv(cfg.Reddit.ClientSecretEnv))
	cfg.Reddit.Username = strings.TrimSpace(os.Getenv(cfg.Reddit.UsernameEnv))
	cfg.Reddit.Password = os.Getenv(cfg.Reddit.PasswordEnv)
	if cfg.Reddit.UserAgent == "" {
		cfg.Reddit.UserAgent = os.Getenv(DefaultRedditUserAgentEnv)
	}
	if cfg.Reddit.UserAgent == "" {
		cfg.Reddit.UserAgent = DefaultUserAgent
	}

	cfg.Sink.Postgres.DSN = os.Getenv(cfg.Sink.Postgres.DSNEnv)
	cfg.Sink.GCS.CredentialsFile = os.Getenv(cfg.Sink.GCS.CredentialsFileEnv)
	if cfg.Sink.GCS.Bucket == "" {
		cfg.Sink.GCS.Bucket = os.Getenv(DefaultGCSBucketEnv)
	}
}

func validate(cfg *Config) error {
	switch cfg.Sink.Kind {
	case SinkFile, SinkSQLite, SinkPostgres, SinkGCS, SinkKafka:
		// valid
	default:
		return fmt.Errorf("sink.kind: unknown kind %q (want file, sqlite, postgres, gcs or kafka)", cfg.Sink.Kind)
	}

	if cfg.Privacy.Redact.Enabled {
		for _, p := range cfg.Privacy.Redact.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("privacy.redact: pattern %q: %w", p, err)
			}
		}
	}

	return nil
}

// IsPlaceholder reports whether a credential is missing or still holds an
// example value such as "your_client_id".
func IsPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v == "" ||
		strings.HasPrefix(v, "your_") ||
		strings.HasPrefix(v, "your-") ||
		(strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">"))
}
