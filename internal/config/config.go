package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bassista/court_watch/internal/docstore"
	"github.com/bassista/court_watch/internal/filter"
	"github.com/bassista/court_watch/internal/logger"
	"github.com/bassista/court_watch/internal/repository"
	"github.com/bassista/court_watch/internal/scheduler"
)

const envPrefix = "COURT_WATCH"

// v is replaced on every LoadConfig so repeated loads never see stale keys.
var v = viper.New()

type Config struct {
	Feed   FeedConfig
	Store  StoreConfig
	Notify NotifyConfig
	Server ServerConfig
	Misc   MiscConfig
}

type FeedConfig struct {
	Source     string `validate:"oneof=http file"`
	URL        string `validate:"omitempty,url"`
	FilePath   string
	Watch      bool
	Attempts   int           `validate:"min=1,max=20"`
	RetryDelay time.Duration `validate:"gte=0"`
	Timeout    time.Duration `validate:"gt=0"`
	UserAgent  string
	Headers    map[string]string
}

type StoreConfig struct {
	Type             string `validate:"oneof=file document chunked"`
	FilePath         string
	Driver           string
	DSN              string
	Table            string
	DocumentID       string
	MaxDocumentBytes int `validate:"gte=0"`
	ChunkBytes       int `validate:"gte=0"`
}

// Options converts the section into repository factory options.
func (s StoreConfig) Options() repository.Options {
	return repository.Options{
		Type:     s.Type,
		FilePath: s.FilePath,
		Backend: docstore.Config{
			Driver: s.Driver,
			DSN:    s.DSN,
			Table:  s.Table,
		},
		DocumentID:       s.DocumentID,
		MaxDocumentBytes: s.MaxDocumentBytes,
		ChunkBytes:       s.ChunkBytes,
	}
}

type NotifyConfig struct {
	Filter string
	Color  string `validate:"oneof=auto always never"`
}

type ServerConfig struct {
	Port               int           `validate:"min=1,max=65535"`
	ReadTimeout        time.Duration `validate:"gt=0"`
	WriteTimeout       time.Duration `validate:"gt=0"`
	IdleTimeout        time.Duration `validate:"gt=0"`
	ShutDownTimeout    time.Duration `validate:"gt=0"`
	RequestTimeout     time.Duration `validate:"gt=0"`
	TriggerInterval    time.Duration `validate:"gt=0"`
	TriggerBurst       int           `validate:"min=1"`
	SchedulerEnabled   bool
	RunOnStart         bool
	CORSAllowedOrigins string
}

type MiscConfig struct {
	GinMode    string
	LogLevel   string
	LogFormat  string `validate:"omitempty,oneof=text json"`
	Schedule   string
	ScheduleTZ string
}

// Location resolves ScheduleTZ; empty and "Local" mean the host timezone.
func (m MiscConfig) Location() (*time.Location, error) {
	if m.ScheduleTZ == "" || m.ScheduleTZ == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(m.ScheduleTZ)
}

func setDefaults() {
	v.SetDefault("feed.source", "http")
	v.SetDefault("feed.url", "")
	v.SetDefault("feed.file_path", "./config/data/feed.json")
	v.SetDefault("feed.watch", true)
	v.SetDefault("feed.attempts", 3)
	v.SetDefault("feed.retry_delay", 5*time.Second)
	v.SetDefault("feed.timeout", 30*time.Second)
	v.SetDefault("feed.user_agent", "")
	v.SetDefault("feed.headers", map[string]string{})

	v.SetDefault("store.type", "file")
	v.SetDefault("store.file_path", "./config/data/snapshot.json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "./config/data/court_watch.db")
	v.SetDefault("store.table", "court_watch_documents")
	v.SetDefault("store.document_id", "court-availability")
	v.SetDefault("store.max_document_bytes", repository.DefaultMaxDocumentBytes)
	v.SetDefault("store.chunk_bytes", repository.DefaultChunkBytes)

	v.SetDefault("notify.filter", "")
	v.SetDefault("notify.color", "auto")

	v.SetDefault("server.port", 8084)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 150*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.request_timeout", 2*time.Minute)
	v.SetDefault("server.trigger_interval", 30*time.Second)
	v.SetDefault("server.trigger_burst", 1)
	v.SetDefault("server.scheduler_enabled", true)
	v.SetDefault("server.run_on_start", true)
	v.SetDefault("server.cors_allowed_origins", "")

	v.SetDefault("misc.gin_mode", "release")
	v.SetDefault("misc.log_level", "info")
	v.SetDefault("misc.log_format", "text")
	v.SetDefault("misc.schedule", scheduler.DefaultSpec)
	v.SetDefault("misc.schedule_tz", "Local")
}

// LoadConfig reads config.yaml from COURT_WATCH_CONFIG_PATH (default ./config),
// then .env, then COURT_WATCH_* environment variables, in increasing priority.
func LoadConfig() (*Config, error) {
	log := logger.WithComponent("config")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("cannot load .env file: %v", err)
	}

	confPath := getEnvOrDefault(envPrefix+"_CONFIG_PATH", "./config")

	v = viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(confPath)

	// Environment variables like COURT_WATCH_FEED_URL override feed.url
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		log.Debugf("no config file found in %s, using defaults and env vars", confPath)
	} else {
		log.Debugf("using config file %s", v.ConfigFileUsed())
	}

	port, err := getEnvOrViperPort("PORT", "server.port")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Feed: FeedConfig{
			Source:     strings.ToLower(v.GetString("feed.source")),
			URL:        v.GetString("feed.url"),
			FilePath:   v.GetString("feed.file_path"),
			Watch:      v.GetBool("feed.watch"),
			Attempts:   v.GetInt("feed.attempts"),
			RetryDelay: v.GetDuration("feed.retry_delay"),
			Timeout:    v.GetDuration("feed.timeout"),
			UserAgent:  v.GetString("feed.user_agent"),
			Headers:    v.GetStringMapString("feed.headers"),
		},
		Store: StoreConfig{
			Type:             strings.ToLower(v.GetString("store.type")),
			FilePath:         v.GetString("store.file_path"),
			Driver:           strings.ToLower(v.GetString("store.driver")),
			DSN:              v.GetString("store.dsn"),
			Table:            v.GetString("store.table"),
			DocumentID:       v.GetString("store.document_id"),
			MaxDocumentBytes: v.GetInt("store.max_document_bytes"),
			ChunkBytes:       v.GetInt("store.chunk_bytes"),
		},
		Notify: NotifyConfig{
			Filter: v.GetString("notify.filter"),
			Color:  strings.ToLower(v.GetString("notify.color")),
		},
		Server: ServerConfig{
			Port:               port,
			ReadTimeout:        v.GetDuration("server.read_timeout"),
			WriteTimeout:       v.GetDuration("server.write_timeout"),
			IdleTimeout:        v.GetDuration("server.idle_timeout"),
			ShutDownTimeout:    v.GetDuration("server.shutdown_timeout"),
			RequestTimeout:     v.GetDuration("server.request_timeout"),
			TriggerInterval:    v.GetDuration("server.trigger_interval"),
			TriggerBurst:       v.GetInt("server.trigger_burst"),
			SchedulerEnabled:   v.GetBool("server.scheduler_enabled"),
			RunOnStart:         v.GetBool("server.run_on_start"),
			CORSAllowedOrigins: v.GetString("server.cors_allowed_origins"),
		},
		Misc: MiscConfig{
			GinMode:    getEnvOrDefault("GIN_MODE", v.GetString("misc.gin_mode")),
			LogLevel:   getEnvOrDefault("LOG_LEVEL", v.GetString("misc.log_level")),
			LogFormat:  strings.ToLower(getEnvOrDefault("LOG_FORMAT", v.GetString("misc.log_format"))),
			Schedule:   v.GetString("misc.schedule"),
			ScheduleTZ: v.GetString("misc.schedule_tz"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.Feed.Source {
	case "http":
		if strings.TrimSpace(c.Feed.URL) == "" {
			return errors.New("feed.url is required when feed.source is http")
		}
	case "file":
		if strings.TrimSpace(c.Feed.FilePath) == "" {
			return errors.New("feed.file_path is required when feed.source is file")
		}
	}

	switch c.Store.Type {
	case "file":
		if strings.TrimSpace(c.Store.FilePath) == "" {
			return errors.New("store.file_path cannot be empty")
		}
	case "document", "chunked":
		if strings.TrimSpace(c.Store.Driver) == "" {
			return fmt.Errorf("store.driver is required for store type %s", c.Store.Type)
		}
		if strings.TrimSpace(c.Store.DocumentID) == "" {
			return errors.New("store.document_id cannot be empty")
		}
	}

	if _, err := c.Misc.Location(); err != nil {
		return fmt.Errorf("invalid schedule timezone %q: %w", c.Misc.ScheduleTZ, err)
	}
	if c.Misc.Schedule != "" {
		if _, err := scheduler.ParseSpec(c.Misc.Schedule); err != nil {
			return fmt.Errorf("invalid misc.schedule: %w", err)
		}
	}
	if _, err := filter.Compile(c.Notify.Filter); err != nil {
		return fmt.Errorf("invalid notify.filter: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvOrViperPort reads a port from envKey, falling back to viperKey.
func getEnvOrViperPort(envKey, viperKey string) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", envKey, val, err)
		}
		return port, nil
	}
	return v.GetInt(viperKey), nil
}
