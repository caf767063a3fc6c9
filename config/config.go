package config

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"airshow-pos/store"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// Config is read from POS_* environment variables.
type Config struct {
	StorageBackend    string   `envconfig:"STORAGE_BACKEND" default:"file"`
	DataDir           string   `envconfig:"DATA_DIR" default:"data"`
	DatabaseURL       string   `envconfig:"DATABASE_URL"`
	MongoURI          string   `envconfig:"MONGO_URI"`
	MongoDatabase     string   `envconfig:"MONGO_DATABASE" default:"airshow_pos"`
	HostedCredentials string   `envconfig:"HOSTED_CREDENTIALS"`
	KafkaBrokers      []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic        string   `envconfig:"KAFKA_TOPIC" default:"pos-events"`
	Addr              string   `envconfig:"ADDR" default:":8501"`
	LogLevel          string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat         string   `envconfig:"LOG_FORMAT" default:"json"`
	StrictCategories  bool     `envconfig:"STRICT_CATEGORIES" default:"false"`
	ConflictRetries   int      `envconfig:"CONFLICT_RETRIES" default:"3"`
	LowStockThreshold int      `envconfig:"LOW_STOCK_THRESHOLD" default:"5"`
	Timezone          string   `envconfig:"TIMEZONE" default:"Local"`
	CORSOrigins       []string `envconfig:"CORS_ORIGINS" default:"*"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("pos", &cfg); err != nil {
		return nil, errors.Wrap(err, "read environment")
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendFile:
		if c.DataDir == "" {
			return errors.New("POS_DATA_DIR is required for the file backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("POS_DATABASE_URL is required for the postgres backend")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("POS_MONGO_URI is required for the mongo backend")
		}
		if _, err := c.Credentials(); err != nil {
			return err
		}
	case BackendMemory:
	default:
		return errors.Errorf("unknown POS_STORAGE_BACKEND %q", c.StorageBackend)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("POS_KAFKA_TOPIC is required when POS_KAFKA_BROKERS is set")
	}
	if c.ConflictRetries < 0 {
		return errors.New("POS_CONFLICT_RETRIES must be >= 0")
	}
	if c.LowStockThreshold < 0 {
		return errors.New("POS_LOW_STOCK_THRESHOLD must be >= 0")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "POS_LOG_LEVEL")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return errors.Errorf("POS_LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Credentials decodes the hosted backend credentials blob. It returns nil
// when none is configured.
func (c *Config) Credentials() (*store.MongoCredentials, error) {
	if c.HostedCredentials == "" {
		return nil, nil
	}
	var creds store.MongoCredentials
	if err := json.Unmarshal([]byte(c.HostedCredentials), &creds); err != nil {
		return nil, errors.Wrap(err, "POS_HOSTED_CREDENTIALS is not valid JSON")
	}
	return &creds, nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "POS_TIMEZONE %q", c.Timezone)
	}
	return loc, nil
}

// Logger builds the process logger.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if c.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return log
}

// OpenStore connects the configured backend. Postgres tables are created if missing.
func (c *Config) OpenStore(ctx context.Context) (store.Store, error) {
	switch c.StorageBackend {
	case BackendFile:
		s, err := store.NewFileStore(c.DataDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendPostgres:
		s, err := store.NewPostgresStore(c.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case BackendMongo:
		creds, err := c.Credentials()
		if err != nil {
			return nil, err
		}
		s, err := store.NewMongoStore(ctx, c.MongoURI, c.MongoDatabase, creds)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return store.NewMemoryStore(), nil
	}
	return nil, errors.Errorf("unknown storage backend %q", c.StorageBackend)
}
