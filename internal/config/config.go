package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Record store backends.
const (
	RecordStorePostgres = "postgres"
	RecordStoreDynamoDB = "dynamodb"
	RecordStoreSQLite   = "sqlite"
)

// Artefact store backends.
const (
	ArtefactStoreS3    = "s3"
	ArtefactStoreLocal = "local"
)

type Config struct {
	Server        ServerConfig
	Logger        LoggerConfig
	Auth          AuthConfig
	RecordStore   string
	Database      DatabaseConfig
	DynamoDB      DynamoDBConfig
	SQLite        SQLiteConfig
	ArtefactStore string
	S3            S3Config
	Local         LocalConfig
	AWS           AWSConfig
	Storage       StorageConfig
	Client        ClientConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type AuthConfig struct {
	Username     string
	Password     string
	PasswordHash string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the connection string understood by pgxpool.ParseConfig.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

type DynamoDBConfig struct {
	Table    string
	Endpoint string
}

type SQLiteConfig struct {
	Path string
}

type S3Config struct {
	Bucket   string
	Endpoint string
}

type LocalConfig struct {
	ArtefactDir string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// StorageConfig bounds every backend call.
type StorageConfig struct {
	Timeout              time.Duration
	MaxAttempts          int
	RetryInitialInterval time.Duration
	// AutoCreate creates a missing bucket at startup.
	AutoCreate bool
}

// ClientConfig is used by modelctl in remote mode.
type ClientConfig struct {
	Server   string
	Username string
	Password string
}

// NewViper returns a viper instance carrying every default and reading
// overrides from the environment. A .env file in the working directory is
// loaded first when present.
func NewViper() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8000)
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	v.SetDefault("AUTH_USERNAME", "user")
	v.SetDefault("AUTH_PASSWORD", "")
	v.SetDefault("AUTH_PASSWORD_HASH", "")

	v.SetDefault("RECORD_STORE", RecordStorePostgres)
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_NAME", "model_registry")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 2)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DYNAMODB_TABLE", "model-table")
	v.SetDefault("DYNAMODB_ENDPOINT", "")
	v.SetDefault("SQLITE_PATH", "models.db")

	v.SetDefault("ARTEFACT_STORE", ArtefactStoreS3)
	v.SetDefault("S3_BUCKET", "my-model-bucket")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("LOCAL_ARTEFACT_DIR", "artefacts")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")

	v.SetDefault("STORAGE_TIMEOUT", "10s")
	v.SetDefault("STORAGE_MAX_ATTEMPTS", 3)
	v.SetDefault("STORAGE_RETRY_INITIAL_INTERVAL", "200ms")
	v.SetDefault("STORAGE_AUTO_CREATE", false)

	v.SetDefault("MODELCTL_SERVER", "")
	v.SetDefault("MODELCTL_USERNAME", "user")
	v.SetDefault("MODELCTL_PASSWORD", "")

	// Env
	v.AutomaticEnv()

	return v
}

func Load() (*Config, error) {
	return FromViper(NewViper())
}

// FromViper builds the configuration from an already prepared viper
// instance, so callers can bind command-line flags before reading it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
		Auth: AuthConfig{
			Username:     v.GetString("AUTH_USERNAME"),
			Password:     v.GetString("AUTH_PASSWORD"),
			PasswordHash: v.GetString("AUTH_PASSWORD_HASH"),
		},
		RecordStore: v.GetString("RECORD_STORE"),
		Database: DatabaseConfig{
			Host:            v.GetString("DATABASE_HOST"),
			Port:            v.GetInt("DATABASE_PORT"),
			User:            v.GetString("DATABASE_USER"),
			Password:        v.GetString("DATABASE_PASSWORD"),
			Name:            v.GetString("DATABASE_NAME"),
			SSLMode:         v.GetString("DATABASE_SSLMODE"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: parseDuration(v.GetString("DATABASE_CONN_MAX_LIFETIME"), 30*time.Minute),
		},
		DynamoDB: DynamoDBConfig{
			Table:    v.GetString("DYNAMODB_TABLE"),
			Endpoint: v.GetString("DYNAMODB_ENDPOINT"),
		},
		SQLite: SQLiteConfig{
			Path: v.GetString("SQLITE_PATH"),
		},
		ArtefactStore: v.GetString("ARTEFACT_STORE"),
		S3: S3Config{
			Bucket:   v.GetString("S3_BUCKET"),
			Endpoint: v.GetString("S3_ENDPOINT"),
		},
		Local: LocalConfig{
			ArtefactDir: v.GetString("LOCAL_ARTEFACT_DIR"),
		},
		AWS: AWSConfig{
			Region:          v.GetString("AWS_REGION"),
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		},
		Storage: StorageConfig{
			Timeout:              parseDuration(v.GetString("STORAGE_TIMEOUT"), 10*time.Second),
			MaxAttempts:          v.GetInt("STORAGE_MAX_ATTEMPTS"),
			RetryInitialInterval: parseDuration(v.GetString("STORAGE_RETRY_INITIAL_INTERVAL"), 200*time.Millisecond),
			AutoCreate:           v.GetBool("STORAGE_AUTO_CREATE"),
		},
		Client: ClientConfig{
			Server:   v.GetString("MODELCTL_SERVER"),
			Username: v.GetString("MODELCTL_USERNAME"),
			Password: v.GetString("MODELCTL_PASSWORD"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.RecordStore {
	case RecordStorePostgres, RecordStoreDynamoDB, RecordStoreSQLite:
	default:
		return fmt.Errorf("RECORD_STORE must be one of postgres, dynamodb, sqlite; got %q", c.RecordStore)
	}
	switch c.ArtefactStore {
	case ArtefactStoreS3, ArtefactStoreLocal:
	default:
		return fmt.Errorf("ARTEFACT_STORE must be s3 or local; got %q", c.ArtefactStore)
	}
	if c.Storage.MaxAttempts < 1 {
		c.Storage.MaxAttempts = 1
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
