package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/peerlearn/peerlearn/pkg/config"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Mongo      MongoConfig
	Redis      RedisConfig
	Cache      CacheConfig
	JWT        JWTConfig
	PubSub     PubSubConfig `mapstructure:"pubsub"`
	Kafka      KafkaConfig
	Storage    StorageConfig
	Upload     UploadConfig
	WebSocket  WebSocketConfig
	Onboarding OnboardingConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// RedisConfig is optional. With no address the service runs on in-process
// replacements for the cache, pub/sub and token revocation.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

type CacheConfig struct {
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type JWTConfig struct {
	Secret           string
	AccessDuration   time.Duration `mapstructure:"access_duration"`
	RefreshDuration  time.Duration `mapstructure:"refresh_duration"`
	Issuer           string
	RevocationPrefix string `mapstructure:"revocation_prefix"`
}

type PubSubConfig struct {
	Driver string // "redis", "kafka", "memory"; empty picks redis when configured
}

type KafkaConfig struct {
	Brokers     string
	Topic       string // chat event stream for downstream consumers
	Partitions  int
	GroupID     string `mapstructure:"group_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

func (c KafkaConfig) Enabled() bool {
	return c.Brokers != ""
}

type StorageConfig struct {
	Driver    string
	BasePath  string `mapstructure:"base_path"`
	URLPrefix string `mapstructure:"url_prefix"`
	S3        S3Config
}

type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	PublicURL       string `mapstructure:"public_url"`
}

type UploadConfig struct {
	MaxBytes     int64 `mapstructure:"max_bytes"`
	MaxDimension int   `mapstructure:"max_dimension"`
	JPEGQuality  int   `mapstructure:"jpeg_quality"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type OnboardingConfig struct {
	BannedWords  []string      `mapstructure:"banned_words"`
	CookieMaxAge time.Duration `mapstructure:"cookie_max_age"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

var envBindings = map[string]string{
	"server.port":                  "PORT",
	"database.driver":              "DB_DRIVER",
	"database.host":                "DB_HOST",
	"database.port":                "DB_PORT",
	"database.user":                "DB_USER",
	"database.password":            "DB_PASSWORD",
	"database.dbname":              "DB_NAME",
	"database.sslmode":             "DB_SSLMODE",
	"database.file_path":           "DB_FILE_PATH",
	"database.max_idle_conns":      "DB_MAX_IDLE_CONNS",
	"database.max_open_conns":      "DB_MAX_OPEN_CONNS",
	"database.conn_max_lifetime":   "DB_CONN_MAX_LIFETIME",
	"database.log_level":           "DB_LOG_LEVEL",
	"mongo.uri":                    "MONGODB_URI",
	"mongo.database":               "MONGODB_DATABASE",
	"redis.address":                "REDIS_ADDRESS",
	"redis.password":               "REDIS_PASSWORD",
	"redis.db":                     "REDIS_DB",
	"cache.ttl":                    "CACHE_TTL",
	"jwt.secret":                   "JWT_SECRET",
	"jwt.access_duration":          "JWT_ACCESS_DURATION",
	"jwt.refresh_duration":         "JWT_REFRESH_DURATION",
	"pubsub.driver":                "PUBSUB_DRIVER",
	"kafka.brokers":                "KAFKA_BROKERS",
	"kafka.topic":                  "KAFKA_TOPIC",
	"storage.driver":               "STORAGE_DRIVER",
	"storage.base_path":            "STORAGE_BASE_PATH",
	"storage.url_prefix":           "STORAGE_URL_PREFIX",
	"storage.s3.endpoint":          "S3_ENDPOINT",
	"storage.s3.region":            "S3_REGION",
	"storage.s3.bucket":            "S3_BUCKET",
	"storage.s3.access_key_id":     "S3_ACCESS_KEY_ID",
	"storage.s3.secret_access_key": "S3_SECRET_ACCESS_KEY",
	"storage.s3.use_path_style":    "S3_USE_PATH_STYLE",
	"storage.s3.public_url":        "S3_PUBLIC_URL",
	"onboarding.cookie_secure":     "COOKIE_SECURE",
	"log.level":                    "LOG_LEVEL",
	"log.pretty":                   "LOG_PRETTY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "peerlearn")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/peerlearn.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "peerlearn")
	v.SetDefault("mongo.collection", "users")
	v.SetDefault("mongo.timeout", "10s")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.prefix", "peerlearn:profile")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_duration", "15m")
	v.SetDefault("jwt.refresh_duration", "168h")
	v.SetDefault("jwt.issuer", "peerlearn")
	v.SetDefault("jwt.revocation_prefix", "peerlearn:revoked")
	v.SetDefault("pubsub.driver", "")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "peerlearn-chat-messages")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("kafka.group_id", "peerlearn")
	v.SetDefault("kafka.topic_prefix", "peerlearn")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.base_path", "./data/media")
	v.SetDefault("storage.url_prefix", "/media")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("upload.max_bytes", 5<<20)
	v.SetDefault("upload.max_dimension", 1600)
	v.SetDefault("upload.jpeg_quality", 85)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 16384)
	v.SetDefault("onboarding.banned_words", []string{"badword1", "badword2", "slur1", "slur2"})
	v.SetDefault("onboarding.cookie_max_age", "8760h")
	v.SetDefault("onboarding.cookie_secure", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads ./config/config.yaml (optional), defaults and environment variables.
func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	if err := pkgconfig.BindEnvs(v, envBindings); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.PubSub.Driver == "" {
		cfg.PubSub.Driver = "memory"
		if cfg.Redis.Enabled() {
			cfg.PubSub.Driver = "redis"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings the service cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.PubSub.Driver == "redis" && !c.Redis.Enabled() {
		return errors.New("pubsub driver redis requires REDIS_ADDRESS")
	}
	if c.PubSub.Driver == "kafka" && !c.Kafka.Enabled() {
		return errors.New("pubsub driver kafka requires KAFKA_BROKERS")
	}
	if c.Storage.Driver == "s3" && c.Storage.S3.Bucket == "" {
		return errors.New("storage driver s3 requires S3_BUCKET")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	return nil
}
