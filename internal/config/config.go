package config

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/wes-io-chat/pkg/config"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
	"github.com/weiawesome/wes-io-chat/pkg/storage"
)

// Persistence modes.
const (
	PersistDirect = "direct"
	PersistQueue  = "queue"
)

type Config struct {
	Server      ServerConfig
	GRPC        GRPCConfig
	WebSocket   WebSocketConfig
	Auth        AuthConfig
	Admin       AdminConfig
	Database    database.Config
	Redis       RedisConfig
	Persistence PersistenceConfig
	PubSub      pubsub.Config `mapstructure:"pubsub"`
	Storage     storage.Config
	Upload      UploadConfig
	CORS        CORSConfig
	Log         pkglog.Config

	source *viper.Viper
}

// OnLogLevelChange calls apply with the current log.level every time the
// config file is rewritten. It reports false when no file was loaded.
func (c *Config) OnLogLevelChange(apply func(level string)) bool {
	if c.source == nil {
		return false
	}
	return pkgconfig.Watch(c.source, func(fsnotify.Event) {
		apply(c.source.GetString("log.level"))
	})
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GRPCConfig struct {
	Enabled bool
	Host    string
	Port    int
}

type WebSocketConfig struct {
	Path           string
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
}

type AuthConfig struct {
	JWTSecret    string `mapstructure:"jwt_secret"`
	Issuer       string
	CookieName   string        `mapstructure:"cookie_name"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type AdminConfig struct {
	SecretKey  string        `mapstructure:"secret_key"`
	CookieName string        `mapstructure:"cookie_name"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type RedisConfig struct {
	Enabled     bool
	Address     string
	Password    string
	DB          int
	CachePrefix string        `mapstructure:"cache_prefix"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type PersistenceConfig struct {
	Mode  string // direct or queue
	Topic string
}

type UploadConfig struct {
	MaxFileSize    int64         `mapstructure:"max_file_size"`
	MaxAttachments int           `mapstructure:"max_attachments"`
	URLExpiry      time.Duration `mapstructure:"url_expiry"`
	AvatarSize     int           `mapstructure:"avatar_size"` // px; 0 stores avatars as uploaded
}

type CORSConfig struct {
	Origins []string
	// Origin is one extra allowed origin, usually from CORS_ORIGIN.
	Origin string
}

// AllowedOrigins merges Origins and Origin.
func (c CORSConfig) AllowedOrigins() []string {
	out := make([]string, 0, len(c.Origins)+1)
	seen := make(map[string]bool, len(c.Origins)+1)
	for _, o := range append(append([]string{}, c.Origins...), c.Origin) {
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}

// Load reads ./config/config.yaml (optional) and the environment.
func Load() (*Config, error) {
	return LoadFrom("./config")
}

// LoadFrom reads config.yaml from dir (optional) and the environment.
func LoadFrom(dir string) (*Config, error) {
	v, err := pkgconfig.Load(dir, "config")
	if err != nil {
		return nil, err
	}

	setDefaults(v)
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Server.ReadTimeout = parseDuration(v, "server.read_timeout", 15*time.Second)
	cfg.Server.WriteTimeout = parseDuration(v, "server.write_timeout", 30*time.Second)
	cfg.Server.IdleTimeout = parseDuration(v, "server.idle_timeout", 60*time.Second)
	cfg.Server.ShutdownTimeout = parseDuration(v, "server.shutdown_timeout", 10*time.Second)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.WebSocket.PersistTimeout = parseDuration(v, "websocket.persist_timeout", 5*time.Second)
	cfg.Auth.TokenTTL = parseDuration(v, "auth.token_ttl", 30*24*time.Hour)
	cfg.Admin.TokenTTL = parseDuration(v, "admin.token_ttl", 15*24*time.Hour)
	cfg.Redis.CacheTTL = parseDuration(v, "redis.cache_ttl", 5*time.Minute)
	cfg.Upload.URLExpiry = parseDuration(v, "upload.url_expiry", 7*24*time.Hour)
	cfg.source = v

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50061)
	v.SetDefault("websocket.path", "/socket")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 16384)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.persist_timeout", "5s")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "wes-io-chat")
	v.SetDefault("auth.cookie_name", "Chat")
	v.SetDefault("auth.token_ttl", "720h")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("admin.secret_key", "")
	v.SetDefault("admin.cookie_name", "admin-token")
	v.SetDefault("admin.token_ttl", "360h")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "chat.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "chat")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "chat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_prefix", "chat:user")
	v.SetDefault("redis.cache_ttl", "5m")
	v.SetDefault("persistence.mode", PersistDirect)
	v.SetDefault("persistence.topic", "chat-messages")
	v.SetDefault("pubsub.driver", "memory")
	v.SetDefault("pubsub.buffer", 100)
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.redis.read_timeout", "3s")
	v.SetDefault("pubsub.redis.write_timeout", "3s")
	v.SetDefault("pubsub.redis.group", "chat-persist")
	v.SetDefault("pubsub.redis.max_len", 100000)
	v.SetDefault("pubsub.redis.block", "2s")
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "chat-persist")
	v.SetDefault("pubsub.kafka.partitions", 8)
	v.SetDefault("pubsub.kafka.topics", []string{"chat-messages"})
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.base_path", "./uploads")
	v.SetDefault("storage.local.public_path", "/uploads")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "chat")
	v.SetDefault("storage.s3.use_path_style", true)
	v.SetDefault("storage.s3.create_bucket", false)
	v.SetDefault("upload.max_file_size", 5*1024*1024)
	v.SetDefault("upload.max_attachments", 5)
	v.SetDefault("upload.url_expiry", "168h")
	v.SetDefault("upload.avatar_size", 256)
	v.SetDefault("cors.origins", []string{"http://localhost:5173", "http://localhost:4173"})
	v.SetDefault("cors.origin", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "wes-io-chat")
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")
	v.BindEnv("grpc.port", "GRPC_PORT")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("admin.secret_key", "ADMIN_SECRET_KEY")
	v.BindEnv("cors.origin", "CORS_ORIGIN")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")
	v.BindEnv("database.file_path", "DATABASE_FILE_PATH")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("persistence.mode", "PERSISTENCE_MODE")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("storage.s3.public_url", "S3_PUBLIC_URL")
	v.BindEnv("storage.s3.create_bucket", "S3_CREATE_BUCKET")
	v.BindEnv("log.level", "LOG_LEVEL")
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
