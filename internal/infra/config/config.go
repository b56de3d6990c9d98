package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Log        LogConfig        `mapstructure:"log"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// RequestTimeout bounds a single API request, including every storage
	// call it fans out to.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowOrigins   []string      `mapstructure:"allow_origins"`
}

// HTTPClientConfig holds HTTP client configuration for connection pooling.
type HTTPClientConfig struct {
	// Connection pool settings
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`

	// Timeout settings
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`

	// Keep-alive settings
	KeepAlive time.Duration `mapstructure:"keep_alive"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RedisConfig holds Redis configuration.
// An empty address keeps sessions and OAuth state in process memory.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig holds the audit database configuration.
// An empty host disables the audit trail.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// Enabled reports whether an audit database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// AuthConfig holds identity provider and session configuration.
type AuthConfig struct {
	// Issuer is the identity provider issuer URL, e.g.
	// https://cognito-idp.ap-northeast-1.amazonaws.com/ap-northeast-1_AbCdEf.
	Issuer string `mapstructure:"issuer"`
	// Domain is the hosted sign-in base URL serving /oauth2/authorize and /oauth2/token.
	Domain        string   `mapstructure:"domain"`
	TokenEndpoint string   `mapstructure:"token_endpoint"`
	ClientID      string   `mapstructure:"client_id"`
	ClientSecret  string   `mapstructure:"client_secret"`
	RedirectURL   string   `mapstructure:"redirect_url"`
	Scopes        []string `mapstructure:"scopes"`

	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	StateTTL      time.Duration `mapstructure:"state_ttl"`
	CookieName    string        `mapstructure:"cookie_name"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
	MasterKey     string        `mapstructure:"master_key"` // seals tokens stored in Redis
}

// AuthorizeEndpoint returns the provider authorization URL.
func (c *AuthConfig) AuthorizeEndpoint() string {
	return strings.TrimSuffix(c.Domain, "/") + "/oauth2/authorize"
}

// ResolvedTokenEndpoint returns the token endpoint, derived from Domain when unset.
func (c *AuthConfig) ResolvedTokenEndpoint() string {
	if c.TokenEndpoint != "" {
		return c.TokenEndpoint
	}
	if c.Domain == "" {
		return ""
	}
	return strings.TrimSuffix(c.Domain, "/") + "/oauth2/token"
}

// StorageConfig holds object storage and federation configuration.
type StorageConfig struct {
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	IdentityPoolID string `mapstructure:"identity_pool_id"`
	// Endpoint overrides the S3 endpoint (MinIO, LocalStack).
	Endpoint       string        `mapstructure:"endpoint"`
	UsePathStyle   bool          `mapstructure:"use_path_style"`
	PresignTTL     time.Duration `mapstructure:"presign_ttl"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// Load loads configuration from file and environment and validates it.
func Load() (*Config, error) {
	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/album")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix("ALBUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applySecretOverrides(&cfg)

	return Initialize(&cfg)
}

// applySecretOverrides reads sensitive values that are never kept in config files.
func applySecretOverrides(cfg *Config) {
	if secret := os.Getenv("ALBUM_OAUTH_CLIENT_SECRET"); secret != "" {
		cfg.Auth.ClientSecret = secret
	}
	if secret := os.Getenv("ALBUM_SESSION_SECRET"); secret != "" {
		cfg.Auth.SessionSecret = secret
	}
	if key := os.Getenv("ALBUM_MASTER_KEY"); key != "" {
		cfg.Auth.MasterKey = key
	}
	if password := os.Getenv("ALBUM_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if password := os.Getenv("ALBUM_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.allow_origins", []string{"*"})

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 10*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 30*time.Second)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Redis defaults (empty address = in-memory stores)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)

	// Database defaults (empty host = audit disabled)
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "album")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)

	// Auth defaults. Required keys get empty defaults so AutomaticEnv can fill them.
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.domain", "")
	v.SetDefault("auth.token_endpoint", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.redirect_url", "")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.master_key", "")
	v.SetDefault("auth.scopes", []string{"openid", "email", "profile"})
	v.SetDefault("auth.session_ttl", 30*24*time.Hour)
	v.SetDefault("auth.state_ttl", 10*time.Minute)
	v.SetDefault("auth.cookie_name", "album_session")
	v.SetDefault("auth.cookie_secure", true)

	// Storage defaults
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.identity_pool_id", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.use_path_style", false)
	v.SetDefault("storage.presign_ttl", time.Hour)
	v.SetDefault("storage.max_upload_bytes", 20*1024*1024)
}
