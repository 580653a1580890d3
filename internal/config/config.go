package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Log holds logger settings shared by the server and the client commands.
type Log struct {
	Level  string
	Pretty bool
	File   string
}

// OIDC holds the relying-party settings for browser login.
type OIDC struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		Driver string
		DSN    string
	}
	OIDC OIDC
	// Redis is optional. An empty Addr keeps change fan-out in-process.
	Redis struct {
		Addr     string
		Username string
		Password string
		DB       int
		Channel  string
	}
	Log             Log
	AdminEmail      string
	SessionLifetime time.Duration
	InsecureCookies bool
}

// ClientConfig configures the CLI commands that talk to a running server.
type ClientConfig struct {
	ServerURL         string
	Token             string
	Timeout           time.Duration
	ReconnectAttempts int
	ReconnectBackoff  time.Duration
	Log               Log
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MARKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigName("joe-marks")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional config file

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	return v
}

func loadLog(v *viper.Viper) Log {
	return Log{
		Level:  v.GetString("log.level"),
		Pretty: v.GetBool("log.pretty"),
		File:   v.GetString("log.file"),
	}
}

// Load reads server config from environment (MARKS_ prefix) and optional joe-marks.yaml.
func Load() (*Config, error) {
	v := newViper()
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("session.lifetime", "720h")
	v.SetDefault("redis.channel", "joe-marks:changes")

	cfg := &Config{}
	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.DB.Driver = v.GetString("db.driver")
	cfg.DB.DSN = v.GetString("db.dsn")
	cfg.OIDC.Issuer = v.GetString("oidc.issuer")
	cfg.OIDC.ClientID = v.GetString("oidc.client_id")
	cfg.OIDC.ClientSecret = v.GetString("oidc.client_secret")
	cfg.OIDC.RedirectURL = v.GetString("oidc.redirect_url")
	cfg.Redis.Addr = v.GetString("redis.addr")
	cfg.Redis.Username = v.GetString("redis.username")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")
	cfg.Redis.Channel = v.GetString("redis.channel")
	cfg.Log = loadLog(v)
	cfg.AdminEmail = v.GetString("admin_email")
	cfg.InsecureCookies = v.GetBool("insecure_cookies")

	lifetime, err := time.ParseDuration(v.GetString("session.lifetime"))
	if err != nil {
		return nil, fmt.Errorf("invalid MARKS_SESSION_LIFETIME: %w", err)
	}
	cfg.SessionLifetime = lifetime

	if cfg.DB.Driver == "" {
		return nil, fmt.Errorf("MARKS_DB_DRIVER is required (sqlite3, mysql, postgres)")
	}
	if cfg.DB.DSN == "" {
		return nil, fmt.Errorf("MARKS_DB_DSN is required")
	}
	if cfg.OIDC.Issuer == "" {
		return nil, fmt.Errorf("MARKS_OIDC_ISSUER is required")
	}
	if cfg.OIDC.ClientID == "" {
		return nil, fmt.Errorf("MARKS_OIDC_CLIENT_ID is required")
	}
	if cfg.OIDC.ClientSecret == "" {
		return nil, fmt.Errorf("MARKS_OIDC_CLIENT_SECRET is required")
	}
	if cfg.OIDC.RedirectURL == "" {
		return nil, fmt.Errorf("MARKS_OIDC_REDIRECT_URL is required")
	}

	return cfg, nil
}

// LoadDB reads only the database settings. Used by the migrate command,
// which has no use for OIDC credentials.
func LoadDB() (driver, dsn string, err error) {
	v := newViper()
	driver = v.GetString("db.driver")
	dsn = v.GetString("db.dsn")
	if driver == "" {
		return "", "", fmt.Errorf("MARKS_DB_DRIVER is required (sqlite3, mysql, postgres)")
	}
	if dsn == "" {
		return "", "", fmt.Errorf("MARKS_DB_DSN is required")
	}
	return driver, dsn, nil
}

// LoadClient reads client config for the commands that talk to a server.
func LoadClient() (*ClientConfig, error) {
	v := newViper()
	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("client.timeout", "10s")
	v.SetDefault("client.reconnect_attempts", 5)
	v.SetDefault("client.reconnect_backoff", "500ms")

	cfg := &ClientConfig{
		ServerURL:         strings.TrimRight(v.GetString("client.server_url"), "/"),
		Token:             v.GetString("client.token"),
		ReconnectAttempts: v.GetInt("client.reconnect_attempts"),
		Log:               loadLog(v),
	}

	timeout, err := time.ParseDuration(v.GetString("client.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid MARKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.Timeout = timeout

	backoff, err := time.ParseDuration(v.GetString("client.reconnect_backoff"))
	if err != nil {
		return nil, fmt.Errorf("invalid MARKS_CLIENT_RECONNECT_BACKOFF: %w", err)
	}
	cfg.ReconnectBackoff = backoff

	if cfg.ReconnectAttempts < 0 {
		return nil, fmt.Errorf("MARKS_CLIENT_RECONNECT_ATTEMPTS must be >= 0, got %d", cfg.ReconnectAttempts)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("MARKS_CLIENT_TOKEN is required (mint one at %s/auth/login)", cfg.ServerURL)
	}

	return cfg, nil
}
