package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/delivery"
	"gopkg.in/yaml.v3"
)

// Config is the goverify binary's file configuration. Engine settings are
// translated into a goVerify.Config by Engine.
type Config struct {
	App struct {
		// dev | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		TrustForwarded  bool          `yaml:"trust_forwarded"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	// Secret keys every token MAC and the code pepper. Usually set through
	// GOVERIFY_SECRET rather than the file.
	Secret string `yaml:"secret"`

	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Password string `yaml:"password"`
		Prefix   string `yaml:"prefix"`
		// Memory runs an in-process miniredis. Development only.
		Memory bool `yaml:"memory"`
	} `yaml:"redis"`

	Postgres struct {
		DSN string `yaml:"dsn"`
		// Records stores verification records in Postgres instead of Redis.
		Records  bool  `yaml:"records"`
		MaxConns int32 `yaml:"max_conns"`
	} `yaml:"postgres"`

	Accounts struct {
		// File is a YAML account list served from memory when no Postgres DSN
		// is configured.
		File string `yaml:"file"`
	} `yaml:"accounts"`

	Codes struct {
		Digits      int           `yaml:"digits"`
		TTL         time.Duration `yaml:"ttl"`
		MaxAttempts int           `yaml:"max_attempts"`
		HashCost    int           `yaml:"hash_cost"`
	} `yaml:"codes"`

	Rate struct {
		MinInterval   time.Duration `yaml:"min_interval"`
		IPThrottle    bool          `yaml:"ip_throttle"`
		IPMaxRequests int           `yaml:"ip_max_requests"`
		IPWindow      time.Duration `yaml:"ip_window"`
	} `yaml:"rate"`

	ResetLink struct {
		Enabled bool          `yaml:"enabled"`
		TTL     time.Duration `yaml:"ttl"`
		BaseURL string        `yaml:"base_url"`
	} `yaml:"reset_link"`

	ResetSession struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"reset_session"`

	SignIn struct {
		Method    string        `yaml:"method"`
		Key       string        `yaml:"key"` // base64
		KeyFile   string        `yaml:"key_file"`
		Issuer    string        `yaml:"issuer"`
		Audience  string        `yaml:"audience"`
		AccessTTL time.Duration `yaml:"access_ttl"`
	} `yaml:"signin"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"` // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	} `yaml:"smtp"`

	Audit struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"audit"`

	EnumerationDelay bool `yaml:"enumeration_delay"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	ec := goVerify.DefaultConfig()

	var c Config
	c.App.Env = "dev"
	c.App.LogLevel = "info"
	c.Server.Addr = ":8080"
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 10 * time.Second
	c.Server.ShutdownTimeout = 15 * time.Second
	c.Redis.Addr = "localhost:6379"
	c.Redis.Prefix = ec.Store.RedisPrefix
	c.Postgres.MaxConns = 10
	c.Codes.Digits = ec.Codes.Digits
	c.Codes.TTL = ec.Codes.TTL
	c.Codes.MaxAttempts = ec.Codes.MaxAttempts
	c.Codes.HashCost = ec.Codes.HashCost
	c.Rate.MinInterval = ec.RateGate.MinInterval
	c.Rate.IPMaxRequests = ec.RateGate.IPMaxRequests
	c.Rate.IPWindow = ec.RateGate.IPWindow
	c.ResetLink.Enabled = ec.ResetLink.Enabled
	c.ResetLink.TTL = ec.ResetLink.TTL
	c.ResetSession.TTL = ec.ResetSession.TTL
	c.SignIn.Method = ec.SignIn.SigningMethod
	c.SignIn.AccessTTL = ec.SignIn.AccessTTL
	c.SMTP.Port = 587
	c.SMTP.TLS = "auto"
	c.EnumerationDelay = ec.EnumerationDelay
	return &c
}

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		c.resolvePaths(filepath.Dir(path))
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks settings that the engine config does not cover.
func (c *Config) Validate() error {
	switch c.App.Env {
	case "dev", "prod":
	default:
		return fmt.Errorf("app env must be dev or prod, got %q", c.App.Env)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server addr must not be empty")
	}
	if c.Postgres.Records && c.Postgres.DSN == "" {
		return errors.New("postgres records requires postgres dsn")
	}
	if c.Redis.Memory && c.App.Env == "prod" {
		return errors.New("in-memory redis is not allowed in prod")
	}
	if c.App.Env == "prod" && c.Secret == "" {
		return errors.New("secret is required in prod")
	}
	if c.SignIn.Key != "" && c.SignIn.KeyFile != "" {
		return errors.New("signin key and key_file are mutually exclusive")
	}
	switch strings.ToLower(c.SMTP.TLS) {
	case "", "auto", "starttls", "ssl", "none":
	default:
		return fmt.Errorf("unsupported smtp tls mode %q", c.SMTP.TLS)
	}
	return nil
}

// Engine translates c into an engine configuration. Signing key material
// is decoded or read here.
func (c *Config) Engine() (goVerify.Config, error) {
	ec := goVerify.DefaultConfig()
	ec.Secret = c.Secret

	ec.Codes.Digits = c.Codes.Digits
	ec.Codes.TTL = c.Codes.TTL
	ec.Codes.MaxAttempts = c.Codes.MaxAttempts
	ec.Codes.HashCost = c.Codes.HashCost

	ec.RateGate.MinInterval = c.Rate.MinInterval
	ec.RateGate.EnableIPThrottle = c.Rate.IPThrottle
	ec.RateGate.IPMaxRequests = c.Rate.IPMaxRequests
	ec.RateGate.IPWindow = c.Rate.IPWindow

	ec.ResetLink.Enabled = c.ResetLink.Enabled
	ec.ResetLink.TTL = c.ResetLink.TTL
	ec.ResetSession.TTL = c.ResetSession.TTL

	key, err := c.signingKey()
	if err != nil {
		return goVerify.Config{}, err
	}
	ec.SignIn.PrivateKey = key
	ec.SignIn.SigningMethod = strings.ToLower(c.SignIn.Method)
	ec.SignIn.Issuer = c.SignIn.Issuer
	ec.SignIn.Audience = c.SignIn.Audience
	ec.SignIn.AccessTTL = c.SignIn.AccessTTL

	ec.Store.RedisPrefix = c.Redis.Prefix
	ec.Audit.Enabled = c.Audit.Enabled
	ec.EnumerationDelay = c.EnumerationDelay

	if err := ec.Validate(); err != nil {
		return goVerify.Config{}, err
	}
	return ec, nil
}

// SMTPEnabled reports whether codes should go out over SMTP rather than
// to the log.
func (c *Config) SMTPEnabled() bool {
	return strings.TrimSpace(c.SMTP.Host) != ""
}

func (c *Config) SMTPConfig() delivery.SMTPConfig {
	return delivery.SMTPConfig{
		Host:               c.SMTP.Host,
		Port:               c.SMTP.Port,
		From:               c.SMTP.From,
		Username:           c.SMTP.Username,
		Password:           c.SMTP.Password,
		TLSMode:            strings.ToLower(c.SMTP.TLS),
		InsecureSkipVerify: c.SMTP.InsecureSkipVerify,
		ResetLinkBase:      c.ResetLink.BaseURL,
	}
}

func (c *Config) signingKey() ([]byte, error) {
	switch {
	case c.SignIn.KeyFile != "":
		b, err := os.ReadFile(c.SignIn.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read signin key: %w", err)
		}
		return b, nil
	case c.SignIn.Key != "":
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.SignIn.Key))
		if err != nil {
			return nil, fmt.Errorf("decode signin key: %w", err)
		}
		return b, nil
	}
	return nil, nil
}

// relative file references resolve against the config file's directory
func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Accounts.File, &c.SignIn.KeyFile} {
		if v := strings.TrimSpace(*p); v != "" && !filepath.IsAbs(v) {
			*p = filepath.Clean(filepath.Join(base, v))
		}
	}
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides lets the environment win over the file.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("GOVERIFY_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("GOVERIFY_LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := getEnvStr("GOVERIFY_SECRET"); ok {
		c.Secret = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvBool("SERVER_TRUST_FORWARDED"); ok {
		c.Server.TrustForwarded = v
	}

	// REDIS
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}

	// POSTGRES
	if v, ok := getEnvStr("POSTGRES_DSN"); ok {
		c.Postgres.DSN = v
	}
	if v, ok := getEnvBool("POSTGRES_RECORDS"); ok {
		c.Postgres.Records = v
	}
	if v, ok := getEnvStr("GOVERIFY_ACCOUNTS_FILE"); ok {
		c.Accounts.File = v
	}

	// CODES / RATE
	if v, ok := getEnvDur("CODES_TTL"); ok {
		c.Codes.TTL = v
	}
	if v, ok := getEnvInt("CODES_MAX_ATTEMPTS"); ok {
		c.Codes.MaxAttempts = v
	}
	if v, ok := getEnvDur("RATE_MIN_INTERVAL"); ok {
		c.Rate.MinInterval = v
	}

	// RESET LINK
	if v, ok := getEnvStr("RESET_LINK_BASE_URL"); ok {
		c.ResetLink.BaseURL = v
	}

	// SIGN-IN
	if v, ok := getEnvStr("SIGNIN_METHOD"); ok {
		c.SignIn.Method = v
	}
	if v, ok := getEnvStr("SIGNIN_KEY"); ok {
		c.SignIn.Key = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = v
	}
}
