package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	AttemptStoreMemory = "memory"
	AttemptStoreRedis  = "redis"
)

type Config struct {
	Port        string   `env:"PORT,         default=8443"`
	Env         string   `env:"ENV,          default=development"`
	LogLevel    string   `env:"LOG_LEVEL,    default=info"`
	CORSOrigins []string `env:"CORS_ORIGINS"`

	// TrustedProxies lists the CIDRs allowed to set X-Forwarded-For. Empty
	// means the client IP is always the socket peer.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// GeoIPPath points at a MaxMind City database; empty disables geolocation.
	GeoIPPath    string `env:"GEOIP_DB_PATH"`
	AuditWorkers int    `env:"AUDIT_WORKERS, default=4"`

	Auth     AuthConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Attempts AttemptsConfig
	Telegram TelegramConfig
	Captcha  CaptchaConfig
}

type AuthConfig struct {
	JWTSecret   string        `env:"JWT_SECRET_KEY, required"`
	TokenTTL    time.Duration `env:"TOKEN_TTL,      default=1h"`
	MasterEmail string        `env:"MASTER_EMAIL"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URL, required"`
	Database string `env:"DB_NAME,   required"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// AttemptsConfig holds the brute-force and malicious-input thresholds.
type AttemptsConfig struct {
	Store            string        `env:"ATTEMPT_STORE,          default=memory"`
	Window           time.Duration `env:"ATTEMPT_WINDOW,         default=15m"`
	SweepInterval    time.Duration `env:"ATTEMPT_SWEEP_INTERVAL, default=1m"`
	LoginMaxPerIP    int           `env:"LOGIN_MAX_PER_IP,       default=10"`
	LoginMaxPerEmail int           `env:"LOGIN_MAX_PER_EMAIL,    default=5"`
	CodeMaxPerEmail  int           `env:"TWOFA_MAX_PER_EMAIL,    default=5"`
	InputMaxPerIP    int           `env:"INPUT_MAX_PER_IP,       default=3"`
	InputMaxPerEmail int           `env:"INPUT_MAX_PER_EMAIL,    default=3"`
}

type TelegramConfig struct {
	Token string `env:"TELEGRAM_BOT_TOKEN"`
}

type CaptchaConfig struct {
	Secret   string `env:"RECAPTCHA_SECRET_KEY"`
	Required bool   `env:"CAPTCHA_REQUIRED, default=false"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.Attempts.Store {
	case AttemptStoreMemory, AttemptStoreRedis:
	default:
		errs = append(errs, fmt.Errorf("ATTEMPT_STORE must be %q or %q, got %q", AttemptStoreMemory, AttemptStoreRedis, c.Attempts.Store))
	}
	if c.Attempts.Window <= 0 {
		errs = append(errs, errors.New("ATTEMPT_WINDOW must be positive"))
	}
	if c.Attempts.LoginMaxPerIP <= 0 || c.Attempts.LoginMaxPerEmail <= 0 || c.Attempts.CodeMaxPerEmail <= 0 ||
		c.Attempts.InputMaxPerIP <= 0 || c.Attempts.InputMaxPerEmail <= 0 {
		errs = append(errs, errors.New("attempt thresholds must be positive"))
	}
	if c.Captcha.Required && c.Captcha.Secret == "" {
		errs = append(errs, errors.New("CAPTCHA_REQUIRED needs RECAPTCHA_SECRET_KEY"))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
		}
	}
	if c.AuditWorkers <= 0 {
		errs = append(errs, errors.New("AUDIT_WORKERS must be positive"))
	}
	return errors.Join(errs...)
}

// TrustedProxyNets returns the parsed TRUSTED_PROXIES ranges.
func (c *Config) TrustedProxyNets() []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, cidr := range c.TrustedProxies {
		if _, n, err := net.ParseCIDR(cidr); err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}

// IsDevelopment reports whether human-friendly logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
