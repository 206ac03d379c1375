// Package config loads and validates the service configuration from the environment using Viper.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Identity provider names accepted in IDENTITY_PROVIDER
const (
	IdentityLocal   = "local"
	IdentityZitadel = "zitadel"
)

// Config holds the application configuration
type Config struct {
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment; dev OTP mode is refused when it is "production".
	Env string `mapstructure:"APP_ENV"`
	// AppName appears in the SMS template.
	AppName string `mapstructure:"APP_NAME"`
	// EmailDomain builds the synthetic email identity providers require (<digits>@EmailDomain).
	EmailDomain string `mapstructure:"EMAIL_DOMAIN"`

	// DevMode logs SMS instead of sending them and returns the code to the client.
	DevMode          bool          `mapstructure:"OTP_DEV_MODE"`
	OTPTTL           time.Duration `mapstructure:"OTP_TTL"`
	OTPMaxAttempts   int           `mapstructure:"OTP_MAX_ATTEMPTS"`
	OTPRetention     time.Duration `mapstructure:"OTP_RETENTION"`
	OTPSweepInterval time.Duration `mapstructure:"OTP_SWEEP_INTERVAL"`
	OTPIssueLimit    int           `mapstructure:"OTP_ISSUE_LIMIT"`
	OTPIssueWindow   time.Duration `mapstructure:"OTP_ISSUE_WINDOW"`

	// Redis backs the per-phone issue limit when set; otherwise it is kept in memory.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	TwilioAccountSID  string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `mapstructure:"TWILIO_PHONE_NUMBER"`

	IdentityProvider string        `mapstructure:"IDENTITY_PROVIDER"`
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL   time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`

	ZitadelDomain  string `mapstructure:"ZITADEL_DOMAIN"`
	ZitadelPAT     string `mapstructure:"ZITADEL_PAT"`
	ZitadelKeyPath string `mapstructure:"ZITADEL_KEY_PATH"`
	ZitadelOrgID   string `mapstructure:"ZITADEL_ORG_ID"`
	// ZitadelInsecurePort switches to a plaintext connection on that port (local instances).
	ZitadelInsecurePort string `mapstructure:"ZITADEL_INSECURE_PORT"`
}

var keys = []string{
	"PORT", "DATABASE_URL", "APP_ENV", "APP_NAME", "EMAIL_DOMAIN",
	"OTP_DEV_MODE", "OTP_TTL", "OTP_MAX_ATTEMPTS", "OTP_RETENTION", "OTP_SWEEP_INTERVAL",
	"OTP_ISSUE_LIMIT", "OTP_ISSUE_WINDOW",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_PHONE_NUMBER",
	"IDENTITY_PROVIDER", "JWT_SECRET", "ACCESS_TOKEN_TTL",
	"ZITADEL_DOMAIN", "ZITADEL_PAT", "ZITADEL_KEY_PATH", "ZITADEL_ORG_ID", "ZITADEL_INSECURE_PORT",
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about; binding makes env-only keys visible.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_NAME", "AlboCarRide")
	v.SetDefault("EMAIL_DOMAIN", "albocarride.com")
	v.SetDefault("OTP_DEV_MODE", false)
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("OTP_RETENTION", "24h")
	v.SetDefault("OTP_SWEEP_INTERVAL", "10m")
	v.SetDefault("OTP_ISSUE_LIMIT", 3)
	v.SetDefault("OTP_ISSUE_WINDOW", "10m")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("IDENTITY_PROVIDER", IdentityLocal)
	v.SetDefault("ACCESS_TOKEN_TTL", "1h")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if u, err := url.Parse(cfg.DatabaseURL); err == nil {
		log.Printf("DB connect: host=%s db=%s user=%s", u.Hostname(), strings.TrimPrefix(u.Path, "/"), u.User.Username())
	}
	return &cfg, nil
}

// Validate checks required settings and their combinations
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL environment variable is required")
	}
	if c.Port == "" {
		return errors.New("config: PORT must be set")
	}
	if c.DevMode && c.Env == "production" {
		return errors.New("config: OTP_DEV_MODE must not be true when APP_ENV=production")
	}
	if c.OTPTTL <= 0 {
		return errors.New("config: OTP_TTL must be positive")
	}
	if c.OTPMaxAttempts <= 0 {
		return errors.New("config: OTP_MAX_ATTEMPTS must be positive")
	}
	if c.OTPIssueLimit <= 0 || c.OTPIssueWindow <= 0 {
		return errors.New("config: OTP_ISSUE_LIMIT and OTP_ISSUE_WINDOW must be positive")
	}
	if c.OTPRetention <= 0 {
		return errors.New("config: OTP_RETENTION must be positive")
	}
	if c.OTPSweepInterval <= 0 {
		return errors.New("config: OTP_SWEEP_INTERVAL must be positive")
	}
	if !c.DevMode && (c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioPhoneNumber == "") {
		return errors.New("config: TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER are required unless OTP_DEV_MODE=true")
	}

	switch c.IdentityProvider {
	case IdentityLocal:
		if c.JWTSecret == "" {
			return errors.New("config: JWT_SECRET environment variable is required for the local identity provider")
		}
		if c.AccessTokenTTL <= 0 {
			return errors.New("config: ACCESS_TOKEN_TTL must be positive")
		}
	case IdentityZitadel:
		if c.ZitadelDomain == "" || c.ZitadelOrgID == "" {
			return errors.New("config: ZITADEL_DOMAIN and ZITADEL_ORG_ID are required for the zitadel identity provider")
		}
		if c.ZitadelPAT == "" && c.ZitadelKeyPath == "" {
			return errors.New("config: either ZITADEL_PAT or ZITADEL_KEY_PATH must be set")
		}
	default:
		return fmt.Errorf("config: unknown IDENTITY_PROVIDER %q", c.IdentityProvider)
	}
	return nil
}
