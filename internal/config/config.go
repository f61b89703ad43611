package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "SHELF"

	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"

	DeniedPolicyPermanent = "permanent"
	DeniedPolicyRerequest = "rerequest"

	CategoryDeleteNullify  = "nullify"
	CategoryDeleteRestrict = "restrict"

	defaultHTTPAddress          = "0.0.0.0:8080"
	defaultDatabasePath         = "shelf.db"
	defaultBusyTimeoutMillis    = 5000
	defaultLogLevel             = "info"
	defaultEnvironment          = EnvironmentProduction
	defaultCookieName           = "cv_session"
	defaultSessionTTL           = 7 * 24 * time.Hour
	defaultAllowedDomain        = "example.com"
	defaultLoginPerMinute       = 20
	defaultPreviewTimeout       = 8 * time.Second
	defaultBackfillConcurrency  = 2
	defaultBackfillPacing       = 200 * time.Millisecond
	developmentSigningSecret    = "shelf-development-secret-change-me"
	minimumProductionSecretSize = 16
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress          string
	CORSOrigins          []string
	StaticDir            string
	Environment          string
	DatabasePath         string
	BusyTimeoutMillis    int
	LogLevel             string
	SigningSecret        string
	UsingFallbackSecret  bool
	CookieName           string
	SessionTTL           time.Duration
	AllowedDomain        string
	DeniedPolicy         string
	RecheckAdminRole     bool
	CategoryDeletePolicy string
	LoginPerMinute       int64
	RateLimitRedisAddr   string
	PreviewTimeout       time.Duration
	BackfillConcurrency  int
	BackfillPacing       time.Duration
	MetricsAddress       string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.cors_origins", []string{})
	configViper.SetDefault("http.static_dir", "")
	configViper.SetDefault("environment", defaultEnvironment)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.busy_timeout_ms", defaultBusyTimeoutMillis)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.session_ttl", defaultSessionTTL)
	configViper.SetDefault("auth.allowed_domain", defaultAllowedDomain)
	configViper.SetDefault("auth.denied_policy", DeniedPolicyPermanent)
	configViper.SetDefault("auth.recheck_admin_role", true)
	configViper.SetDefault("catalog.category_delete_policy", CategoryDeleteNullify)
	configViper.SetDefault("ratelimit.login_per_minute", defaultLoginPerMinute)
	configViper.SetDefault("ratelimit.redis_addr", "")
	configViper.SetDefault("linkpreview.timeout", defaultPreviewTimeout)
	configViper.SetDefault("linkpreview.backfill_concurrency", defaultBackfillConcurrency)
	configViper.SetDefault("linkpreview.backfill_pacing", defaultBackfillPacing)
	configViper.SetDefault("metrics.address", "")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		CORSOrigins:          configViper.GetStringSlice("http.cors_origins"),
		StaticDir:            strings.TrimSpace(configViper.GetString("http.static_dir")),
		Environment:          strings.ToLower(strings.TrimSpace(configViper.GetString("environment"))),
		DatabasePath:         configViper.GetString("database.path"),
		BusyTimeoutMillis:    configViper.GetInt("database.busy_timeout_ms"),
		LogLevel:             configViper.GetString("log.level"),
		SigningSecret:        configViper.GetString("auth.signing_secret"),
		CookieName:           configViper.GetString("auth.cookie_name"),
		SessionTTL:           configViper.GetDuration("auth.session_ttl"),
		AllowedDomain:        strings.ToLower(strings.TrimPrefix(strings.TrimSpace(configViper.GetString("auth.allowed_domain")), "@")),
		DeniedPolicy:         strings.ToLower(strings.TrimSpace(configViper.GetString("auth.denied_policy"))),
		RecheckAdminRole:     configViper.GetBool("auth.recheck_admin_role"),
		CategoryDeletePolicy: strings.ToLower(strings.TrimSpace(configViper.GetString("catalog.category_delete_policy"))),
		LoginPerMinute:       configViper.GetInt64("ratelimit.login_per_minute"),
		RateLimitRedisAddr:   strings.TrimSpace(configViper.GetString("ratelimit.redis_addr")),
		PreviewTimeout:       configViper.GetDuration("linkpreview.timeout"),
		BackfillConcurrency:  configViper.GetInt("linkpreview.backfill_concurrency"),
		BackfillPacing:       configViper.GetDuration("linkpreview.backfill_pacing"),
		MetricsAddress:       strings.TrimSpace(configViper.GetString("metrics.address")),
	}

	if strings.TrimSpace(cfg.SigningSecret) == "" && cfg.IsDevelopment() {
		cfg.SigningSecret = developmentSigningSecret
		cfg.UsingFallbackSecret = true
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in local development mode.
func (c AppConfig) IsDevelopment() bool {
	return c.Environment == EnvironmentDevelopment
}

func (c AppConfig) validate() error {
	if c.Environment != EnvironmentDevelopment && c.Environment != EnvironmentProduction {
		return fmt.Errorf("environment must be %q or %q", EnvironmentDevelopment, EnvironmentProduction)
	}
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if !c.IsDevelopment() && len(c.SigningSecret) < minimumProductionSecretSize {
		return fmt.Errorf("auth.signing_secret must be at least %d bytes", minimumProductionSecretSize)
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.BusyTimeoutMillis < 0 {
		return fmt.Errorf("database.busy_timeout_ms must not be negative")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.AllowedDomain == "" {
		return fmt.Errorf("auth.allowed_domain is required")
	}
	if c.DeniedPolicy != DeniedPolicyPermanent && c.DeniedPolicy != DeniedPolicyRerequest {
		return fmt.Errorf("auth.denied_policy must be %q or %q", DeniedPolicyPermanent, DeniedPolicyRerequest)
	}
	if c.CategoryDeletePolicy != CategoryDeleteNullify && c.CategoryDeletePolicy != CategoryDeleteRestrict {
		return fmt.Errorf("catalog.category_delete_policy must be %q or %q", CategoryDeleteNullify, CategoryDeleteRestrict)
	}
	if c.LoginPerMinute < 0 {
		return fmt.Errorf("ratelimit.login_per_minute must not be negative")
	}
	if c.PreviewTimeout <= 0 {
		return fmt.Errorf("linkpreview.timeout must be positive")
	}
	if c.BackfillConcurrency <= 0 {
		return fmt.Errorf("linkpreview.backfill_concurrency must be positive")
	}
	return nil
}
