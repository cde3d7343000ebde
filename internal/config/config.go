package config

import (
	"strings"

	"github.com/MarcoPoloResearchLab/redline/internal/auth"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

const (
	envPrefix               = "REDLINE"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultDatabasePath     = "redline.db"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultCookieName       = "redline_session"
	defaultDocumentMaxBytes = 10 * 1024 * 1024
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress      string
	AllowedOrigins   []string
	DatabasePath     string
	LogLevel         string
	LogFormat        string
	SigningSecret    string
	CookieName       string
	SessionIssuer    string
	DocumentMaxBytes int64
	GeneratorEnabled bool
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
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.issuer", auth.DefaultSessionIssuer)
	configViper.SetDefault("documents.max_bytes", defaultDocumentMaxBytes)
	configViper.SetDefault("generator.enabled", true)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		AllowedOrigins:   configViper.GetStringSlice("http.allowed_origins"),
		DatabasePath:     configViper.GetString("database.path"),
		LogLevel:         configViper.GetString("log.level"),
		LogFormat:        configViper.GetString("log.format"),
		SigningSecret:    configViper.GetString("auth.signing_secret"),
		CookieName:       configViper.GetString("auth.cookie_name"),
		SessionIssuer:    configViper.GetString("auth.issuer"),
		DocumentMaxBytes: configViper.GetInt64("documents.max_bytes"),
		GeneratorEnabled: configViper.GetBool("generator.enabled"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	return validation.Errors{
		"auth.signing_secret": validation.Validate(strings.TrimSpace(c.SigningSecret), validation.Required),
		"auth.cookie_name":    validation.Validate(strings.TrimSpace(c.CookieName), validation.Required),
		"database.path":       validation.Validate(strings.TrimSpace(c.DatabasePath), validation.Required),
		"documents.max_bytes": validation.Validate(c.DocumentMaxBytes, validation.Min(int64(0))),
		"log.format":          validation.Validate(strings.ToLower(strings.TrimSpace(c.LogFormat)), validation.In("json", "console")),
	}.Filter()
}
