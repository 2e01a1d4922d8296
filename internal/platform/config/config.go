package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envPrefix               = "ISSUES_WEB_"
	defaultEnvFile          = ".env"
	defaultAddr             = ":8080"
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultEnvironment      = "local"
	defaultAuthAPIURL       = "http://localhost:3001"
	defaultAuthTimeout      = 10 * time.Second
	defaultSessionCookie    = "issues_session"
	defaultSessionLifetime  = 12 * time.Hour
	defaultRememberLifetime = 30 * 24 * time.Hour
	defaultSessionIdle      = 2 * time.Hour
	defaultInFlightTTL      = 30 * time.Second
	defaultLocale           = "en"
	defaultLogLevel         = "info"
	minSessionHashKeyLength = 32
	environmentLocal        = "local"
	loginFlavorUnified      = "unified"
	loginFlavorLegacy       = "legacy"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server  ServerConfig
	AuthAPI AuthAPIConfig
	Session SessionConfig
	Redis   RedisConfig
	I18n    I18nConfig
	Log     LogConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Address         string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// AuthAPIConfig points at the remote authentication REST API.
type AuthAPIConfig struct {
	BaseURL string
	// LoginFlavor selects the login endpoint convention: "unified" posts to
	// /auth/login, "legacy" posts to /login.
	LoginFlavor string
	Timeout     time.Duration
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	HashKey          []byte
	BlockKey         []byte
	CookieName       string
	CookieSecure     bool
	Lifetime         time.Duration
	RememberLifetime time.Duration
	IdleTimeout      time.Duration
}

// RedisConfig enables the shared in-flight submission guard when Addr is set.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	InFlightTTL time.Duration
}

// I18nConfig selects the fallback locale.
type I18nConfig struct {
	DefaultLocale string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string
}

// IsLocal reports whether the service runs in the local environment.
func (c Config) IsLocal() bool {
	return c.Server.Environment == environmentLocal
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides. An empty
// path disables .env loading.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.LookupEnv.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

type lookupFunc func(key string) (string, bool)

// Load assembles the configuration by combining defaults, .env overrides,
// environment variables and explicit maps, in increasing precedence.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	var invalid []string
	parse := fieldParser{lookup: lookup, invalid: &invalid}

	cfg := Config{
		Server: ServerConfig{
			Address:         parse.stringValue("HTTP_ADDR", defaultAddr),
			Environment:     strings.ToLower(parse.stringValue("ENVIRONMENT", defaultEnvironment)),
			ReadTimeout:     parse.durationValue("READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    parse.durationValue("WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     parse.durationValue("IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: parse.durationValue("SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		AuthAPI: AuthAPIConfig{
			BaseURL:     strings.TrimRight(parse.stringValue("AUTH_API_URL", defaultAuthAPIURL), "/"),
			LoginFlavor: strings.ToLower(parse.stringValue("AUTH_LOGIN_FLAVOR", loginFlavorUnified)),
			Timeout:     parse.durationValue("AUTH_TIMEOUT", defaultAuthTimeout),
		},
		Session: SessionConfig{
			HashKey:          []byte(parse.stringValue("SESSION_HASH_KEY", "")),
			BlockKey:         []byte(parse.stringValue("SESSION_BLOCK_KEY", "")),
			CookieName:       parse.stringValue("SESSION_COOKIE_NAME", defaultSessionCookie),
			CookieSecure:     parse.boolValue("SESSION_COOKIE_SECURE", false),
			Lifetime:         parse.durationValue("SESSION_LIFETIME", defaultSessionLifetime),
			RememberLifetime: parse.durationValue("SESSION_REMEMBER_LIFETIME", defaultRememberLifetime),
			IdleTimeout:      parse.durationValue("SESSION_IDLE_TIMEOUT", defaultSessionIdle),
		},
		Redis: RedisConfig{
			Addr:        parse.stringValue("REDIS_ADDR", ""),
			Password:    parse.stringValue("REDIS_PASSWORD", ""),
			DB:          parse.intValue("REDIS_DB", 0),
			InFlightTTL: parse.durationValue("INFLIGHT_TTL", defaultInFlightTTL),
		},
		I18n: I18nConfig{
			DefaultLocale: strings.ToLower(parse.stringValue("DEFAULT_LOCALE", defaultLocale)),
		},
		Log: LogConfig{
			Level: stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel),
		},
	}

	if u, err := url.Parse(cfg.AuthAPI.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		invalid = append(invalid, envPrefix+"AUTH_API_URL")
	}
	switch cfg.AuthAPI.LoginFlavor {
	case loginFlavorUnified, loginFlavorLegacy:
	default:
		invalid = append(invalid, envPrefix+"AUTH_LOGIN_FLAVOR")
	}
	if len(cfg.Session.HashKey) == 0 && !cfg.IsLocal() {
		invalid = append(invalid, envPrefix+"SESSION_HASH_KEY")
	} else if len(cfg.Session.HashKey) > 0 && len(cfg.Session.HashKey) < minSessionHashKeyLength {
		invalid = append(invalid, envPrefix+"SESSION_HASH_KEY")
	}
	switch len(cfg.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		invalid = append(invalid, envPrefix+"SESSION_BLOCK_KEY")
	}

	if len(invalid) > 0 {
		return Config{}, &ValidationError{fields: invalid}
	}
	return cfg, nil
}

// LegacyLogin reports whether the login form posts to the legacy /login endpoint.
func (c AuthAPIConfig) LegacyLogin() bool {
	return c.LoginFlavor == loginFlavorLegacy
}

func loadDotEnv(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return values, nil
}

type fieldParser struct {
	lookup  lookupFunc
	invalid *[]string
}

func (p fieldParser) stringValue(key, fallback string) string {
	return stringWithDefault(p.lookup, envPrefix+key, fallback)
}

func (p fieldParser) durationValue(key string, fallback time.Duration) time.Duration {
	raw, ok := p.raw(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		*p.invalid = append(*p.invalid, envPrefix+key)
		return fallback
	}
	return d
}

func (p fieldParser) intValue(key string, fallback int) int {
	raw, ok := p.raw(key)
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*p.invalid = append(*p.invalid, envPrefix+key)
		return fallback
	}
	return v
}

func (p fieldParser) boolValue(key string, fallback bool) bool {
	raw, ok := p.raw(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*p.invalid = append(*p.invalid, envPrefix+key)
		return fallback
	}
	return v
}

func (p fieldParser) raw(key string) (string, bool) {
	value, ok := p.lookup(envPrefix + key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func stringWithDefault(lookup lookupFunc, key, fallback string) string {
	if value, ok := lookup(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
