package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"
)

// Environment keys. The YAML file uses the same names lower-cased without the prefix
// (BULKSMS_RATE_LIMIT becomes rate_limit).
const (
	prefix = "BULKSMS_"

	KeyConfig          = "BULKSMS_CONFIG"
	KeyEnv             = "BULKSMS_ENV"
	KeyAddr            = "BULKSMS_ADDR"
	KeyLogLevel        = "BULKSMS_LOG_LEVEL"
	KeyProvider        = "BULKSMS_PROVIDER"
	KeyProviderBaseURL = "BULKSMS_PROVIDER_BASE_URL"
	KeyHTTPTimeout     = "BULKSMS_HTTP_TIMEOUT"
	KeyDBPath          = "BULKSMS_DB_PATH"
	KeyCSRFKey         = "BULKSMS_CSRF_KEY"
	KeySecure          = "BULKSMS_SECURE"
	KeyTrustedOrigins  = "BULKSMS_TRUSTED_ORIGINS"
	KeySessionTTL      = "BULKSMS_SESSION_TTL"
	KeyRateLimit       = "BULKSMS_RATE_LIMIT"
	KeyTimezone        = "BULKSMS_TIMEZONE"
	KeySlowRequestMs   = "BULKSMS_SLOW_REQUEST_MS"
	KeySlowQueryMs     = "BULKSMS_SLOW_QUERY_MS"
	KeyResendKey       = "BULKSMS_RESEND_KEY"
	KeyReportFrom      = "BULKSMS_REPORT_FROM"
	KeyReportTo        = "BULKSMS_REPORT_TO"
	KeyUsername        = "BULKSMS_USERNAME"
	KeyPassword        = "BULKSMS_PASSWORD"
)

// secretKeys may only come from the environment or .env, never from the YAML file.
var secretKeys = map[string]bool{KeyCSRFKey: true, KeyResendKey: true, KeyPassword: true}

var knownKeys = []string{
	KeyEnv, KeyAddr, KeyLogLevel, KeyProvider, KeyProviderBaseURL, KeyHTTPTimeout, KeyDBPath, KeyCSRFKey,
	KeySecure, KeyTrustedOrigins, KeySessionTTL, KeyRateLimit, KeyTimezone, KeySlowRequestMs, KeySlowQueryMs,
	KeyResendKey, KeyReportFrom, KeyReportTo, KeyUsername, KeyPassword,
}

// Provider modes.
const (
	ProviderHTTP = "http"
	ProviderNoop = "noop"
)

// DefaultProviderBaseURL is the provider's JSON API root.
const DefaultProviderBaseURL = "https://www.poctgoyercini.com/api_json/v1/Sms"

// DotEnvFile is read from the working directory when present.
const DotEnvFile = ".env"

// Config is the resolved runtime configuration.
type Config struct {
	Env             string
	Addr            string
	LogLevel        slog.Level
	Provider        string
	ProviderBaseURL string
	HTTPTimeout     time.Duration // 0 means no timeout
	DBPath          string
	CSRFKey         []byte // nil outside production when unset
	Secure          bool
	TrustedOrigins  []string
	SessionTTL      time.Duration
	RateLimit       int
	Location        *time.Location
	SlowRequest     time.Duration
	SlowQuery       time.Duration
	ResendKey       string
	ReportFrom      string
	ReportTo        []string
	Username        string
	Password        string
}

// IsProduction reports whether BULKSMS_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load resolves configuration from, lowest to highest precedence: defaults, the YAML file named by
// BULKSMS_CONFIG, the .env file in the working directory, and the process environment.
// PRE: none
// POST: Returns a validated Config, or an error listing every invalid value
func Load() (*Config, error) {
	return load(os.LookupEnv, DotEnvFile)
}

func load(lookupEnv func(string) (string, bool), dotenvPath string) (*Config, error) {
	dotenv, err := godotenv.Read(dotenvPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", dotenvPath, err)
		}
		dotenv = map[string]string{}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	values := map[string]string{}
	if path, ok := lookup(KeyConfig); ok && strings.TrimSpace(path) != "" {
		fromFile, err := readYAML(strings.TrimSpace(path))
		if err != nil {
			return nil, err
		}
		values = fromFile
	}
	for _, key := range knownKeys {
		if v, ok := lookup(key); ok {
			values[key] = v
		}
	}
	return parse(values)
}

// readYAML reads a flat YAML mapping of lower-cased keys into environment-style keys.
func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	known := map[string]bool{}
	for _, k := range knownKeys {
		known[k] = true
	}
	out := make(map[string]string, len(raw))
	var bad []string
	for k, v := range raw {
		key := prefix + strings.ToUpper(k)
		switch {
		case !known[key]:
			bad = append(bad, fmt.Sprintf("unknown key %q", k))
		case secretKeys[key]:
			bad = append(bad, fmt.Sprintf("%q must be set in the environment, not the config file", k))
		default:
			switch val := v.(type) {
			case nil:
			case []any:
				parts := make([]string, len(val))
				for i, p := range val {
					parts[i] = fmt.Sprint(p)
				}
				out[key] = strings.Join(parts, ",")
			case map[string]any:
				bad = append(bad, fmt.Sprintf("%q must be a scalar or a list", k))
			default:
				out[key] = fmt.Sprint(val)
			}
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, fmt.Errorf("config file %s: %s", path, strings.Join(bad, "; "))
	}
	return out, nil
}

func parse(values map[string]string) (*Config, error) {
	p := &parser{values: values}
	cfg := &Config{
		Env:             p.str(KeyEnv, "development"),
		Addr:            p.str(KeyAddr, ":8080"),
		LogLevel:        p.level(KeyLogLevel, slog.LevelInfo),
		Provider:        p.oneOf(KeyProvider, ProviderHTTP, ProviderHTTP, ProviderNoop),
		ProviderBaseURL: strings.TrimRight(p.str(KeyProviderBaseURL, DefaultProviderBaseURL), "/"),
		HTTPTimeout:     p.duration(KeyHTTPTimeout, 0),
		DBPath:          p.str(KeyDBPath, ":memory:"),
		TrustedOrigins:  p.list(KeyTrustedOrigins),
		SessionTTL:      p.duration(KeySessionTTL, 24*time.Hour),
		RateLimit:       p.positiveInt(KeyRateLimit, 10),
		Location:        p.location(KeyTimezone),
		SlowRequest:     time.Duration(p.positiveInt(KeySlowRequestMs, 200)) * time.Millisecond,
		SlowQuery:       time.Duration(p.positiveInt(KeySlowQueryMs, 50)) * time.Millisecond,
		ResendKey:       p.str(KeyResendKey, ""),
		ReportFrom:      p.str(KeyReportFrom, "Bulk SMS <noreply@localhost>"),
		ReportTo:        p.list(KeyReportTo),
		Username:        p.str(KeyUsername, ""),
		Password:        values[KeyPassword],
	}
	cfg.Secure = p.boolean(KeySecure, cfg.IsProduction())
	cfg.CSRFKey = p.csrfKey(KeyCSRFKey, cfg.IsProduction())
	if cfg.SessionTTL <= 0 {
		p.fail("%s must be positive", KeySessionTTL)
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type parser struct {
	values map[string]string
	errs   []string
}

func (p *parser) fail(format string, args ...any) {
	p.errs = append(p.errs, fmt.Sprintf(format, args...))
}

func (p *parser) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(p.errs, "; "))
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.values[key]); v != "" {
		return v
	}
	return def
}

func (p *parser) oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(p.str(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	p.fail("%s must be one of %s", key, strings.Join(allowed, ", "))
	return def
}

func (p *parser) level(key string, def slog.Level) slog.Level {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.fail("%s must be debug, info, warn or error", key)
		return def
	}
	return l
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		p.fail("%s must be a non-negative duration such as 30s", key)
		return def
	}
	return d
}

func (p *parser) positiveInt(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		p.fail("%s must be a positive integer", key)
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail("%s must be true or false", key)
		return def
	}
	return b
}

func (p *parser) list(key string) []string {
	var out []string
	for _, part := range strings.Split(p.values[key], ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *parser) location(key string) *time.Location {
	v := p.str(key, "")
	if v == "" || strings.EqualFold(v, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		p.fail("%s: unknown time zone %q", key, v)
		return time.Local
	}
	return loc
}

func (p *parser) csrfKey(key string, required bool) []byte {
	v := p.str(key, "")
	if v == "" {
		if required {
			p.fail("%s is required in production", key)
		}
		return nil
	}
	b, err := hex.DecodeString(v)
	if err != nil || len(b) != 32 {
		p.fail("%s must be 64 hex characters", key)
		return nil
	}
	return b
}
