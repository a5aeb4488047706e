// Package config loads the server configuration from markdb.yaml.
//
// Values come from, in order of precedence:
//   - environment variables (ADMIN_PASSWORD, REDIS_URL, MARKDB_STORAGE_DSN,
//     MONGO_ROOT_URL, MONGODB_USERNAME, MONGODB_PASSWORD, APP_NAME)
//   - the YAML file
//   - built-in defaults
//
// Command line flags are handled by the binary and take precedence over all
// of these.
package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name inside the data directory.
const FileName = "markdb.yaml"

// Storage drivers.
const (
	DriverJSONL  = "jsonl"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverMongo  = "mongo"
)

// Cache drivers.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config is the complete server configuration.
type Config struct {
	Storage Storage `yaml:"storage"`
	MDV     MDV     `yaml:"mdv"`
	Cache   Cache   `yaml:"cache"`
	Auth    Auth    `yaml:"auth"`
	// AdminPassword guards POST /api/admin/wipe.
	AdminPassword string    `yaml:"admin_password"`
	History       History   `yaml:"history"`
	RateLimit     RateLimit `yaml:"rate_limit"`
}

// Storage selects the database backend.
type Storage struct {
	// Driver is one of jsonl, sqlite, mysql or mongo.
	Driver string `yaml:"driver"`
	// DSN is the sqlite file, the mysql DSN or the mongo URI. Unused by jsonl.
	DSN string `yaml:"dsn"`
	// Database is the mongo database name.
	Database string `yaml:"database"`
}

// MDV configures the validator subprocess.
type MDV struct {
	Path          string        `yaml:"path"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int64         `yaml:"max_concurrent"`
}

// Cache configures the validation result cache.
type Cache struct {
	Driver   string        `yaml:"driver"`
	RedisURL string        `yaml:"redis_url"`
	Size     int           `yaml:"size"`
	TTL      time.Duration `yaml:"ttl"`
}

// Auth configures session tokens.
type Auth struct {
	// JWTSecret is generated and saved on first load when empty.
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// History enables the git history of documents.
type History struct {
	Enabled bool `yaml:"enabled"`
}

// RateLimit defines per client IP limits in requests per minute.
type RateLimit struct {
	ValidatePerMinute int `yaml:"validate_per_minute"`
	LoginPerMinute    int `yaml:"login_per_minute"`

	// TrustedProxies lists the reverse proxies, as IPs or CIDRs, whose
	// X-Forwarded-For header identifies the client. Empty means the peer
	// address is the client.
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: Storage{Driver: DriverJSONL, Database: "markdb"},
		MDV:     MDV{Path: "mdv", Timeout: 10 * time.Second, MaxConcurrent: 4},
		Cache:   Cache{Driver: CacheMemory, Size: 1024, TTL: time.Hour},
		Auth:    Auth{TokenTTL: 24 * time.Hour},
		// Matches the development default of the deployment scripts.
		AdminPassword: "admin123",
		RateLimit:     RateLimit{ValidatePerMinute: 120, LoginPerMinute: 10},
	}
}

// Load reads path, fills in defaults and applies the environment.
//
// A missing file is not an error. When the JWT secret is empty a new one is
// generated and the file is written back so tokens survive restarts. getenv
// is usually os.Getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from a flag
	missing := errors.Is(err, os.ErrNotExist)
	if err != nil && !missing {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) != 0 {
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if cfg.Auth.JWTSecret == "" {
		if cfg.Auth.JWTSecret, err = NewSecret(); err != nil {
			return nil, err
		}
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	d := yaml.NewDecoder(bytes.NewReader(data))
	d.KnownFields(true)
	if err := d.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("ADMIN_PASSWORD"); v != "" {
		c.AdminPassword = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
	if v := getenv("APP_NAME"); v != "" {
		c.Storage.Database = v
	}
	if c.Storage.Driver == DriverMongo {
		if v := getenv("MONGO_ROOT_URL"); v != "" {
			c.Storage.DSN = v
		}
		if u := getenv("MONGODB_USERNAME"); u != "" {
			c.Storage.DSN = withCredentials(c.Storage.DSN, u, getenv("MONGODB_PASSWORD"))
		}
	}
	if v := getenv("MARKDB_STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
}

// withCredentials injects user info into a mongodb:// URI. Invalid URIs are
// returned unchanged and rejected later by the driver.
func withCredentials(uri, user, password string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return uri
	}
	u.User = url.UserPassword(user, password)
	return u.String()
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Storage,
		validation.Field(&c.Storage.Driver, validation.Required,
			validation.In(DriverJSONL, DriverSQLite, DriverMySQL, DriverMongo)),
		validation.Field(&c.Storage.DSN,
			validation.When(c.Storage.Driver != DriverJSONL, validation.Required)),
		validation.Field(&c.Storage.Database,
			validation.When(c.Storage.Driver == DriverMongo, validation.Required)),
	); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := validation.ValidateStruct(&c.MDV,
		validation.Field(&c.MDV.Path, validation.Required),
		validation.Field(&c.MDV.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MDV.MaxConcurrent, validation.Required, validation.Min(int64(1))),
	); err != nil {
		return fmt.Errorf("mdv: %w", err)
	}
	if err := validation.ValidateStruct(&c.Cache,
		validation.Field(&c.Cache.Driver, validation.Required,
			validation.In(CacheMemory, CacheRedis, CacheNone)),
		validation.Field(&c.Cache.RedisURL,
			validation.When(c.Cache.Driver == CacheRedis, validation.Required)),
		validation.Field(&c.Cache.Size,
			validation.When(c.Cache.Driver == CacheMemory, validation.Required, validation.Min(1))),
		validation.Field(&c.Cache.TTL, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := validation.ValidateStruct(&c.Auth,
		validation.Field(&c.Auth.JWTSecret, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.Auth.TokenTTL, validation.Required, validation.Min(time.Minute)),
	); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := validation.ValidateStruct(&c.RateLimit,
		validation.Field(&c.RateLimit.ValidatePerMinute, validation.Min(0)),
		validation.Field(&c.RateLimit.LoginPerMinute, validation.Min(0)),
		validation.Field(&c.RateLimit.TrustedProxies, validation.Each(validation.By(isAddrOrPrefix))),
	); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.AdminPassword, validation.Required),
	)
}

func isAddrOrPrefix(v any) error {
	s, _ := v.(string)
	if _, err := netip.ParsePrefix(s); err == nil {
		return nil
	}
	if _, err := netip.ParseAddr(s); err != nil {
		return errors.New("must be an IP address or a CIDR prefix")
	}
	return nil
}

// Save writes the configuration to path, creating the directory if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: data directory
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// NewSecret returns a random 32 bytes secret, hex encoded.
func NewSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
