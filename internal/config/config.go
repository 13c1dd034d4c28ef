// Package config loads runtime configuration from a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverS3    = "s3"
	DriverMinio = "minio"
	DriverFile  = "file"
)

// Config holds all runtime configuration. It is read once at start and
// passed explicitly to the constructors that need it.
type Config struct {
	Port     string
	LogLevel string

	Store  StoreConfig
	Upload UploadConfig
	Proxy  ProxyConfig
	Model  ModelConfig
}

// StoreConfig describes the S3-compatible object store.
type StoreConfig struct {
	Driver         string
	Endpoint       string
	Port           int
	UseSSL         bool
	AccessKey      string
	SecretKey      string
	SecretKeyParam string // SSM parameter path, resolved at startup when set
	Bucket         string
	Region         string
	Dir            string // root directory for the file driver
}

// Address is the host:port pair minio-go expects.
func (c StoreConfig) Address() string {
	if c.Port == 0 {
		return c.Endpoint
	}
	return net.JoinHostPort(c.Endpoint, strconv.Itoa(c.Port))
}

// URL is the base endpoint the AWS SDK expects.
func (c StoreConfig) URL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + c.Address()
}

// MaxURLExpiry is the longest lifetime a SigV4 presigned URL may have.
const MaxURLExpiry = 7 * 24 * time.Hour

type UploadConfig struct {
	URLExpiry   time.Duration
	ContentType string // static override; empty means detect from content
	MaxBytes    int64
	Concurrency int
	// PathRoot confines path uploads requested by Lambda events.
	PathRoot string
}

type ProxyConfig struct {
	HTTPSProxy string
	HTTPProxy  string
	NoProxy    string
	Timeout    time.Duration
}

type ModelConfig struct {
	APIKey       string
	APIKeyParam  string
	BaseURL      string
	DefaultModel string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(os.Getenv)
}

// LoadFrom builds a Config from the given lookup function and validates it.
func LoadFrom(getenv func(string) string) (*Config, error) {
	e := env{getenv: getenv}

	cfg := &Config{
		Port:     e.str("3000", "PORT"),
		LogLevel: e.str("info", "LOG_LEVEL"),
		Store: StoreConfig{
			Driver:         strings.ToLower(e.str(DriverMinio, "STORE_DRIVER")),
			Endpoint:       e.str("localhost", "MINIO_ENDPOINT"),
			Port:           e.int("MINIO_PORT", 9000),
			UseSSL:         e.bool("MINIO_USE_SSL", false),
			AccessKey:      e.str("", "MINIO_ACCESS_KEY"),
			SecretKey:      e.str("", "MINIO_SECRET_KEY"),
			SecretKeyParam: e.str("", "MINIO_SECRET_KEY_PARAM"),
			Bucket:         e.str("", "MINIO_BUCKET"),
			Region:         e.str("us-east-1", "MINIO_REGION"),
			Dir:            e.str("./data", "STORE_DIR"),
		},
		Upload: UploadConfig{
			URLExpiry:   e.duration("UPLOAD_URL_EXPIRY", 300*time.Second),
			ContentType: e.str("", "UPLOAD_CONTENT_TYPE"),
			MaxBytes:    int64(e.int("UPLOAD_MAX_BYTES", 10<<20)),
			Concurrency: e.int("UPLOAD_CONCURRENCY", 4),
			PathRoot:    e.str(os.TempDir(), "UPLOAD_PATH_ROOT"),
		},
		Proxy: ProxyConfig{
			HTTPSProxy: e.str("", "HTTPS_PROXY", "https_proxy"),
			HTTPProxy:  e.str("", "HTTP_PROXY", "http_proxy"),
			NoProxy:    e.str("", "NO_PROXY", "no_proxy"),
			Timeout:    e.duration("PROXY_TIMEOUT", 2*time.Minute),
		},
		Model: ModelConfig{
			APIKey:       e.str("", "OPENAI_API_KEY"),
			APIKeyParam:  e.str("", "OPENAI_API_KEY_PARAM"),
			BaseURL:      strings.TrimRight(e.str("https://api.openai.com/v1", "OPENAI_BASE_URL"), "/"),
			DefaultModel: e.str("gpt-4o-mini", "OPENAI_MODEL"),
		},
	}

	if err := errors.Join(append(e.errs, cfg.validate()...)...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	switch c.Store.Driver {
	case DriverS3, DriverMinio:
		if c.Store.Bucket == "" {
			errs = append(errs, errors.New("MINIO_BUCKET is required"))
		}
		if c.Store.AccessKey == "" {
			errs = append(errs, errors.New("MINIO_ACCESS_KEY is required"))
		}
		if c.Store.SecretKey == "" && c.Store.SecretKeyParam == "" {
			errs = append(errs, errors.New("MINIO_SECRET_KEY or MINIO_SECRET_KEY_PARAM is required"))
		}
	case DriverFile:
		if c.Store.Dir == "" {
			errs = append(errs, errors.New("STORE_DIR is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of s3, minio, file", c.Store.Driver))
	}
	if c.Upload.URLExpiry <= 0 {
		errs = append(errs, errors.New("UPLOAD_URL_EXPIRY must be positive"))
	}
	if c.Upload.URLExpiry > MaxURLExpiry {
		errs = append(errs, fmt.Errorf("UPLOAD_URL_EXPIRY %s exceeds the %s presign limit", c.Upload.URLExpiry, MaxURLExpiry))
	}
	if c.Upload.Concurrency < 1 {
		errs = append(errs, errors.New("UPLOAD_CONCURRENCY must be at least 1"))
	}
	return errs
}

type env struct {
	getenv func(string) string
	errs   []error
}

// str returns the first non-empty value among keys.
func (e *env) str(fallback string, keys ...string) string {
	for _, k := range keys {
		if v := e.getenv(k); v != "" {
			return v
		}
	}
	return fallback
}

func (e *env) int(key string, fallback int) int {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (e *env) bool(key string, fallback bool) bool {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

// duration accepts Go durations ("5m") or a bare number of seconds ("300").
func (e *env) duration(key string, fallback time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
