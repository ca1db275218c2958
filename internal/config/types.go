// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/corext/corext/pkg/module"
)

const (
	// CacheDriverNone disables the persistent cache.
	CacheDriverNone CacheDriver = "none"
	// CacheDriverMemory keeps payloads in a bounded in-process LRU.
	CacheDriverMemory CacheDriver = "memory"
	// CacheDriverBolt persists payloads in a bbolt file, fronted by the LRU.
	CacheDriverBolt CacheDriver = "bolt"
	// CacheDriverS3 persists payloads in an S3-compatible bucket, fronted by the LRU.
	CacheDriverS3 CacheDriver = "s3"

	// LogLevelDebug logs every status transition.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs lifecycle milestones.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs recoverable problems such as cache failures.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs failed requests only.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidCacheDriver is returned when a CacheDriver value is not recognized.
	ErrInvalidCacheDriver = errors.New("invalid cache driver")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidBaseURL is returned when base_url is not an absolute URL.
	ErrInvalidBaseURL = errors.New("invalid base URL")
	// ErrInvalidCacheConfig is the sentinel error wrapped by InvalidCacheConfigError.
	ErrInvalidCacheConfig = errors.New("invalid cache config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// CacheDriver selects the persistent cache backend.
	CacheDriver string

	// InvalidCacheDriverError is returned when a CacheDriver value is not recognized.
	// It wraps ErrInvalidCacheDriver for errors.Is() compatibility.
	InvalidCacheDriverError struct {
		Value CacheDriver
	}

	// LogLevel is the minimum level of the root logger.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidBaseURLError is returned when base_url is set but not absolute.
	InvalidBaseURLError struct {
		Value string
		Err   error
	}

	// Config is the complete loader configuration.
	Config struct {
		// BaseURL is what "~/" paths resolve against.
		BaseURL string `json:"base_url" mapstructure:"base_url"`
		// Debug loads non-minified module URLs.
		Debug bool `json:"debug" mapstructure:"debug"`
		// Version tags cache keys and cache-busting values.
		Version string `json:"version" mapstructure:"version"`
		// Timeout bounds every transfer; zero disables the deadline.
		Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
		// CacheBusting appends the cache-busting query parameter to transfers.
		CacheBusting bool `json:"cache_busting" mapstructure:"cache_busting"`
		// CacheBustingVar names the cache-busting query parameter.
		CacheBustingVar string `json:"cache_busting_var" mapstructure:"cache_busting_var"`
		// LogLevel is the minimum level of the root logger.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
		// CoreScripts load in order before anything else.
		CoreScripts []string `json:"core_scripts" mapstructure:"core_scripts"`
		// DefaultManifest loads after the system-loaded callbacks.
		DefaultManifest string `json:"default_manifest" mapstructure:"default_manifest"`
		// AppManifest depends on DefaultManifest.
		AppManifest string `json:"app_manifest" mapstructure:"app_manifest"`
		// AppModule is executed once it and its manifests are ready.
		AppModule AppModuleConfig `json:"app_module" mapstructure:"app_module"`
		// ManifestFile is the file name dependency folders end with.
		ManifestFile string `json:"manifest_file" mapstructure:"manifest_file"`
		// GlobalScope executes modules in the engine's shared scope.
		GlobalScope bool `json:"global_scope" mapstructure:"global_scope"`
		// Cache configures the persistent read-through cache.
		Cache CacheConfig `json:"cache" mapstructure:"cache"`
		// MetricsFile receives Prometheus text-format metrics after a run.
		MetricsFile string `json:"metrics_file" mapstructure:"metrics_file"`
		// Watch configures reload-on-change.
		Watch WatchConfig `json:"watch" mapstructure:"watch"`
	}

	// AppModuleConfig names the application module.
	AppModuleConfig struct {
		Name        string `json:"name" mapstructure:"name"`
		URL         string `json:"url" mapstructure:"url"`
		MinifiedURL string `json:"minified_url" mapstructure:"minified_url"`
	}

	// CacheConfig configures the persistent cache.
	CacheConfig struct {
		Driver CacheDriver `json:"driver" mapstructure:"driver"`
		// Path is the bbolt file for the bolt driver.
		Path string `json:"path" mapstructure:"path"`
		// Size is the number of entries kept by the in-memory LRU tier.
		Size int      `json:"size" mapstructure:"size"`
		S3   S3Config `json:"s3" mapstructure:"s3"`
	}

	// S3Config configures the s3 cache driver.
	S3Config struct {
		Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
		Bucket    string `json:"bucket" mapstructure:"bucket"`
		AccessKey string `json:"access_key" mapstructure:"access_key"`
		SecretKey string `json:"secret_key" mapstructure:"secret_key"`
		Secure    bool   `json:"secure" mapstructure:"secure"`
		Prefix    string `json:"prefix" mapstructure:"prefix"`
	}

	// WatchConfig configures which local files trigger a reload.
	WatchConfig struct {
		// Patterns are doublestar globs relative to the watched root.
		Patterns []string `json:"patterns" mapstructure:"patterns"`
		// Ignore are doublestar globs excluded from Patterns.
		Ignore []string `json:"ignore" mapstructure:"ignore"`
		// Debounce coalesces bursts of events.
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
	}

	// InvalidCacheConfigError is returned when the cache section is inconsistent.
	InvalidCacheConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError collects every field error of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		CacheBustingVar: "_v_",
		LogLevel:        LogLevelInfo,
		ManifestFile:    module.DefaultManifestFile,
		Cache: CacheConfig{
			Driver: CacheDriverNone,
			Size:   256,
		},
		Watch: WatchConfig{
			Patterns: []string{"**/*.js", "**/*.json", "**/*.sh"},
			Ignore:   []string{"**/node_modules/**", "**/.git/**"},
			Debounce: 250 * time.Millisecond,
		},
	}
}

// String returns the string representation of the CacheDriver.
func (d CacheDriver) String() string { return string(d) }

// IsValid returns whether the CacheDriver is a known driver. The zero value
// means "none".
func (d CacheDriver) IsValid() (bool, []error) {
	switch d {
	case "", CacheDriverNone, CacheDriverMemory, CacheDriverBolt, CacheDriverS3:
		return true, nil
	default:
		return false, []error{&InvalidCacheDriverError{Value: d}}
	}
}

// Error implements the error interface.
func (e *InvalidCacheDriverError) Error() string {
	return fmt.Sprintf("invalid cache driver %q (valid: none, memory, bolt, s3)", e.Value)
}

// Unwrap returns ErrInvalidCacheDriver for errors.Is() compatibility.
func (e *InvalidCacheDriverError) Unwrap() error { return ErrInvalidCacheDriver }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is known. The zero value means "info".
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Level converts to a charmbracelet/log level.
func (l LogLevel) Level() log.Level {
	if l == "" {
		return log.InfoLevel
	}
	lvl, err := log.ParseLevel(string(l))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Error implements the error interface.
func (e *InvalidBaseURLError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid base URL %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("invalid base URL %q: scheme and host are required", e.Value)
}

// Unwrap returns ErrInvalidBaseURL for errors.Is() compatibility.
func (e *InvalidBaseURLError) Unwrap() error { return ErrInvalidBaseURL }

// ParsedBaseURL parses BaseURL. It returns nil for an empty value.
func (c Config) ParsedBaseURL() (*url.URL, error) {
	if c.BaseURL == "" {
		return nil, nil
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, &InvalidBaseURLError{Value: c.BaseURL, Err: err}
	}
	if !u.IsAbs() || (u.Host == "" && u.Scheme != "file") {
		return nil, &InvalidBaseURLError{Value: c.BaseURL}
	}
	return u, nil
}

// IsValid returns whether the cache section is consistent with its driver.
func (c CacheConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Driver.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Size < 0 {
		errs = append(errs, fmt.Errorf("cache.size must not be negative, got %d", c.Size))
	}
	switch c.Driver {
	case CacheDriverBolt:
		if strings.TrimSpace(c.Path) == "" {
			errs = append(errs, errors.New("cache.path is required for the bolt driver"))
		}
	case CacheDriverS3:
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			errs = append(errs, errors.New("cache.s3.endpoint and cache.s3.bucket are required for the s3 driver"))
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidCacheConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface.
func (e *InvalidCacheConfigError) Error() string {
	return fmt.Sprintf("invalid cache config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidCacheConfig and the field errors for errors.Is() compatibility.
func (e *InvalidCacheConfigError) Unwrap() []error {
	return append([]error{ErrInvalidCacheConfig}, e.FieldErrors...)
}

// IsValid returns whether the Config has valid fields. Constraints the CUE schema
// already enforces are checked again so a Config built in code is validated too.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if _, err := c.ParsedBaseURL(); err != nil {
		errs = append(errs, err)
	}
	if valid, fieldErrs := c.LogLevel.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.AppModule.Name != "" {
		if err := module.Name(c.AppModule.Name).Validate(); err != nil {
			errs = append(errs, err)
		}
		if c.AppModule.URL == "" {
			errs = append(errs, errors.New("app_module.url is required when app_module.name is set"))
		}
	}
	if valid, fieldErrs := c.Cache.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
