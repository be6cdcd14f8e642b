package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lefred/mysql-component-viruscan/internal/access"
)

// FileConfig is the on-disk YAML configuration shape for viruscan.
type FileConfig struct {
	Database  *DatabaseConfig  `yaml:"database"`
	Store     *StoreConfig     `yaml:"store"`
	Auth      *AuthConfig      `yaml:"auth"`
	Server    *ServerConfig    `yaml:"server"`
	Reload    *ReloadConfig    `yaml:"reload"`
	Notify    *NotifyConfig    `yaml:"notify"`
	Telemetry *TelemetryConfig `yaml:"telemetry"`
	Log       *LogConfig       `yaml:"log"`
	Audit     *AuditConfig     `yaml:"audit"`
}

// DatabaseConfig locates the signature database and picks the scan backend.
type DatabaseConfig struct {
	// Dir is the signature directory. Defaults to /var/lib/viruscan.
	Dir *string `yaml:"dir"`

	// Include is a glob selecting signature files inside Dir.
	Include *string `yaml:"include"`

	// Backend is "builtin" (default) or "yara" (needs a yara build).
	Backend *string `yaml:"backend"`

	// ScanTimeout bounds a single scan for backends that support it.
	ScanTimeout *string `yaml:"scan_timeout"`
}

// StoreConfig sizes the in-memory match store.
type StoreConfig struct {
	Capacity *int `yaml:"capacity"`
}

// AuthConfig selects how callers are identified.
type AuthConfig struct {
	// Provider is "static" (default) or "jwt".
	Provider *string `yaml:"provider"`

	// JWTSecret signs and verifies caller tokens for the jwt provider.
	JWTSecret *string `yaml:"jwt_secret"`

	// Issuer, when set, must match the iss claim of caller tokens.
	Issuer *string `yaml:"issuer"`

	// Grants lists account privileges for the static provider.
	Grants []access.Grant `yaml:"grants"`
}

// ServerConfig configures the HTTP listener of "viruscan serve".
type ServerConfig struct {
	Addr         *string `yaml:"addr"`
	MaxBodyBytes *int64  `yaml:"max_body_bytes"`
	// TrustUserHeader accepts X-Viruscan-User as the caller identity. Only
	// enable behind a proxy that authenticates users and sets the header.
	TrustUserHeader *bool `yaml:"trust_user_header"`
}

// ReloadConfig enables background reload checks.
type ReloadConfig struct {
	Watch    *bool   `yaml:"watch"`
	Debounce *string `yaml:"debounce"`
	Schedule *string `yaml:"schedule"`
}

// NotifyConfig enables the NATS match feed.
type NotifyConfig struct {
	NATSURL *string `yaml:"nats_url"`
	Subject *string `yaml:"subject"`
}

// TelemetryConfig enables OTLP metric export.
type TelemetryConfig struct {
	OTLPEndpoint *string `yaml:"otlp_endpoint"`
	Interval     *string `yaml:"interval"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

// AuditConfig enables the reload audit trail.
type AuditConfig struct {
	Path *string `yaml:"path"`
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadLocal searches for a config file in the given directory.
// It supports .viruscan.yml/.yaml and viruscan.yml/.yaml.
func LoadLocal(dir string) (FileConfig, error) {
	var cfg FileConfig
	for _, name := range []string{".viruscan.yml", ".viruscan.yaml", "viruscan.yml", "viruscan.yaml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return cfg, errors.New("no local config")
}

// LoadGlobal loads the global config file from XDG base directory or ~/.config.
func LoadGlobal() (FileConfig, error) {
	var cfg FileConfig
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return cfg, errors.New("no config dir")
	}
	p := filepath.Join(base, "viruscan", "config.yml")
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return cfg, errors.New("no global config")
}

// Load resolves the configuration: an explicit path must exist; otherwise
// the local file in dir wins over the global one, and no file at all yields
// an empty config.
func Load(explicit, dir string) (FileConfig, error) {
	if explicit != "" {
		return LoadFile(explicit)
	}
	if cfg, err := LoadLocal(dir); err == nil {
		return cfg, nil
	}
	if cfg, err := LoadGlobal(); err == nil {
		return cfg, nil
	}
	return FileConfig{}, nil
}

// Validate reports settings that cannot work together.
func (fc FileConfig) Validate() error {
	a := fc.GetAuth()
	switch a.GetProvider() {
	case "static":
	case "jwt":
		if a.GetJWTSecret() == "" {
			return errors.New("auth.provider jwt requires auth.jwt_secret")
		}
	default:
		return fmt.Errorf("unknown auth.provider %q", a.GetProvider())
	}
	if fc.GetStore().GetCapacity() <= 0 {
		return errors.New("store.capacity must be positive")
	}
	for name, s := range map[string]string{
		"database.scan_timeout": fc.GetDatabase().getScanTimeout(),
		"reload.debounce":       fc.GetReload().getDebounce(),
		"telemetry.interval":    fc.GetTelemetry().getInterval(),
	} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// GetDatabase returns the database section, never nil.
func (fc FileConfig) GetDatabase() DatabaseConfig {
	if fc.Database == nil {
		return DatabaseConfig{}
	}
	return *fc.Database
}

// GetStore returns the store section, never nil.
func (fc FileConfig) GetStore() StoreConfig {
	if fc.Store == nil {
		return StoreConfig{}
	}
	return *fc.Store
}

// GetAuth returns the auth section, never nil.
func (fc FileConfig) GetAuth() AuthConfig {
	if fc.Auth == nil {
		return AuthConfig{}
	}
	return *fc.Auth
}

// GetServer returns the server section, never nil.
func (fc FileConfig) GetServer() ServerConfig {
	if fc.Server == nil {
		return ServerConfig{}
	}
	return *fc.Server
}

// GetReload returns the reload section, never nil.
func (fc FileConfig) GetReload() ReloadConfig {
	if fc.Reload == nil {
		return ReloadConfig{}
	}
	return *fc.Reload
}

// GetNotify returns the notify section, never nil.
func (fc FileConfig) GetNotify() NotifyConfig {
	if fc.Notify == nil {
		return NotifyConfig{}
	}
	return *fc.Notify
}

// GetTelemetry returns the telemetry section, never nil.
func (fc FileConfig) GetTelemetry() TelemetryConfig {
	if fc.Telemetry == nil {
		return TelemetryConfig{}
	}
	return *fc.Telemetry
}

// GetLog returns the log section, never nil.
func (fc FileConfig) GetLog() LogConfig {
	if fc.Log == nil {
		return LogConfig{}
	}
	return *fc.Log
}

// GetAudit returns the audit section, never nil.
func (fc FileConfig) GetAudit() AuditConfig {
	if fc.Audit == nil {
		return AuditConfig{}
	}
	return *fc.Audit
}

// DefaultDatabaseDir is where signatures live unless configured otherwise.
const DefaultDatabaseDir = "/var/lib/viruscan"

// GetDir returns the signature directory (default: /var/lib/viruscan).
func (dc DatabaseConfig) GetDir() string {
	if dc.Dir == nil || *dc.Dir == "" {
		return DefaultDatabaseDir
	}
	return *dc.Dir
}

// GetInclude returns the signature file glob or empty string for the default.
func (dc DatabaseConfig) GetInclude() string {
	if dc.Include == nil {
		return ""
	}
	return *dc.Include
}

// GetBackend returns the backend name (default: builtin).
func (dc DatabaseConfig) GetBackend() string {
	if dc.Backend == nil || *dc.Backend == "" {
		return "builtin"
	}
	return *dc.Backend
}

func (dc DatabaseConfig) getScanTimeout() string {
	if dc.ScanTimeout == nil {
		return ""
	}
	return *dc.ScanTimeout
}

// GetScanTimeout returns the per-scan timeout, zero when unset or invalid.
func (dc DatabaseConfig) GetScanTimeout() time.Duration {
	d, _ := time.ParseDuration(dc.getScanTimeout())
	return d
}

// GetCapacity returns the number of match records kept (default: 1024).
func (sc StoreConfig) GetCapacity() int {
	if sc.Capacity == nil {
		return 1024
	}
	return *sc.Capacity
}

// GetProvider returns the identity provider (default: static).
func (ac AuthConfig) GetProvider() string {
	if ac.Provider == nil || *ac.Provider == "" {
		return "static"
	}
	return *ac.Provider
}

// GetJWTSecret returns the token secret. VIRUSCAN_JWT_SECRET overrides the file.
func (ac AuthConfig) GetJWTSecret() string {
	if v := os.Getenv("VIRUSCAN_JWT_SECRET"); v != "" {
		return v
	}
	if ac.JWTSecret == nil {
		return ""
	}
	return *ac.JWTSecret
}

// GetIssuer returns the required token issuer or empty string.
func (ac AuthConfig) GetIssuer() string {
	if ac.Issuer == nil {
		return ""
	}
	return *ac.Issuer
}

// GetAddr returns the listen address (default: 127.0.0.1:3310).
func (sc ServerConfig) GetAddr() string {
	if sc.Addr == nil || *sc.Addr == "" {
		return "127.0.0.1:3310"
	}
	return *sc.Addr
}

// GetMaxBodyBytes returns the largest accepted scan payload (default: 64 MiB).
func (sc ServerConfig) GetMaxBodyBytes() int64 {
	if sc.MaxBodyBytes == nil || *sc.MaxBodyBytes <= 0 {
		return 64 << 20
	}
	return *sc.MaxBodyBytes
}

// IsUserHeaderTrusted returns true if X-Viruscan-User is accepted (default: false).
func (sc ServerConfig) IsUserHeaderTrusted() bool {
	return sc.TrustUserHeader != nil && *sc.TrustUserHeader
}

// IsWatchEnabled returns true if the signature directory is watched (default: false).
func (rc ReloadConfig) IsWatchEnabled() bool {
	return rc.Watch != nil && *rc.Watch
}

func (rc ReloadConfig) getDebounce() string {
	if rc.Debounce == nil {
		return ""
	}
	return *rc.Debounce
}

// GetDebounce returns the watcher debounce, zero for the engine default.
func (rc ReloadConfig) GetDebounce() time.Duration {
	d, _ := time.ParseDuration(rc.getDebounce())
	return d
}

// GetSchedule returns the cron schedule or empty string when disabled.
func (rc ReloadConfig) GetSchedule() string {
	if rc.Schedule == nil {
		return ""
	}
	return *rc.Schedule
}

// GetNATSURL returns the NATS server URL or empty string when disabled.
func (nc NotifyConfig) GetNATSURL() string {
	if nc.NATSURL == nil {
		return ""
	}
	return *nc.NATSURL
}

// GetSubject returns the match subject or empty string for the default.
func (nc NotifyConfig) GetSubject() string {
	if nc.Subject == nil {
		return ""
	}
	return *nc.Subject
}

// GetOTLPEndpoint returns the collector endpoint. OTEL_EXPORTER_OTLP_ENDPOINT
// is used when the file leaves it unset.
func (tc TelemetryConfig) GetOTLPEndpoint() string {
	if tc.OTLPEndpoint != nil {
		return *tc.OTLPEndpoint
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
}

func (tc TelemetryConfig) getInterval() string {
	if tc.Interval == nil {
		return ""
	}
	return *tc.Interval
}

// GetInterval returns the export interval, zero for the exporter default.
func (tc TelemetryConfig) GetInterval() time.Duration {
	d, _ := time.ParseDuration(tc.getInterval())
	return d
}

// GetLevel returns the log level or empty string for the default.
func (lc LogConfig) GetLevel() string {
	if lc.Level == nil {
		return ""
	}
	return *lc.Level
}

// GetFormat returns the log format or empty string for the default.
func (lc LogConfig) GetFormat() string {
	if lc.Format == nil {
		return ""
	}
	return *lc.Format
}

// GetPath returns the audit log path or empty string when disabled.
func (ac AuditConfig) GetPath() string {
	if ac.Path == nil {
		return ""
	}
	return *ac.Path
}
