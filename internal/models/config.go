// Package models - Service configuration and operational settings.
// This file defines the configuration structures for all gatekeeper components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, store, security, etc.)
// - Environment-friendly defaults that work out of the box
// - Comprehensive validation to catch misconfigurations early
// - Explicit per-component degradation policies instead of one global flag
package models

import (
	"errors"
	"fmt"
	"time"
)

// Store type constants
const (
	StoreTypeRedis  = "redis"
	StoreTypeMemory = "memory"
)

// Event sink type constants
const (
	SinkTypeLog      = "log"
	SinkTypeSQLite   = "sqlite"
	SinkTypePostgres = "postgres"
)

// FailPolicy controls what a component does when the shared store is
// unreachable. The rate limiter defaults to open (availability first), the
// revocation registry defaults to closed (a missed revocation is a security
// hole, not a throughput nuisance).
type FailPolicy string

const (
	FailOpen   FailPolicy = "open"
	FailClosed FailPolicy = "closed"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // HTTP server configuration
	Store         StoreConfig         `yaml:"store" json:"store"`                 // Shared fast store (cross-instance coordination)
	Security      SecurityConfig      `yaml:"security" json:"security"`           // Tiers, credentials, degradation policies
	Detector      DetectorConfig      `yaml:"detector" json:"detector"`           // Threat detection ceilings and patterns
	Events        EventsConfig        `yaml:"events" json:"events"`               // Security event sink
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Monitoring and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing configuration
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
}

type StoreConfig struct {
	Type      string        `yaml:"type" json:"type"`
	OpTimeout time.Duration `yaml:"op_timeout" json:"op_timeout"` // per-call budget, keeps store latency out of request latency
	Redis     RedisConfig   `yaml:"redis" json:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

type SecurityConfig struct {
	EnableAuth           bool          `yaml:"enable_auth" json:"enable_auth"`
	SigningSecret        string        `yaml:"signing_secret" json:"signing_secret"`
	TrustedProxies       []string      `yaml:"trusted_proxies" json:"trusted_proxies"`
	Tiers                []LimitTier   `yaml:"tiers" json:"tiers"`
	Routes               []RouteClass  `yaml:"routes" json:"routes"`
	ViolationLookback    time.Duration `yaml:"violation_lookback" json:"violation_lookback"`
	RateLimitFailPolicy  FailPolicy    `yaml:"rate_limit_fail_policy" json:"rate_limit_fail_policy"`
	RevocationFailPolicy FailPolicy    `yaml:"revocation_fail_policy" json:"revocation_fail_policy"`
}

// RouteClass maps a path prefix to a limit tier. Longest matching prefix wins.
type RouteClass struct {
	Prefix      string `yaml:"prefix" json:"prefix"`
	Tier        string `yaml:"tier" json:"tier"`
	RequireAuth bool   `yaml:"require_auth" json:"require_auth"`
}

type DetectorConfig struct {
	MaxHeaderCount   int      `yaml:"max_header_count" json:"max_header_count"`
	MaxHeaderBytes   int      `yaml:"max_header_bytes" json:"max_header_bytes"`
	MaxBodyBytes     int64    `yaml:"max_body_bytes" json:"max_body_bytes"`
	BlockedAgents    []string `yaml:"blocked_agents" json:"blocked_agents"`
	ExtraInjection   []string `yaml:"extra_injection" json:"extra_injection"`
	InspectionEnable bool     `yaml:"enabled" json:"enabled"`
}

type EventsConfig struct {
	Sink         string  `yaml:"sink" json:"sink"`
	DSN          string  `yaml:"dsn" json:"dsn"`
	MaxPerSecond float64 `yaml:"max_per_second" json:"max_per_second"` // sink storm damping
	Burst        int     `yaml:"burst" json:"burst"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"` // stdout or otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults.
//
// Default Values Rationale:
// - Port 8080: Standard non-privileged HTTP port
// - 50ms store op timeout: store latency must never become request latency
// - Rate limiter fails open, revocation fails closed: the security cost of
//   failing open differs by component, so the policies differ deliberately
// - Three default tiers (general, auth, stream) covering the common route classes
// - Log sink for events: no external dependency required to start
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
		},
		Store: StoreConfig{
			Type:      StoreTypeMemory,
			OpTimeout: 50 * time.Millisecond,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Security: SecurityConfig{
			EnableAuth:           false,
			TrustedProxies:       []string{},
			Tiers:                DefaultTiers(),
			Routes:               DefaultRoutes(),
			ViolationLookback:    10 * time.Minute,
			RateLimitFailPolicy:  FailOpen,
			RevocationFailPolicy: FailClosed,
		},
		Detector: DetectorConfig{
			MaxHeaderCount:   50,
			MaxHeaderBytes:   8192,
			MaxBodyBytes:     10 << 20,
			BlockedAgents:    []string{"sqlmap", "nikto", "masscan", "zgrab"},
			InspectionEnable: true,
		},
		Events: EventsConfig{
			Sink:         SinkTypeLog,
			MaxPerSecond: 100,
			Burst:        200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "gatekeeper",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 0.1,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("invalid detector config: %w", err)
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("invalid events config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StoreConfig) Validate() error {
	switch stc.Type {
	case StoreTypeRedis:
		if stc.Redis.Addr == "" {
			return errors.New("redis address is required for redis store")
		}
	case StoreTypeMemory:
		// Memory store requires no additional configuration
	default:
		return fmt.Errorf("invalid store type: %s", stc.Type)
	}

	if stc.OpTimeout <= 0 {
		return errors.New("store op timeout must be positive")
	}

	return nil
}

func (sec *SecurityConfig) Validate() error {
	if sec.EnableAuth && sec.SigningSecret == "" {
		return errors.New("signing secret is required when auth is enabled")
	}

	if len(sec.Tiers) == 0 {
		return errors.New("at least one limit tier is required")
	}

	names := make(map[string]bool, len(sec.Tiers))
	for i := range sec.Tiers {
		if err := sec.Tiers[i].Validate(); err != nil {
			return fmt.Errorf("invalid tier %q: %w", sec.Tiers[i].Name, err)
		}
		if names[sec.Tiers[i].Name] {
			return fmt.Errorf("duplicate tier name: %s", sec.Tiers[i].Name)
		}
		names[sec.Tiers[i].Name] = true
	}

	for _, route := range sec.Routes {
		if route.Prefix == "" {
			return errors.New("route prefix cannot be empty")
		}
		if !names[route.Tier] {
			return fmt.Errorf("route %q references unknown tier: %s", route.Prefix, route.Tier)
		}
	}

	if sec.ViolationLookback < 0 {
		return errors.New("violation lookback cannot be negative")
	}

	if err := sec.RateLimitFailPolicy.Validate(); err != nil {
		return fmt.Errorf("rate_limit_fail_policy: %w", err)
	}
	if err := sec.RevocationFailPolicy.Validate(); err != nil {
		return fmt.Errorf("revocation_fail_policy: %w", err)
	}

	return nil
}

func (fp FailPolicy) Validate() error {
	switch fp {
	case FailOpen, FailClosed:
		return nil
	default:
		return fmt.Errorf("invalid fail policy: %s", fp)
	}
}

func (dc *DetectorConfig) Validate() error {
	if dc.MaxHeaderCount < 0 {
		return errors.New("max header count cannot be negative")
	}
	if dc.MaxHeaderBytes < 0 {
		return errors.New("max header bytes cannot be negative")
	}
	if dc.MaxBodyBytes < 0 {
		return errors.New("max body bytes cannot be negative")
	}
	return nil
}

func (ec *EventsConfig) Validate() error {
	switch ec.Sink {
	case SinkTypeLog:
	case SinkTypeSQLite, SinkTypePostgres:
		if ec.DSN == "" {
			return fmt.Errorf("DSN is required for %s event sink", ec.Sink)
		}
	default:
		return fmt.Errorf("invalid event sink: %s", ec.Sink)
	}

	if ec.MaxPerSecond < 0 {
		return errors.New("max per second cannot be negative")
	}
	if ec.Burst < 0 {
		return errors.New("burst cannot be negative")
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	found := false
	for _, vl := range validLevels {
		if lc.Level == vl {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	found = false
	for _, vf := range validFormats {
		if lc.Format == vf {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	found = false
	for _, vo := range validOutputs {
		if lc.Output == vo {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}
