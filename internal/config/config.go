package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gatekeeper/internal/models"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	if port := os.Getenv("GATEKEEPER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("GATEKEEPER_HOST"); host != "" {
		config.Server.Host = host
	}

	if timeout := os.Getenv("GATEKEEPER_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = d
		}
	}

	if timeout := os.Getenv("GATEKEEPER_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}

	if timeout := os.Getenv("GATEKEEPER_IDLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.IdleTimeout = d
		}
	}

	if tls := os.Getenv("GATEKEEPER_TLS_ENABLED"); tls != "" {
		config.Server.TLSEnabled = strings.ToLower(tls) == "true"
	}

	if certFile := os.Getenv("GATEKEEPER_TLS_CERT_FILE"); certFile != "" {
		config.Server.TLSCertFile = certFile
	}

	if keyFile := os.Getenv("GATEKEEPER_TLS_KEY_FILE"); keyFile != "" {
		config.Server.TLSKeyFile = keyFile
	}

	// Store configuration
	if storeType := os.Getenv("GATEKEEPER_STORE_TYPE"); storeType != "" {
		config.Store.Type = storeType
	}

	if opTimeout := os.Getenv("GATEKEEPER_STORE_OP_TIMEOUT"); opTimeout != "" {
		if d, err := time.ParseDuration(opTimeout); err == nil {
			config.Store.OpTimeout = d
		}
	}

	if addr := os.Getenv("GATEKEEPER_REDIS_ADDR"); addr != "" {
		config.Store.Redis.Addr = addr
	}

	if password := os.Getenv("GATEKEEPER_REDIS_PASSWORD"); password != "" {
		config.Store.Redis.Password = password
	}

	if db := os.Getenv("GATEKEEPER_REDIS_DB"); db != "" {
		if dbNum, err := strconv.Atoi(db); err == nil {
			config.Store.Redis.DB = dbNum
		}
	}

	if poolSize := os.Getenv("GATEKEEPER_REDIS_POOL_SIZE"); poolSize != "" {
		if size, err := strconv.Atoi(poolSize); err == nil {
			config.Store.Redis.PoolSize = size
		}
	}

	// Security configuration
	if auth := os.Getenv("GATEKEEPER_ENABLE_AUTH"); auth != "" {
		config.Security.EnableAuth = strings.ToLower(auth) == "true"
	}

	// Signing secret from environment (preferred over the config file)
	if secret := os.Getenv("GATEKEEPER_SIGNING_SECRET"); secret != "" {
		config.Security.SigningSecret = secret
	}

	if proxies := os.Getenv("GATEKEEPER_TRUSTED_PROXIES"); proxies != "" {
		parts := strings.Split(proxies, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		config.Security.TrustedProxies = trimmed
	}

	if lookback := os.Getenv("GATEKEEPER_VIOLATION_LOOKBACK"); lookback != "" {
		if d, err := time.ParseDuration(lookback); err == nil {
			config.Security.ViolationLookback = d
		}
	}

	if policy := os.Getenv("GATEKEEPER_RATE_LIMIT_FAIL_POLICY"); policy != "" {
		config.Security.RateLimitFailPolicy = models.FailPolicy(strings.ToLower(policy))
	}

	if policy := os.Getenv("GATEKEEPER_REVOCATION_FAIL_POLICY"); policy != "" {
		config.Security.RevocationFailPolicy = models.FailPolicy(strings.ToLower(policy))
	}

	// Detector configuration
	if enabled := os.Getenv("GATEKEEPER_DETECTOR_ENABLED"); enabled != "" {
		config.Detector.InspectionEnable = strings.ToLower(enabled) == "true"
	}

	if maxBody := os.Getenv("GATEKEEPER_DETECTOR_MAX_BODY_BYTES"); maxBody != "" {
		if size, err := strconv.ParseInt(maxBody, 10, 64); err == nil {
			config.Detector.MaxBodyBytes = size
		}
	}

	// Events configuration
	if sink := os.Getenv("GATEKEEPER_EVENTS_SINK"); sink != "" {
		config.Events.Sink = sink
	}

	if dsn := os.Getenv("GATEKEEPER_EVENTS_DSN"); dsn != "" {
		config.Events.DSN = dsn
	}

	if maxPerSecond := os.Getenv("GATEKEEPER_EVENTS_MAX_PER_SECOND"); maxPerSecond != "" {
		if rate, err := strconv.ParseFloat(maxPerSecond, 64); err == nil {
			config.Events.MaxPerSecond = rate
		}
	}

	if burst := os.Getenv("GATEKEEPER_EVENTS_BURST"); burst != "" {
		if b, err := strconv.Atoi(burst); err == nil {
			config.Events.Burst = b
		}
	}

	// Logging configuration
	if level := os.Getenv("GATEKEEPER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("GATEKEEPER_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("GATEKEEPER_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv("GATEKEEPER_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	if metrics := os.Getenv("GATEKEEPER_METRICS_ENABLED"); metrics != "" {
		config.Metrics.Enabled = strings.ToLower(metrics) == "true"
	}

	if path := os.Getenv("GATEKEEPER_METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}

	if port := os.Getenv("GATEKEEPER_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Get default config with some example values
	config := models.NewDefaultConfig()

	// Enable authentication for example
	config.Security.EnableAuth = true
	config.Security.SigningSecret = "change-me-use-GATEKEEPER_SIGNING_SECRET"

	// Redis is the store to use when running more than one instance
	config.Store.Type = models.StoreTypeRedis

	// Example TLS configuration
	config.Server.TLSEnabled = false
	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
