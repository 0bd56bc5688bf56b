package config

import (
	"os"
	"time"
)

// Environment variable names
const (
	ConfigFileEnv = "MINIAPP_CONFIG_FILE"
	EnvNameVar    = "MINIAPP_ENV"
)

// File constants
const (
	DefaultConfigFile             = "miniappctl.yaml"
	ManifestFileMode  os.FileMode = 0o644
)

// Timeout constants
const (
	// Regex budget per migration pattern evaluation
	DefaultPatternTimeout = 5 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute
	DatabasePingTimeout     = 10 * time.Second

	// Telemetry flush on exit
	ObservabilityShutdownTimeout = 5 * time.Second
)

// Logging constants
const (
	ServiceName     = "miniappctl"
	DefaultLogLevel = "error"
	VerboseLogLevel = "debug"
)
