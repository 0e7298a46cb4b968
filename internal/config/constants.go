package config

// Environment names accepted by ENVIRONMENT
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTest        = "test"
)

const (
	// ServiceName is the stable identifier used for tracing, metrics and the
	// health payload.
	ServiceName = "ai-multi-agent-system"

	// MetricsNamespace prefixes every Prometheus collector registered by the service
	MetricsNamespace = "agentforge"

	// APIPrefix is the mount point of the versioned API
	APIPrefix = "/api/v1"

	redactedValue = "***"
)
