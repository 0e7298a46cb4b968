// Package config loads the service configuration.
//
// # Configuration Sources
//
// Values are resolved in order of precedence:
//
//	1. Process environment variables (highest priority)
//	2. A dotenv file (.env, or the path named by ENV_FILE)
//	3. An optional YAML file named by CONFIG_FILE, keyed by variable name
//	4. Defaults declared on the struct tags (lowest priority)
//
// File sources only fill variables that are not already set in the process
// environment.
//
// # Environment Variables
//
// Names are flat and carry no prefix:
//
//	ENVIRONMENT=production
//	DATABASE_URL=postgresql+asyncpg://user:password@db/ai_multi_agent
//	REDIS_URL=redis://cache:6379
//	CORS_ORIGINS=["https://app.example.com","https://admin.example.com"]
//	ALLOWED_HOSTS=api.example.com,*.example.com
//
// List values accept either a JSON array or a comma separated string.
//
// # Validation
//
// Load validates the whole structure and reports every violation at once in
// a single *Error. In production SECRET_KEY, DATABASE_URL, REDIS_URL,
// OPENAI_API_KEY and ANTHROPIC_API_KEY must all be present.
package config
