// Package config loads modulink's configuration from MODULINK_ environment
// variables.
//
// Server:
//
//	MODULINK_HOST="0.0.0.0"
//	MODULINK_PORT="8080"
//	MODULINK_HEALTH_PORT="9090"
//
// Storage:
//
//	MODULINK_POSTGRES_URL="postgres://localhost/modulink?sslmode=disable"
//	MODULINK_S3_ENDPOINT="http://minio:9000"
//	MODULINK_S3_BUCKET="modulink-logos"
//
// Decision cache:
//
//	MODULINK_CACHE_MODE="redis"   # none, memory, redis
//	MODULINK_CACHE_TTL="5m"
//	MODULINK_REDIS_URL="redis://localhost:6379/0"
//
// Identity:
//
//	MODULINK_AUTH_MODE="oidc"     # header, oidc
//	MODULINK_OIDC_ISSUER_URL="https://accounts.example.com"
//	MODULINK_OIDC_CLIENT_ID="modulink"
//
// Webhooks:
//
//	MODULINK_WEBHOOK_URLS="https://hooks.example.com/a,https://hooks.example.com/b"
//	MODULINK_WEBHOOK_SECRET="..."
//
// Jobs:
//
//	MODULINK_INTEGRITY_SCHEDULE="@every 1h"
//
// Observability:
//
//	MODULINK_LOG_LEVEL="info"
//	MODULINK_LOG_FORMAT="json"    # json, text
//	MODULINK_OTEL_ENABLED="true"
//	MODULINK_OTEL_ENDPOINT="otel-collector:4317"
//
// Usage:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
