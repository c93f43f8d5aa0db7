// Package config provides application configuration management from a YAML
// file and environment variables.
//
// # Overview
//
// Settings are resolved in three layers: built-in defaults, then the optional
// YAML file named by PROVISIONER_CONFIG_FILE, then environment variables.
//
// # Configuration Structure
//
// Server settings:
//
//	PROVISIONER_HOST="0.0.0.0"
//	PROVISIONER_PORT="8080"
//	PROVISIONER_HEALTH_PORT="9090"
//	PROVISIONER_CORS_ORIGINS="https://admin.example.com"
//	PROVISIONER_STATIC_DIR="/srv/frontend/dist"
//
// Hosted backend (validated lazily, a missing value yields 500s, not a crash):
//
//	SUPABASE_URL="https://project.supabase.co"
//	SUPABASE_SERVICE_ROLE_KEY="..."
//
// Authorization:
//
//	PROVISIONER_AUTH_MODE="shared-secret"  # shared-secret, bearer-role
//	ADMIN_CREATE_USER_TOKEN="..."
//	PROVISIONER_TOKEN_VERIFIER="remote"    # remote, hs256, jwks
//	SUPABASE_JWT_SECRET="..."              # hs256 only, checked per request
//
// Provisioning:
//
//	PROVISIONER_PROFILE_STORE="rest"       # rest, postgres
//	PROVISIONER_PROFILE_WRITE_MODE="upsert"
//	PROVISIONER_COMPENSATE="true"
//
// Audit trail (a logger of its own, separate from operational logs):
//
//	PROVISIONER_AUDIT_ENABLED="true"
//	PROVISIONER_AUDIT_LOG_FILE="/var/log/provisioner/audit.log"
//
// Form bridge:
//
//	FIREBASE_PROJECT_ID="my-project"
//	SUBMISSIONS_COLLECTION="submissions"
//
// The same settings in YAML:
//
//	server:
//	  port: "8080"
//	  cors_origins: ["https://admin.example.com"]
//	backend:
//	  url: https://project.supabase.co
//	  timeout: 5s
//	auth:
//	  mode: bearer-role
//	  token_verifier: jwks
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Backend.Validate(); err != nil {
//		logger.WithError(err).Warn("hosted backend not configured")
//	}
package config
