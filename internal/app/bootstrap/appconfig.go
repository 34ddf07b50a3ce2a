// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration, which covers ports, TLS,
// logging and request limits.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Tenant routing: {org}.RootDomain/AppPrefix/* is served as /org/{org}/*
	RootDomain string // e.g. "grouphub.test:3000"
	AppPrefix  string // default "/app"

	// Identity provider (Clerk)
	ClerkAPIURL            string
	ClerkSecretKey         string // backend API key
	ClerkJWTPublicKey      string // PEM used to verify session tokens
	ClerkAuthorizedParties []string
	ClerkWebhookSecret     string // whsec_... signing secret

	// Signed cookies (current group, flash)
	CookieKey          string
	CurrentGroupMaxAge time.Duration

	// Logo storage
	StorageType        string // "local" or "s3"
	StorageLocalPath   string // e.g. "./uploads/logos"
	StorageLocalURL    string // URL prefix the local files are served under
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string
	StorageS3PublicURL string // optional CDN in front of the bucket
	LogoMaxBytes       int64

	// Origins allowed to call /api/*
	CORSAllowedOrigins []string
	// Requests per minute per client IP on /api/*; 0 disables the limit
	APIRateLimit int
	// Proxies (CIDRs or IPs) whose X-Forwarded-For is believed
	TrustedProxies []string

	// Audit logging: "all" (db+log), "db", "log" or "off"
	AuditLogAdmin string
	AuditLogSync  string
}
