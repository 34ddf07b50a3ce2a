// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/clientip"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for GroupHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, root_domain, etc.
//   - Environment variables: GROUPHUB_MONGO_URI, GROUPHUB_ROOT_DOMAIN, etc.
//   - Command-line flags: --mongo_uri, --root_domain, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "grouphub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Tenant routing
	{Name: "root_domain", Default: "grouphub.test:3000", Desc: "Domain whose subdomains are organizations"},
	{Name: "app_prefix", Default: "/app", Desc: "Path prefix served from /org/{slug} on organization subdomains"},

	// Identity provider
	{Name: "clerk_api_url", Default: "https://api.clerk.com", Desc: "Clerk backend API base URL"},
	{Name: "clerk_secret_key", Default: "", Desc: "Clerk backend API secret key"},
	{Name: "clerk_jwt_public_key", Default: "", Desc: "PEM public key used to verify Clerk session tokens"},
	{Name: "clerk_authorized_parties", Default: "", Desc: "Comma-separated origins accepted in the token azp claim"},
	{Name: "clerk_webhook_secret", Default: "", Desc: "Clerk webhook signing secret (whsec_...)"},

	// Signed cookies
	{Name: "cookie_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Key signing the current-group and flash cookies (at least 32 chars)"},
	{Name: "current_group_max_age", Default: "168h", Desc: "Lifetime of the current-group cookie"},

	// Logo storage
	{Name: "storage_type", Default: "local", Desc: "Logo storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads/logos", Desc: "Local storage path for group logos"},
	{Name: "storage_local_url", Default: "/logos", Desc: "URL prefix for serving local logos"},
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "logos/", Desc: "S3 key prefix"},
	{Name: "storage_s3_public_url", Default: "", Desc: "Public base URL for logos (blank uses the bucket URL)"},
	{Name: "logo_max_bytes", Default: 4 << 20, Desc: "Largest accepted logo upload in bytes"},

	{Name: "cors_allowed_origins", Default: "", Desc: "Comma-separated origins allowed to call /api/*"},
	{Name: "api_rate_limit", Default: 300, Desc: "Requests per minute per client IP on /api/* (0 disables)"},
	{Name: "trusted_proxies", Default: "", Desc: "Comma-separated CIDRs of load balancers allowed to set X-Forwarded-For"},

	// Audit logging settings
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_sync", Default: "log", Desc: "Entity sync event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, GROUPHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "GROUPHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		RootDomain: appValues.String("root_domain"),
		AppPrefix:  appValues.String("app_prefix"),

		ClerkAPIURL:            appValues.String("clerk_api_url"),
		ClerkSecretKey:         appValues.String("clerk_secret_key"),
		ClerkJWTPublicKey:      appValues.String("clerk_jwt_public_key"),
		ClerkAuthorizedParties: splitList(appValues.String("clerk_authorized_parties")),
		ClerkWebhookSecret:     appValues.String("clerk_webhook_secret"),

		CookieKey:          appValues.String("cookie_key"),
		CurrentGroupMaxAge: appValues.Duration("current_group_max_age", 7*24*time.Hour),

		StorageType:        strings.ToLower(appValues.String("storage_type")),
		StorageLocalPath:   appValues.String("storage_local_path"),
		StorageLocalURL:    appValues.String("storage_local_url"),
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageS3PublicURL: appValues.String("storage_s3_public_url"),
		LogoMaxBytes:       int64(appValues.Int("logo_max_bytes")),

		CORSAllowedOrigins: splitList(appValues.String("cors_allowed_origins")),
		APIRateLimit:       appValues.Int("api_rate_limit"),
		TrustedProxies:     splitList(appValues.String("trusted_proxies")),

		AuditLogAdmin: appValues.String("audit_log_admin"),
		AuditLogSync:  appValues.String("audit_log_sync"),
	}

	return coreCfg, appCfg, nil
}

// splitList parses a comma-separated config value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Secrets that only matter for real traffic (JWT key, webhook secret) are
// required outside dev; all problems are reported together.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	var errs []error

	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		errs = append(errs, fmt.Errorf("invalid MongoDB URI: %w", err))
	}
	if appCfg.MongoDatabase == "" {
		errs = append(errs, errors.New("mongo_database is required"))
	}
	if strings.TrimSpace(appCfg.RootDomain) == "" {
		errs = append(errs, errors.New("root_domain is required (e.g., 'grouphub.com')"))
	}
	if len(appCfg.CookieKey) < 32 {
		errs = append(errs, errors.New("cookie_key must be at least 32 characters"))
	}

	if coreCfg.Env != "dev" {
		if appCfg.ClerkJWTPublicKey == "" {
			errs = append(errs, errors.New("clerk_jwt_public_key is required outside dev"))
		}
		if appCfg.ClerkWebhookSecret == "" {
			errs = append(errs, errors.New("clerk_webhook_secret is required outside dev"))
		}
	}

	switch appCfg.StorageType {
	case "local":
		if appCfg.StorageLocalPath == "" || appCfg.StorageLocalURL == "" {
			errs = append(errs, errors.New("local storage requires storage_local_path and storage_local_url"))
		}
	case "s3":
		if appCfg.StorageS3Bucket == "" || appCfg.StorageS3Region == "" {
			errs = append(errs, errors.New("s3 storage requires storage_s3_bucket and storage_s3_region"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage_type must be 'local' or 's3', got %q", appCfg.StorageType))
	}
	if appCfg.APIRateLimit < 0 {
		errs = append(errs, errors.New("api_rate_limit must not be negative"))
	}
	if _, err := clientip.Parse(appCfg.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("trusted_proxies: %w", err))
	}
	if appCfg.LogoMaxBytes <= 0 {
		errs = append(errs, errors.New("logo_max_bytes must be positive"))
	}

	for name, mode := range map[string]string{"audit_log_admin": appCfg.AuditLogAdmin, "audit_log_sync": appCfg.AuditLogSync} {
		switch mode {
		case auditlog.ModeAll, auditlog.ModeDB, auditlog.ModeLog, auditlog.ModeOff:
		default:
			errs = append(errs, fmt.Errorf("%s must be one of all, db, log, off; got %q", name, mode))
		}
	}

	return errors.Join(errs...)
}
