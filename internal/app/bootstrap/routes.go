// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	auditlogfeature "github.com/dalemusser/grouphub/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/grouphub/internal/app/features/errors"
	groupsfeature "github.com/dalemusser/grouphub/internal/app/features/groups"
	healthfeature "github.com/dalemusser/grouphub/internal/app/features/health"
	homefeature "github.com/dalemusser/grouphub/internal/app/features/home"
	membersfeature "github.com/dalemusser/grouphub/internal/app/features/members"
	orgfeature "github.com/dalemusser/grouphub/internal/app/features/org"
	postsfeature "github.com/dalemusser/grouphub/internal/app/features/posts"
	webhooksfeature "github.com/dalemusser/grouphub/internal/app/features/webhooks"
	auditstore "github.com/dalemusser/grouphub/internal/app/store/audit"
	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/grouphub/internal/app/store/memberships"
	organizationstore "github.com/dalemusser/grouphub/internal/app/store/organizations"
	poststore "github.com/dalemusser/grouphub/internal/app/store/posts"
	userstore "github.com/dalemusser/grouphub/internal/app/store/users"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/auth"
	"github.com/dalemusser/grouphub/internal/app/system/clientip"
	"github.com/dalemusser/grouphub/internal/app/system/currentgroup"
	"github.com/dalemusser/grouphub/internal/app/system/flash"
	"github.com/dalemusser/grouphub/internal/app/system/groupctx"
	"github.com/dalemusser/grouphub/internal/app/system/guard"
	"github.com/dalemusser/grouphub/internal/app/system/identity"
	"github.com/dalemusser/grouphub/internal/app/system/logostore"
	"github.com/dalemusser/grouphub/internal/app/system/metrics"
	"github.com/dalemusser/grouphub/internal/app/system/orgsync"
	"github.com/dalemusser/grouphub/internal/app/system/ratelimit"
	"github.com/dalemusser/grouphub/internal/app/system/tenant"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// Request flow: metrics, then the tenant rewrite ({org}.root/app/* becomes
// /org/{org}/*), then session resolution. Everything under /org/{slug} also
// passes the sign-in check and the organization guard; group routes
// additionally load the group named in the path.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	provider, err := identity.NewClerk(identity.ClerkConfig{
		APIURL:            appCfg.ClerkAPIURL,
		SecretKey:         appCfg.ClerkSecretKey,
		PublicKeyPEM:      appCfg.ClerkJWTPublicKey,
		AuthorizedParties: appCfg.ClerkAuthorizedParties,
	}, logger)
	if err != nil {
		logger.Error("identity provider init failed", zap.Error(err))
		return nil, err
	}
	return buildRouter(coreCfg, appCfg, deps, provider, logger)
}

// buildRouter wires every feature against provider. Tests call it with a
// fake provider.
func buildRouter(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, provider identity.Provider, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase
	secure := coreCfg.Env == "prod"

	proxies, err := clientip.Parse(appCfg.TrustedProxies)
	if err != nil {
		logger.Error("trusted proxies invalid", zap.Error(err))
		return nil, err
	}
	audit := auditlog.New(auditstore.New(db), logger, auditlog.Config{
		Admin:   appCfg.AuditLogAdmin,
		Sync:    appCfg.AuditLogSync,
		Proxies: proxies,
	})
	syncer := orgsync.New(db, provider, audit, logger)

	flashStore, err := flash.New(appCfg.CookieKey, secure, logger)
	if err != nil {
		logger.Error("flash store init failed", zap.Error(err))
		return nil, err
	}
	current, err := currentgroup.New(appCfg.CookieKey, secure, appCfg.CurrentGroupMaxAge, logger)
	if err != nil {
		logger.Error("current group resolver init failed", zap.Error(err))
		return nil, err
	}
	logos, err := newLogoStore(appCfg)
	if err != nil {
		logger.Error("logo storage init failed", zap.Error(err))
		return nil, err
	}

	m := metrics.New(map[string]metrics.Counter{
		"organizations": organizationstore.New(db),
		"users":         userstore.New(db),
		"groups":        groupstore.New(db),
		"memberships":   membershipstore.New(db),
		"posts":         poststore.New(db),
	}, timeouts.Short(), logger)

	orgGuard := guard.New(syncer, membershipstore.New(db), flashStore, logger)

	// Create error logger for handlers.
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Use(tenant.Middleware(appCfg.RootDomain, appCfg.AppPrefix, logger))
	r.Use(auth.Middleware(provider, logger))

	r.NotFound(errorsfeature.NotFound)
	r.MethodNotAllowed(errorsfeature.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", m.Handler())

	if appCfg.StorageType == "local" {
		prefix := "/" + strings.Trim(appCfg.StorageLocalURL, "/")
		r.Handle(prefix+"/*", fileserver.Handler(prefix, appCfg.StorageLocalPath))
	}

	// Public pages
	homeHandler := homefeature.NewHandler(flashStore, logger)
	r.Mount("/", homefeature.Routes(homeHandler))
	r.With(auth.RequireSignedIn).Get("/org", homeHandler.ServeOrgRedirect)

	// Provider webhooks; browsers on other origins may call /api.
	webhooksHandler := webhooksfeature.NewHandler(appCfg.ClerkWebhookSecret, syncer, audit, m, logger)
	var apiLimiter *ratelimit.Limiter
	if appCfg.APIRateLimit > 0 {
		apiLimiter = ratelimit.New(appCfg.APIRateLimit, time.Minute)
	}
	r.Route("/api", func(api chi.Router) {
		api.Use(corsHandler(coreCfg, appCfg))
		api.Use(ratelimit.Middleware(apiLimiter, proxies, logger))
		api.Mount("/webhooks", webhooksfeature.Routes(webhooksHandler))
	})

	orgHandler := orgfeature.NewHandler(db, provider, current, errLog, logger)
	groupsHandler := groupsfeature.NewHandler(db, logos, appCfg.LogoMaxBytes, current, audit, errLog, logger)
	membersHandler := membersfeature.NewHandler(db, provider, syncer, audit, errLog, logger)
	postsHandler := postsfeature.NewHandler(db, current, flashStore, audit, errLog, logger)
	auditHandler := auditlogfeature.NewHandler(db, errLog, logger)

	r.Route("/org/{slug}", func(or chi.Router) {
		or.Use(auth.RequireSignedIn, orgGuard.Org)

		or.Route("/groups", func(gr chi.Router) {
			gr.Post("/", groupsHandler.HandleCreate)
			gr.Route("/{groupSlug}", func(g chi.Router) {
				g.Use(groupctx.Load(groupstore.New(db), current, logger))
				g.Mount("/members", membersfeature.Routes(membersHandler))
				g.Mount("/posts", postsfeature.Routes(postsHandler))
				g.Mount("/", groupsfeature.Routes(groupsHandler))
			})
		})

		or.Mount("/posts", postsfeature.OrgRoutes(postsHandler))
		or.Mount("/audit", auditlogfeature.Routes(auditHandler))
		or.Mount("/", orgfeature.Routes(orgHandler))
	})

	return r, nil
}

// newLogoStore picks the configured logo backend.
func newLogoStore(appCfg AppConfig) (logostore.Store, error) {
	switch appCfg.StorageType {
	case "local":
		local, err := logostore.NewLocal(appCfg.StorageLocalPath, appCfg.StorageLocalURL)
		if err != nil {
			return nil, err
		}
		return local, nil
	case "s3":
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Medium())
		defer cancel()
		s3, err := logostore.NewS3(ctx, logostore.S3Config{
			Region:    appCfg.StorageS3Region,
			Bucket:    appCfg.StorageS3Bucket,
			Prefix:    appCfg.StorageS3Prefix,
			PublicURL: appCfg.StorageS3PublicURL,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	return nil, fmt.Errorf("unknown storage type %q", appCfg.StorageType)
}

// corsHandler allows the configured origins, or any origin in dev when none
// are configured. Credentials are only allowed for explicit origins.
func corsHandler(coreCfg *config.CoreConfig, appCfg AppConfig) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: appCfg.CORSAllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"svix-id",
			"svix-timestamp",
			"svix-signature",
		},
		AllowCredentials: len(appCfg.CORSAllowedOrigins) > 0,
		MaxAge:           300,
	}
	if len(opts.AllowedOrigins) == 0 && coreCfg.Env == "dev" {
		opts.AllowedOrigins = []string{"*"}
	}
	return cors.Handler(opts)
}
