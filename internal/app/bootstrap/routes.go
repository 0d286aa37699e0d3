// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"net/url"

	auditlogfeature "github.com/dalemusser/bloodhub/internal/app/features/auditlog"
	authgooglefeature "github.com/dalemusser/bloodhub/internal/app/features/authgoogle"
	dashboardfeature "github.com/dalemusser/bloodhub/internal/app/features/dashboard"
	donationrequestsfeature "github.com/dalemusser/bloodhub/internal/app/features/donationrequests"
	donorsfeature "github.com/dalemusser/bloodhub/internal/app/features/donors"
	errorsfeature "github.com/dalemusser/bloodhub/internal/app/features/errors"
	exportsfeature "github.com/dalemusser/bloodhub/internal/app/features/exports"
	fundingsfeature "github.com/dalemusser/bloodhub/internal/app/features/fundings"
	healthfeature "github.com/dalemusser/bloodhub/internal/app/features/health"
	livefeedfeature "github.com/dalemusser/bloodhub/internal/app/features/livefeed"
	loginfeature "github.com/dalemusser/bloodhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/bloodhub/internal/app/features/logout"
	profilefeature "github.com/dalemusser/bloodhub/internal/app/features/profile"
	settingsfeature "github.com/dalemusser/bloodhub/internal/app/features/settings"
	usersfeature "github.com/dalemusser/bloodhub/internal/app/features/users"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. BloodHub serves JSON only: it applies CORS, CSRF
// and session middleware, then mounts one router per feature.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.Services
	db := deps.BloodHubMongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Fresh user data on each request, so role changes and blocks take
	// effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db))

	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   appCfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-CSRF-Token", "X-Export-Key", "X-Export-Rows", "X-Export-Truncated", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if appCfg.CSRFKey != "" {
		if !secure {
			r.Use(markPlaintext)
		}
		r.Use(csrf.Protect([]byte(appCfg.CSRFKey),
			csrf.Secure(secure),
			csrf.Path("/"),
			csrf.TrustedOrigins(originHosts(appCfg.CORSOrigins)),
			csrf.ErrorHandler(http.HandlerFunc(csrfFailed)),
		))
	}

	// Loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	errorsfeature.NewHandler().Install(r)

	healthHandler := healthfeature.NewHandler(deps.BloodHubMongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication: /auth/register, /auth/login, /auth/me, /auth/csrf,
	// /auth/logout and, when configured, /auth/google/*.
	loginHandler := loginfeature.NewHandler(db, sessionMgr, errLog, svc.Audit, svc.Limiter, logger)
	authRouter := loginfeature.Routes(loginHandler)

	logoutHandler := logoutfeature.NewHandler(sessionMgr, svc.Audit, logger)
	authRouter.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

	if appCfg.GoogleClientID != "" {
		googleHandler := authgooglefeature.NewHandler(db, sessionMgr, errLog, svc.Audit,
			appCfg.SessionKey, appCfg.GoogleClientID, appCfg.GoogleClientSecret,
			appCfg.BaseURL, appCfg.FrontendURL, secure, logger)
		authRouter.Mount("/google", authgooglefeature.Routes(googleHandler))
	}
	r.Mount("/auth", authRouter)

	profileHandler := profilefeature.NewHandler(db, errLog, logger)
	r.Mount("/profile", profilefeature.Routes(profileHandler, sessionMgr))

	// Donation requests and donor search
	requestsHandler := donationrequestsfeature.NewHandler(db, errLog, svc.Audit, svc.Events, logger)
	r.Mount("/donation-requests", donationrequestsfeature.Routes(requestsHandler, sessionMgr))

	donorsHandler := donorsfeature.NewHandler(db, errLog, logger)
	r.Mount("/donors", donorsfeature.Routes(donorsHandler))
	r.Get("/blood-groups", donorsHandler.ServeBloodGroups)

	// Staff areas
	usersHandler := usersfeature.NewHandler(db, errLog, svc.Audit, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler, sessionMgr))

	fundingsHandler := fundingsfeature.NewHandler(db, errLog, svc.Audit, logger)
	r.Mount("/fundings", fundingsfeature.Routes(fundingsHandler, sessionMgr))

	dashboardHandler := dashboardfeature.NewHandler(db, errLog, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	var archive exportsfeature.Archiver
	if svc.Exports != nil {
		archive = svc.Exports
	}
	exportsHandler := exportsfeature.NewHandler(db, archive, errLog, logger)
	r.Mount("/exports", exportsfeature.Routes(exportsHandler, sessionMgr))

	settingsHandler := settingsfeature.NewHandler(db, errLog, svc.Audit, logger)
	r.Get("/site", settingsHandler.ServePublic)
	r.Route("/settings", func(sr chi.Router) {
		sr.Use(sessionMgr.RequireSignedIn)
		sr.Use(sessionMgr.RequireRole("admin"))
		settingsHandler.MountRoutes(sr)
	})

	auditHandler := auditlogfeature.NewHandler(db, errLog, logger)
	r.Mount("/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

	// Live request updates over websocket
	feedHandler := livefeedfeature.NewHandler(svc.Feed, logger)
	r.Mount("/ws", livefeedfeature.Routes(feedHandler, sessionMgr))

	return r, nil
}

// markPlaintext tells gorilla/csrf that a request arrived over plain HTTP,
// so local development without TLS still passes the origin checks.
func markPlaintext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			r = csrf.PlaintextHTTPRequest(r)
		}
		next.ServeHTTP(w, r)
	})
}

func csrfFailed(w http.ResponseWriter, r *http.Request) {
	jsonutil.Error(w, http.StatusForbidden, "Your session token is missing or expired. Refresh and try again.")
}

// originHosts turns "https://app.example.org" into "app.example.org".
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}
