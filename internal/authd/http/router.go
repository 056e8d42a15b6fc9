package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/oakmont/authd/internal/authd/service"
	"github.com/oakmont/authd/internal/authd/store"
	"github.com/oakmont/authd/pkg/httpx"
	"github.com/oakmont/authd/pkg/jwtx"
	"github.com/oakmont/authd/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     *jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	LoginService   *service.LoginService
	SessionService *service.SessionRegistryService
	KeyringService *service.KeyringService
	AuditTrail     service.AuditTrail
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier *jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSessions()
	r.registerKeys()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /login - strict rate limit by IP + username so one address
	// cannot grind a single account while staying under the IP budget.
	loginHandler := &LoginHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "username"),
		),
	)

	// POST /mfa - strict rate limit by IP (prevents TOTP code grinding)
	mfaHandler := &MFAHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /v1/auth/mfa",
		httpx.Chain(mfaHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /refresh - moderate rate limit by IP
	refreshHandler := &RefreshHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /logout - moderate rate limit by IP
	logoutHandler := &LogoutHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logoutHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /logout-all - authenticated, limited per account
	logoutAllHandler := &LogoutAllHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(logoutAllHandler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByAccount(httpx.ModerateLimit),
		),
	)

	// POST /verify - moderate rate limit by IP (resource servers poll this)
	verifyHandler := &VerifyHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /v1/auth/verify",
		httpx.Chain(verifyHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /register - strict rate limit by IP (public signup endpoint)
	registerHandler := &RegisterHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(registerHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{Sessions: r.SessionService}

	secured := httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByAccount(httpx.ModerateLimit),
	)

	r.Mux.Handle("GET /v1/sessions", secured)
}

func (r *Router) registerKeys() {
	h := &KeysHandler{
		Keyring: r.KeyringService,
		Keys:    r.store.SigningKeys(),
		Audit:   r.AuditTrail,
	}

	// POST /v1/keys/rotate - admin only
	securedRotate := httpx.Chain(http.HandlerFunc(h.HandleRotate),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyRole("admin"),
		httpx.RateLimitByAccount(httpx.ModerateLimit),
	)

	// GET /v1/keys - admin only
	securedList := httpx.Chain(http.HandlerFunc(h.HandleList),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyRole("admin"),
		httpx.RateLimitByAccount(httpx.ModerateLimit),
	)

	r.Mux.Handle("POST /v1/keys/rotate", securedRotate)
	r.Mux.Handle("GET /v1/keys", securedList)

	// GET /.well-known/jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
