package http

import (
	"log/slog"
	"net/http"
	"time"

	_ "github.com/aussiebroadwan/hms/api/devapi" // Swagger docs
	"github.com/aussiebroadwan/hms/internal/devapi/service"
	"github.com/aussiebroadwan/hms/pkg/httpx"
	"github.com/aussiebroadwan/hms/pkg/jwtx"
	"github.com/aussiebroadwan/hms/pkg/slogx"
	httpSwagger "github.com/swaggo/http-swagger"
)

// APIPrefix is where every route is mounted.
const APIPrefix = "/api"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Metrics         *Metrics
	TokenService    *service.TokenService
	UserService     *service.UserService
	HospitalService *service.HospitalService
}

func NewRouter(verifier jwtx.Verifier, buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		Metrics:      NewMetrics(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerPatients()
	r.registerResources()
	r.registerSystem()

	r.Mux.Handle("GET /swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			HMS Development API
//	@version		0.1.0
//	@description	Development backend for the hospital management client. Issues HS256 access tokens,
//	@description	rotates them on protected requests once they enter the rotation window and serves seeded
//	@description	patient, billing, stock, maternity and HR data.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/hms
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/api
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers h on the mux, instrumented under its route pattern.
func (r *Router) handle(pattern string, h http.Handler) {
	r.Mux.Handle(pattern, httpx.Chain(h, r.Metrics.Instrument(pattern)))
}

// protected wraps h with authentication, implicit token rotation, an
// optional role check and the per-user rate limit.
func (r *Router) protected(h http.Handler, roles ...string) http.Handler {
	mws := []httpx.Middleware{
		httpx.AuthnMiddleware(r.verifier, r.TokenService.IsRevoked),
		RotateToken(r.TokenService, r.Metrics),
	}
	if len(roles) > 0 {
		mws = append(mws, httpx.RequireRole(roles...))
	}
	mws = append(mws, httpx.RateLimitByUser(httpx.APILimit))

	return httpx.Chain(h, mws...)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{UserService: r.UserService, TokenService: r.TokenService, Metrics: r.Metrics}
	me := &MeHandler{UserService: r.UserService}
	logout := &LogoutHandler{TokenService: r.TokenService, Metrics: r.Metrics}

	// POST /auth/login - strict rate limit per workstation and username
	r.handle("POST "+APIPrefix+"/auth/login",
		httpx.Chain(login,
			httpx.RateLimitLogin(httpx.LoginLimit),
		),
	)

	// GET /auth/me doubles as the refresh endpoint
	r.handle("GET "+APIPrefix+"/auth/me", r.protected(me))

	// Logout revokes the token, so it is not rotated
	r.handle("POST "+APIPrefix+"/auth/logout",
		httpx.Chain(logout,
			httpx.AuthnMiddleware(r.verifier, r.TokenService.IsRevoked),
			httpx.RateLimitByUser(httpx.APILimit),
		),
	)
}

func (r *Router) registerPatients() {
	h := &PatientsHandler{HospitalService: r.HospitalService}

	r.handle("GET "+APIPrefix+"/patients", r.protected(http.HandlerFunc(h.HandleList)))
	r.handle("GET "+APIPrefix+"/patients/{id}", r.protected(http.HandlerFunc(h.HandleGet)))
	r.handle("POST "+APIPrefix+"/patients",
		r.protected(http.HandlerFunc(h.HandleCreate),
			service.RoleAdmin, service.RoleDoctor, service.RoleNurse, service.RoleCashier,
		),
	)
}

func (r *Router) registerResources() {
	hs := r.HospitalService

	r.handle("GET "+APIPrefix+"/invoices",
		r.protected(InvoicesHandler(hs),
			service.RoleAdmin, service.RolePDG, service.RoleCashier,
		),
	)
	r.handle("GET "+APIPrefix+"/stock",
		r.protected(StockHandler(hs),
			service.RoleAdmin, service.RolePDG, service.RoleDoctor, service.RoleNurse, service.RolePharmacist,
		),
	)
	r.handle("GET "+APIPrefix+"/maternity",
		r.protected(MaternityHandler(hs),
			service.RoleAdmin, service.RolePDG, service.RoleDoctor, service.RoleNurse,
		),
	)
	r.handle("GET "+APIPrefix+"/hr/requests",
		r.protected(HRRequestsHandler(hs),
			service.RoleAdmin, service.RolePDG, service.RoleHR,
		),
	)
	r.handle("GET "+APIPrefix+"/dashboard",
		r.protected(DashboardHandler(hs),
			service.RoleAdmin, service.RolePDG,
		),
	)
}

func (r *Router) registerSystem() {
	// Health checks - public limit (monitoring systems may poll frequently)
	r.handle("GET "+APIPrefix+"/health",
		httpx.Chain(HealthHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	// Metrics are scraped from inside the deployment, not instrumented themselves
	r.Mux.Handle("GET /metrics", r.Metrics.Handler())
}
