package api

import (
	"net"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/nexthire/nexthire-api/docs"
	"github.com/nexthire/nexthire-api/internal/api/handler"
	"github.com/nexthire/nexthire-api/internal/api/middleware"
	"github.com/nexthire/nexthire-api/internal/core/domain"
	"github.com/nexthire/nexthire-api/internal/core/ports"
	"github.com/nexthire/nexthire-api/internal/infrastructure/http/handlers"
)

const bodyLimit = "1M"

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Auth    ports.AuthService
	Jobs    ports.JobService
	Tokens  ports.TokenService
	Users   middleware.UserFinder
	Tracker middleware.InputTracker

	// HealthChecks are probed by /health/ready, keyed by dependency name.
	HealthChecks map[string]handlers.Check
	CORSOrigins  []string

	// TrustedProxies may set X-Forwarded-For. Without any, the client IP
	// is the socket peer.
	TrustedProxies []*net.IPNet

	// Registerer and Gatherer default to the global Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Log zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)
	e.IPExtractor = ipExtractor(deps.TrustedProxies)

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Secure())
	e.Use(echomiddleware.BodyLimit(bodyLimit))
	if len(deps.CORSOrigins) > 0 {
		e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins: deps.CORSOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "nexthire",
		Registerer: registerer,
	}))

	// --- Operational endpoints ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(deps.HealthChecks)
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)

	sanitize := middleware.Sanitize(deps.Tracker, deps.Log)
	auth := middleware.Auth(deps.Tokens, deps.Users)

	// --- Users ---
	userHandler := handler.NewUserHandler(deps.Auth)
	users := e.Group("/users")
	users.POST("/register", userHandler.Register, sanitize)
	users.POST("/login", userHandler.Login, sanitize)
	users.POST("/login-validation", userHandler.VerifyCode, sanitize)
	users.GET("/:userId/profile", userHandler.Profile, auth, middleware.OwnerOrRole("userId", domain.RoleMaster))

	// --- Jobs ---
	jobHandler := handler.NewJobHandler(deps.Jobs)
	jobs := e.Group("/jobs", auth)
	jobs.POST("/createjob", jobHandler.Create, sanitize)
	jobs.GET("/getjobs", jobHandler.ListAll, middleware.RBAC(domain.RoleMaster))
	jobs.GET("/:userId", jobHandler.ListByOwner, middleware.OwnerOrRole("userId", domain.RoleMaster))
	jobs.PATCH("/:id", jobHandler.Update, sanitize)
	jobs.DELETE("/:id", jobHandler.Delete)

	return e
}

// ipExtractor decides which address the attempt trackers key on. Forwarding
// headers are only believed when the peer is a configured proxy.
func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}
