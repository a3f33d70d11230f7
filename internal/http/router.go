package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/arseniyrs/userhub/internal/auth"
	"github.com/arseniyrs/userhub/internal/cache"
	"github.com/arseniyrs/userhub/internal/config"
	"github.com/arseniyrs/userhub/internal/domain/user"
	"github.com/arseniyrs/userhub/internal/http/handlers"
	"github.com/arseniyrs/userhub/internal/http/middlewares"
	"github.com/arseniyrs/userhub/internal/observability"
	"github.com/arseniyrs/userhub/internal/security"
)

// NewRouter wires middleware, the user endpoints and the ops surface.
// loginLimiter, prom and ping may be nil (tests run without redis, metrics
// or a database).
func NewRouter(
	log *slog.Logger,
	cfg config.Config,
	store handlers.UserStore,
	jwtManager *auth.Manager,
	loginLimiter security.LoginLimiter,
	prom *observability.Prom,
	ping func() error,
) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(otelgin.Middleware("userhub"))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))

	maxBody := cfg.MaxBodyBytes

	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	r.Use(middlewares.MaxBodyBytes(maxBody))

	if prom != nil {
		r.Use(prom.GinHandleMiddleware())
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	usersCache := cache.New[user.User](cfg.UserCacheTTL())
	usersHandler := handlers.NewUsersHandler(store, jwtManager, loginLimiter, usersCache, prom)
	authMiddleware := middlewares.NewAuthMiddleware(jwtManager)
	limiter := middlewares.NewRateLimiter(cfg.RateLimit, cfg.RateWindow())

	api := r.Group("/api")

	public := api.Group("", middlewares.RequireJSON(), limiter.Middleware(middlewares.KeyByIP))
	public.POST("/users", usersHandler.Register)
	public.POST("/users/login", usersHandler.Login)

	me := api.Group("/user", authMiddleware.RequireAuth(), limiter.Middleware(middlewares.KeyByUserOrIP))
	me.GET("", usersHandler.Current)
	me.PUT("", usersHandler.UpdateCurrent)

	return r
}
