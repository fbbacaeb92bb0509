package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/evura/portal-api/internal/handler"
	"github.com/evura/portal-api/internal/handler/patient"
	"github.com/evura/portal-api/internal/handler/prometheus"
	"github.com/evura/portal-api/internal/middleware"
)

const APIPrefix = "/api/v1"

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	metrics *prometheus.Handler
	config  RouterConfig
	public  []Handler
	private []Handler
}

type RouterConfig struct {
	// RateLimit of zero disables rate limiting.
	RateLimit      rate.Limit
	RateBurst      int
	CORSConfig     middleware.CORSConfig
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Mode           string
}

// Handlers groups the route sets. Public ones need no token; the rest sit
// behind authentication.
type Handlers struct {
	Health      Handler
	Auth        Handler
	Patient     Handler
	Doctor      Handler
	Appointment Handler
	Files       Handler
	AccessLog   Handler
}

func NewRouter(auth *middleware.AuthMiddleware, metrics *prometheus.Handler, h Handlers, config RouterConfig) *Router {
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	gin.SetMode(config.Mode)
	middleware.Validation()

	r := &Router{
		engine:  gin.New(),
		auth:    auth,
		metrics: metrics,
		config:  config,
		public:  []Handler{h.Health, h.Auth},
		private: []Handler{h.Patient, h.Doctor, h.Appointment, h.Files, h.AccessLog},
	}

	r.engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		metrics.Middleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.CORS(config.CORSConfig),
	)
	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		r.engine.Use(limiter.RateLimit())
	}

	sizeLimit := middleware.DefaultSizeLimitConfig()
	if config.MaxBodyBytes > 0 {
		sizeLimit.MaxBodySize = config.MaxBodyBytes
	}
	sizeLimit.SkipPaths = []string{APIPrefix + patient.UploadPath}
	r.engine.Use(
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(sizeLimit),
	)

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("route not found"))
	})
	return r
}

func (r *Router) Setup() *gin.Engine {
	r.engine.GET("/metrics", r.metrics.Handler())

	api := r.engine.Group(APIPrefix)
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	for _, h := range r.public {
		h.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	for _, h := range r.private {
		h.RegisterRoutes(protected)
	}
	return r.engine
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
