package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gymmaster/internal/api/middleware"
	v1 "gymmaster/internal/api/v1"
	"gymmaster/internal/service"
	"gymmaster/internal/sse"
)

type Services struct {
	Auth       *service.AuthService
	User       *service.UserService
	Member     *service.MemberService
	Branch     *service.BranchService
	Membership *service.MembershipService
	Payment    *service.PaymentService
	Class      *service.ClassService
	CheckIn    *service.CheckInService
	Audit      *service.AuditService
	Report     *service.ReportService
}

type RouterConfig struct {
	Routes         v1.RouteOptions
	RefreshTTL     time.Duration
	AutoCloseHours int
	AllowOrigins   []string
	InternalToken  string
	DB             v1.Pinger
	PingTimeout    time.Duration
	SSEHub         *sse.Hub
	Logger         *zap.Logger
}

const maxRequestBody = 1 << 20

// NewRouter builds the full HTTP surface: health and metrics at the root,
// everything else under /api/v1.
func NewRouter(services Services, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Routes.Logger == nil {
		cfg.Routes.Logger = logger
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(buildCORSMiddleware(cfg.AllowOrigins))
	router.Use(middleware.BodyLimit(maxRequestBody))
	router.Use(middleware.RequestLogger(logger))

	v1.RegisterHealthRoutes(router, cfg.DB, cfg.PingTimeout, cfg.InternalToken)

	apiV1 := router.Group("/api/v1")
	opts := cfg.Routes
	v1.RegisterAuthRoutes(apiV1, services.Auth, cfg.RefreshTTL, opts)
	v1.RegisterUserRoutes(apiV1, services.User, opts)
	v1.RegisterMemberRoutes(apiV1, services.Member, opts)
	v1.RegisterBranchRoutes(apiV1, services.Branch, opts)
	v1.RegisterMembershipRoutes(apiV1, services.Membership, services.Member, opts)
	v1.RegisterPaymentRoutes(apiV1, services.Payment, opts)
	v1.RegisterClassRoutes(apiV1, services.Class, services.Member, opts)
	v1.RegisterCheckInRoutes(apiV1, services.CheckIn, services.Member, cfg.AutoCloseHours, opts)
	v1.RegisterAuditRoutes(apiV1, services.Audit, opts)
	v1.RegisterReportRoutes(apiV1, services.Report, opts)
	v1.RegisterSSERoutes(apiV1, cfg.SSEHub, opts)

	return router
}

func buildCORSMiddleware(allowOrigins []string) gin.HandlerFunc {
	origins := make([]string, 0, len(allowOrigins))
	for _, origin := range allowOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		origins = append(origins, trimmed)
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Last-Event-ID", "X-Internal-Token"},
		ExposeHeaders:    []string{"Content-Type", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
