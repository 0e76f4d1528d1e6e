package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/coursetree-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursetree-backend/internal/http/middleware"
	"github.com/yungbote/coursetree-backend/internal/observability"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

const serviceName = "coursetree-backend"

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	SessionHandler *httpH.SessionHandler
	EventsHandler  *httpH.EventsHandler
	BookHandler    *httpH.BookHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.TraceContext())
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	if cfg.Metrics != nil {
		r.Use(httpMW.Metrics(cfg.Metrics))
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}
	api.Use(httpMW.RequestLogger(cfg.Log))
	{
		// Sessions
		if cfg.SessionHandler != nil {
			api.POST("/sessions", cfg.SessionHandler.StartSession)
			api.GET("/sessions/:id", cfg.SessionHandler.GetSession)
			api.POST("/sessions/:id/selection", cfg.SessionHandler.SubmitSelection)
			api.GET("/example", cfg.SessionHandler.PreviewExample)
		}

		// Realtime (SSE)
		if cfg.EventsHandler != nil {
			api.GET("/sessions/:id/events", cfg.EventsHandler.StreamSession)
		}

		// Books
		if cfg.BookHandler != nil {
			api.GET("/books", cfg.BookHandler.ListBooks)
			api.GET("/books/:id", cfg.BookHandler.GetBook)
			api.GET("/books/:id/cover", cfg.BookHandler.GetCover)
		}
	}

	return r
}
