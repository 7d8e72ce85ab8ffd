package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"cdoportal/internal/domain"
	"cdoportal/internal/logging"
)

// CatalogService is the read side served by the list and stats routes.
type CatalogService interface {
	List(ctx context.Context, kind domain.Kind, filter domain.Filter) ([]domain.Item, error)
	Stats(ctx context.Context, kind domain.Kind) (domain.Stats, error)
}

// Seeder runs ingestion with sample fallback for one kind.
type Seeder interface {
	SeedSample(ctx context.Context, kind domain.Kind) (int, error)
}

// CareerService backs the AI career tools.
type CareerService interface {
	ReviewResume(ctx context.Context, resumeText, jobDescription string) (string, error)
	PrepareInterview(ctx context.Context, jobTitle, agency string) (string, error)
	SendMessage(ctx context.Context, messages []domain.Message) (string, error)
}

// Deps collects what the HTTP surface needs. Metrics may be nil.
type Deps struct {
	Catalog   CatalogService
	Seeder    Seeder
	Career    CareerService
	Metrics   http.Handler
	JWTSecret string
	Logger    *slog.Logger
}

// NewServer builds the echo instance with middleware and every route registered.
func NewServer(deps Deps) *echo.Echo {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/healthz"
		},
		LogStatus:    true,
		LogURI:       true,
		LogError:     true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Error("request failed", append(attrs, "error", v.Error.Error())...)
				return nil
			}
			logger.Info("request completed", attrs...)
			return nil
		},
	}))

	h := &handlers{catalog: deps.Catalog, seeder: deps.Seeder, career: deps.Career, logger: logger}
	admin := RequireAdmin(deps.JWTSecret)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(deps.Metrics))
	}

	api := e.Group("/api")
	for _, kind := range domain.Kinds {
		g := api.Group("/" + string(kind))
		g.GET("/list", h.list(kind))
		g.GET("/stats", h.stats(kind))
		g.POST("/seed-sample", h.seedSample(kind), admin)
	}

	api.POST("/career/review-resume", h.reviewResume)
	api.POST("/career/prepare-interview", h.prepareInterview)
	api.POST("/chat/send-message", h.sendMessage)

	return e
}
