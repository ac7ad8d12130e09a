package router

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"genstudio/internal/config"
	apperrors "genstudio/internal/errors"
	"genstudio/internal/handler"
	"genstudio/internal/service"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	logger *zap.Logger,
	gatherer prometheus.Gatherer,
	authService service.AuthService,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	generationHandler *handler.GenerationHandler,
) {
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if cfg.MaxUploadSize != "" {
		e.Use(middleware.BodyLimit(cfg.MaxUploadSize))
	}

	// Add validator
	e.Validator = handler.NewValidator()

	e.GET("/healthz", handler.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	if cfg.PublicDir != "" {
		e.Static("/static", cfg.PublicDir)
	}

	// Public routes
	e.POST("/auth/signup", authHandler.Signup)
	e.POST("/auth/login", authHandler.Login)

	// Secured routes (require JWT authentication)
	requireAuth := echojwt.WithConfig(echojwt.Config{
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return authService.Authenticate(c.Request().Context(), token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, apperrors.MapErrorToHTTP(apperrors.ErrUnauthorized).ToErrorResponse())
		},
	})

	e.POST("/auth/logout", authHandler.Logout, requireAuth)
	e.GET("/auth/me", userHandler.Me, requireAuth)
	e.POST("/generations", generationHandler.Create, requireAuth)
	e.GET("/generations", generationHandler.List, requireAuth)
}
