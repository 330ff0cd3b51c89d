package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"github.com/ibistek-uty/incubation-api/internal/api/dto"
	"github.com/ibistek-uty/incubation-api/internal/observability"
	apperrors "github.com/ibistek-uty/incubation-api/pkg/util/errorutil"
)

// MiddlewareConfig bundles settings for the global middleware chain.
type MiddlewareConfig struct {
	CORSOrigin  string
	Timeout     time.Duration
	Development bool
}

// RegisterMiddlewares attaches global middlewares: CORS, per-request timeout,
// error handling and request logging, in that order.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, cfg MiddlewareConfig) {
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigin,
		AllowCredentials: true,
	}))
	if cfg.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(cfg.Timeout))
	}
	// The logger sits outside the error boundary so it records the status
	// actually written, not the pre-conversion one.
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics, cfg.Development))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorHandlingMiddleware is the single boundary where internal failures
// become the response envelope. Nothing below it writes error bodies, and no
// stack trace or internal message leaves the process outside development.
func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics, development bool) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}

			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				err = apperrors.NewDomainError("HTTP_ERROR", fiberErr.Message, fiberErr.Code)
			}

			domainErr := apperrors.ToDomainError(err)
			metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
			if domainErr.HTTPStatus >= 500 {
				logger.Error("request failed", zap.Error(domainErr))
			}

			message := domainErr.Message
			if domainErr.HTTPStatus >= 500 && development && domainErr.Err != nil {
				message = domainErr.Err.Error()
			}

			c.Status(domainErr.HTTPStatus)
			_ = c.JSON(dto.ErrorResponse(message))
			err = nil
		}()
		return c.Next()
	}
}
