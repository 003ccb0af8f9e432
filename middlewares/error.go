package middlewares

import (
	"errors"
	"log/slog"

	"virtualbank-gateway/apperrors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// retryAfterSeconds is sent with retryable errors.
const retryAfterSeconds = "1"

// ErrorHandler centralizes error responses. Every body carries a stable
// "error" kind and a sanitized message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Our own errors
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		status := apperrors.StatusOf(appErr)
		if apperrors.Retryable(appErr.Kind) {
			c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
		}
		message := appErr.Message
		if appErr.Kind == apperrors.KindInternal || status >= fiber.StatusInternalServerError {
			logError(c, err)
		}
		if appErr.Kind == apperrors.KindInternal {
			message = "internal server error"
		}
		body := fiber.Map{"error": string(appErr.Kind), "message": message}
		if len(appErr.Fields) > 0 {
			body["fields"] = appErr.Fields
		}
		return c.Status(status).JSON(body)
	}

	// 2) Fiber errors (use their status code + message)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"error":   string(kindForStatus(fe.Code)),
			"message": fe.Message,
		})
	}

	// 3) Validation errors (422 + per-field info)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   string(apperrors.KindValidation),
			"message": "validation failed",
			"fields":  fieldErrors(ve),
		})
	}

	// 4) Unknown errors (500)
	logError(c, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   string(apperrors.KindInternal),
		"message": "internal server error",
	})
}

func kindForStatus(code int) apperrors.Kind {
	switch code {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
		return apperrors.KindValidation
	case fiber.StatusUnauthorized:
		return apperrors.KindUnauthorized
	case fiber.StatusForbidden:
		return apperrors.KindForbidden
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return apperrors.KindNotFound
	case fiber.StatusConflict:
		return apperrors.KindInFlightConflict
	case fiber.StatusServiceUnavailable:
		return apperrors.KindStoreUnavailable
	default:
		return apperrors.KindInternal
	}
}

func logError(c *fiber.Ctx, err error) {
	slog.Default().Error("request failed",
		"event", "http_request_failed",
		"module", "http",
		"layer", "transport",
		"method", c.Method(),
		"path", c.Path(),
		"request_id", RequestID(c),
		"error", err.Error(),
	)
}
