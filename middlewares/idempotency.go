package middlewares

import (
	"errors"
	"log/slog"
	"strings"

	"virtualbank-gateway/apperrors"
	"virtualbank-gateway/idempotency"

	"github.com/gofiber/fiber/v2"
)

// ReplayHeader marks a response served from a stored idempotency record.
const ReplayHeader = "X-Idempotency-Replayed"

// DegradedHeader flags a committed request whose follow-up work failed.
const DegradedHeader = "X-Degraded"

// storedHeaders are the response headers kept with the body and replayed.
var storedHeaders = []string{DegradedHeader, fiber.HeaderLocation}

// Idempotency guards mutating routes with the client token found in header.
// Requests without a token pass through untouched. A completed request is
// replayed byte for byte; its handler never runs twice.
func Idempotency(coord *idempotency.Coordinator, header string, logger *slog.Logger) fiber.Handler {
	if header == "" {
		header = "Idempotency-Key"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		token := strings.TrimSpace(c.Get(header))
		if token == "" {
			return c.Next()
		}
		if len(token) > idempotency.MaxTokenLength {
			return apperrors.BadRequest(header+" too long", nil)
		}

		ctx := c.UserContext()
		checksum := idempotency.Checksum(method, c.Path(), c.Body())

		claim, err := coord.Claim(ctx, token, checksum)
		if err != nil {
			return err
		}
		if claim.Replay {
			c.Set(ReplayHeader, "true")
			for k, v := range claim.Headers {
				c.Set(k, v)
			}
			if claim.ContentType != "" {
				c.Set(fiber.HeaderContentType, claim.ContentType)
			}
			return c.Status(claim.Status).Send(claim.Body)
		}

		if err := c.Next(); err != nil {
			if releasable(err) {
				if relErr := coord.Release(ctx, claim); relErr != nil {
					logger.Warn("idempotency claim release failed",
						"event", "idempotency_release_failed",
						"module", "idempotency",
						"layer", "transport",
						"idempotency_key", token,
						"request_id", RequestID(c),
						"error", relErr.Error(),
					)
				}
			}
			return err
		}

		status := c.Response().StatusCode()
		contentType := string(c.Response().Header.ContentType())
		if err := coord.Resolve(ctx, claim, status, c.Response().Body(), contentType, responseHeaders(c)); err != nil {
			// the mutation is committed; the response still goes out
			logger.Error("idempotency resolution failed",
				"event", "idempotency_resolve_failed",
				"module", "idempotency",
				"layer", "transport",
				"idempotency_key", token,
				"request_id", RequestID(c),
				"error", err.Error(),
			)
		}
		return nil
	}
}

func responseHeaders(c *fiber.Ctx) map[string]string {
	var out map[string]string
	for _, name := range storedHeaders {
		if v := string(c.Response().Header.Peek(name)); v != "" {
			if out == nil {
				out = make(map[string]string, len(storedHeaders))
			}
			out[name] = v
		}
	}
	return out
}

// releasable reports whether err proves the handler rejected the request
// before changing any state.
func releasable(err error) bool {
	if apperrors.KindOf(err) == apperrors.KindValidation {
		return true
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code == fiber.StatusBadRequest || fe.Code == fiber.StatusUnprocessableEntity
	}
	return false
}
