package controllers

import (
	"virtualbank-gateway/apperrors"
	"virtualbank-gateway/middlewares"
	"virtualbank-gateway/services"

	"github.com/gofiber/fiber/v2"
)

// DegradedHeader flags a committed request whose follow-up work failed.
const DegradedHeader = middlewares.DegradedHeader

func requestMeta(c *fiber.Ctx) services.RequestMeta {
	meta := services.RequestMeta{CorrelationID: middlewares.RequestID(c)}
	if p, ok := middlewares.PrincipalFrom(c); ok {
		meta.SessionID = p.SessionID
	}
	return meta
}

// accepted answers 202 for a workflow that committed. A publish failure after
// commit still answers 202, marked as degraded; any other error is returned
// to the error handler.
func accepted(c *fiber.Ctx, runErr error, body fiber.Map) error {
	if runErr != nil {
		if apperrors.KindOf(runErr) != apperrors.KindPublishFailure {
			return runErr
		}
		c.Set(DegradedHeader, string(apperrors.KindPublishFailure))
		body["degraded"] = string(apperrors.KindPublishFailure)
	}
	return c.Status(fiber.StatusAccepted).JSON(body)
}
