package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/loyalty-ledger/internal/service"
)

// detailer is implemented by service errors that carry structured context.
type detailer interface {
	Details() map[string]any
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrTierTooLow),
		errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAlreadyUsed),
		errors.Is(err, service.ErrNotApproved),
		errors.Is(err, service.ErrAccountExists):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrRewardInactive):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err as {"error": ..., "details": ...}.
// Server errors are logged with the request context and never leak their message.
func writeError(c *fiber.Ctx, err error, msg string) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg(msg)
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}

	body := fiber.Map{"error": err.Error()}
	var d detailer
	if errors.As(err, &d) {
		body["details"] = d.Details()
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// bind parses the JSON body into req and validates it.
// It returns false after writing a 400 response.
func bind(c *fiber.Ctx, v *validator.Validate, req any) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, badRequest(c, "invalid request body")
	}
	if err := v.Struct(req); err != nil {
		return false, badRequest(c, formatValidationError(err))
	}
	return true, nil
}

// formatValidationError converts the first validator error to a client message.
// Field names are the JSON names registered by the validator package.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}

	fe := ve[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return "invalid request: " + field + " is required"
	case "notblank":
		return "invalid request: " + field + " cannot be whitespace only"
	case "max":
		return "invalid request: " + field + " exceeds maximum length of " + fe.Param()
	case "gte":
		return "invalid request: " + field + " must be at least " + fe.Param()
	case "uuid":
		return "invalid request: " + field + " must be a valid UUID"
	case "oneof":
		return "invalid request: " + field + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "invalid request: " + field + " is invalid"
	}
}

// paramUUID reads a path parameter as a UUID.
func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func invalidID(c *fiber.Ctx, name string) error {
	return badRequest(c, "invalid request: "+name+" must be a valid UUID")
}
