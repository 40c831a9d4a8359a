// Package httpx holds the fiber wiring shared by the server and handler tests.
package httpx

import (
	"errors"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ErrorHandler renders every error as {"error": msg}. Unknown errors are
// logged and reported as a generic 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		body := fiber.Map{"error": ae.Message, "kind": ae.Kind}
		if ae.Kind == apperr.KindInsufficientStock {
			body["available"] = ae.Available
		}
		if ae.Kind == apperr.KindStorage {
			config.LogError(config.GetLogger(), "http", c.Route().Path, "storage failure", logrus.Fields{"method": c.Method()}, err)
		}
		return c.Status(apperr.HTTPStatus(err)).JSON(body)
	}

	config.LogError(config.GetLogger(), "http", c.Route().Path, "unexpected error", logrus.Fields{"method": c.Method()}, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": apperr.PublicMessage(err)})
}

// NewApp returns a fiber app that uses ErrorHandler.
func NewApp(bodyLimit int) *fiber.App {
	cfg := fiber.Config{ErrorHandler: ErrorHandler}
	if bodyLimit > 0 {
		cfg.BodyLimit = bodyLimit
	}
	return fiber.New(cfg)
}
