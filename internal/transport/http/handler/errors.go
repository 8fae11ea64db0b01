package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/repository"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/service"
	"go.uber.org/zap"
)

// respondError maps the service error taxonomy onto HTTP statuses:
// malformed/invalid input is 400, a promotion-assignment conflict is 400
// with a details object naming the product and the blocking promotion,
// business-rule rejections are 422 with the user-facing message, and
// everything else is an opaque 500. Infrastructure detail never leaks to
// the client.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation failed",
			"details": verr.Fields,
		})
	}

	// The conflict can surface from create, update, and assignment alike;
	// all three answer it the same way.
	var conflict *service.PromotionConflictError
	if errors.As(err, &conflict) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": conflict.Error(),
			"details": fiber.Map{
				"product_name":   conflict.ProductName,
				"product_sku":    conflict.ProductSKU,
				"promotion_name": conflict.PromotionName,
			},
		})
	}

	if errors.Is(err, repository.ErrPromotionNotFound) ||
		errors.Is(err, repository.ErrOrderNotFound) ||
		errors.Is(err, repository.ErrProductNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not found",
		})
	}

	if service.IsBusinessError(err) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logger.Error("request failed", zap.Error(err))

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "No se pudo procesar la solicitud. Inténtalo de nuevo.",
	})
}
