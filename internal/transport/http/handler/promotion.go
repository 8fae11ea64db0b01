package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/service"
	"go.uber.org/zap"
)

type PromotionHandler struct {
	promotions service.PromotionService
	logger     *zap.Logger
}

func NewPromotionHandler(promotions service.PromotionService, logger *zap.Logger) *PromotionHandler {
	return &PromotionHandler{
		promotions: promotions,
		logger:     logger,
	}
}

func (h *PromotionHandler) Create(c *fiber.Ctx) error {
	input := new(service.PromotionInput)

	if err := c.BodyParser(input); err != nil {
		h.logger.Warn("failed to parse promotion body", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	promotion, err := h.promotions.Create(c.UserContext(), input)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(promotion)
}

func (h *PromotionHandler) Update(c *fiber.Ctx) error {
	input := new(service.PromotionInput)

	if err := c.BodyParser(input); err != nil {
		h.logger.Warn("failed to parse promotion body", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	promotion, err := h.promotions.Update(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(promotion)
}

func (h *PromotionHandler) Get(c *fiber.Ctx) error {
	promotion, err := h.promotions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(promotion)
}

func (h *PromotionHandler) List(c *fiber.Ctx) error {
	promotions, err := h.promotions.List(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"promotions": promotions})
}

type assignProductsInput struct {
	ProductIDs []string `json:"productIds"`
}

// AssignProducts handles POST /api/promotions/:id/products. A conflicting
// assignment rejects the whole batch with 400 so the admin sees exactly which
// product blocked it.
func (h *PromotionHandler) AssignProducts(c *fiber.Ctx) error {
	input := new(assignProductsInput)

	if err := c.BodyParser(input); err != nil {
		h.logger.Warn("failed to parse assignment body", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	assignments, err := h.promotions.AssignProducts(c.UserContext(), c.Params("id"), input.ProductIDs)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"assigned": len(assignments),
	})
}
