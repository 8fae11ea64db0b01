package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/domain"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/service"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts  service.CartService
	logger *zap.Logger
}

func NewCartHandler(carts service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:  carts,
		logger: logger,
	}
}

func (h *CartHandler) Get(c *fiber.Ctx) error {
	customerID := c.Get("X-Customer-Id")
	if customerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing customer id",
		})
	}

	cart, err := h.carts.Load(c.UserContext(), customerID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(cart)
}

// Sync handles PUT /api/cart: the client posts its local cart and receives
// the reconciled one back. The response is authoritative; the client replaces
// its local copy with it.
func (h *CartHandler) Sync(c *fiber.Ctx) error {
	customerID := c.Get("X-Customer-Id")
	if customerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing customer id",
		})
	}

	localCart := new(domain.Cart)
	if err := c.BodyParser(localCart); err != nil {
		h.logger.Warn("failed to parse cart body", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	cart, err := h.carts.Sync(c.UserContext(), customerID, localCart)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(cart)
}
