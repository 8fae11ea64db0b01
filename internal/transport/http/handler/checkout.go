package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/service"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/logging"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	checkout service.CheckoutService
	logger   *zap.Logger
}

func NewCheckoutHandler(checkout service.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		logger:   logger,
	}
}

// PlaceOrder handles POST /api/orders. The request DTO has no price fields:
// any prices the client includes in its JSON fall on the floor at decode
// time, and the order is priced from the catalog inside the commit
// transaction.
func (h *CheckoutHandler) PlaceOrder(c *fiber.Ctx) error {
	input := new(service.PlaceOrderRequest)

	if err := c.BodyParser(input); err != nil {
		h.logger.Warn("failed to parse order body", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	// Identity comes from the gateway, never from the body.
	input.CustomerID = c.Get("X-Customer-Id")
	input.Wholesale = c.Get("X-Price-Tier") == "wholesale"

	order, err := h.checkout.PlaceOrder(c.UserContext(), input)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	logging.Info(
		c.UserContext(),
		h.logger,
		"order placed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       string(order.Status),
		"subtotal":     order.Subtotal,
		"tax":          order.Tax,
		"shipping":     order.Shipping,
		"total":        order.Total,
	})
}

func (h *CheckoutHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.checkout.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(order)
}
