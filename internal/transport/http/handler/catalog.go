package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/domain"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/service"
	"go.uber.org/zap"
)

type CatalogHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

func NewCatalogHandler(catalog service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// GetProduct handles GET /api/products/:id. The price fields are a display
// quote at request time; checkout re-resolves them.
func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	wholesale := c.Get("X-Price-Tier") == "wholesale"

	priced, err := h.catalog.GetProduct(c.UserContext(), c.Params("id"), wholesale)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(priced)
}

func (h *CatalogHandler) ListShippingMethods(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"shipping_methods": domain.ShippingMethods()})
}
