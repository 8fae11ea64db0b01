package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/transport/http/handler"
)

type Handlers struct {
	Checkout  *handler.CheckoutHandler
	Promotion *handler.PromotionHandler
	Cart      *handler.CartHandler
	Catalog   *handler.CatalogHandler
}

type LimiterConfig struct {
	Max        int
	Expiration time.Duration
}

func RegisterRoutes(app *fiber.App, h *Handlers, limits LimiterConfig) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Checkout is rate limited per client; the limiter answers 429 before
	// the request reaches the transaction.
	orders := api.Group("/orders", limiter.New(limiter.Config{
		Max:        limits.Max,
		Expiration: limits.Expiration,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests",
			})
		},
	}))
	orders.Post("", h.Checkout.PlaceOrder)

	api.Get("/orders/:id", h.Checkout.GetOrder)

	cart := api.Group("/cart")
	cart.Get("", h.Cart.Get)
	cart.Put("", h.Cart.Sync)

	products := api.Group("/products")
	products.Get("/:id", h.Catalog.GetProduct)

	api.Get("/shipping-methods", h.Catalog.ListShippingMethods)

	promotions := api.Group("/promotions")
	promotions.Post("", h.Promotion.Create)
	promotions.Get("", h.Promotion.List)
	promotions.Get("/:id", h.Promotion.Get)
	promotions.Put("/:id", h.Promotion.Update)
	promotions.Post("/:id/products", h.Promotion.AssignProducts)
}
