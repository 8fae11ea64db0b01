package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/domain"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/repository"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/logging"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/outbox"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxOrderNumberAttempts bounds the regenerate-and-retry loop on an
// order_number unique violation.
const maxOrderNumberAttempts = 5

type CustomerInfoInput struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
	TaxID     string `json:"taxId"`
}

type ShippingAddressInput struct {
	Address1   string `json:"address1" validate:"required"`
	Address2   string `json:"address2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country"`
}

// OrderLineInput deliberately has no price field: whatever price the client
// sends is dropped at decode time and re-resolved from the catalog.
type OrderLineInput struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,gte=1,lte=9999"`
}

type PlaceOrderRequest struct {
	CustomerInfo    CustomerInfoInput    `json:"customerInfo" validate:"required"`
	ShippingAddress ShippingAddressInput `json:"shippingAddress" validate:"required"`
	ShippingMethod  string               `json:"shippingMethod" validate:"required"`
	PaymentMethod   string               `json:"paymentMethod" validate:"required"`
	Notes           string               `json:"notes" validate:"max=500"`
	Items           []OrderLineInput     `json:"items" validate:"required,min=1,dive"`

	// Set by the caller, never bound from the request body.
	CustomerID string `json:"-"`
	Wholesale  bool   `json:"-"`
}

type CheckoutService interface {
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type OrderNumberFunc func(now time.Time) string

type checkoutService struct {
	pool        *pgxpool.Pool
	logger      *zap.Logger
	validate    *validator.Validate
	productRepo repository.ProductRepository
	promoRepo   repository.PromotionRepository
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	outboxRepo  outbox.Repository
	tracer      trace.Tracer
	taxRate     decimal.Decimal
	orderNumber OrderNumberFunc
}

type CheckoutOption func(*checkoutService)

// WithOrderNumberFunc overrides order number generation. Used by tests to
// force collisions.
func WithOrderNumberFunc(fn OrderNumberFunc) CheckoutOption {
	return func(s *checkoutService) {
		s.orderNumber = fn
	}
}

func NewCheckoutService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	productRepo repository.ProductRepository,
	promoRepo repository.PromotionRepository,
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	outboxRepo outbox.Repository,
	taxRate decimal.Decimal,
	orderPrefix string,
	opts ...CheckoutOption,
) CheckoutService {
	s := &checkoutService{
		pool:        pool,
		logger:      logger,
		validate:    validator.New(),
		productRepo: productRepo,
		promoRepo:   promoRepo,
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		outboxRepo:  outboxRepo,
		tracer:      otel.Tracer("checkout_service"),
		taxRate:     taxRate,
		orderNumber: func(now time.Time) string {
			return domain.NewOrderNumber(orderPrefix, now)
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// PlaceOrder turns a cart submission into a committed, priced,
// stock-decremented order. Everything after validation runs inside one
// transaction: authoritative re-pricing, stock checks, the order write and
// the stock decrements either all land or none do.
func (s *checkoutService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.PlaceOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int("items_count", len(req.Items)),
	)

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, &ValidationError{Fields: formatValidationErrors(verrs)}
		}

		return nil, err
	}

	method, ok := domain.ShippingMethodByID(req.ShippingMethod)
	if !ok {
		return nil, &ValidationError{Fields: map[string]string{
			"shippingMethod": fmt.Sprintf("unknown shipping method %q", req.ShippingMethod),
		}}
	}

	// Bounded retry: the random order-number suffix can collide, the DB
	// unique constraint catches it, and we regenerate rather than fail the
	// customer's checkout.
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		order, err := s.commitOnce(ctx, req, method)
		if err == nil {
			return order, nil
		}

		if errors.Is(err, repository.ErrDuplicateOrderNumber) {
			logging.Warn(
				ctx,
				s.logger,
				"Order number collision, regenerating",
				zap.Int("attempt", attempt+1),
			)

			lastErr = err
			continue
		}

		return nil, err
	}

	return nil, fmt.Errorf("failed to allocate a unique order number after %d attempts: %w",
		maxOrderNumberAttempts, lastErr)
}

func (s *checkoutService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.GetOrder")
	defer span.End()

	return s.orderRepo.GetByID(ctx, id)
}

func (s *checkoutService) commitOnce(ctx context.Context, req *PlaceOrderRequest, method domain.ShippingMethod) (*domain.Order, error) {
	now := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logging.Warn(
				cleanupCtx,
				s.logger,
				"Error rolling back checkout transaction",
				zap.Error(err),
			)
		}
	}()

	// Lines are processed in product-id order so two concurrent checkouts
	// over overlapping products take their row locks in the same order.
	lines := make([]OrderLineInput, len(req.Items))
	copy(lines, req.Items)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	subtotal := decimal.Zero
	items := make([]domain.OrderItem, 0, len(lines))

	for _, line := range lines {
		product, err := s.productRepo.GetForUpdate(ctx, tx, line.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return nil, &ProductNotFoundError{ProductID: line.ProductID}
			}

			return nil, err
		}

		if !product.IsActive {
			return nil, &ProductUnavailableError{ProductName: product.Name}
		}

		if product.Stock < line.Quantity {
			return nil, &InsufficientStockError{ProductName: product.Name, Available: product.Stock}
		}

		// Authoritative pricing: catalog price with the effective promotion
		// applied at commit time. Client prices never reach this point.
		assignments, err := s.promoRepo.AssignmentsForProductTx(ctx, tx, product.ID)
		if err != nil {
			return nil, err
		}

		priced := domain.PriceWithPromotion(product, assignments, req.Wholesale, now)
		lineSubtotal := domain.Round2(priced.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)))
		subtotal = subtotal.Add(lineSubtotal)

		items = append(items, domain.OrderItem{
			ProductID:   product.ID,
			ProductSKU:  product.SKU,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   priced.UnitPrice,
			Subtotal:    lineSubtotal,
		})
	}

	subtotal = domain.Round2(subtotal)
	tax, total := domain.ComputeTotals(subtotal, method.Price, s.taxRate)

	order := &domain.Order{
		OrderNumber: s.orderNumber(now),
		Customer: domain.CustomerSnapshot{
			Name:    strings.TrimSpace(req.CustomerInfo.FirstName + " " + req.CustomerInfo.LastName),
			Email:   req.CustomerInfo.Email,
			Phone:   optional(req.CustomerInfo.Phone),
			Company: optional(req.CustomerInfo.Company),
			TaxID:   optional(req.CustomerInfo.TaxID),
		},
		ShippingAddress: domain.AddressSnapshot{
			Street:   joinAddress(req.ShippingAddress.Address1, req.ShippingAddress.Address2),
			City:     req.ShippingAddress.City,
			Province: req.ShippingAddress.State,
			ZipCode:  req.ShippingAddress.PostalCode,
			Country:  defaultCountry(req.ShippingAddress.Country),
		},
		Subtotal:       subtotal,
		Tax:            tax,
		Shipping:       method.Price,
		Total:          total,
		Status:         domain.OrderStatusPendingPayment,
		PaymentMethod:  req.PaymentMethod,
		ShippingMethod: method.ID,
		Notes:          optional(strings.TrimSpace(req.Notes)),
		Items:          items,
	}

	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, err
	}

	for _, item := range order.Items {
		if err := s.productRepo.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return nil, &InsufficientStockError{ProductName: item.ProductName}
			}

			return nil, err
		}
	}

	if err := s.saveConfirmationEvent(ctx, tx, order); err != nil {
		return nil, err
	}

	// The server-persisted cart is emptied in the same transaction, so it
	// only disappears when the order actually commits.
	if req.CustomerID != "" {
		if err := s.cartRepo.Clear(ctx, tx, req.CustomerID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		logging.Error(ctx, s.logger, "Failed to commit checkout transaction", zap.Error(err))

		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.Info(
		ctx,
		s.logger,
		"Order committed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.Total.StringFixed(2)),
	)

	return order, nil
}

func (s *checkoutService) saveConfirmationEvent(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	eventItems := make([]map[string]any, len(order.Items))
	for i, item := range order.Items {
		eventItems[i] = map[string]any{
			"product_id":   item.ProductID,
			"product_name": item.ProductName,
			"quantity":     item.Quantity,
			"unit_price":   item.UnitPrice.StringFixed(2),
		}
	}

	envelope := map[string]any{
		"event": "OrderConfirmed",
		"payload": map[string]any{
			"order_id":       order.ID,
			"order_number":   order.OrderNumber,
			"customer_email": order.Customer.Email,
			"total":          order.Total.StringFixed(2),
			"items":          eventItems,
		},
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal confirmation event: %w", err)
	}

	return s.outboxRepo.SaveEvent(ctx, tx, &outbox.Event{
		AggregateType: "Order",
		AggregateID:   order.ID,
		EventType:     "OrderConfirmed",
		Payload:       payload,
		Topic:         "order_events",
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func joinAddress(address1, address2 string) string {
	if address2 == "" {
		return address1
	}

	return address1 + ", " + address2
}

func defaultCountry(country string) string {
	if country == "" {
		return "Ecuador"
	}

	return country
}

func formatValidationErrors(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, err := range verrs {
		field := strings.ToLower(err.Field())

		switch err.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "min":
			fields[field] = fmt.Sprintf("%s must have at least %s entries", field, err.Param())
		case "max":
			fields[field] = fmt.Sprintf("%s must not exceed %s", field, err.Param())
		case "gte":
			fields[field] = fmt.Sprintf("%s must be at least %s", field, err.Param())
		case "lte":
			fields[field] = fmt.Sprintf("%s must be at most %s", field, err.Param())
		case "email":
			fields[field] = fmt.Sprintf("%s must be a valid email", field)
		default:
			fields[field] = fmt.Sprintf("%s is invalid", field)
		}
	}

	return fields
}
