package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/domain"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const pgUniqueViolation = "23505"

type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

type orderRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("order_repo"),
	}
}

// Create inserts the order header and all items. A unique violation on
// order_number surfaces as ErrDuplicateOrderNumber so the caller can
// regenerate and retry.
func (r *orderRepo) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_number", order.OrderNumber),
		attribute.Int("items_count", len(order.Items)),
	)

	queryOrder := `
		INSERT INTO orders (order_number, customer_name, customer_email, customer_phone,
			customer_company, customer_tax_id, shipping_street, shipping_city,
			shipping_province, shipping_zip_code, shipping_country, subtotal, tax,
			shipping, total, status, payment_method, shipping_method, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at;
	`

	err := tx.QueryRow(
		ctx,
		queryOrder,
		order.OrderNumber,
		order.Customer.Name,
		order.Customer.Email,
		order.Customer.Phone,
		order.Customer.Company,
		order.Customer.TaxID,
		order.ShippingAddress.Street,
		order.ShippingAddress.City,
		order.ShippingAddress.Province,
		order.ShippingAddress.ZipCode,
		order.ShippingAddress.Country,
		order.Subtotal,
		order.Tax,
		order.Shipping,
		order.Total,
		string(order.Status),
		order.PaymentMethod,
		order.ShippingMethod,
		order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == pgUniqueViolation {
			return ErrDuplicateOrderNumber
		}

		span.RecordError(err)

		logging.Error(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (order_id, product_id, product_sku, product_name,
			quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id;
	`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		err := tx.QueryRow(
			ctx,
			queryItem,
			order.ID,
			item.ProductID,
			item.ProductSKU,
			item.ProductName,
			item.Quantity,
			item.UnitPrice,
			item.Subtotal,
		).Scan(&item.ID)
		if err != nil {
			span.RecordError(err)

			logging.Error(
				ctx,
				r.logger,
				"Failed to insert order item",
				zap.String("order_id", order.ID),
				zap.String("product_id", item.ProductID),
				zap.Error(err),
			)

			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	query := `
		SELECT id, order_number, customer_name, customer_email, customer_phone,
			customer_company, customer_tax_id, shipping_street, shipping_city,
			shipping_province, shipping_zip_code, shipping_country, subtotal, tax,
			shipping, total, status, payment_method, shipping_method, notes,
			created_at, updated_at
		FROM orders
		WHERE id = $1;
	`

	var o domain.Order
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.OrderNumber,
		&o.Customer.Name,
		&o.Customer.Email,
		&o.Customer.Phone,
		&o.Customer.Company,
		&o.Customer.TaxID,
		&o.ShippingAddress.Street,
		&o.ShippingAddress.City,
		&o.ShippingAddress.Province,
		&o.ShippingAddress.ZipCode,
		&o.ShippingAddress.Country,
		&o.Subtotal,
		&o.Tax,
		&o.Shipping,
		&o.Total,
		&o.Status,
		&o.PaymentMethod,
		&o.ShippingMethod,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("error getting order: %w", err)
	}

	itemsQuery := `
		SELECT id, order_id, product_id, product_sku, product_name, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id;
	`

	rows, err := r.pool.Query(ctx, itemsQuery, id)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("error querying order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductSKU,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
		); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning order item: %w", err)
		}

		o.Items = append(o.Items, item)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return &o, nil
}
