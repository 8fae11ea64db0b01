package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/domain"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Product, error)
	LockForUpdate(ctx context.Context, tx pgx.Tx, ids []string) ([]domain.Product, error)
	DecrementStock(ctx context.Context, tx pgx.Tx, id string, quantity int64) error
}

type productRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewProductRepository(pool *pgxpool.Pool, logger *zap.Logger) ProductRepository {
	return &productRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("product_repo"),
	}
}

const productColumns = `id, sku, name, price, wholesale_price, is_active, stock, created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Price,
		&p.WholesalePrice,
		&p.IsActive,
		&p.Stock,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1 AND deleted_at IS NULL;
	`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		logging.Error(
			ctx,
			r.logger,
			"Error getting product by id",
			zap.String("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error getting product: %w", err)
	}

	return p, nil
}

// GetForUpdate reads the product under a row lock so the stock/active checks
// and the later decrement happen against the same committed state.
func (r *productRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE;
	`

	p, err := scanProduct(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("error locking product: %w", err)
	}

	return p, nil
}

// LockForUpdate locks a set of product rows in id order, so concurrent
// callers locking overlapping sets cannot deadlock.
func (r *productRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, ids []string) ([]domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.LockForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.Int("id_count", len(ids)),
	)

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1) AND deleted_at IS NULL
		ORDER BY id
		FOR UPDATE;
	`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("error locking products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning product: %w", err)
		}

		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return products, nil
}

// DecrementStock is the only write path to product stock from checkout.
// The stock >= quantity guard makes the check-and-set atomic in the
// database; a zero row count means another transaction won the stock.
func (r *productRepo) DecrementStock(ctx context.Context, tx pgx.Tx, id string, quantity int64) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.DecrementStock")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
		attribute.Int64("quantity", quantity),
	)

	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1
			AND stock >= $2
			AND deleted_at IS NULL;
	`

	commandTag, err := tx.Exec(ctx, query, id, quantity)
	if err != nil {
		span.RecordError(err)

		logging.Error(
			ctx,
			r.logger,
			"Error decrementing stock",
			zap.String("id", id),
			zap.Int64("quantity", quantity),
			zap.Error(err),
		)

		return fmt.Errorf("error decrementing stock for product %s: %w", id, err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}

	return nil
}
