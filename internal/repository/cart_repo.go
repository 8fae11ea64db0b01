package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/domain"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CartRepository interface {
	GetByCustomer(ctx context.Context, customerID string) (*domain.Cart, error)
	// Save persists the whole cart in one transaction. expectedUpdatedAt is
	// the optimistic-concurrency guard: when the stored cart has moved past
	// it, Save returns ErrCartConflict and writes nothing. A nil
	// expectedUpdatedAt means "first write"; losing that insert race to a
	// concurrent sync is also ErrCartConflict.
	Save(ctx context.Context, cart *domain.Cart, expectedUpdatedAt *time.Time) error
	Clear(ctx context.Context, tx pgx.Tx, customerID string) error
}

type cartRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewCartRepository(pool *pgxpool.Pool, logger *zap.Logger) CartRepository {
	return &cartRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("cart_repo"),
	}
}

func (r *cartRepo) GetByCustomer(ctx context.Context, customerID string) (*domain.Cart, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetByCustomer")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", customerID),
	)

	query := `
		SELECT id, customer_id, updated_at
		FROM carts
		WHERE customer_id = $1;
	`

	var cart domain.Cart
	err := r.pool.QueryRow(ctx, query, customerID).Scan(&cart.ID, &cart.CustomerID, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("error getting cart: %w", err)
	}

	itemsQuery := `
		SELECT product_id, quantity, price, subtotal
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY id;
	`

	rows, err := r.pool.Query(ctx, itemsQuery, cart.ID)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("error querying cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.Price, &line.Subtotal); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning cart item: %w", err)
		}

		cart.Items = append(cart.Items, line)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return &cart, nil
}

func (r *cartRepo) Save(ctx context.Context, cart *domain.Cart, expectedUpdatedAt *time.Time) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("cart_id", cart.ID),
		attribute.Int("items_count", len(cart.Items)),
	)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logging.Warn(cleanupCtx, r.logger, "Failed to rollback cart save", zap.Error(err))
		}
	}()

	if expectedUpdatedAt == nil {
		// carts has a unique index on customer_id, so two first-time syncs
		// racing each other resolve here: the loser's insert hits the
		// conflict and reports it instead of creating a second cart row.
		insert := `
			INSERT INTO carts (id, customer_id, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (customer_id) DO NOTHING;
		`
		commandTag, err := tx.Exec(ctx, insert, cart.ID, cart.CustomerID, cart.UpdatedAt)
		if err != nil {
			span.RecordError(err)

			return fmt.Errorf("error inserting cart: %w", err)
		}

		if commandTag.RowsAffected() == 0 {
			return ErrCartConflict
		}
	} else {
		update := `
			UPDATE carts
			SET updated_at = $2
			WHERE id = $1 AND updated_at = $3;
		`
		commandTag, err := tx.Exec(ctx, update, cart.ID, cart.UpdatedAt, *expectedUpdatedAt)
		if err != nil {
			span.RecordError(err)

			return fmt.Errorf("error updating cart: %w", err)
		}

		if commandTag.RowsAffected() == 0 {
			return ErrCartConflict
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1;`, cart.ID); err != nil {
			span.RecordError(err)

			return fmt.Errorf("error clearing cart items: %w", err)
		}
	}

	itemQuery := `
		INSERT INTO cart_items (cart_id, product_id, quantity, price, subtotal)
		VALUES ($1, $2, $3, $4, $5);
	`

	for _, line := range cart.Items {
		if _, err := tx.Exec(ctx, itemQuery, cart.ID, line.ProductID, line.Quantity, line.Price, line.Subtotal); err != nil {
			span.RecordError(err)

			return fmt.Errorf("error inserting cart item: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Clear empties a customer's cart. Runs inside the caller's transaction so
// checkout can clear the cart atomically with the committed order.
func (r *cartRepo) Clear(ctx context.Context, tx pgx.Tx, customerID string) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.Clear")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", customerID),
	)

	query := `
		DELETE FROM cart_items
		WHERE cart_id IN (SELECT id FROM carts WHERE customer_id = $1);
	`

	if _, err := tx.Exec(ctx, query, customerID); err != nil {
		span.RecordError(err)

		return fmt.Errorf("error clearing cart items: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE customer_id = $1;`, customerID); err != nil {
		span.RecordError(err)

		return fmt.Errorf("error deleting cart: %w", err)
	}

	return nil
}
