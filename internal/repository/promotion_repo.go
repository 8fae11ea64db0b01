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

type PromotionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, promotion *domain.Promotion) error
	Update(ctx context.Context, tx pgx.Tx, promotion *domain.Promotion) error
	GetByID(ctx context.Context, id string) (*domain.Promotion, error)
	List(ctx context.Context) ([]domain.Promotion, error)
	AssignmentsForProduct(ctx context.Context, productID string) ([]domain.Assignment, error)
	AssignmentsForProductTx(ctx context.Context, tx pgx.Tx, productID string) ([]domain.Assignment, error)
	OtherAssignments(ctx context.Context, tx pgx.Tx, productIDs []string, excludePromotionID string) ([]domain.Assignment, error)
	AssignedProductIDs(ctx context.Context, tx pgx.Tx, promotionID string) ([]string, error)
	InsertAssignments(ctx context.Context, tx pgx.Tx, promotionID string, productIDs []string, activatedAt time.Time) ([]domain.Assignment, error)
}

type promotionRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewPromotionRepository(pool *pgxpool.Pool, logger *zap.Logger) PromotionRepository {
	return &promotionRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("promotion_repo"),
	}
}

const promotionColumns = `id, name, description, discount_type, discount_value,
	valid_from, valid_until, days_from_activation, is_active, is_manually_disabled,
	created_at, updated_at`

func scanPromotion(row pgx.Row) (*domain.Promotion, error) {
	var p domain.Promotion
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.DiscountType,
		&p.DiscountValue,
		&p.ValidFrom,
		&p.ValidUntil,
		&p.DaysFromActivation,
		&p.IsActive,
		&p.IsManuallyDisabled,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *promotionRepo) Create(ctx context.Context, tx pgx.Tx, promotion *domain.Promotion) error {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("name", promotion.Name),
	)

	query := `
		INSERT INTO promotions (name, description, discount_type, discount_value,
			valid_from, valid_until, days_from_activation, is_active, is_manually_disabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at;
	`

	err := tx.QueryRow(
		ctx,
		query,
		promotion.Name,
		promotion.Description,
		promotion.DiscountType,
		promotion.DiscountValue,
		promotion.ValidFrom,
		promotion.ValidUntil,
		promotion.DaysFromActivation,
		promotion.IsActive,
		promotion.IsManuallyDisabled,
	).Scan(&promotion.ID, &promotion.CreatedAt, &promotion.UpdatedAt)
	if err != nil {
		span.RecordError(err)

		logging.Error(
			ctx,
			r.logger,
			"Error creating promotion",
			zap.Error(err),
		)

		return fmt.Errorf("error creating promotion: %w", err)
	}

	return nil
}

func (r *promotionRepo) Update(ctx context.Context, tx pgx.Tx, promotion *domain.Promotion) error {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.Update")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", promotion.ID),
	)

	query := `
		UPDATE promotions
		SET name = $2,
			description = $3,
			discount_type = $4,
			discount_value = $5,
			valid_from = $6,
			valid_until = $7,
			days_from_activation = $8,
			is_active = $9,
			is_manually_disabled = $10,
			updated_at = NOW()
		WHERE id = $1;
	`

	commandTag, err := tx.Exec(
		ctx,
		query,
		promotion.ID,
		promotion.Name,
		promotion.Description,
		promotion.DiscountType,
		promotion.DiscountValue,
		promotion.ValidFrom,
		promotion.ValidUntil,
		promotion.DaysFromActivation,
		promotion.IsActive,
		promotion.IsManuallyDisabled,
	)
	if err != nil {
		span.RecordError(err)

		logging.Error(
			ctx,
			r.logger,
			"Error updating promotion",
			zap.String("id", promotion.ID),
			zap.Error(err),
		)

		return fmt.Errorf("error updating promotion: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrPromotionNotFound
	}

	return nil
}

func (r *promotionRepo) GetByID(ctx context.Context, id string) (*domain.Promotion, error) {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	query := `
		SELECT ` + promotionColumns + `
		FROM promotions
		WHERE id = $1;
	`

	p, err := scanPromotion(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromotionNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("error getting promotion: %w", err)
	}

	return p, nil
}

func (r *promotionRepo) List(ctx context.Context) ([]domain.Promotion, error) {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.List")
	defer span.End()

	query := `
		SELECT ` + promotionColumns + `
		FROM promotions
		ORDER BY created_at DESC;
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("error listing promotions: %w", err)
	}
	defer rows.Close()

	var promotions []domain.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning promotion: %w", err)
		}

		promotions = append(promotions, *p)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return promotions, nil
}

const assignmentJoin = `
	SELECT pp.id, pp.promotion_id, pp.product_id, pp.activated_at,
		p.id, p.name, p.description, p.discount_type, p.discount_value,
		p.valid_from, p.valid_until, p.days_from_activation, p.is_active, p.is_manually_disabled,
		p.created_at, p.updated_at
	FROM promotion_products pp
	JOIN promotions p ON p.id = pp.promotion_id
`

func scanAssignments(rows pgx.Rows) ([]domain.Assignment, error) {
	var assignments []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		var p domain.Promotion

		err := rows.Scan(
			&a.ID,
			&a.PromotionID,
			&a.ProductID,
			&a.ActivatedAt,
			&p.ID,
			&p.Name,
			&p.Description,
			&p.DiscountType,
			&p.DiscountValue,
			&p.ValidFrom,
			&p.ValidUntil,
			&p.DaysFromActivation,
			&p.IsActive,
			&p.IsManuallyDisabled,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning assignment: %w", err)
		}

		a.Promotion = &p
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return assignments, nil
}

func (r *promotionRepo) AssignmentsForProduct(ctx context.Context, productID string) ([]domain.Assignment, error) {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.AssignmentsForProduct")
	defer span.End()

	span.SetAttributes(
		attribute.String("product_id", productID),
	)

	query := assignmentJoin + `
		WHERE pp.product_id = $1
		ORDER BY pp.id;
	`

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("error querying assignments: %w", err)
	}
	defer rows.Close()

	return scanAssignments(rows)
}

// AssignmentsForProductTx is the checkout-time variant: it reads through the
// commit transaction so the discount decision and the order write see the
// same snapshot.
func (r *promotionRepo) AssignmentsForProductTx(ctx context.Context, tx pgx.Tx, productID string) ([]domain.Assignment, error) {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.AssignmentsForProductTx")
	defer span.End()

	span.SetAttributes(
		attribute.String("product_id", productID),
	)

	query := assignmentJoin + `
		WHERE pp.product_id = $1
		ORDER BY pp.id;
	`

	rows, err := tx.Query(ctx, query, productID)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("error querying assignments: %w", err)
	}
	defer rows.Close()

	return scanAssignments(rows)
}

// OtherAssignments returns every assignment of the given products that
// belongs to a different promotion. Used by the conflict scan before new
// assignments are inserted.
func (r *promotionRepo) OtherAssignments(ctx context.Context, tx pgx.Tx, productIDs []string, excludePromotionID string) ([]domain.Assignment, error) {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.OtherAssignments")
	defer span.End()

	span.SetAttributes(
		attribute.Int("product_count", len(productIDs)),
		attribute.String("exclude_promotion_id", excludePromotionID),
	)

	query := assignmentJoin + `
		WHERE pp.product_id = ANY($1) AND pp.promotion_id <> $2
		ORDER BY pp.id;
	`

	rows, err := tx.Query(ctx, query, productIDs, excludePromotionID)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("error querying conflicting assignments: %w", err)
	}
	defer rows.Close()

	return scanAssignments(rows)
}

func (r *promotionRepo) AssignedProductIDs(ctx context.Context, tx pgx.Tx, promotionID string) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.AssignedProductIDs")
	defer span.End()

	span.SetAttributes(
		attribute.String("promotion_id", promotionID),
	)

	query := `
		SELECT product_id
		FROM promotion_products
		WHERE promotion_id = $1;
	`

	rows, err := tx.Query(ctx, query, promotionID)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("error querying assigned products: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning product id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return ids, nil
}

func (r *promotionRepo) InsertAssignments(ctx context.Context, tx pgx.Tx, promotionID string, productIDs []string, activatedAt time.Time) ([]domain.Assignment, error) {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.InsertAssignments")
	defer span.End()

	span.SetAttributes(
		attribute.String("promotion_id", promotionID),
		attribute.Int("product_count", len(productIDs)),
	)

	query := `
		INSERT INTO promotion_products (promotion_id, product_id, activated_at)
		VALUES ($1, $2, $3)
		RETURNING id;
	`

	assignments := make([]domain.Assignment, 0, len(productIDs))
	for _, productID := range productIDs {
		a := domain.Assignment{
			PromotionID: promotionID,
			ProductID:   productID,
			ActivatedAt: activatedAt,
		}

		if err := tx.QueryRow(ctx, query, promotionID, productID, activatedAt).Scan(&a.ID); err != nil {
			span.RecordError(err)

			logging.Error(
				ctx,
				r.logger,
				"Error inserting assignment",
				zap.String("promotion_id", promotionID),
				zap.String("product_id", productID),
				zap.Error(err),
			)

			return nil, fmt.Errorf("error inserting assignment: %w", err)
		}

		assignments = append(assignments, a)
	}

	return assignments, nil
}
