package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/domain"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/repository"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/logging"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type PromotionInput struct {
	Name               string          `json:"name" validate:"required"`
	Description        *string         `json:"description"`
	DiscountType       string          `json:"discountType" validate:"required"`
	DiscountValue      decimal.Decimal `json:"discountValue"`
	ValidFrom          *time.Time      `json:"validFrom"`
	ValidUntil         *time.Time      `json:"validUntil"`
	DaysFromActivation *int            `json:"daysFromActivation"`
	IsActive           bool            `json:"isActive"`
	IsManuallyDisabled bool            `json:"isManuallyDisabled"`
	// ProductIDs assigns the promotion to products in the same transaction
	// as the promotion write. A single conflict rolls everything back.
	ProductIDs []string `json:"productIds"`
}

type PromotionService interface {
	Create(ctx context.Context, input *PromotionInput) (*domain.Promotion, error)
	Update(ctx context.Context, id string, input *PromotionInput) (*domain.Promotion, error)
	Get(ctx context.Context, id string) (*domain.Promotion, error)
	List(ctx context.Context) ([]domain.Promotion, error)
	// AssignProducts attaches a promotion to a batch of products,
	// all-or-nothing. A single conflict rejects the whole batch.
	AssignProducts(ctx context.Context, promotionID string, productIDs []string) ([]domain.Assignment, error)
}

type promotionService struct {
	pool        *pgxpool.Pool
	logger      *zap.Logger
	promoRepo   repository.PromotionRepository
	productRepo repository.ProductRepository
	tracer      trace.Tracer
	now         func() time.Time
}

func NewPromotionService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	promoRepo repository.PromotionRepository,
	productRepo repository.ProductRepository,
) PromotionService {
	return &promotionService{
		pool:        pool,
		logger:      logger,
		promoRepo:   promoRepo,
		productRepo: productRepo,
		tracer:      otel.Tracer("promotion_service"),
		now:         time.Now,
	}
}

func (s *promotionService) buildPromotion(input *PromotionInput) (*domain.Promotion, error) {
	p := &domain.Promotion{
		Name:               input.Name,
		Description:        input.Description,
		DiscountType:       domain.DiscountType(input.DiscountType),
		DiscountValue:      input.DiscountValue,
		ValidFrom:          input.ValidFrom,
		ValidUntil:         input.ValidUntil,
		DaysFromActivation: input.DaysFromActivation,
		IsActive:           input.IsActive,
		IsManuallyDisabled: input.IsManuallyDisabled,
	}

	if err := p.Validate(); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"promotion": err.Error()}}
	}

	return p, nil
}

func (s *promotionService) Create(ctx context.Context, input *PromotionInput) (*domain.Promotion, error) {
	ctx, span := s.tracer.Start(ctx, "PromotionService.Create")
	defer span.End()

	p, err := s.buildPromotion(input)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	if err := s.promoRepo.Create(ctx, tx, p); err != nil {
		return nil, err
	}

	if len(input.ProductIDs) > 0 {
		if _, err := s.assignWithinTx(ctx, tx, p.ID, input.ProductIDs); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.Info(ctx, s.logger, "Promotion created", zap.String("id", p.ID), zap.String("name", p.Name))

	return p, nil
}

func (s *promotionService) Update(ctx context.Context, id string, input *PromotionInput) (*domain.Promotion, error) {
	ctx, span := s.tracer.Start(ctx, "PromotionService.Update")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
	)

	p, err := s.buildPromotion(input)
	if err != nil {
		return nil, err
	}
	p.ID = id

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	if err := s.promoRepo.Update(ctx, tx, p); err != nil {
		return nil, err
	}

	if len(input.ProductIDs) > 0 {
		if _, err := s.assignWithinTx(ctx, tx, p.ID, input.ProductIDs); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return p, nil
}

func (s *promotionService) Get(ctx context.Context, id string) (*domain.Promotion, error) {
	ctx, span := s.tracer.Start(ctx, "PromotionService.Get")
	defer span.End()

	return s.promoRepo.GetByID(ctx, id)
}

func (s *promotionService) List(ctx context.Context) ([]domain.Promotion, error) {
	ctx, span := s.tracer.Start(ctx, "PromotionService.List")
	defer span.End()

	return s.promoRepo.List(ctx)
}

func (s *promotionService) AssignProducts(ctx context.Context, promotionID string, productIDs []string) ([]domain.Assignment, error) {
	ctx, span := s.tracer.Start(ctx, "PromotionService.AssignProducts")
	defer span.End()

	span.SetAttributes(
		attribute.String("promotion_id", promotionID),
		attribute.Int("product_count", len(productIDs)),
	)

	if len(productIDs) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"productIds": "productIds must not be empty"}}
	}

	if _, err := s.promoRepo.GetByID(ctx, promotionID); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	assignments, err := s.assignWithinTx(ctx, tx, promotionID, productIDs)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.Info(
		ctx,
		s.logger,
		"Products assigned to promotion",
		zap.String("promotion_id", promotionID),
		zap.Int("assigned", len(assignments)),
	)

	return assignments, nil
}

// assignWithinTx enforces the single-eligible-promotion rule at write time:
// every product in the batch is checked against its existing assignments, and
// if any other promotion is still eligible right now the whole batch fails.
// Products are locked in id order before the scan so two concurrent
// assignment batches over the same products serialize instead of both
// passing the check.
func (s *promotionService) assignWithinTx(ctx context.Context, tx pgx.Tx, promotionID string, productIDs []string) ([]domain.Assignment, error) {
	now := s.now()

	products, err := s.productRepo.LockForUpdate(ctx, tx, productIDs)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, id := range productIDs {
		if _, ok := byID[id]; !ok {
			return nil, &ProductNotFoundError{ProductID: id}
		}
	}

	// Re-assigning a product to the same promotion is a no-op, not a
	// conflict.
	already, err := s.promoRepo.AssignedProductIDs(ctx, tx, promotionID)
	if err != nil {
		return nil, err
	}

	alreadySet := make(map[string]struct{}, len(already))
	for _, id := range already {
		alreadySet[id] = struct{}{}
	}

	toAssign := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if _, ok := alreadySet[id]; !ok {
			toAssign = append(toAssign, id)
		}
	}

	if len(toAssign) == 0 {
		return nil, nil
	}

	others, err := s.promoRepo.OtherAssignments(ctx, tx, toAssign, promotionID)
	if err != nil {
		return nil, err
	}

	// An assignment whose promotion has lapsed does not block: only
	// currently eligible promotions conflict.
	for i := range others {
		a := &others[i]
		if !a.EligibleAt(now) {
			continue
		}

		product := byID[a.ProductID]

		return nil, &PromotionConflictError{
			ProductName:   product.Name,
			ProductSKU:    product.SKU,
			PromotionName: a.Promotion.Name,
		}
	}

	return s.promoRepo.InsertAssignments(ctx, tx, promotionID, toAssign, now)
}

func (s *promotionService) rollback(ctx context.Context, tx pgx.Tx) {
	cleanupCtx := context.WithoutCancel(ctx)

	if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logging.Warn(cleanupCtx, s.logger, "Error rolling back promotion transaction", zap.Error(err))
	}
}
