package service

import (
	"context"
	"time"

	"github.com/pdcisneros1/edesa-b2b-sub000/internal/domain"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CatalogService resolves display prices: base price by customer tier, the
// effective promotion's discount, and the compare-at price when applicable.
// These are quotes for rendering; checkout re-resolves everything inside its
// own transaction.
type CatalogService interface {
	GetProduct(ctx context.Context, id string, wholesale bool) (*domain.PricedProduct, error)
}

type catalogService struct {
	productRepo repository.ProductRepository
	promoRepo   repository.PromotionRepository
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

func NewCatalogService(
	productRepo repository.ProductRepository,
	promoRepo repository.PromotionRepository,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		productRepo: productRepo,
		promoRepo:   promoRepo,
		logger:      logger,
		tracer:      otel.Tracer("catalog_service"),
		now:         time.Now,
	}
}

func (s *catalogService) GetProduct(ctx context.Context, id string, wholesale bool) (*domain.PricedProduct, error) {
	ctx, span := s.tracer.Start(ctx, "CatalogService.GetProduct")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id),
		attribute.Bool("wholesale", wholesale),
	)

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	assignments, err := s.promoRepo.AssignmentsForProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	priced := domain.PriceWithPromotion(product, assignments, wholesale, s.now())

	return &priced, nil
}
