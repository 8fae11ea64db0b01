package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/domain"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/repository"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CartService interface {
	Load(ctx context.Context, customerID string) (*domain.Cart, error)
	// Sync reconciles the client's local cart with the server copy and
	// persists the winner. Returns the cart the client should adopt.
	Sync(ctx context.Context, customerID string, localCart *domain.Cart) (*domain.Cart, error)
}

type cartService struct {
	cartRepo repository.CartRepository
	notifier *CartNotifier
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewCartService(cartRepo repository.CartRepository, notifier *CartNotifier, logger *zap.Logger) CartService {
	return &cartService{
		cartRepo: cartRepo,
		notifier: notifier,
		logger:   logger,
		tracer:   otel.Tracer("cart_service"),
		now:      time.Now,
	}
}

func (s *cartService) Load(ctx context.Context, customerID string) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.Load")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", customerID),
	)

	cart, err := s.cartRepo.GetByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return &domain.Cart{CustomerID: customerID}, nil
		}

		return nil, err
	}

	return cart, nil
}

func (s *cartService) Sync(ctx context.Context, customerID string, localCart *domain.Cart) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.Sync")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", customerID),
	)

	serverCart, err := s.cartRepo.GetByCustomer(ctx, customerID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return nil, err
	}

	now := s.now()

	if localCart != nil {
		localCart.CustomerID = customerID
	}

	merged := domain.ReconcileCarts(serverCart, localCart, now)
	if merged == nil {
		return &domain.Cart{CustomerID: customerID}, nil
	}

	var expected *time.Time
	if serverCart != nil {
		// Winner was the server cart unchanged, nothing to persist.
		if merged == serverCart {
			return serverCart, nil
		}

		updatedAt := serverCart.UpdatedAt
		expected = &updatedAt
	} else {
		merged.ID = uuid.NewString()
		merged.UpdatedAt = now
	}

	merged.CustomerID = customerID

	if err := s.cartRepo.Save(ctx, merged, expected); err != nil {
		if errors.Is(err, repository.ErrCartConflict) {
			// Another session moved the cart while we merged. The stored cart
			// is newer than what we based the merge on, so it wins.
			logging.Warn(
				ctx,
				s.logger,
				"Cart sync lost the race, reloading",
				zap.String("customer_id", customerID),
			)

			return s.Load(ctx, customerID)
		}

		return nil, err
	}

	s.notifier.Publish(customerID, merged)

	return merged, nil
}
