package service_test

import (
	"time"

	"github.com/google/uuid"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/domain"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/repository"
	"github.com/shopspring/decimal"
)

func cartLine(productID string, qty int64, price int64) domain.CartLine {
	p := decimal.NewFromInt(price)

	return domain.CartLine{
		ProductID: productID,
		Quantity:  qty,
		Price:     p,
		Subtotal:  p.Mul(decimal.NewFromInt(qty)),
	}
}

func (s *IntegrationTestSuite) TestCartSync_FirstSyncCreatesCart() {
	productID := s.seedProduct("SKU-200", 10, 5)

	cart, err := s.Carts.Sync(s.Ctx, "cust-1", &domain.Cart{
		Items:     []domain.CartLine{cartLine(productID, 2, 10)},
		UpdatedAt: time.Now(),
	})
	s.Require().NoError(err)
	s.Require().Len(cart.Items, 1)
	s.Equal("cust-1", cart.CustomerID)

	stored, err := s.Carts.Load(s.Ctx, "cust-1")
	s.Require().NoError(err)
	s.Require().Len(stored.Items, 1)
	s.Equal(int64(2), stored.Items[0].Quantity)
}

func (s *IntegrationTestSuite) TestCartSync_NewerLocalMergesQuantities() {
	productID := s.seedProduct("SKU-201", 10, 50)
	otherID := s.seedProduct("SKU-202", 25, 50)

	first, err := s.Carts.Sync(s.Ctx, "cust-2", &domain.Cart{
		Items:     []domain.CartLine{cartLine(productID, 2, 10)},
		UpdatedAt: time.Now().Add(-time.Minute),
	})
	s.Require().NoError(err)

	merged, err := s.Carts.Sync(s.Ctx, "cust-2", &domain.Cart{
		Items: []domain.CartLine{
			cartLine(productID, 3, 10),
			cartLine(otherID, 1, 25),
		},
		UpdatedAt: first.UpdatedAt.Add(time.Second),
	})
	s.Require().NoError(err)
	s.Require().Len(merged.Items, 2)

	s.Equal(int64(5), merged.Items[0].Quantity)
	s.True(merged.Items[0].Subtotal.Equal(decimal.NewFromInt(50)), merged.Items[0].Subtotal.String())
	s.Equal(int64(1), merged.Items[1].Quantity)
}

func (s *IntegrationTestSuite) TestCartSync_StaleLocalDiscarded() {
	productID := s.seedProduct("SKU-203", 10, 50)

	server, err := s.Carts.Sync(s.Ctx, "cust-3", &domain.Cart{
		Items:     []domain.CartLine{cartLine(productID, 4, 10)},
		UpdatedAt: time.Now(),
	})
	s.Require().NoError(err)

	got, err := s.Carts.Sync(s.Ctx, "cust-3", &domain.Cart{
		Items:     []domain.CartLine{cartLine(productID, 1, 10)},
		UpdatedAt: server.UpdatedAt.Add(-time.Hour),
	})
	s.Require().NoError(err)

	s.Require().Len(got.Items, 1)
	s.Equal(int64(4), got.Items[0].Quantity)
}

// Two first-time syncs racing for the same customer can only produce one
// cart row: the unique customer constraint turns the losing insert into a
// conflict the service resolves by reloading the winner's cart.
func (s *IntegrationTestSuite) TestCartSave_FirstInsertRaceLeavesSingleCart() {
	productID := s.seedProduct("SKU-204", 10, 5)

	winner := &domain.Cart{
		ID:         uuid.NewString(),
		CustomerID: "cust-4",
		Items:      []domain.CartLine{cartLine(productID, 2, 10)},
		UpdatedAt:  time.Now(),
	}
	s.Require().NoError(s.CartRepo.Save(s.Ctx, winner, nil))

	loser := &domain.Cart{
		ID:         uuid.NewString(),
		CustomerID: "cust-4",
		Items:      []domain.CartLine{cartLine(productID, 9, 10)},
		UpdatedAt:  time.Now(),
	}
	err := s.CartRepo.Save(s.Ctx, loser, nil)
	s.Require().ErrorIs(err, repository.ErrCartConflict)

	s.Equal(1, s.countRows("carts"))

	stored, err := s.Carts.Load(s.Ctx, "cust-4")
	s.Require().NoError(err)
	s.Require().Len(stored.Items, 1)
	s.Equal(int64(2), stored.Items[0].Quantity)
}

func (s *IntegrationTestSuite) TestCartLoad_EmptyForUnknownCustomer() {
	cart, err := s.Carts.Load(s.Ctx, "cust-unknown")
	s.Require().NoError(err)
	s.Empty(cart.Items)
	s.Equal("cust-unknown", cart.CustomerID)
}
