package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pdcisneros1/edesa-b2b-sub000/internal/domain"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/breaker"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// cachedCatalogService caches priced products in redis. Promotion windows
// have day granularity, so a short TTL keeps quotes honest while absorbing
// catalog-page read bursts. All redis calls go through a circuit breaker: a
// dead cache degrades to straight passthrough instead of failing reads.
type cachedCatalogService struct {
	next        CatalogService
	redisClient *redis.Client
	cb          *gobreaker.CircuitBreaker
	logger      *zap.Logger
	cacheTTL    time.Duration
}

func NewCachedCatalogService(next CatalogService, redisClient *redis.Client, logger *zap.Logger) CatalogService {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "catalog-redis",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		Timeout: 30 * time.Second,
	})

	return &cachedCatalogService{
		next:        next,
		redisClient: redisClient,
		cb:          cb,
		logger:      logger,
		cacheTTL:    time.Minute,
	}
}

func (s *cachedCatalogService) GetProduct(ctx context.Context, id string, wholesale bool) (*domain.PricedProduct, error) {
	key := fmt.Sprintf("catalog:product:%s:wholesale=%t", id, wholesale)

	val, err := breaker.Execute(s.cb, func() (string, error) {
		return s.redisClient.Get(ctx, key).Result()
	})
	if err == nil {
		var priced domain.PricedProduct
		if err := json.Unmarshal([]byte(val), &priced); err == nil {
			return &priced, nil
		}
	}

	priced, err := s.next.GetProduct(ctx, id, wholesale)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(priced); err == nil {
		if _, err := breaker.Execute(s.cb, func() (string, error) {
			return s.redisClient.Set(ctx, key, data, s.cacheTTL).Result()
		}); err != nil {
			logging.Debug(ctx, s.logger, "Failed to cache priced product", zap.Error(err))
		}
	}

	return priced, nil
}
