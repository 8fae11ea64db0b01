package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type KafkaProducer interface {
	ProduceMessage(ctx context.Context, topic string, message interface{}) error
}

// Processor drains unpublished outbox rows to Kafka. Rows are written in the
// same transaction as the state change they describe, so nothing is ever
// published for a rolled-back commit.
type Processor struct {
	pool          *pgxpool.Pool
	repo          Repository
	kafkaProducer KafkaProducer
	logger        *zap.Logger
	batchSize     int
	interval      time.Duration
	tracer        trace.Tracer
}

func NewProcessor(
	pool *pgxpool.Pool,
	repo Repository,
	producer KafkaProducer,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		pool:          pool,
		repo:          repo,
		kafkaProducer: producer,
		logger:        logger,
		batchSize:     50,
		interval:      500 * time.Millisecond,
		tracer:        otel.Tracer("outbox_worker"),
	}
}

func (p *Processor) Start(ctx context.Context) {
	logging.Info(ctx, p.logger, "Starting outbox processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, p.logger, "Outbox processor stopping")

			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				logging.Error(
					ctx,
					p.logger,
					"Error processing outbox batch",
					zap.Error(err),
				)
			}
		}
	}
}

func (p *Processor) processBatch(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.processBatch")
	defer span.End()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logging.Error(
				cleanupCtx,
				p.logger,
				"Outbox worker failed to rollback transaction",
				zap.Error(err),
			)
		}
	}()

	events, err := p.repo.GetUnpublishedEvents(ctx, tx, p.batchSize)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		var payloadMap map[string]any
		if err := json.Unmarshal(event.Payload, &payloadMap); err != nil {
			logging.Error(
				ctx,
				p.logger,
				"outbox worker unmarshal event payload failed",
				zap.Int64("id", event.ID),
				zap.Error(err),
			)

			_ = p.repo.MarkEventFailed(ctx, tx, event.ID, err.Error())
			continue
		}

		// Consumers dedup on event_id.
		payloadMap["event_id"] = event.ID

		if err := p.kafkaProducer.ProduceMessage(ctx, event.Topic, payloadMap); err != nil {
			logging.Error(
				ctx,
				p.logger,
				"outbox worker produce message failed",
				zap.Int64("id", event.ID),
				zap.Error(err),
			)

			if dbErr := p.repo.MarkEventFailed(ctx, tx, event.ID, err.Error()); dbErr != nil {
				logging.Error(
					ctx,
					p.logger,
					"outbox worker mark event failed failed",
					zap.Int64("id", event.ID),
					zap.Error(dbErr),
				)
			}

			continue
		}

		if dbErr := p.repo.MarkEventPublished(ctx, tx, event.ID); dbErr != nil {
			logging.Error(
				ctx,
				p.logger,
				"outbox worker mark event published failed",
				zap.Int64("id", event.ID),
				zap.Error(dbErr),
			)

			return dbErr
		}

		logging.Debug(
			ctx,
			p.logger,
			"outbox event published",
			zap.Int64("id", event.ID),
		)
	}

	return tx.Commit(ctx)
}
