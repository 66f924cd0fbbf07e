package queue

import (
	"context"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

// PostgresPublisher inserts orders as pending rows of the order_queue table
type PostgresPublisher struct {
	repo    repository.OrderQueueRepository
	timeout time.Duration
	closeFn func() error
}

// NewPostgresPublisher writes through repo; closeFn releases the underlying pool and may be nil
func NewPostgresPublisher(repo repository.OrderQueueRepository, timeout time.Duration, closeFn func() error) *PostgresPublisher {
	return &PostgresPublisher{
		repo:    repo,
		timeout: timeout,
		closeFn: closeFn,
	}
}

func (p *PostgresPublisher) Backend() string { return BackendPostgres }

func (p *PostgresPublisher) Publish(ctx context.Context, msg domain.OrderMessage) error {
	payload, err := Encode(msg)
	if err != nil {
		return submissionError(p.Backend(), err)
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	order := &domain.QueuedOrder{
		ID:          uuid.New(),
		ProductID:   msg.ProductID,
		ProductName: msg.ProductName,
		PriceAmount: msg.PriceAmount,
		Payload:     payload,
		Status:      domain.QueueStatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	if err := p.repo.Enqueue(ctx, order); err != nil {
		return submissionError(p.Backend(), err)
	}
	return nil
}

func (p *PostgresPublisher) Close() error {
	if p.closeFn == nil {
		return nil
	}
	return p.closeFn()
}
