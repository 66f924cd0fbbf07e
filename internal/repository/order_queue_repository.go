package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrQueuedOrderNotFound = errors.New("queued order not found")
)

// OrderQueueRepository defines data access for the Postgres-backed work queue
type OrderQueueRepository interface {
	Enqueue(ctx context.Context, order *domain.QueuedOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.QueuedOrder, error)
}

type orderQueueRepository struct {
	db *sql.DB
}

// NewOrderQueueRepository creates a new instance of OrderQueueRepository
func NewOrderQueueRepository(db *sql.DB) OrderQueueRepository {
	return &orderQueueRepository{db: db}
}

// Enqueue appends an order row; rows are append-only from this side
func (r *orderQueueRepository) Enqueue(ctx context.Context, order *domain.QueuedOrder) error {
	query := `
		INSERT INTO order_queue (id, product_id, product_name, price_amount, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.ProductID,
		order.ProductName,
		order.PriceAmount,
		order.Payload,
		order.Status,
		order.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to enqueue order: %w", err)
	}

	return nil
}

// FindByID retrieves a queued order by ID
func (r *orderQueueRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.QueuedOrder, error) {
	query := `
		SELECT id, product_id, product_name, price_amount, payload, status, created_at
		FROM order_queue
		WHERE id = $1
	`

	order := &domain.QueuedOrder{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.ProductID,
		&order.ProductName,
		&order.PriceAmount,
		&order.Payload,
		&order.Status,
		&order.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrQueuedOrderNotFound
		}
		return nil, fmt.Errorf("failed to find queued order by ID: %w", err)
	}

	return order, nil
}
