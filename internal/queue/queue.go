// Package queue submits order messages to the asynchronous work queue.
//
// Publishers never retry; a failed Publish returns a *domain.QueueSubmissionError and the
// caller decides whether to surface it or retry the whole request.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/domain"
)

const DefaultTimeout = 5 * time.Second

// Backend names accepted by configuration
const (
	BackendAzure    = "azure"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Publisher hands an order message to the queue. Once Publish returns nil the queue owns it.
type Publisher interface {
	Publish(ctx context.Context, msg domain.OrderMessage) error
	Backend() string
	Close() error
}

// Encode renders the wire form {"id":..,"name":..,"price":..}
func Encode(msg domain.OrderMessage) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order message: %w", err)
	}
	return payload, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func submissionError(backend string, err error) error {
	return &domain.QueueSubmissionError{Backend: backend, Err: err}
}
