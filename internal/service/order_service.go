package service

import (
	"context"
	"errors"

	"storefront/internal/clock"
	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/pricing"
	"storefront/internal/queue"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService turns a purchase request into a queued order message
type OrderService interface {
	// PlaceOrder resolves the product by id, normalizes its price and submits one message.
	// Nothing is submitted when the product cannot be resolved.
	PlaceOrder(ctx context.Context, productID int) (*domain.OrderConfirmation, error)
}

type orderService struct {
	catalog   CatalogService
	publisher queue.Publisher
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	catalog CatalogService,
	publisher queue.Publisher,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) OrderService {
	if clk == nil {
		clk = clock.System()
	}
	return &orderService{
		catalog:   catalog,
		publisher: publisher,
		clock:     clk,
		logger:    logger.Named("orders"),
		metrics:   m,
	}
}

func (s *orderService) PlaceOrder(ctx context.Context, productID int) (*domain.OrderConfirmation, error) {
	products, err := s.catalog.ListProducts(ctx, "")
	if err != nil {
		s.metrics.RecordOrder("catalog_error")
		return nil, err
	}

	product, ok := findProduct(products, productID)
	if !ok {
		s.metrics.RecordOrder("not_found")
		return nil, &domain.ProductNotFoundError{ProductID: productID}
	}

	amount := pricing.Normalize(product.Price)
	if pricing.Digits(product.Price) == "" {
		// Submitted anyway; downstream sees price 0.
		s.logger.Warn("Product price has no digits, submitting zero amount",
			zap.Int("product_id", product.ID),
			zap.String("price", product.Price),
		)
	}

	msg := domain.NewOrderMessage(product, amount)
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.metrics.RecordOrder("queue_error")
		var submitErr *domain.QueueSubmissionError
		if !errors.As(err, &submitErr) {
			err = &domain.QueueSubmissionError{Backend: s.publisher.Backend(), Err: err}
		}
		s.logger.Error("Failed to submit order",
			zap.Int("product_id", product.ID),
			zap.String("backend", s.publisher.Backend()),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordOrder("submitted")

	confirmation := &domain.OrderConfirmation{
		Reference:   uuid.New(),
		ProductID:   msg.ProductID,
		ProductName: msg.ProductName,
		PriceAmount: msg.PriceAmount,
		SubmittedAt: s.clock.Now().UTC(),
	}

	s.logger.Info("Order submitted",
		zap.String("reference", confirmation.Reference.String()),
		zap.Int("product_id", msg.ProductID),
		zap.Int64("price", msg.PriceAmount),
		zap.String("backend", s.publisher.Backend()),
	)

	return confirmation, nil
}

// findProduct returns the first product with the given id
func findProduct(products []domain.Product, id int) (domain.Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}
