package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderMessage is the purchase intent handed to the work queue
type OrderMessage struct {
	ProductID   int    `json:"id"`
	ProductName string `json:"name"`
	PriceAmount int64  `json:"price"`
}

// NewOrderMessage builds the queue message for a product and its normalized price
func NewOrderMessage(product Product, amount int64) OrderMessage {
	return OrderMessage{
		ProductID:   product.ID,
		ProductName: product.Name,
		PriceAmount: amount,
	}
}

// OrderConfirmation is returned to the caller once the queue acknowledged the message
type OrderConfirmation struct {
	Reference   uuid.UUID `json:"reference"`
	ProductID   int       `json:"product_id"`
	ProductName string    `json:"product_name"`
	PriceAmount int64     `json:"price_amount"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// QueuedOrder is an order message persisted in the Postgres work queue
type QueuedOrder struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ProductID   int       `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name" db:"product_name"`
	PriceAmount int64     `json:"price_amount" db:"price_amount"`
	Payload     []byte    `json:"payload" db:"payload"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Queue row states
const (
	QueueStatusPending = "pending"
)
