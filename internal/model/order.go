package model

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses. The unique constraint on (user_id, product_id) only
// tolerates one row in {pending, confirmed} per pair.
const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderCancelled = "cancelled"
)

// Order is a confirmed purchase row.
type Order struct {
	ID        uuid.UUID `json:"orderId"`
	UserID    uuid.UUID `json:"userId"`
	ProductID uuid.UUID `json:"productId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
