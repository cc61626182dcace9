package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the single item offered during a flash sale.
// Immutable for the lifetime of a sale.
type Product struct {
	ID          uuid.UUID       `json:"productId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"-"`
}

// Stock tracks quantities for a product. available_quantity is owned by
// the stock repository; nothing else writes it.
type Stock struct {
	ProductID         uuid.UUID `json:"productId"`
	TotalQuantity     int       `json:"totalQuantity"`
	AvailableQuantity int       `json:"availableQuantity"`
	ReservedQuantity  int       `json:"reservedQuantity"`
	UpdatedAt         time.Time `json:"-"`
}
