package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleStatus is derived from wall-clock, never stored.
type SaleStatus string

const (
	SaleUpcoming SaleStatus = "upcoming"
	SaleActive   SaleStatus = "active"
	SaleEnded    SaleStatus = "ended"
)

// FlashSale is a bounded time window during which the bound product is
// offered with limited stock.
type FlashSale struct {
	ID        uuid.UUID `json:"saleId"`
	ProductID uuid.UUID `json:"productId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// StatusAt derives the sale status from the given instant.
func (s *FlashSale) StatusAt(now time.Time) SaleStatus {
	switch {
	case now.Before(s.StartTime):
		return SaleUpcoming
	case now.Before(s.EndTime):
		return SaleActive
	default:
		return SaleEnded
	}
}

// SaleStatusResponse is the projection served by GET /flash-sale/status.
// Countdowns are absolute millisecond offsets so clients compute the timer
// themselves; both are clamped at zero once passed.
type SaleStatusResponse struct {
	SaleID            uuid.UUID       `json:"saleId"`
	ProductID         uuid.UUID       `json:"productId"`
	ProductName       string          `json:"productName"`
	ProductPrice      decimal.Decimal `json:"productPrice"`
	StartTime         time.Time       `json:"startTime"`
	EndTime           time.Time       `json:"endTime"`
	Status            SaleStatus      `json:"status"`
	TotalQuantity     int             `json:"totalQuantity"`
	AvailableQuantity int             `json:"availableQuantity"`
	TimeUntilStart    int64           `json:"timeUntilStart"`
	TimeUntilEnd      int64           `json:"timeUntilEnd"`
}

// CreateSaleRequest is the DTO for POST /admin/flash-sale.
// SaleID present means update, absent means create.
type CreateSaleRequest struct {
	SaleID    *uuid.UUID `json:"saleId" validate:"omitempty"`
	ProductID uuid.UUID  `json:"productId" validate:"required"`
	StartTime time.Time  `json:"startTime" validate:"required"`
	EndTime   time.Time  `json:"endTime" validate:"required"`
}

// SaleResponse is the API response DTO for the admin sale endpoints.
type SaleResponse struct {
	SaleID    uuid.UUID  `json:"saleId"`
	ProductID uuid.UUID  `json:"productId"`
	StartTime time.Time  `json:"startTime"`
	EndTime   time.Time  `json:"endTime"`
	Status    SaleStatus `json:"status"`
}

// SaleStats is the admin read model for GET /admin/flash-sale/:id/stats.
type SaleStats struct {
	TotalOrders       int             `json:"totalOrders"`
	ConfirmedOrders   int             `json:"confirmedOrders"`
	PendingOrders     int             `json:"pendingOrders"`
	FailedOrders      int             `json:"failedOrders"`
	TotalQuantity     int             `json:"totalQuantity"`
	AvailableQuantity int             `json:"availableQuantity"`
	SoldQuantity      int             `json:"soldQuantity"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
}
