package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlashSale_StatusAt(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	sale := &FlashSale{StartTime: start, EndTime: end}

	tests := []struct {
		name string
		now  time.Time
		want SaleStatus
	}{
		{"before start", start.Add(-time.Second), SaleUpcoming},
		{"exactly at start", start, SaleActive},
		{"mid window", start.Add(30 * time.Minute), SaleActive},
		{"last instant", end.Add(-time.Nanosecond), SaleActive},
		{"exactly at end", end, SaleEnded},
		{"after end", end.Add(time.Hour), SaleEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sale.StatusAt(tt.now))
		})
	}
}

func TestPurchaseStatus_Terminal(t *testing.T) {
	assert.False(t, (&PurchaseStatus{Status: JobQueued}).Terminal())
	assert.False(t, (&PurchaseStatus{Status: JobProcessing}).Terminal())
	assert.True(t, (&PurchaseStatus{Status: JobCompleted}).Terminal())
	assert.True(t, (&PurchaseStatus{Status: JobFailed}).Terminal())
}
