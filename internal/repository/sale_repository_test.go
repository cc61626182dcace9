package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afbrilian/mincommerce-sub000/internal/model"
	"github.com/afbrilian/mincommerce-sub000/internal/service"
)

func TestSaleRepository_GetLatest_NoSale(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	repo := NewSaleRepositoryWithPool(mock)
	sale, err := repo.GetLatest(context.Background())

	require.NoError(t, err, "an empty table is a valid state")
	assert.Nil(t, sale)
}

func TestSaleRepository_GetLatest_Found(t *testing.T) {
	saleID := uuid.New()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			assert.Contains(t, sql, "ORDER BY created_at DESC LIMIT 1")
			return &mockRow{scanFn: func(dest ...any) error {
				*(dest[0].(*uuid.UUID)) = saleID
				*(dest[2].(*time.Time)) = start
				*(dest[3].(*time.Time)) = start.Add(time.Hour)
				return nil
			}}
		},
	}

	repo := NewSaleRepositoryWithPool(mock)
	sale, err := repo.GetLatest(context.Background())

	require.NoError(t, err)
	require.NotNil(t, sale)
	assert.Equal(t, saleID, sale.ID)
	assert.Equal(t, start, sale.StartTime)
}

func TestSaleRepository_GetByID_NotFound(t *testing.T) {
	mock := &mockPool{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return &mockRow{scanFn: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	repo := NewSaleRepositoryWithPool(mock)
	_, err := repo.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, service.ErrSaleNotFound)
}

func TestSaleRepository_Update_NotFound(t *testing.T) {
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}

	repo := NewSaleRepositoryWithPool(mock)
	err := repo.Update(context.Background(), &model.FlashSale{ID: uuid.New()})

	assert.ErrorIs(t, err, service.ErrSaleNotFound)
}

func TestSaleRepository_Update_Success(t *testing.T) {
	mock := &mockPool{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}

	repo := NewSaleRepositoryWithPool(mock)
	err := repo.Update(context.Background(), &model.FlashSale{ID: uuid.New()})

	require.NoError(t, err)
}
