package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/afbrilian/mincommerce-sub000/internal/model"
)

// SaleStatusServiceInterface defines the read side of the sale projection.
type SaleStatusServiceInterface interface {
	GetSaleStatus(ctx context.Context, saleID *uuid.UUID) (*model.SaleStatusResponse, error)
}

// SaleHandler handles the public sale-status endpoint. This is the
// highest-traffic read path in the system.
type SaleHandler struct {
	service SaleStatusServiceInterface
}

// NewSaleHandler creates a new SaleHandler with the given service.
func NewSaleHandler(svc SaleStatusServiceInterface) *SaleHandler {
	return &SaleHandler{service: svc}
}

// Status handles GET /flash-sale/status. No configured sale is not an
// error; the data field is null and clients render "no sale".
func (h *SaleHandler) Status(c *fiber.Ctx) error {
	status, err := h.service.GetSaleStatus(c.Context(), nil)
	if err != nil {
		log.Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("failed to resolve sale status")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	if status == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": status})
}
