package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/afbrilian/mincommerce-sub000/internal/model"
	"github.com/afbrilian/mincommerce-sub000/internal/service"
)

// AdminSaleServiceInterface defines the admin sale write and read surface.
type AdminSaleServiceInterface interface {
	CreateOrUpdateSale(ctx context.Context, req *model.CreateSaleRequest) (*model.SaleResponse, error)
	GetSale(ctx context.Context, saleID uuid.UUID) (*model.SaleResponse, error)
}

// StatsServiceInterface defines the admin stats read surface.
type StatsServiceInterface interface {
	GetSaleStats(ctx context.Context, saleID uuid.UUID) (*model.SaleStats, error)
}

// AdminHandler handles the admin sale endpoints. Route-level middleware has
// already established the admin role by the time these run.
type AdminHandler struct {
	sales     AdminSaleServiceInterface
	stats     StatsServiceInterface
	validator *validator.Validate
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(sales AdminSaleServiceInterface, stats StatsServiceInterface, v *validator.Validate) *AdminHandler {
	return &AdminHandler{sales: sales, stats: stats, validator: v}
}

// UpsertSale handles POST /admin/flash-sale. A body with saleId updates
// that sale; without one it creates a new sale.
func (h *AdminHandler) UpsertSale(c *fiber.Ctx) error {
	var req model.CreateSaleRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatSaleValidationError(err)})
	}

	resp, err := h.sales.CreateOrUpdateSale(c.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTimeRange):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "End time must be after start time"})
		case errors.Is(err, service.ErrProductNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "product not found"})
		case errors.Is(err, service.ErrStockNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no stock configured for product"})
		case errors.Is(err, service.ErrSaleNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "sale not found"})
		}
		log.Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("sale upsert failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(resp)
}

// GetSale handles GET /admin/flash-sale/:id.
func (h *AdminHandler) GetSale(c *fiber.Ctx) error {
	saleID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid sale id"})
	}

	resp, err := h.sales.GetSale(c.Context(), saleID)
	if err != nil {
		if errors.Is(err, service.ErrSaleNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "sale not found"})
		}
		log.Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("sale_id", saleID.String()).
			Msg("sale read failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(resp)
}

// GetStats handles GET /admin/flash-sale/:id/stats.
func (h *AdminHandler) GetStats(c *fiber.Ctx) error {
	saleID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid sale id"})
	}

	stats, err := h.stats.GetSaleStats(c.Context(), saleID)
	if err != nil {
		if errors.Is(err, service.ErrSaleNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "sale not found"})
		}
		log.Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("sale_id", saleID.String()).
			Msg("sale stats read failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(stats)
}

// formatSaleValidationError converts validator errors to client-facing messages.
func formatSaleValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			switch fe.Field() {
			case "ProductID":
				return "productId is required"
			case "StartTime":
				return "startTime is required"
			case "EndTime":
				return "endTime is required"
			}
		}
	}
	return "invalid request"
}
