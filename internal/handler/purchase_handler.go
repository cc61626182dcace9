package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/afbrilian/mincommerce-sub000/internal/auth"
	"github.com/afbrilian/mincommerce-sub000/internal/model"
	"github.com/afbrilian/mincommerce-sub000/internal/service"
)

// PurchaseServiceInterface defines the interface for purchase admission and
// status reads.
type PurchaseServiceInterface interface {
	EnqueuePurchase(ctx context.Context, userID uuid.UUID) (*model.PurchaseResponse, error)
	GetPurchaseStatus(ctx context.Context, userID uuid.UUID) (*model.PurchaseStatusResponse, error)
	GetJob(ctx context.Context, jobID string, callerID uuid.UUID, isAdmin bool) (*model.PurchaseStatusResponse, error)
}

// PurchaseHandler handles the purchase admission and polling endpoints.
type PurchaseHandler struct {
	service PurchaseServiceInterface
}

// NewPurchaseHandler creates a new PurchaseHandler with the given service.
func NewPurchaseHandler(svc PurchaseServiceInterface) *PurchaseHandler {
	return &PurchaseHandler{service: svc}
}

// Purchase handles POST /purchase. A 202 means admitted, not purchased;
// the terminal outcome arrives via polling.
func (h *PurchaseHandler) Purchase(c *fiber.Ctx) error {
	userID := auth.UserID(c)

	resp, err := h.service.EnqueuePurchase(c.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyPending):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "purchase already in progress"})
		case errors.Is(err, service.ErrAlreadyPurchased):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "product already purchased"})
		case errors.Is(err, service.ErrTooManyAttempts):
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many purchase attempts, slow down"})
		case errors.Is(err, service.ErrNoActiveSale):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no active sale"})
		case errors.Is(err, service.ErrSaleNotOpen):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sale is not open"})
		}
		log.Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("user_id", userID.String()).
			Msg("purchase admission failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// Status handles GET /purchase/status for the authenticated user.
func (h *PurchaseHandler) Status(c *fiber.Ctx) error {
	userID := auth.UserID(c)

	resp, err := h.service.GetPurchaseStatus(c.Context(), userID)
	if err != nil {
		log.Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("user_id", userID.String()).
			Msg("purchase status read failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(resp)
}

// Job handles GET /purchase/job/:jobId. A job belonging to another user
// reads as not found rather than forbidden.
func (h *PurchaseHandler) Job(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if _, err := uuid.Parse(jobID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}

	userID := auth.UserID(c)
	isAdmin := auth.Role(c) == model.RoleAdmin

	resp, err := h.service.GetJob(c.Context(), jobID, userID, isAdmin)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
		}
		log.Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("job_id", jobID).
			Msg("job status read failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(resp)
}
