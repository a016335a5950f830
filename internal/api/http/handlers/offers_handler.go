package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispute-engine/internal/api/dto"
	"github.com/spec-kit/dispute-engine/internal/auth"
	"github.com/spec-kit/dispute-engine/internal/domain"
	"github.com/spec-kit/dispute-engine/internal/service"
	apperrors "github.com/spec-kit/dispute-engine/pkg/util"
)

// OffersHandler manages settlement offer endpoints.
type OffersHandler struct {
	service *service.SettlementService
}

// NewOffersHandler constructs handler.
func NewOffersHandler(settlementService *service.SettlementService) *OffersHandler {
	return &OffersHandler{service: settlementService}
}

// CreateOffer POST /disputes/:id/offers.
func (h *OffersHandler) CreateOffer(c *fiber.Ctx) error {
	party, ok := auth.PartyFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("party required")
	}
	var req dto.CreateOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.OfferInput{
		OfferType:  req.OfferType,
		Conditions: req.Conditions,
		ExpiresAt:  req.ExpiresAt,
	}
	if req.Monetary != nil {
		input.Monetary = &service.MonetaryOfferInput{
			AmountCents: req.Monetary.AmountCents,
			Description: req.Monetary.Description,
		}
	}
	if req.Work != nil {
		input.Work = &service.WorkOfferInput{
			Description: req.Work.Description,
			Timeline:    req.Work.Timeline,
			Materials:   req.Work.Materials,
			NoCharge:    req.Work.NoCharge,
		}
	}

	offer, err := h.service.CreateOffer(c.Context(), party, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": offerResponse(offer)})
}

// RespondToOffer POST /disputes/:id/offers/:offerId/respond.
func (h *OffersHandler) RespondToOffer(c *fiber.Ctx) error {
	party, ok := auth.PartyFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("party required")
	}
	var req dto.RespondOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	offer, err := h.service.RespondToOffer(c.Context(), party, c.Params("id"), c.Params("offerId"), req.Action, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": offerResponse(offer)})
}

func offerResponse(offer *domain.SettlementOffer) dto.OfferResponse {
	resp := dto.OfferResponse{
		ID:            offer.ID,
		DisputeID:     offer.DisputeID,
		OfferedBy:     offer.OfferedBy,
		OfferedByRole: offer.OfferedByRole,
		OfferType:     offer.OfferType,
		Conditions:    offer.Conditions,
		ExpiresAt:     offer.ExpiresAt,
		Status:        offer.Status,
		CreatedAt:     offer.CreatedAt,
	}
	if offer.Monetary != nil {
		resp.Monetary = &dto.MonetaryOfferPayload{
			AmountCents: offer.Monetary.AmountCents,
			Description: offer.Monetary.Description,
		}
	}
	if offer.Work != nil {
		resp.Work = &dto.WorkOfferPayload{
			Description: offer.Work.Description,
			Timeline:    offer.Work.Timeline,
			Materials:   offer.Work.Materials,
			NoCharge:    offer.Work.NoCharge,
		}
	}
	if offer.Response != nil {
		resp.Response = &dto.OfferResponseDetail{
			RespondedBy:   offer.Response.RespondedBy,
			RespondedRole: offer.Response.RespondedRole,
			Action:        offer.Response.Action,
			Message:       offer.Response.Message,
			RespondedAt:   offer.Response.RespondedAt,
		}
	}
	return resp
}
