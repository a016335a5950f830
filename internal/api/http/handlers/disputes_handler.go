package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispute-engine/internal/api/dto"
	"github.com/spec-kit/dispute-engine/internal/auth"
	"github.com/spec-kit/dispute-engine/internal/domain"
	"github.com/spec-kit/dispute-engine/internal/service"
	apperrors "github.com/spec-kit/dispute-engine/pkg/util"
)

// DisputesHandler manages dispute endpoints.
type DisputesHandler struct {
	service *service.DisputeService
}

// NewDisputesHandler constructs handler.
func NewDisputesHandler(disputeService *service.DisputeService) *DisputesHandler {
	return &DisputesHandler{service: disputeService}
}

// CreateDispute POST /disputes.
func (h *DisputesHandler) CreateDispute(c *fiber.Ctx) error {
	party, ok := auth.PartyFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("party required")
	}
	var req dto.CreateDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.JobID == "" || req.Title == "" || req.Description == "" {
		return apperrors.NewValidationError("job_id, title, description required", nil)
	}

	dispute, err := h.service.FileDispute(c.Context(), party, service.DisputeCreateInput{
		JobID:          req.JobID,
		Title:          req.Title,
		Description:    req.Description,
		DesiredOutcome: req.DesiredOutcome,
		AmountCents:    req.AmountCents,
		Priority:       req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": disputeSummary(dispute)})
}

// ListDisputes GET /disputes.
func (h *DisputesHandler) ListDisputes(c *fiber.Ctx) error {
	party, ok := auth.PartyFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("party required")
	}
	disputes, err := h.service.ListDisputesForParty(c.Context(), party, parseDisputeQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.DisputeSummary, 0, len(disputes))
	for i := range disputes {
		items = append(items, disputeSummary(&disputes[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListPendingResponse GET /disputes/pending-response.
func (h *DisputesHandler) ListPendingResponse(c *fiber.Ctx) error {
	party, ok := auth.PartyFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("party required")
	}
	disputes, err := h.service.ListPendingResponse(c.Context(), party)
	if err != nil {
		return err
	}
	items := make([]dto.DisputeSummary, 0, len(disputes))
	for i := range disputes {
		items = append(items, disputeSummary(&disputes[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetDispute GET /disputes/:id.
func (h *DisputesHandler) GetDispute(c *fiber.Ctx) error {
	party, ok := auth.PartyFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("party required")
	}
	dispute, err := h.service.GetDisputeForParty(c.Context(), party, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeDetail(dispute)})
}

// AddMessage POST /disputes/:id/messages.
func (h *DisputesHandler) AddMessage(c *fiber.Ctx) error {
	party, ok := auth.PartyFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("party required")
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.service.AddMessage(c.Context(), party, c.Params("id"), service.MessageInput{
		Message:     req.Message,
		Type:        req.Type,
		IsPrivate:   req.IsPrivate,
		Attachments: req.Attachments,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

// AddEvidence POST /disputes/:id/evidence.
func (h *DisputesHandler) AddEvidence(c *fiber.Ctx) error {
	party, ok := auth.PartyFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("party required")
	}
	var req dto.CreateEvidenceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	item, err := h.service.AddEvidence(c.Context(), party, c.Params("id"), service.EvidenceInput{
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		FileURL:     req.FileURL,
		IsPublic:    req.IsPublic,
		MimeType:    req.MimeType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": evidenceResponse(item)})
}

// SetStatus POST /disputes/:id/status.
func (h *DisputesHandler) SetStatus(c *fiber.Ctx) error {
	party, ok := auth.PartyFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("party required")
	}
	var req dto.SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	dispute, err := h.service.SetStatus(c.Context(), party, c.Params("id"), req.Status, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeSummary(dispute)})
}

// SetPriority POST /disputes/:id/priority.
func (h *DisputesHandler) SetPriority(c *fiber.Ctx) error {
	party, ok := auth.PartyFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("party required")
	}
	var req dto.SetPriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	dispute, err := h.service.SetPriority(c.Context(), party, c.Params("id"), req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeSummary(dispute)})
}

func parseDisputeQuery(c *fiber.Ctx) service.DisputeListFilter {
	filter := service.DisputeListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.DisputeStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.DisputePriority(strings.TrimSpace(part)))
		}
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil {
		filter.Offset = offset
	}
	return filter
}

func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &parsed
}

func disputeSummary(dispute *domain.Dispute) dto.DisputeSummary {
	return dto.DisputeSummary{
		ID:               dispute.ID,
		JobID:            dispute.JobID,
		JobTitle:         dispute.JobTitle,
		PropertyID:       dispute.PropertyID,
		InitiatedBy:      dispute.InitiatedBy,
		InitiatedByRole:  dispute.InitiatedByRole,
		CounterpartyRole: dispute.CounterpartyRole,
		Title:            dispute.Title,
		AmountCents:      dispute.AmountCents,
		SettledCents:     dispute.SettledCents,
		Priority:         dispute.Priority,
		Status:           dispute.Status,
		CreatedAt:        dispute.CreatedAt,
		UpdatedAt:        dispute.UpdatedAt,
	}
}

func disputeDetail(dispute *domain.Dispute) dto.DisputeDetailResponse {
	detail := dto.DisputeDetailResponse{
		DisputeSummary: disputeSummary(dispute),
		Description:    dispute.Description,
		DesiredOutcome: dispute.DesiredOutcome,
		ResolvedAt:     dispute.ResolvedAt,
		ClosedAt:       dispute.ClosedAt,
	}
	detail.Communications = make([]dto.MessageResponse, 0, len(dispute.Communications))
	for i := range dispute.Communications {
		detail.Communications = append(detail.Communications, messageResponse(&dispute.Communications[i]))
	}
	detail.Evidence = make([]dto.EvidenceResponse, 0, len(dispute.Evidence))
	for i := range dispute.Evidence {
		detail.Evidence = append(detail.Evidence, evidenceResponse(&dispute.Evidence[i]))
	}
	detail.SettlementOffers = make([]dto.OfferResponse, 0, len(dispute.SettlementOffers))
	for i := range dispute.SettlementOffers {
		detail.SettlementOffers = append(detail.SettlementOffers, offerResponse(&dispute.SettlementOffers[i]))
	}
	return detail
}

func messageResponse(msg *domain.DisputeMessage) dto.MessageResponse {
	return dto.MessageResponse{
		ID:          msg.ID,
		SenderID:    msg.SenderID,
		SenderRole:  msg.SenderRole,
		SenderName:  msg.SenderName,
		Message:     msg.Message,
		Type:        msg.Type,
		IsPrivate:   msg.IsPrivate,
		Attachments: msg.Attachments,
		CreatedAt:   msg.CreatedAt,
	}
}

func evidenceResponse(item *domain.DisputeEvidence) dto.EvidenceResponse {
	return dto.EvidenceResponse{
		ID:             item.ID,
		Type:           item.Type,
		Title:          item.Title,
		Description:    item.Description,
		FileURL:        item.FileURL,
		UploadedBy:     item.UploadedBy,
		UploadedByRole: item.UploadedByRole,
		IsPublic:       item.IsPublic,
		MimeType:       item.Metadata.MimeType,
		SizeBytes:      item.Metadata.SizeBytes,
		UploadedAt:     item.UploadedAt,
	}
}
