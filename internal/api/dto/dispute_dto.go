package dto

import (
	"time"

	"github.com/spec-kit/dispute-engine/internal/domain"
)

// CreateDisputeRequest payload.
type CreateDisputeRequest struct {
	JobID          string                 `json:"job_id"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	DesiredOutcome string                 `json:"desired_outcome"`
	AmountCents    int64                  `json:"amount_cents"`
	Priority       domain.DisputePriority `json:"priority"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Message     string                    `json:"message"`
	Type        domain.DisputeMessageType `json:"type"`
	IsPrivate   bool                      `json:"is_private"`
	Attachments []string                  `json:"attachments"`
}

// CreateEvidenceRequest payload. File references come from the external
// evidence store.
type CreateEvidenceRequest struct {
	Type        domain.EvidenceType `json:"type"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	FileURL     string              `json:"file_url"`
	IsPublic    bool                `json:"is_public"`
	MimeType    string              `json:"mime_type"`
	SizeBytes   int64               `json:"size_bytes"`
}

// SetStatusRequest payload.
type SetStatusRequest struct {
	Status  domain.DisputeStatus `json:"status"`
	Comment string               `json:"comment"`
}

// SetPriorityRequest payload.
type SetPriorityRequest struct {
	Priority domain.DisputePriority `json:"priority"`
}

// DisputeSummary response.
type DisputeSummary struct {
	ID               string                 `json:"id"`
	JobID            string                 `json:"job_id"`
	JobTitle         string                 `json:"job_title"`
	PropertyID       string                 `json:"property_id"`
	InitiatedBy      string                 `json:"initiated_by"`
	InitiatedByRole  domain.PartyRole       `json:"initiated_by_role"`
	CounterpartyRole domain.PartyRole       `json:"counterparty_role"`
	Title            string                 `json:"title"`
	AmountCents      int64                  `json:"amount_cents"`
	SettledCents     *int64                 `json:"settled_cents,omitempty"`
	Priority         domain.DisputePriority `json:"priority"`
	Status           domain.DisputeStatus   `json:"status"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// DisputeDetailResponse provides the full aggregate view.
type DisputeDetailResponse struct {
	DisputeSummary
	Description      string             `json:"description"`
	DesiredOutcome   string             `json:"desired_outcome"`
	Communications   []MessageResponse  `json:"communications"`
	Evidence         []EvidenceResponse `json:"evidence"`
	SettlementOffers []OfferResponse    `json:"settlement_offers"`
	ResolvedAt       *time.Time         `json:"resolved_at,omitempty"`
	ClosedAt         *time.Time         `json:"closed_at,omitempty"`
}

// MessageResponse represents one communications-log entry.
type MessageResponse struct {
	ID          string                    `json:"id"`
	SenderID    string                    `json:"sender_id"`
	SenderRole  domain.PartyRole          `json:"sender_role"`
	SenderName  string                    `json:"sender_name"`
	Message     string                    `json:"message"`
	Type        domain.DisputeMessageType `json:"type"`
	IsPrivate   bool                      `json:"is_private"`
	Attachments []string                  `json:"attachments"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// EvidenceResponse represents one evidence-log entry.
type EvidenceResponse struct {
	ID             string              `json:"id"`
	Type           domain.EvidenceType `json:"type"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	FileURL        string              `json:"file_url"`
	UploadedBy     string              `json:"uploaded_by"`
	UploadedByRole domain.PartyRole    `json:"uploaded_by_role"`
	IsPublic       bool                `json:"is_public"`
	MimeType       string              `json:"mime_type"`
	SizeBytes      int64               `json:"size_bytes"`
	UploadedAt     time.Time           `json:"uploaded_at"`
}
