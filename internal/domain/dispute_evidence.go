package domain

import "time"

// EvidenceType classifies an uploaded artifact.
type EvidenceType string

const (
	EvidenceTypePhoto    EvidenceType = "photo"
	EvidenceTypeDocument EvidenceType = "document"
	EvidenceTypeVideo    EvidenceType = "video"
	EvidenceTypeReceipt  EvidenceType = "receipt"
)

// EvidenceMetadata stores file details reported by the evidence store.
type EvidenceMetadata struct {
	MimeType  string
	SizeBytes int64
}

// DisputeEvidence references an artifact held by the external evidence
// store. The engine stores only the reference; entries are immutable.
type DisputeEvidence struct {
	ID             string
	DisputeID      string
	Type           EvidenceType
	Title          string
	Description    string
	FileURL        string
	UploadedBy     string
	UploadedByRole PartyRole
	IsPublic       bool
	Metadata       EvidenceMetadata
	UploadedAt     time.Time
}
