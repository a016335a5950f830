package domain

import "time"

// DisputeMessageType differentiates message classifications.
type DisputeMessageType string

const (
	MessageTypeGeneral    DisputeMessageType = "general"
	MessageTypeSettlement DisputeMessageType = "settlement"
	MessageTypeSystem     DisputeMessageType = "system"
)

// DisputeMessage is one entry in a dispute's communications log.
// Entries are immutable once appended; insertion order is chronological.
type DisputeMessage struct {
	ID          string
	DisputeID   string
	SenderID    string
	SenderRole  PartyRole
	SenderName  string
	Message     string
	Type        DisputeMessageType
	IsPrivate   bool
	Attachments []string
	CreatedAt   time.Time
}
