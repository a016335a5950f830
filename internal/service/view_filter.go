package service

import "github.com/spec-kit/dispute-engine/internal/domain"

// redactForViewer strips entries the viewer may not see. Mediators and
// admins see everything; a dispute party sees public messages, public
// evidence, and their own uploads.
func redactForViewer(dispute *domain.Dispute, party domain.Party) {
	if party.Role.IsStaff() {
		return
	}

	messages := make([]domain.DisputeMessage, 0, len(dispute.Communications))
	for _, msg := range dispute.Communications {
		if msg.IsPrivate {
			continue
		}
		messages = append(messages, msg)
	}
	dispute.Communications = messages

	evidence := make([]domain.DisputeEvidence, 0, len(dispute.Evidence))
	for _, item := range dispute.Evidence {
		if !item.IsPublic && item.UploadedBy != party.UserID {
			continue
		}
		evidence = append(evidence, item)
	}
	dispute.Evidence = evidence
}
