package directory

import (
	"context"

	"github.com/spec-kit/dispute-engine/internal/domain"
	apperrors "github.com/spec-kit/dispute-engine/pkg/util"
)

// Job is the slice of job/property metadata the engine needs to derive
// dispute parties. Maintained by the host application's job directory.
type Job struct {
	ID           string
	Title        string
	PropertyID   string
	LandlordID   string
	ContractorID *string
	TenantID     *string
}

// JobDirectory resolves job references supplied on dispute filings.
type JobDirectory interface {
	GetJob(ctx context.Context, jobID string) (*Job, error)
}

// RoleOf returns the role the user holds on this job, if any.
func (j *Job) RoleOf(userID string) (domain.PartyRole, bool) {
	if j.LandlordID == userID {
		return domain.RoleLandlord, true
	}
	if j.ContractorID != nil && *j.ContractorID == userID {
		return domain.RoleContractor, true
	}
	if j.TenantID != nil && *j.TenantID == userID {
		return domain.RoleTenant, true
	}
	return "", false
}

// PartyUserID returns the user id holding the given role on this job.
func (j *Job) PartyUserID(role domain.PartyRole) (string, bool) {
	switch role {
	case domain.RoleLandlord:
		return j.LandlordID, true
	case domain.RoleContractor:
		if j.ContractorID != nil {
			return *j.ContractorID, true
		}
	case domain.RoleTenant:
		if j.TenantID != nil {
			return *j.TenantID, true
		}
	}
	return "", false
}

// Counterparty derives the role opposite the initiator for this job. A
// landlord faces the contractor when the job has one, otherwise the
// tenant; contractors and tenants always face the landlord.
func (j *Job) Counterparty(initiator domain.PartyRole) (domain.PartyRole, error) {
	switch initiator {
	case domain.RoleLandlord:
		if j.ContractorID != nil {
			return domain.RoleContractor, nil
		}
		if j.TenantID != nil {
			return domain.RoleTenant, nil
		}
		return "", apperrors.NewValidationError("job has no counterparty for landlord", map[string]any{"job_id": j.ID})
	case domain.RoleContractor, domain.RoleTenant:
		return domain.RoleLandlord, nil
	}
	return "", apperrors.NewValidationError("role cannot initiate disputes", map[string]any{"role": string(initiator)})
}
