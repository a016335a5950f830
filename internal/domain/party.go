package domain

// PartyRole identifies the capacity in which a user acts on a dispute.
type PartyRole string

const (
	RoleLandlord   PartyRole = "landlord"
	RoleContractor PartyRole = "contractor"
	RoleTenant     PartyRole = "tenant"
	RoleMediator   PartyRole = "mediator"
	RoleAdmin      PartyRole = "admin"
)

// Party is the acting identity supplied by the identity provider. The
// engine trusts these values and performs no authentication of its own.
type Party struct {
	UserID string
	Role   PartyRole
	Name   string
}

// IsStaff reports whether the role may see private messages and evidence.
func (r PartyRole) IsStaff() bool {
	return r == RoleMediator || r == RoleAdmin
}

// IsParticipantRole reports whether the role can be a side of a dispute.
func (r PartyRole) IsParticipantRole() bool {
	return r == RoleLandlord || r == RoleContractor || r == RoleTenant
}
