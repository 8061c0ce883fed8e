package billing_entity

import "github.com/google/uuid"

type OrgRole string

const (
	OrgRoleOwner  OrgRole = "owner"
	OrgRoleAdmin  OrgRole = "admin"
	OrgRoleMember OrgRole = "member"
)

type OrgMember struct {
	OrgID  uuid.UUID `json:"org_id" gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	Role   OrgRole   `json:"role" gorm:"not null"`
}

// CanManageBilling reports whether the member may change the org subscription.
func (m OrgMember) CanManageBilling() bool {
	return m.Role == OrgRoleOwner || m.Role == OrgRoleAdmin
}
