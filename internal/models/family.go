package models

// FamilyRole is the role of a member inside a family.
type FamilyRole string

const (
	FamilyRoleAdmin  FamilyRole = "admin"
	FamilyRoleMember FamilyRole = "member"
)

// Family groups users (and custodial members) that share account books.
type Family struct {
	Base
	Name      string         `gorm:"not null" json:"name"`
	CreatedBy string         `gorm:"type:uuid;not null" json:"created_by"`
	Members   []FamilyMember `gorm:"foreignKey:FamilyID" json:"members,omitempty"`
}

// FamilyMember links a user to a family. Custodial members (e.g. children)
// have no UserID and are managed by the family's admins.
type FamilyMember struct {
	Base
	FamilyID    string     `gorm:"type:uuid;not null;index" json:"family_id"`
	UserID      *string    `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Name        string     `gorm:"not null" json:"name"`
	Role        FamilyRole `gorm:"type:varchar(16);not null" json:"role"`
	IsCustodial bool       `gorm:"not null" json:"is_custodial"`

	Family *Family `gorm:"foreignKey:FamilyID" json:"family,omitempty"`
}

// IsGuardian reports whether the member can act on behalf of custodial members.
func (m *FamilyMember) IsGuardian() bool {
	return m.Role == FamilyRoleAdmin && !m.IsCustodial && m.UserID != nil
}
