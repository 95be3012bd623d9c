package models

// AccountBookType distinguishes personal books from family-shared books.
type AccountBookType string

const (
	AccountBookTypePersonal AccountBookType = "PERSONAL"
	AccountBookTypeFamily   AccountBookType = "FAMILY"
)

// AccountBook is a ledger of transactions. Family books carry a FamilyID.
type AccountBook struct {
	Base
	Name        string          `gorm:"not null" json:"name"`
	Type        AccountBookType `gorm:"type:varchar(16);not null" json:"type"`
	OwnerUserID string          `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	FamilyID    *string         `gorm:"type:uuid;index" json:"family_id,omitempty"`
}
