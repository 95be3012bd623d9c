package models

// User is a person who can sign in. Users are owned by the account
// subsystem; the engine reads them for display names and ownership.
type User struct {
	Base
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `gorm:"not null" json:"name"`
}
