package models

// AuditLog records budget mutations and maintenance actions.
// UserID is "system" for actions taken by the sweep or self-healing.
type AuditLog struct {
	Base
	UserID       string `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	Changes      string `json:"changes,omitempty"`
}
