package models

import (
	"time"

	"famledger/internal/uuid"

	"gorm.io/gorm"
)

// Base holds the columns of tables whose rows are edited and soft deleted.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUIDv7 unless the caller chose an id.
func (b *Base) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}

// Record is the header of append-only tables such as the rollover ledger:
// rows are written once and never updated or deleted.
type Record struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUIDv7 unless the caller chose an id.
func (r *Record) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

func assignID(id *string) {
	if *id == "" {
		*id = uuid.New()
	}
}
