package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client is a tenant organization. Almost every other row is scoped by ClientID.
type Client struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string         `gorm:"not null;size:255" json:"name"`
	Slug        string         `gorm:"not null;size:100;uniqueIndex" json:"slug"`
	Plan        string         `gorm:"size:20;default:'standard'" json:"plan"`
	SeatLimit   int            `gorm:"default:50" json:"seat_limit"`
	Active      bool           `gorm:"default:true" json:"active"`
	PhoneNumber string         `gorm:"size:30" json:"phone_number"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
