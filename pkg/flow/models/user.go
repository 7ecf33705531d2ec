package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents an account. Every other record is owned by exactly one user;
// nothing is ever visible across users.
type User struct {
	ID            string    `gorm:"primarykey;size:36" json:"id"`
	Email         string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash  string    `gorm:"not null;size:255" json:"-"`
	FullName      string    `gorm:"not null;size:255" json:"full_name"`
	Bio           string    `json:"bio"`
	AvatarURL     string    `gorm:"size:500" json:"avatar_url"`
	EmailVerified bool      `gorm:"default:false" json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
