package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Note is a free-form note with a color and a pinned flag
type Note struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	UserID    string    `gorm:"not null;index;size:36" json:"user_id"`
	Title     string    `gorm:"not null;size:255" json:"title"`
	Content   string    `json:"content"`
	Color     string    `gorm:"default:default;size:20" json:"color"`
	IsPinned  bool      `gorm:"default:false;index" json:"is_pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Tags []Tag `gorm:"many2many:note_tags;" json:"tags"`
}

// BeforeCreate assigns a UUID primary key
func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
