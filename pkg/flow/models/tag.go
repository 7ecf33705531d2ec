package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultTagColor is applied when a tag is created without a color.
const DefaultTagColor = "#6366f1"

// Tag is a per-user label. Name uniqueness is enforced per (user_id, name) in
// the handlers so the collision maps to a clean Conflict response.
type Tag struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	UserID    string    `gorm:"not null;index;size:36" json:"user_id"`
	Name      string    `gorm:"not null;size:50" json:"name"`
	Color     string    `gorm:"size:20" json:"color"`
	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Tasks []Task `gorm:"many2many:task_tags;" json:"-"`
	Notes []Note `gorm:"many2many:note_tags;" json:"-"`
	Posts []Post `gorm:"many2many:post_tags;" json:"-"`
}

// BeforeCreate assigns a UUID primary key and the default color
func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Color == "" {
		t.Color = DefaultTagColor
	}
	return nil
}
