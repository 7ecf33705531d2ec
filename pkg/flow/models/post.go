package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a draft/published article. PublishedAt is stamped on the first
// transition to published and never cleared or reset afterwards.
type Post struct {
	ID          string     `gorm:"primarykey;size:36" json:"id"`
	UserID      string     `gorm:"not null;index;size:36" json:"user_id"`
	Title       string     `gorm:"not null;size:255" json:"title"`
	Content     string     `json:"content"`
	IsPublished bool       `gorm:"default:false;index" json:"is_published"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relationships
	Tags []Tag `gorm:"many2many:post_tags;" json:"tags"`
}

// BeforeCreate assigns a UUID primary key
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
