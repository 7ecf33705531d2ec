package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Activity actions
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionDeleted   = "deleted"
	ActionCompleted = "completed"
	ActionPublished = "published"
)

// Entity types recorded in the activity log
const (
	EntityTask    = "task"
	EntityNote    = "note"
	EntityPost    = "post"
	EntityUser    = "user"
	EntityProfile = "profile"
)

// Activity is one append-only audit row. Rows are never updated or deleted
// except when the owning user is deleted.
type Activity struct {
	ID          string    `gorm:"primarykey;size:36" json:"id"`
	UserID      string    `gorm:"not null;index;size:36" json:"user_id"`
	Action      string    `gorm:"not null;size:50" json:"action"`
	EntityType  string    `gorm:"not null;size:20" json:"entity_type"`
	EntityID    string    `gorm:"size:36" json:"entity_id"`
	EntityTitle string    `gorm:"size:255" json:"entity_title"`
	Details     string    `json:"details"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns a UUID primary key
func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
