package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task statuses
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

// Task priorities
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

// Task is a to-do item with a manual per-user display order. Position is not
// kept contiguous except right after a reorder; duplicate positions from
// racing creates are tolerated and tie-broken by created_at at read time.
type Task struct {
	ID          string     `gorm:"primarykey;size:36" json:"id"`
	UserID      string     `gorm:"not null;index;size:36" json:"user_id"`
	Title       string     `gorm:"not null;size:255" json:"title"`
	Description string     `json:"description"`
	Status      string     `gorm:"default:todo;index;size:20" json:"status"`
	Priority    string     `gorm:"default:medium;index;size:20" json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	Position    int        `gorm:"default:0" json:"position"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relationships
	Tags []Tag `gorm:"many2many:task_tags;" json:"tags"`
}

// BeforeCreate assigns a UUID primary key
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
