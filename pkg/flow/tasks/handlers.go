package tasks

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowapp/flow-server/pkg/flow/activity"
	"github.com/flowapp/flow-server/pkg/flow/auth"
	"github.com/flowapp/flow-server/pkg/flow/models"
	"github.com/flowapp/flow-server/pkg/flow/taggable"
)

// Handler handles task-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new tasks handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateTaskRequest represents the request to create a task
type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required,min=1,max=255"`
	Description string     `json:"description"`
	Status      string     `json:"status" binding:"omitempty,oneof=todo in_progress completed"`
	Priority    string     `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"due_date"`
	TagIDs      []string   `json:"tag_ids"`
}

// UpdateTaskRequest represents a partial task update. Absent fields are left
// untouched; tag_ids present (even empty) replaces the whole association set.
type UpdateTaskRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=1,max=255"`
	Description *string    `json:"description"`
	Status      *string    `json:"status" binding:"omitempty,oneof=todo in_progress completed"`
	Priority    *string    `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *time.Time `json:"due_date"`
	Position    *int       `json:"position"`
	TagIDs      *[]string  `json:"tag_ids"`
}

// ReorderRequest represents the request to reorder tasks
type ReorderRequest struct {
	TaskIDs []string `json:"task_ids" binding:"required"`
}

// nextPosition returns max(position)+1 across the user's tasks, or 1 if none
// exist. Two concurrent creates by the same user may compute the same value;
// that is tolerated and tie-broken by created_at DESC when listing.
func nextPosition(tx *gorm.DB, userID string) (int, error) {
	var maxPos int
	err := tx.Model(&models.Task{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&maxPos).Error
	if err != nil {
		return 0, err
	}
	return maxPos + 1, nil
}

// List returns the user's tasks with optional filters
// @Summary List tasks
// @Description Get the current user's tasks with optional filters
// @Tags tasks
// @Produce json
// @Param search query string false "Substring match on title and description"
// @Param status query string false "Filter by status" Enums(todo, in_progress, completed)
// @Param priority query string false "Filter by priority" Enums(low, medium, high)
// @Param tag_id query string false "Filter by tag membership"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset for pagination"
// @Success 200 {array} models.Task
// @Header 200 {string} X-Total-Count "Filtered count before pagination"
// @Security BearerAuth
// @Router /tasks [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query := h.db.Model(&models.Task{}).Where("tasks.user_id = ?", userID)

	if search := c.Query("search"); search != "" {
		pattern := taggable.SearchPattern(search)
		query = query.Where("LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\'", pattern, pattern)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if priority := c.Query("priority"); priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if tagID := c.Query("tag_id"); tagID != "" {
		query = query.Joins("JOIN task_tags ON task_tags.task_id = tasks.id").
			Where("task_tags.tag_id = ?", tagID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tasks"})
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))

	limit, offset := parsePagination(c)

	var tasks []models.Task
	err := query.Preload("Tags").
		Order("position ASC, created_at DESC").
		Limit(limit).Offset(offset).
		Find(&tasks).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tasks"})
		return
	}

	c.JSON(http.StatusOK, tasks)
}

// Create creates a new task at the end of the user's order
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body CreateTaskRequest true "Task details"
// @Success 201 {object} models.Task
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /tasks [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task := models.Task{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		pos, err := nextPosition(tx, userID)
		if err != nil {
			return err
		}
		task.Position = pos

		resolved, err := taggable.ResolveTags(tx, userID, req.TagIDs)
		if err != nil {
			return err
		}
		task.Tags = resolved

		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		activity.Record(tx, userID, models.ActionCreated, models.EntityTask, task.ID, task.Title, "")
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	c.JSON(http.StatusCreated, task)
}

// Get returns a single task
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} models.Task
// @Failure 404 {object} map[string]string "Task not found"
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var task models.Task
	err := h.db.Preload("Tags").
		Where("id = ? AND user_id = ?", c.Param("id"), userID).
		First(&task).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// Update applies a partial update to a task
// @Summary Update a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body UpdateTaskRequest true "Updated task fields"
// @Success 200 {object} models.Task
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Task not found"
// @Security BearerAuth
// @Router /tasks/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var task models.Task
	if err := h.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&task).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	oldStatus := task.Status

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.Position != nil {
		task.Position = *req.Position
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tags").Save(&task).Error; err != nil {
			return err
		}

		if req.TagIDs != nil {
			resolved, err := taggable.ResolveTags(tx, userID, *req.TagIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(&task).Association("Tags").Replace(resolved); err != nil {
				return err
			}
		}

		if oldStatus != task.Status && task.Status == models.TaskStatusCompleted {
			activity.Record(tx, userID, models.ActionCompleted, models.EntityTask, task.ID, task.Title, "")
		} else {
			activity.Record(tx, userID, models.ActionUpdated, models.EntityTask, task.ID, task.Title, "")
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}

	// Reload with tags for the response
	h.db.Preload("Tags").First(&task, "id = ?", task.ID)

	c.JSON(http.StatusOK, task)
}

// Reorder assigns positions 0..n-1 by list index, in one transaction.
// Ids not owned by the caller are skipped silently.
// @Summary Reorder tasks
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ReorderRequest true "Ordered task IDs"
// @Success 200 {object} map[string]string "Tasks reordered"
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /tasks/reorder [post]
func (h *Handler) Reorder(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		for idx, taskID := range req.TaskIDs {
			err := tx.Model(&models.Task{}).
				Where("id = ? AND user_id = ?", taskID, userID).
				Update("position", idx).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reorder tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tasks reordered successfully"})
}

// Delete removes a task and its tag associations
// @Summary Delete a task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} map[string]string "Task deleted"
// @Failure 404 {object} map[string]string "Task not found"
// @Security BearerAuth
// @Router /tasks/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var task models.Task
	if err := h.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&task).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	title := task.Title
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&task).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&task).Error; err != nil {
			return err
		}
		activity.Record(tx, userID, models.ActionDeleted, models.EntityTask, task.ID, title, "")
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

// parsePagination reads limit/offset query params with the shared bounds
func parsePagination(c *gin.Context) (limit, offset int) {
	limit = 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	offset = 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// RegisterRoutes registers task routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tasks", h.List)
	rg.POST("/tasks", h.Create)
	rg.POST("/tasks/reorder", h.Reorder)
	rg.GET("/tasks/:id", h.Get)
	rg.PUT("/tasks/:id", h.Update)
	rg.DELETE("/tasks/:id", h.Delete)
}
