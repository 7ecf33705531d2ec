package tags

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowapp/flow-server/pkg/flow/auth"
	"github.com/flowapp/flow-server/pkg/flow/models"
)

// Handler handles tag-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateTagRequest represents the request to create a tag
type CreateTagRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=50"`
	Color string `json:"color" binding:"omitempty,max=20"`
}

// UpdateTagRequest represents a partial tag update
type UpdateTagRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=50"`
	Color *string `json:"color" binding:"omitempty,max=20"`
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	CreatedAt string `json:"created_at"`
	TaskCount int    `json:"task_count"`
	NoteCount int    `json:"note_count"`
	PostCount int    `json:"post_count"`
}

func tagToResponse(tag models.Tag) TagResponse {
	return TagResponse{
		ID:        tag.ID,
		Name:      tag.Name,
		Color:     tag.Color,
		CreatedAt: tag.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// nameTaken reports whether another tag of the same owner already uses name.
func (h *Handler) nameTaken(userID, name, excludeID string) (bool, error) {
	query := h.db.Model(&models.Tag{}).Where("user_id = ? AND name = ?", userID, name)
	if excludeID != "" {
		query = query.Where("id != ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns all of the user's tags ordered by name, with usage counts
// @Summary List tags
// @Description Get all tags owned by the current user
// @Tags tags
// @Produce json
// @Success 200 {array} TagResponse
// @Security BearerAuth
// @Router /tags [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var tags []models.Tag
	if err := h.db.Where("user_id = ?", userID).Order("name").Find(&tags).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}

	type usageCount struct {
		TagID string
		N     int
	}
	countByTable := func(join string) map[string]int {
		var rows []usageCount
		h.db.Table("tags").
			Select("tags.id as tag_id, COUNT(*) as n").
			Joins("INNER JOIN "+join+" ON tags.id = "+join+".tag_id").
			Where("tags.user_id = ?", userID).
			Group("tags.id").
			Find(&rows)
		counts := make(map[string]int, len(rows))
		for _, r := range rows {
			counts[r.TagID] = r.N
		}
		return counts
	}
	taskCounts := countByTable("task_tags")
	noteCounts := countByTable("note_tags")
	postCounts := countByTable("post_tags")

	responses := make([]TagResponse, len(tags))
	for i, tag := range tags {
		resp := tagToResponse(tag)
		resp.TaskCount = taskCounts[tag.ID]
		resp.NoteCount = noteCounts[tag.ID]
		resp.PostCount = postCounts[tag.ID]
		responses[i] = resp
	}

	c.JSON(http.StatusOK, responses)
}

// Create creates a new tag
// @Summary Create a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param request body CreateTagRequest true "Tag details"
// @Success 201 {object} TagResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 409 {object} map[string]string "Tag name already exists"
// @Security BearerAuth
// @Router /tags [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taken, err := h.nameTaken(userID, req.Name, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tag"})
		return
	}
	if taken {
		c.JSON(http.StatusConflict, gin.H{"error": "Tag with this name already exists"})
		return
	}

	tag := models.Tag{
		UserID: userID,
		Name:   req.Name,
		Color:  req.Color,
	}
	if err := h.db.Create(&tag).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tag"})
		return
	}

	c.JSON(http.StatusCreated, tagToResponse(tag))
}

// Update renames or recolors a tag
// @Summary Update a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param id path string true "Tag ID"
// @Param request body UpdateTagRequest true "Updated tag fields"
// @Success 200 {object} TagResponse
// @Failure 404 {object} map[string]string "Tag not found"
// @Failure 409 {object} map[string]string "Tag name already exists"
// @Security BearerAuth
// @Router /tags/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	tagID := c.Param("id")

	var tag models.Tag
	if err := h.db.Where("id = ? AND user_id = ?", tagID, userID).First(&tag).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	var req UpdateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil && *req.Name != tag.Name {
		taken, err := h.nameTaken(userID, *req.Name, tag.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tag"})
			return
		}
		if taken {
			c.JSON(http.StatusConflict, gin.H{"error": "Tag with this name already exists"})
			return
		}
		tag.Name = *req.Name
	}
	if req.Color != nil {
		tag.Color = *req.Color
	}

	if err := h.db.Save(&tag).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tag"})
		return
	}

	c.JSON(http.StatusOK, tagToResponse(tag))
}

// Delete removes a tag and all its associations; tagged entities survive
// @Summary Delete a tag
// @Tags tags
// @Produce json
// @Param id path string true "Tag ID"
// @Success 200 {object} map[string]string "Tag deleted"
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /tags/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	tagID := c.Param("id")

	var tag models.Tag
	if err := h.db.Where("id = ? AND user_id = ?", tagID, userID).First(&tag).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&tag).Association("Tasks").Clear(); err != nil {
			return err
		}
		if err := tx.Model(&tag).Association("Notes").Clear(); err != nil {
			return err
		}
		if err := tx.Model(&tag).Association("Posts").Clear(); err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete tag"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tag deleted"})
}

// RegisterRoutes registers tag routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
	rg.POST("/tags", h.Create)
	rg.PUT("/tags/:id", h.Update)
	rg.DELETE("/tags/:id", h.Delete)
}
