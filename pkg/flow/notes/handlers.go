package notes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowapp/flow-server/pkg/flow/activity"
	"github.com/flowapp/flow-server/pkg/flow/auth"
	"github.com/flowapp/flow-server/pkg/flow/models"
	"github.com/flowapp/flow-server/pkg/flow/taggable"
)

// Handler handles note-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new notes handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateNoteRequest represents the request to create a note
type CreateNoteRequest struct {
	Title    string   `json:"title" binding:"required,min=1,max=255"`
	Content  string   `json:"content"`
	Color    string   `json:"color" binding:"omitempty,max=20"`
	IsPinned bool     `json:"is_pinned"`
	TagIDs   []string `json:"tag_ids"`
}

// UpdateNoteRequest represents a partial note update
type UpdateNoteRequest struct {
	Title    *string   `json:"title" binding:"omitempty,min=1,max=255"`
	Content  *string   `json:"content"`
	Color    *string   `json:"color" binding:"omitempty,max=20"`
	IsPinned *bool     `json:"is_pinned"`
	TagIDs   *[]string `json:"tag_ids"`
}

// List returns the user's notes, pinned first
// @Summary List notes
// @Description Get the current user's notes with optional filters
// @Tags notes
// @Produce json
// @Param search query string false "Substring match on title and content"
// @Param color query string false "Filter by color"
// @Param is_pinned query bool false "Filter by pinned state"
// @Param tag_id query string false "Filter by tag membership"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset for pagination"
// @Success 200 {array} models.Note
// @Header 200 {string} X-Total-Count "Filtered count before pagination"
// @Security BearerAuth
// @Router /notes [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query := h.db.Model(&models.Note{}).Where("notes.user_id = ?", userID)

	if search := c.Query("search"); search != "" {
		pattern := taggable.SearchPattern(search)
		query = query.Where("LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(content) LIKE ? ESCAPE '\\'", pattern, pattern)
	}
	if color := c.Query("color"); color != "" && color != "all" {
		query = query.Where("color = ?", color)
	}
	if isPinned := c.Query("is_pinned"); isPinned != "" {
		query = query.Where("is_pinned = ?", isPinned == "true")
	}
	if tagID := c.Query("tag_id"); tagID != "" {
		query = query.Joins("JOIN note_tags ON note_tags.note_id = notes.id").
			Where("note_tags.tag_id = ?", tagID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notes"})
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))

	limit, offset := parsePagination(c)

	var notes []models.Note
	err := query.Preload("Tags").
		Order("is_pinned DESC, created_at DESC").
		Limit(limit).Offset(offset).
		Find(&notes).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notes"})
		return
	}

	c.JSON(http.StatusOK, notes)
}

// Create creates a new note
// @Summary Create a note
// @Tags notes
// @Accept json
// @Produce json
// @Param request body CreateNoteRequest true "Note details"
// @Success 201 {object} models.Note
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /notes [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	note := models.Note{
		UserID:   userID,
		Title:    req.Title,
		Content:  req.Content,
		Color:    req.Color,
		IsPinned: req.IsPinned,
	}
	if note.Color == "" {
		note.Color = "default"
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		resolved, err := taggable.ResolveTags(tx, userID, req.TagIDs)
		if err != nil {
			return err
		}
		note.Tags = resolved

		if err := tx.Create(&note).Error; err != nil {
			return err
		}
		activity.Record(tx, userID, models.ActionCreated, models.EntityNote, note.ID, note.Title, "")
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create note"})
		return
	}

	c.JSON(http.StatusCreated, note)
}

// Get returns a single note
// @Summary Get a note
// @Tags notes
// @Produce json
// @Param id path string true "Note ID"
// @Success 200 {object} models.Note
// @Failure 404 {object} map[string]string "Note not found"
// @Security BearerAuth
// @Router /notes/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var note models.Note
	err := h.db.Preload("Tags").
		Where("id = ? AND user_id = ?", c.Param("id"), userID).
		First(&note).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}

	c.JSON(http.StatusOK, note)
}

// Update applies a partial update to a note
// @Summary Update a note
// @Tags notes
// @Accept json
// @Produce json
// @Param id path string true "Note ID"
// @Param request body UpdateNoteRequest true "Updated note fields"
// @Success 200 {object} models.Note
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Note not found"
// @Security BearerAuth
// @Router /notes/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var note models.Note
	if err := h.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&note).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}

	var req UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Title != nil {
		note.Title = *req.Title
	}
	if req.Content != nil {
		note.Content = *req.Content
	}
	if req.Color != nil {
		note.Color = *req.Color
	}
	if req.IsPinned != nil {
		note.IsPinned = *req.IsPinned
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tags").Save(&note).Error; err != nil {
			return err
		}

		if req.TagIDs != nil {
			resolved, err := taggable.ResolveTags(tx, userID, *req.TagIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(&note).Association("Tags").Replace(resolved); err != nil {
				return err
			}
		}

		activity.Record(tx, userID, models.ActionUpdated, models.EntityNote, note.ID, note.Title, "")
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update note"})
		return
	}

	h.db.Preload("Tags").First(&note, "id = ?", note.ID)

	c.JSON(http.StatusOK, note)
}

// Delete removes a note and its tag associations
// @Summary Delete a note
// @Tags notes
// @Produce json
// @Param id path string true "Note ID"
// @Success 200 {object} map[string]string "Note deleted"
// @Failure 404 {object} map[string]string "Note not found"
// @Security BearerAuth
// @Router /notes/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var note models.Note
	if err := h.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&note).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}

	title := note.Title
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&note).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&note).Error; err != nil {
			return err
		}
		activity.Record(tx, userID, models.ActionDeleted, models.EntityNote, note.ID, title, "")
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete note"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Note deleted"})
}

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

// RegisterRoutes registers note routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notes", h.List)
	rg.POST("/notes", h.Create)
	rg.GET("/notes/:id", h.Get)
	rg.PUT("/notes/:id", h.Update)
	rg.DELETE("/notes/:id", h.Delete)
}
