package posts

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

// Handler handles post-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new posts handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreatePostRequest represents the request to create a post
type CreatePostRequest struct {
	Title       string   `json:"title" binding:"required,min=1,max=255"`
	Content     string   `json:"content"`
	IsPublished bool     `json:"is_published"`
	TagIDs      []string `json:"tag_ids"`
}

// UpdatePostRequest represents a partial post update
type UpdatePostRequest struct {
	Title       *string   `json:"title" binding:"omitempty,min=1,max=255"`
	Content     *string   `json:"content"`
	IsPublished *bool     `json:"is_published"`
	TagIDs      *[]string `json:"tag_ids"`
}

// List returns the user's posts, newest first
// @Summary List posts
// @Description Get the current user's posts with optional filters
// @Tags posts
// @Produce json
// @Param search query string false "Substring match on title and content"
// @Param is_published query bool false "Filter by published state"
// @Param tag_id query string false "Filter by tag membership"
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset for pagination"
// @Success 200 {array} models.Post
// @Header 200 {string} X-Total-Count "Filtered count before pagination"
// @Security BearerAuth
// @Router /posts [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query := h.db.Model(&models.Post{}).Where("posts.user_id = ?", userID)

	if search := c.Query("search"); search != "" {
		pattern := taggable.SearchPattern(search)
		query = query.Where("LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(content) LIKE ? ESCAPE '\\'", pattern, pattern)
	}
	if isPublished := c.Query("is_published"); isPublished != "" {
		query = query.Where("is_published = ?", isPublished == "true")
	}
	if tagID := c.Query("tag_id"); tagID != "" {
		query = query.Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Where("post_tags.tag_id = ?", tagID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))

	limit, offset := parsePagination(c)

	var posts []models.Post
	err := query.Preload("Tags").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	c.JSON(http.StatusOK, posts)
}

// Create creates a new post. A post created already published gets its
// published_at stamped and logs a "published" activity instead of "created".
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Param request body CreatePostRequest true "Post details"
// @Success 201 {object} models.Post
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /posts [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post := models.Post{
		UserID:      userID,
		Title:       req.Title,
		Content:     req.Content,
		IsPublished: req.IsPublished,
	}
	if req.IsPublished {
		now := time.Now().UTC()
		post.PublishedAt = &now
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		resolved, err := taggable.ResolveTags(tx, userID, req.TagIDs)
		if err != nil {
			return err
		}
		post.Tags = resolved

		if err := tx.Create(&post).Error; err != nil {
			return err
		}

		action := models.ActionCreated
		if post.IsPublished {
			action = models.ActionPublished
		}
		activity.Record(tx, userID, action, models.EntityPost, post.ID, post.Title, "")
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	c.JSON(http.StatusCreated, post)
}

// Get returns a single post
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} map[string]string "Post not found"
// @Security BearerAuth
// @Router /posts/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var post models.Post
	err := h.db.Preload("Tags").
		Where("id = ? AND user_id = ?", c.Param("id"), userID).
		First(&post).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	c.JSON(http.StatusOK, post)
}

// Update applies a partial update to a post. published_at is stamped on the
// first transition to published and never reset afterwards.
// @Summary Update a post
// @Tags posts
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param request body UpdatePostRequest true "Updated post fields"
// @Success 200 {object} models.Post
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Post not found"
// @Security BearerAuth
// @Router /posts/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var post models.Post
	if err := h.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	var req UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wasPublished := post.IsPublished

	if req.Title != nil {
		post.Title = *req.Title
	}
	if req.Content != nil {
		post.Content = *req.Content
	}
	if req.IsPublished != nil {
		post.IsPublished = *req.IsPublished
		if post.IsPublished && post.PublishedAt == nil {
			now := time.Now().UTC()
			post.PublishedAt = &now
		}
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tags").Save(&post).Error; err != nil {
			return err
		}

		if req.TagIDs != nil {
			resolved, err := taggable.ResolveTags(tx, userID, *req.TagIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(&post).Association("Tags").Replace(resolved); err != nil {
				return err
			}
		}

		if !wasPublished && post.IsPublished {
			activity.Record(tx, userID, models.ActionPublished, models.EntityPost, post.ID, post.Title, "")
		} else {
			activity.Record(tx, userID, models.ActionUpdated, models.EntityPost, post.ID, post.Title, "")
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update post"})
		return
	}

	h.db.Preload("Tags").First(&post, "id = ?", post.ID)

	c.JSON(http.StatusOK, post)
}

// Delete removes a post and its tag associations
// @Summary Delete a post
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} map[string]string "Post deleted"
// @Failure 404 {object} map[string]string "Post not found"
// @Security BearerAuth
// @Router /posts/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var post models.Post
	if err := h.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	title := post.Title
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&post).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&post).Error; err != nil {
			return err
		}
		activity.Record(tx, userID, models.ActionDeleted, models.EntityPost, post.ID, title, "")
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
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

// RegisterRoutes registers post routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/posts", h.List)
	rg.POST("/posts", h.Create)
	rg.GET("/posts/:id", h.Get)
	rg.PUT("/posts/:id", h.Update)
	rg.DELETE("/posts/:id", h.Delete)
}
