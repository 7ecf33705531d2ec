package importexport

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowapp/flow-server/pkg/flow/auth"
	"github.com/flowapp/flow-server/pkg/flow/models"
)

// Handler handles data export requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new export handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// ExportRequest represents an export request
type ExportRequest struct {
	EntityType string `json:"entity_type" binding:"required,oneof=tasks notes posts all"`
	Format     string `json:"format" binding:"required,oneof=json csv"`
}

func tagNames(tags []models.Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// exportData collects the owner's full data set, unpaginated
func (h *Handler) exportData(userID, entityType string) (map[string][]map[string]interface{}, error) {
	data := map[string][]map[string]interface{}{}

	if entityType == "tasks" || entityType == "all" {
		var tasks []models.Task
		if err := h.db.Preload("Tags").Where("user_id = ?", userID).Order("position ASC, created_at DESC").Find(&tasks).Error; err != nil {
			return nil, err
		}
		rows := make([]map[string]interface{}, len(tasks))
		for i, t := range tasks {
			rows[i] = map[string]interface{}{
				"id":          t.ID,
				"title":       t.Title,
				"description": t.Description,
				"status":      t.Status,
				"priority":    t.Priority,
				"due_date":    formatTimePtr(t.DueDate),
				"tags":        tagNames(t.Tags),
				"created_at":  formatTime(t.CreatedAt),
				"updated_at":  formatTime(t.UpdatedAt),
			}
		}
		data["tasks"] = rows
	}

	if entityType == "notes" || entityType == "all" {
		var notes []models.Note
		if err := h.db.Preload("Tags").Where("user_id = ?", userID).Order("created_at DESC").Find(&notes).Error; err != nil {
			return nil, err
		}
		rows := make([]map[string]interface{}, len(notes))
		for i, n := range notes {
			rows[i] = map[string]interface{}{
				"id":         n.ID,
				"title":      n.Title,
				"content":    n.Content,
				"color":      n.Color,
				"is_pinned":  n.IsPinned,
				"tags":       tagNames(n.Tags),
				"created_at": formatTime(n.CreatedAt),
				"updated_at": formatTime(n.UpdatedAt),
			}
		}
		data["notes"] = rows
	}

	if entityType == "posts" || entityType == "all" {
		var posts []models.Post
		if err := h.db.Preload("Tags").Where("user_id = ?", userID).Order("created_at DESC").Find(&posts).Error; err != nil {
			return nil, err
		}
		rows := make([]map[string]interface{}, len(posts))
		for i, p := range posts {
			rows[i] = map[string]interface{}{
				"id":           p.ID,
				"title":        p.Title,
				"content":      p.Content,
				"is_published": p.IsPublished,
				"published_at": formatTimePtr(p.PublishedAt),
				"tags":         tagNames(p.Tags),
				"created_at":   formatTime(p.CreatedAt),
				"updated_at":   formatTime(p.UpdatedAt),
			}
		}
		data["posts"] = rows
	}

	return data, nil
}

// column orders per section keep CSV output stable
var csvColumns = map[string][]string{
	"tasks": {"id", "title", "description", "status", "priority", "due_date", "tags", "created_at", "updated_at"},
	"notes": {"id", "title", "content", "color", "is_pinned", "tags", "created_at", "updated_at"},
	"posts": {"id", "title", "content", "is_published", "published_at", "tags", "created_at", "updated_at"},
}

func writeCSV(data map[string][]map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	for _, section := range []string{"tasks", "notes", "posts"} {
		items := data[section]
		if len(items) == 0 {
			continue
		}
		buf.WriteString("\n=== " + strings.ToUpper(section) + " ===\n")
		w := csv.NewWriter(&buf)
		columns := csvColumns[section]
		if err := w.Write(columns); err != nil {
			return nil, err
		}
		for _, item := range items {
			record := make([]string, len(columns))
			for i, col := range columns {
				record[i] = toCell(item[col])
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func toCell(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case []string:
		return strings.Join(val, ", ")
	default:
		return ""
	}
}

// Export streams the owner's full data set as a JSON or CSV attachment
// @Summary Export user data
// @Description Export all owned tasks, notes, and posts in CSV or JSON format
// @Tags export
// @Accept json
// @Produce json
// @Param request body ExportRequest true "Export parameters"
// @Success 200 {string} string "Exported file"
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /export [post]
func (h *Handler) Export(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := h.exportData(userID, req.EntityType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export data"})
		return
	}

	if req.Format == "json" {
		payload, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export data"})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=flow_export.json")
		c.Data(http.StatusOK, "application/json", payload)
		return
	}

	payload, err := writeCSV(data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export data"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=flow_export.csv")
	c.Data(http.StatusOK, "text/csv", payload)
}

// RegisterRoutes registers export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/export", h.Export)
}
