package analytics

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/flowapp/flow-server/pkg/flow/auth"
	"github.com/flowapp/flow-server/pkg/flow/models"
)

// maxWindowDays caps the analytics window regardless of the requested value.
// The window is deliberately small so every call can recompute from scratch.
const maxWindowDays = 14

// Handler handles activity timeline, analytics, and dashboard requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new analytics handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// SeriesPoint is one day bucket in a time series
type SeriesPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AnalyticsResponse represents the aggregated analytics payload
type AnalyticsResponse struct {
	TasksByStatus          map[string]int `json:"tasks_by_status"`
	TasksByPriority        map[string]int `json:"tasks_by_priority"`
	NotesByColor           map[string]int `json:"notes_by_color"`
	TasksCompletedOverTime []SeriesPoint  `json:"tasks_completed_over_time"`
	PostsPublishedOverTime []SeriesPoint  `json:"posts_published_over_time"`
	ActivityOverTime       []SeriesPoint  `json:"activity_over_time"`
	ProductivityScore      int            `json:"productivity_score"`
}

// Activities returns the user's activity timeline, newest first
// @Summary Activity timeline
// @Tags analytics
// @Produce json
// @Param entity_type query string false "Filter by entity type" Enums(task, note, post)
// @Param limit query int false "Max rows (default 50, max 100)"
// @Success 200 {array} models.Activity
// @Security BearerAuth
// @Router /activities [get]
func (h *Handler) Activities(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query := h.db.Where("user_id = ?", userID)
	if entityType := c.Query("entity_type"); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	var activities []models.Activity
	if err := query.Order("created_at DESC").Limit(limit).Find(&activities).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch activities"})
		return
	}

	c.JSON(http.StatusOK, activities)
}

// groupCount runs a grouped count over one column of an owner's rows
func (h *Handler) groupCount(model interface{}, userID, column string) (map[string]int, error) {
	type row struct {
		Key string
		N   int
	}
	var rows []row
	err := h.db.Model(model).
		Select(column+" as key, COUNT(id) as n").
		Where("user_id = ?", userID).
		Group(column).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		if r.N > 0 {
			counts[r.Key] = r.N
		}
	}
	return counts, nil
}

// dailySeries buckets the user's activity rows by day over the last cutoff
// days. entityType and action are optional filters. Every day in the window
// appears exactly once, oldest first, zero-filled.
func (h *Handler) dailySeries(userID, entityType, action string, cutoff int, now time.Time) ([]SeriesPoint, error) {
	start := now.AddDate(0, 0, -cutoff)

	query := h.db.Model(&models.Activity{}).
		Select("DATE(created_at) as day, COUNT(id) as n").
		Where("user_id = ? AND created_at >= ?", userID, start)
	if entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if action != "" {
		query = query.Where("action = ?", action)
	}

	type row struct {
		Day string
		N   int
	}
	var rows []row
	if err := query.Group("DATE(created_at)").Find(&rows).Error; err != nil {
		return nil, err
	}
	byDay := make(map[string]int, len(rows))
	for _, r := range rows {
		byDay[r.Day] = r.N
	}

	series := make([]SeriesPoint, 0, cutoff)
	for i := cutoff - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format("2006-01-02")
		series = append(series, SeriesPoint{Date: date, Count: byDay[date]})
	}
	return series, nil
}

// Analytics returns status/priority/color breakdowns, day-bucketed series
// derived from the activity log, and the productivity score
// @Summary Analytics
// @Tags analytics
// @Produce json
// @Param days query int false "Window in days (clamped to 14)"
// @Success 200 {object} AnalyticsResponse
// @Security BearerAuth
// @Router /analytics [get]
func (h *Handler) Analytics(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	days := 30
	if d := c.Query("days"); d != "" {
		if parsed, err := strconv.Atoi(d); err == nil && parsed > 0 {
			days = parsed
		}
	}
	cutoff := days
	if cutoff > maxWindowDays {
		cutoff = maxWindowDays
	}
	now := time.Now().UTC()

	tasksByStatus, err := h.groupCount(&models.Task{}, userID, "status")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute analytics"})
		return
	}
	tasksByPriority, err := h.groupCount(&models.Task{}, userID, "priority")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute analytics"})
		return
	}
	notesByColor, err := h.groupCount(&models.Note{}, userID, "color")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute analytics"})
		return
	}

	completedSeries, err := h.dailySeries(userID, models.EntityTask, models.ActionCompleted, cutoff, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute analytics"})
		return
	}
	publishedSeries, err := h.dailySeries(userID, models.EntityPost, models.ActionPublished, cutoff, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute analytics"})
		return
	}
	activitySeries, err := h.dailySeries(userID, "", "", cutoff, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute analytics"})
		return
	}

	totalTasks := 0
	for _, n := range tasksByStatus {
		totalTasks += n
	}
	completedTasks := tasksByStatus[models.TaskStatusCompleted]
	denom := totalTasks
	if denom < 1 {
		denom = 1
	}
	score := int(math.Round(float64(completedTasks) / float64(denom) * 100))

	c.JSON(http.StatusOK, AnalyticsResponse{
		TasksByStatus:          tasksByStatus,
		TasksByPriority:        tasksByPriority,
		NotesByColor:           notesByColor,
		TasksCompletedOverTime: completedSeries,
		PostsPublishedOverTime: publishedSeries,
		ActivityOverTime:       activitySeries,
		ProductivityScore:      score,
	})
}

// DashboardStats returns headline counts per entity kind
// @Summary Dashboard statistics
// @Tags analytics
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /dashboard/stats [get]
func (h *Handler) DashboardStats(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	count := func(model interface{}, conds ...interface{}) int64 {
		var n int64
		query := h.db.Model(model).Where("user_id = ?", userID)
		if len(conds) > 0 {
			query = query.Where(conds[0], conds[1:]...)
		}
		query.Count(&n)
		return n
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": gin.H{
			"total":       count(&models.Task{}),
			"completed":   count(&models.Task{}, "status = ?", models.TaskStatusCompleted),
			"in_progress": count(&models.Task{}, "status = ?", models.TaskStatusInProgress),
		},
		"notes": gin.H{
			"total":  count(&models.Note{}),
			"pinned": count(&models.Note{}, "is_pinned = ?", true),
		},
		"posts": gin.H{
			"total":     count(&models.Post{}),
			"published": count(&models.Post{}, "is_published = ?", true),
		},
		"tags": gin.H{
			"total": count(&models.Tag{}),
		},
	})
}

// RegisterRoutes registers analytics routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/activities", h.Activities)
	rg.GET("/analytics", h.Analytics)
	rg.GET("/dashboard/stats", h.DashboardStats)
}
