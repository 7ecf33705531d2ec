package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/flowapp/flow-server/pkg/flow/auth"
	"github.com/flowapp/flow-server/pkg/flow/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	user := models.User{Email: email, PasswordHash: "hash", FullName: "Test User"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)

	api := r.Group("/api")
	api.Use(auth.AuthMiddleware())
	handler.RegisterRoutes(api)

	return r
}

func doGet(router *gin.Engine, path string, user models.User) *httptest.ResponseRecorder {
	token, _ := auth.GenerateToken(user.ID, user.Email)
	req, _ := http.NewRequest("GET", path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func getAnalytics(t *testing.T, router *gin.Engine, user models.User, query string) AnalyticsResponse {
	resp := doGet(router, "/api/analytics"+query, user)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload AnalyticsResponse
	json.Unmarshal(resp.Body.Bytes(), &payload)
	return payload
}

func TestAnalyticsWindowClampedToFourteenDays(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	payload := getAnalytics(t, router, user, "?days=90")
	if len(payload.ActivityOverTime) != 14 {
		t.Errorf("Expected 14 day buckets, got %d", len(payload.ActivityOverTime))
	}
}

func TestAnalyticsSeriesShape(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	payload := getAnalytics(t, router, user, "?days=5")
	series := payload.ActivityOverTime
	if len(series) != 5 {
		t.Fatalf("Expected 5 day buckets, got %d", len(series))
	}
	for i := 1; i < len(series); i++ {
		if series[i].Date <= series[i-1].Date {
			t.Errorf("Expected strictly ascending dates, got %s then %s", series[i-1].Date, series[i].Date)
		}
	}
	today := time.Now().UTC().Format("2006-01-02")
	if series[len(series)-1].Date != today {
		t.Errorf("Expected last bucket to be today (%s), got %s", today, series[len(series)-1].Date)
	}
	for _, p := range series {
		if p.Count != 0 {
			t.Errorf("Expected zero-filled buckets with no activity, got %d on %s", p.Count, p.Date)
		}
	}
}

func TestAnalyticsBreakdownsAndScore(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	db.Create(&models.Task{UserID: user.ID, Title: "A", Status: models.TaskStatusCompleted, Priority: models.TaskPriorityHigh, Position: 1})
	db.Create(&models.Task{UserID: user.ID, Title: "B", Status: models.TaskStatusTodo, Priority: models.TaskPriorityHigh, Position: 2})
	db.Create(&models.Task{UserID: user.ID, Title: "C", Status: models.TaskStatusTodo, Priority: models.TaskPriorityLow, Position: 3})
	db.Create(&models.Note{UserID: user.ID, Title: "N", Color: "yellow"})

	payload := getAnalytics(t, router, user, "")

	if payload.TasksByStatus[models.TaskStatusTodo] != 2 || payload.TasksByStatus[models.TaskStatusCompleted] != 1 {
		t.Errorf("Unexpected status breakdown: %v", payload.TasksByStatus)
	}
	if payload.TasksByPriority[models.TaskPriorityHigh] != 2 || payload.TasksByPriority[models.TaskPriorityLow] != 1 {
		t.Errorf("Unexpected priority breakdown: %v", payload.TasksByPriority)
	}
	if payload.NotesByColor["yellow"] != 1 {
		t.Errorf("Unexpected color breakdown: %v", payload.NotesByColor)
	}
	// 1 of 3 completed, rounded
	if payload.ProductivityScore != 33 {
		t.Errorf("Expected productivity score 33, got %d", payload.ProductivityScore)
	}
}

func TestProductivityScoreWithNoTasks(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	payload := getAnalytics(t, router, user, "")
	if payload.ProductivityScore != 0 {
		t.Errorf("Expected score 0 with no tasks, got %d", payload.ProductivityScore)
	}
}

func TestCompletedSeriesCountsTodaysCompletions(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	db.Create(&models.Activity{UserID: user.ID, Action: models.ActionCompleted, EntityType: models.EntityTask, EntityID: "t1", EntityTitle: "A"})
	db.Create(&models.Activity{UserID: user.ID, Action: models.ActionCompleted, EntityType: models.EntityTask, EntityID: "t2", EntityTitle: "B"})
	db.Create(&models.Activity{UserID: user.ID, Action: models.ActionUpdated, EntityType: models.EntityTask, EntityID: "t1", EntityTitle: "A"})

	payload := getAnalytics(t, router, user, "?days=3")
	series := payload.TasksCompletedOverTime
	if len(series) != 3 {
		t.Fatalf("Expected 3 day buckets, got %d", len(series))
	}
	if series[2].Count != 2 {
		t.Errorf("Expected 2 completions today, got %d", series[2].Count)
	}
	if payload.ActivityOverTime[2].Count != 3 {
		t.Errorf("Expected 3 activity rows today, got %d", payload.ActivityOverTime[2].Count)
	}
}

func TestActivitiesTimeline(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	other := createTestUser(t, db, "other@example.com")

	db.Create(&models.Activity{UserID: user.ID, Action: models.ActionCreated, EntityType: models.EntityTask, EntityID: "t1", EntityTitle: "Task"})
	db.Create(&models.Activity{UserID: user.ID, Action: models.ActionCreated, EntityType: models.EntityNote, EntityID: "n1", EntityTitle: "Note"})
	db.Create(&models.Activity{UserID: other.ID, Action: models.ActionCreated, EntityType: models.EntityTask, EntityID: "t9", EntityTitle: "Foreign"})

	resp := doGet(router, "/api/activities", user)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var rows []models.Activity
	json.Unmarshal(resp.Body.Bytes(), &rows)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows scoped to owner, got %d", len(rows))
	}

	resp = doGet(router, "/api/activities?entity_type=note", user)
	json.Unmarshal(resp.Body.Bytes(), &rows)
	if len(rows) != 1 || rows[0].EntityType != models.EntityNote {
		t.Errorf("Expected only note activity, got %+v", rows)
	}

	resp = doGet(router, "/api/activities?limit=1", user)
	json.Unmarshal(resp.Body.Bytes(), &rows)
	if len(rows) != 1 {
		t.Errorf("Expected limit to cap rows, got %d", len(rows))
	}
}

func TestDashboardStats(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	db.Create(&models.Task{UserID: user.ID, Title: "A", Status: models.TaskStatusCompleted, Priority: models.TaskPriorityMedium, Position: 1})
	db.Create(&models.Task{UserID: user.ID, Title: "B", Status: models.TaskStatusInProgress, Priority: models.TaskPriorityMedium, Position: 2})
	db.Create(&models.Note{UserID: user.ID, Title: "N", IsPinned: true})
	db.Create(&models.Post{UserID: user.ID, Title: "P", IsPublished: true})
	db.Create(&models.Tag{UserID: user.ID, Name: "work"})

	resp := doGet(router, "/api/dashboard/stats", user)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var stats map[string]map[string]int64
	json.Unmarshal(resp.Body.Bytes(), &stats)

	if stats["tasks"]["total"] != 2 || stats["tasks"]["completed"] != 1 || stats["tasks"]["in_progress"] != 1 {
		t.Errorf("Unexpected task stats: %v", stats["tasks"])
	}
	if stats["notes"]["pinned"] != 1 {
		t.Errorf("Unexpected note stats: %v", stats["notes"])
	}
	if stats["posts"]["published"] != 1 {
		t.Errorf("Unexpected post stats: %v", stats["posts"])
	}
	if stats["tags"]["total"] != 1 {
		t.Errorf("Unexpected tag stats: %v", stats["tags"])
	}
}
