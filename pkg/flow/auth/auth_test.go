package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

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

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)

	api := r.Group("/api")
	handler.RegisterRoutes(api)

	return r
}

func doJSON(router *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func registerTestUser(t *testing.T, router *gin.Engine, email string) AuthResponse {
	resp := doJSON(router, "POST", "/api/auth/register", RegisterRequest{
		Email:    email,
		Password: "password123",
		FullName: "Test User",
	}, "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201 registering %s, got %d: %s", email, resp.Code, resp.Body.String())
	}
	var auth AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &auth)
	return auth
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret-password")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "secret-password" {
		t.Error("Expected hash to differ from the plaintext")
	}
	if !CheckPassword("secret-password", hash) {
		t.Error("Expected correct password to verify")
	}
	if CheckPassword("wrong-password", hash) {
		t.Error("Expected wrong password to fail verification")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("user-123", "test@example.com")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("Expected user ID 'user-123', got %s", claims.UserID)
	}
	if claims.Email != "test@example.com" {
		t.Errorf("Expected email to round-trip, got %s", claims.Email)
	}

	if _, err := ValidateToken("not-a-token"); err == nil {
		t.Error("Expected garbage token to be rejected")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	registered := registerTestUser(t, router, "test@example.com")
	if registered.Token == "" {
		t.Error("Expected a token on registration")
	}
	if registered.User.Email != "test@example.com" {
		t.Errorf("Unexpected user payload: %+v", registered.User)
	}

	var row models.Activity
	db.Where("user_id = ? AND action = ?", registered.User.ID, "registered").First(&row)
	if row.EntityType != models.EntityUser {
		t.Errorf("Expected 'registered' activity row, got %+v", row)
	}

	resp := doJSON(router, "POST", "/api/auth/login", LoginRequest{
		Email:    "test@example.com",
		Password: "password123",
	}, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var loggedIn AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &loggedIn)
	if loggedIn.Token == "" {
		t.Error("Expected a token on login")
	}

	db.Where("user_id = ? AND action = ?", registered.User.ID, "logged_in").First(&row)
	if row.Action != "logged_in" {
		t.Error("Expected 'logged_in' activity row")
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	registerTestUser(t, router, "test@example.com")

	resp := doJSON(router, "POST", "/api/auth/register", RegisterRequest{
		Email:    "test@example.com",
		Password: "otherpassword",
		FullName: "Other User",
	}, "")
	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	registerTestUser(t, router, "test@example.com")

	resp := doJSON(router, "POST", "/api/auth/login", LoginRequest{
		Email:    "test@example.com",
		Password: "wrong-password",
	}, "")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestRefreshRequiresValidToken(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	registered := registerTestUser(t, router, "test@example.com")

	resp := doJSON(router, "POST", "/api/auth/refresh", nil, registered.Token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var refreshed AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &refreshed)
	if refreshed.Token == "" {
		t.Error("Expected a fresh token")
	}

	resp = doJSON(router, "POST", "/api/auth/refresh", nil, "")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without a token, got %d", resp.Code)
	}
}

func TestUpdateProfilePartial(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	registered := registerTestUser(t, router, "test@example.com")

	bio := "I write Go"
	resp := doJSON(router, "PUT", "/api/profile", UpdateProfileRequest{Bio: &bio}, registered.Token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var updated UserResponse
	json.Unmarshal(resp.Body.Bytes(), &updated)
	if updated.Bio != "I write Go" {
		t.Errorf("Expected bio updated, got %q", updated.Bio)
	}
	if updated.FullName != "Test User" {
		t.Errorf("Expected full name untouched, got %q", updated.FullName)
	}

	var row models.Activity
	db.Where("user_id = ? AND entity_type = ?", registered.User.ID, models.EntityProfile).First(&row)
	if row.Action != models.ActionUpdated {
		t.Errorf("Expected profile update activity, got %+v", row)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	registered := registerTestUser(t, router, "test@example.com")
	survivor := registerTestUser(t, router, "survivor@example.com")

	tag := models.Tag{UserID: registered.User.ID, Name: "work"}
	db.Create(&tag)
	db.Create(&models.Task{UserID: registered.User.ID, Title: "T", Position: 1, Tags: []models.Tag{tag}})
	db.Create(&models.Note{UserID: registered.User.ID, Title: "N"})
	db.Create(&models.Post{UserID: registered.User.ID, Title: "P"})
	db.Create(&models.Task{UserID: survivor.User.ID, Title: "Keep me", Position: 1})

	resp := doJSON(router, "DELETE", "/api/profile", nil, registered.Token)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	count := func(model interface{}, query string, args ...interface{}) int64 {
		var n int64
		db.Model(model).Where(query, args...).Count(&n)
		return n
	}

	if n := count(&models.User{}, "id = ?", registered.User.ID); n != 0 {
		t.Error("Expected user row removed")
	}
	for _, m := range []interface{}{&models.Task{}, &models.Note{}, &models.Post{}, &models.Tag{}, &models.Activity{}} {
		if n := count(m, "user_id = ?", registered.User.ID); n != 0 {
			t.Errorf("Expected all %T rows removed, got %d", m, n)
		}
	}

	var joinCount int64
	db.Table("task_tags").Count(&joinCount)
	if joinCount != 0 {
		t.Errorf("Expected join rows removed, got %d", joinCount)
	}

	if n := count(&models.Task{}, "user_id = ?", survivor.User.ID); n != 1 {
		t.Error("Expected other users' data untouched")
	}
}

func TestAuthMiddlewareRejectsBadHeaders(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	resp := doJSON(router, "GET", "/api/profile", nil, "")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without a header, got %d", resp.Code)
	}

	resp = doJSON(router, "GET", "/api/profile", nil, "garbage-token")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with a garbage token, got %d", resp.Code)
	}
}
