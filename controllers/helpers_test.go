package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Adika-Junior/messaging-api/middleware"
	"github.com/Adika-Junior/messaging-api/models"
	"github.com/Adika-Junior/messaging-api/services"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Auto-migrate all models
	if err := db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
		&models.MessageHistory{},
	); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// mockAuthMiddleware simulates the Auth0 JWT middleware for testing.
// It sets up the context exactly as the real EnsureValidToken middleware does.
func mockAuthMiddleware(auth0ID, role, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Set("access_token", accessToken)
		c.Set("validated_claims", &validator.ValidatedClaims{
			CustomClaims: &middleware.CustomClaims{Role: role},
		})
		c.Next()
	}
}

// setupMockAuth0Server creates a mock HTTP server that simulates Auth0's /userinfo endpoint
func setupMockAuth0Server(userInfoMap map[string]*services.Auth0UserInfo) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if len(authHeader) < 8 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := authHeader[7:] // strip "Bearer "

		userInfo, exists := userInfoMap[token]
		if !exists {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userInfo)
	}))
}

func createTestUser(t *testing.T, db *gorm.DB, auth0ID, name, email string) models.User {
	t.Helper()

	user := models.User{
		Auth0ID: auth0ID,
		Name:    name,
		Email:   email,
		Role:    models.RoleGuest,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Response should be valid JSON, got %q: %v", w.Body.String(), err)
	}
	return response
}

func errorCode(t *testing.T, response map[string]interface{}) string {
	t.Helper()

	errorData, ok := response["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("Response should carry an error object: %v", response)
	}
	code, _ := errorData["code"].(string)
	return code
}
