package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SpikeIreland/clarence-sub005/config"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenExpireHours: 24,
		},
		Users: []config.User{
			{Username: "alice", Password: "secret", UserID: "user-alice"},
		},
	}
}

func TestLogin(t *testing.T) {
	h := NewAuthHandler(testConfig())

	router := gin.New()
	router.POST("/api/auth/login", h.Login)

	tests := []struct {
		name           string
		body           any
		expectedStatus int
	}{
		{
			name:           "valid credentials",
			body:           LoginRequest{Username: "alice", Password: "secret"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wrong password",
			body:           LoginRequest{Username: "alice", Password: "nope"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unknown user",
			body:           LoginRequest{Username: "mallory", Password: "secret"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing fields",
			body:           map[string]string{"username": "alice"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, _ := json.Marshal(tt.body)
			req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestLoginResponseFields(t *testing.T) {
	h := NewAuthHandler(testConfig())

	router := gin.New()
	router.POST("/api/auth/login", h.Login)

	payload, _ := json.Marshal(LoginRequest{Username: "alice", Password: "secret"})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Token == "" {
		t.Error("Expected non-empty token")
	}
	if resp.Username != "alice" || resp.UserID != "user-alice" {
		t.Errorf("Unexpected user fields: %s / %s", resp.Username, resp.UserID)
	}
}

func TestGetCurrentUser(t *testing.T) {
	h := NewAuthHandler(testConfig())

	router := gin.New()
	router.GET("/api/auth/me", func(c *gin.Context) {
		c.Set("username", "alice")
		c.Set("user_id", "user-alice")
		h.GetCurrentUser(c)
	})

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["username"] != "alice" || resp["user_id"] != "user-alice" {
		t.Errorf("Unexpected response: %v", resp)
	}
}
