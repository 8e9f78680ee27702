package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/indifarm/indifarm/internal/config"
	"github.com/indifarm/indifarm/internal/middleware"
)

const testJWTSecret = "test-secret-key-for-jwt-testing-32chars"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer() *APIServer {
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test"},
		JWT:    config.JWTConfig{Secret: testJWTSecret, Issuer: "indifarm"},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}
	// A nil pool is fine for request-shape tests; they fail before any query
	return NewAPIServer(cfg, nil, nil)
}

func createTestJWTToken(userID, role string) string {
	now := time.Now()
	claims := &middleware.Claims{
		UserID: userID,
		Role:   role,
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "access",
			Issuer:    "indifarm",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(testJWTSecret))
	return tokenString
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
}

func TestRatingRoutes_RequireAuth(t *testing.T) {
	srv := newTestServer()

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/ratings"},
		{"GET", "/api/ratings/order/" + uuid.New().String()},
		{"PUT", "/api/ratings/" + uuid.New().String()},
		{"DELETE", "/api/ratings/" + uuid.New().String()},
	}

	for _, e := range endpoints {
		req := httptest.NewRequest(e.method, e.path, bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: expected 401, got %d", e.method, e.path, w.Code)
		}
	}
}

func TestRatingMutations_RequireConsumerRole(t *testing.T) {
	srv := newTestServer()
	farmerToken := createTestJWTToken(uuid.New().String(), "farmer")

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/ratings"},
		{"PUT", "/api/ratings/" + uuid.New().String()},
		{"DELETE", "/api/ratings/" + uuid.New().String()},
	}

	for _, e := range endpoints {
		req := httptest.NewRequest(e.method, e.path, bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+farmerToken)
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("%s %s with farmer token: expected 403, got %d", e.method, e.path, w.Code)
		}
	}
}

func TestCreateRating_InvalidBody(t *testing.T) {
	srv := newTestServer()
	token := createTestJWTToken(uuid.New().String(), "consumer")

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing score", `{"orderId":"` + uuid.New().String() + `"}`},
		{"malformed json", `{`},
		{"review too long", `{"orderId":"` + uuid.New().String() + `","rating":4,"review":"` + longString(501) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/ratings", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", w.Code)
			}
			assertErrorEnvelope(t, w.Body.Bytes())
		})
	}
}

func TestGetFarmerRatings_InvalidFarmerID(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest("GET", "/api/ratings/farmer/not-a-uuid", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	assertErrorEnvelope(t, w.Body.Bytes())
}

func TestUpdateRating_InvalidRatingID(t *testing.T) {
	srv := newTestServer()
	token := createTestJWTToken(uuid.New().String(), "consumer")

	req := httptest.NewRequest("PUT", "/api/ratings/not-a-uuid", bytes.NewBufferString(`{"rating":4}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestOrderRoutes_RequireAuth(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest("GET", "/api/orders", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
}

func TestCreateOrder_RequiresConsumerRole(t *testing.T) {
	srv := newTestServer()
	farmerToken := createTestJWTToken(uuid.New().String(), "farmer")

	req := httptest.NewRequest("POST", "/api/orders", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+farmerToken)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", w.Code)
	}
}

func TestProductWrites_RequireFarmerRole(t *testing.T) {
	srv := newTestServer()
	consumerToken := createTestJWTToken(uuid.New().String(), "consumer")

	req := httptest.NewRequest("POST", "/api/products", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+consumerToken)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", w.Code)
	}
}

func TestNewsletterSubscribe_InvalidBody(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest("POST", "/api/newsletter/subscribe", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	assertErrorEnvelope(t, w.Body.Bytes())
}

func TestNewsletterSubscribers_RequireAdmin(t *testing.T) {
	srv := newTestServer()
	consumerToken := createTestJWTToken(uuid.New().String(), "consumer")

	req := httptest.NewRequest("GET", "/api/newsletter/subscribers", nil)
	req.Header.Set("Authorization", "Bearer "+consumerToken)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", w.Code)
	}
}

func TestGetFarmerProfile_InvalidID(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest("GET", "/api/users/farmers/not-a-uuid", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

// assertErrorEnvelope checks the failure envelope shape: success=false plus
// a human-readable message.
func assertErrorEnvelope(t *testing.T, body []byte) {
	t.Helper()

	var envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("Failed to decode error envelope: %v", err)
	}
	if envelope.Success {
		t.Error("Error envelope should have success=false")
	}
	if envelope.Message == "" {
		t.Error("Error envelope should carry a message")
	}
}

func longString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
