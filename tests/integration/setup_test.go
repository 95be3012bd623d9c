package integration

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"famledger/internal/app"
	"famledger/internal/config"
	"famledger/internal/logger"
	"famledger/internal/middleware"
	"famledger/internal/models"
	"famledger/internal/testutil"
	"famledger/internal/validator"
)

const maintenanceKey = "integration-maintenance-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Engine *app.App
	Router *gin.Engine
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
	config.Set(&config.Config{
		Env:                "test",
		JWTSecret:          "integration-secret",
		MaintenanceAPIKey:  maintenanceKey,
		AggregationTimeout: 5 * time.Second,
	})
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	engine := app.New(db, app.Options{
		SweepConcurrency:   2,
		AggregationTimeout: 5 * time.Second,
		CacheSize:          128,
		MaintenanceAPIKey:  maintenanceKey,
	})
	return &testApp{DB: db, Engine: engine, Router: engine.Router()}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// maintenance makes an API-key authenticated request.
func (app *testApp) maintenance(method, path, body, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// tokenFor issues an access token for user.
func tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := middleware.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// errorCode extracts error.code from an error response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := parseJSON(t, rec)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// dec reads a decimal field that the API renders as a JSON string.
func dec(t *testing.T, m map[string]interface{}, key string) decimal.Decimal {
	t.Helper()
	s, ok := m[key].(string)
	if !ok {
		t.Fatalf("expected %s to be a decimal string, got %T (%v)", key, m[key], m[key])
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %s=%q: %v", key, s, err)
	}
	return d
}

func expectDec(t *testing.T, m map[string]interface{}, key, want string) {
	t.Helper()
	if got := dec(t, m, key); !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", key, got, want)
	}
}
