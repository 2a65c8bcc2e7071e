package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/banking-server/internal/access"
	"github.com/rongwang/banking-server/internal/api"
	"github.com/rongwang/banking-server/internal/config"
	"github.com/rongwang/banking-server/internal/events"
	"github.com/rongwang/banking-server/internal/locale"
	"github.com/rongwang/banking-server/internal/models"
	"github.com/rongwang/banking-server/internal/repository"
	"github.com/rongwang/banking-server/internal/service"
	"github.com/rongwang/banking-server/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// HostKey is the host bridge key accepted by the test server
const HostKey = "test-host-key"

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository repository.Repository
	Service    service.Service
	Sessions   *session.Registry
	Events     *events.Recorder
	JWTSecret  []byte
	DB         *sqlx.DB
	HostJWT    string
}

// SetupTestContext creates a new test context backed by an in-memory SQLite database
func SetupTestContext(t *testing.T) *TestContext {
	cfg, err := config.ParseEnv()
	require.NoError(t, err, "Failed to parse config")

	// Override with test-specific config
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.SQLitePath = ":memory:"
	cfg.Auth.JWTSecret = "test-secret-key"

	hash, err := bcrypt.GenerateFromPassword([]byte(HostKey), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.Auth.HostKeyHash = string(hash)

	logger := zap.NewNop()

	// Set up database
	db, err := config.SetupDatabase(cfg, logger)
	require.NoError(t, err, "Failed to set up test database")

	repo := repository.NewSQLRepository(db)
	sessions := session.NewRegistry()
	recorder := &events.Recorder{}
	locales := locale.New()

	svc := service.NewDefaultService(repo, sessions, locales, recorder, logger, service.Config{
		Policy:              access.DefaultPolicy(),
		AccessPageSize:      cfg.Bank.AccessPageSize,
		TransactionPageSize: cfg.Bank.TransactionPageSize,
		DashboardLimit:      cfg.Bank.DashboardLimit,
		JWTSecret:           cfg.Auth.JWTSecret,
		HostKeyHash:         cfg.Auth.HostKeyHash,
	})

	handler := api.NewHandler(svc, locales, logger)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(api.RequestIDMiddleware(), api.JWTSecretMiddleware(cfg.Auth.JWTSecret))
	handler.SetupRoutes(router)

	tc := &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		Sessions:   sessions,
		Events:     recorder,
		JWTSecret:  []byte(cfg.Auth.JWTSecret),
		DB:         db,
	}
	tc.HostJWT = tc.sign(t, jwt.MapClaims{"sub": service.ScopeHost, "scope": service.ScopeHost})

	return tc
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(t *TestContext) {
	if t.DB != nil {
		t.DB.Close()
	}
}

// CallerJWT returns a player token for callerID
func (tc *TestContext) CallerJWT(t *testing.T, callerID string) string {
	return tc.sign(t, jwt.MapClaims{"sub": callerID})
}

func (tc *TestContext) sign(t *testing.T, claims jwt.MapClaims) string {
	claims["exp"] = time.Now().Add(24 * time.Hour).Unix()
	claims["iat"] = time.Now().Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tc.JWTSecret)
	assert.NoError(t, err, "Failed to generate JWT token")

	return tokenString
}

// JoinPlayer registers a session for character n through the host routes and
// returns the caller's token. The character's state id is "SID<n>".
func (tc *TestContext) JoinPlayer(t *testing.T, n int64, firstName, lastName string) string {
	callerID := fmt.Sprint(n)
	req := models.RegisterSessionRequest{
		CallerID: callerID,
		Character: models.Character{
			CharID:    n,
			StateID:   fmt.Sprintf("SID%d", n),
			FirstName: firstName,
			LastName:  lastName,
		},
	}

	w := PerformRequest(tc.Router, http.MethodPost, "/api/host/sessions", req, AuthHeaders(tc.HostJWT))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	return tc.CallerJWT(t, callerID)
}

// Call invokes a bank UI operation and decodes the success payload into out
// when out is non-nil
func (tc *TestContext) Call(t *testing.T, token, operation string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	w := PerformRequest(tc.Router, http.MethodPost, "/api/nui/"+operation, body, AuthHeaders(token))
	if out != nil && w.Code == http.StatusOK {
		DecodeData(t, w, out)
	}
	return w
}

// DecodeData unmarshals the data field of a success response
func DecodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "success", envelope.Status)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

// DecodeError unmarshals an error response
func DecodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
