package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/background"
	"github.com/coverdeskhq/coverdesk/internal/config"
	"github.com/coverdeskhq/coverdesk/internal/database"
	"github.com/coverdeskhq/coverdesk/internal/handlers"
	middlewareCustom "github.com/coverdeskhq/coverdesk/internal/middleware"
	"github.com/coverdeskhq/coverdesk/internal/repositories"
	"github.com/coverdeskhq/coverdesk/internal/routes"
	"github.com/coverdeskhq/coverdesk/internal/scheduler"
	"github.com/coverdeskhq/coverdesk/internal/services"
	"github.com/coverdeskhq/coverdesk/internal/session"
	pkghttp "github.com/coverdeskhq/coverdesk/pkg/http"
	pkglogger "github.com/coverdeskhq/coverdesk/pkg/logger"
)

const (
	TestCookieName = "coverdesk_session"
	TestCronSecret = "integration-cron-secret"
)

// TestServer wraps httptest.Server with the full production wiring over a
// real database, in-memory session and throttle stores, and no-op email.
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Client *http.Client

	Scheduler *scheduler.Scheduler
}

// NewTestServer initializes a complete HTTP server against the given database
func NewTestServer(db *database.DB) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	actionLimits := map[string]config.ActionLimit{
		"report_generate": {Limit: 5, Window: 1 * time.Hour},
		"claim_file":      {Limit: 10, Window: 1 * time.Hour},
		"setting_update":  {Limit: 20, Window: 1 * time.Hour},
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	clientRepo := repositories.NewClientRepository(db)
	policyRepo := repositories.NewPolicyRepository(db)
	claimRepo := repositories.NewClaimRepository(db)
	settingRepo := repositories.NewSettingRepository(db)
	activityLogRepo := repositories.NewActivityLogRepository(db)
	rateLimitRepo := repositories.NewRateLimitRepository(db)
	scheduleRepo := repositories.NewReportScheduleRepository(db)

	// Auth building blocks, all in-memory
	sessionStore := session.NewMemoryStore()
	throttleStore := auth.NewMemoryThrottleStore()
	authenticator := auth.NewAuthenticator(sessionStore, userRepo, 1*time.Hour, logger)
	throttle := auth.NewLoginThrottle(throttleStore, 5, 5*time.Minute, logger)
	totpManager := auth.NewTOTPManager("CoverDeskTest")
	reportTokens := auth.NewReportTokenManager("test-secret-32-characters-long!!", 15*time.Minute)
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Services
	activityService := services.NewActivityService(activityLogRepo, logger)
	rateLimitService := services.NewRateLimitService(rateLimitRepo, actionLimits, logger)
	authService := services.NewAuthService(userRepo, authenticator, throttle, totpManager, activityService, logger, auditLogger, 5, 5*time.Minute)
	userService := services.NewUserService(userRepo, totpManager, activityService, logger, auditLogger)
	clientService := services.NewClientService(clientRepo, activityService, logger)
	policyService := services.NewPolicyService(policyRepo, clientRepo, activityService, logger)
	claimService := services.NewClaimService(claimRepo, policyRepo, rateLimitService, activityService, logger)
	settingService := services.NewSettingService(settingRepo, rateLimitService, activityService, logger)
	dashboardService := services.NewDashboardService(clientRepo, policyRepo, claimRepo, activityService, logger)
	reportService := services.NewReportService(scheduleRepo, claimRepo, policyRepo, services.NewNoopEmailService(logger), activityService, logger)

	reportScheduler := scheduler.New(scheduleRepo, reportService, logger)
	maintenanceManager := background.NewMaintenanceManager(rateLimitRepo, activityLogRepo, 24*time.Hour, 90*24*time.Hour, 1*time.Hour, logger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: []string{}}
	cookieConfig := auth.CookieConfig{
		Name:   TestCookieName,
		Secure: false,
		MaxAge: 1 * time.Hour,
	}

	handlerSet := routes.Handlers{
		Auth:        handlers.NewAuthHandler(authService, userService, cookieConfig, ipConfig),
		Users:       handlers.NewUserHandler(userService, ipConfig),
		Clients:     handlers.NewClientHandler(clientService, ipConfig),
		Policies:    handlers.NewPolicyHandler(policyService, ipConfig),
		Claims:      handlers.NewClaimHandler(claimService, ipConfig),
		Dashboard:   handlers.NewDashboardHandler(dashboardService, activityService),
		Reports:     handlers.NewReportHandler(reportService, rateLimitService, reportTokens, ipConfig),
		Settings:    handlers.NewSettingHandler(settingService, ipConfig),
		Maintenance: handlers.NewMaintenanceHandler(maintenanceManager, reportScheduler, TestCronSecret),
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, handlerSet, authenticator, TestCookieName, logger)

	server := httptest.NewServer(r)

	jar, err := cookiejar.New(nil)
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &TestServer{
		Server:    server,
		DB:        db,
		Client:    &http.Client{Jar: jar},
		Scheduler: reportScheduler,
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server. The client's cookie jar
// carries the session cookie across calls.
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return ts.Client.Do(req)
}

// Login authenticates and returns the CSRF token for subsequent
// state-changing requests. The session cookie lands in the client's jar.
func (ts *TestServer) Login(email, password string) (string, error) {
	resp, err := ts.Request("POST", "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var env struct {
		Data struct {
			CSRFToken string `json:"csrf_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("failed to parse login response: %w", err)
	}
	if env.Data.CSRFToken == "" {
		return "", fmt.Errorf("login response missing csrf token")
	}

	return env.Data.CSRFToken, nil
}

// ParseEnvelope decodes a response envelope and returns success/message,
// unmarshalling data into target when non-nil.
func ParseEnvelope(resp *http.Response, target interface{}) (bool, string, error) {
	defer resp.Body.Close()

	var env struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return false, "", err
	}

	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return env.Success, env.Message, err
		}
	}

	return env.Success, env.Message, nil
}
