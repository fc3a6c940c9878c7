package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/background"
	"github.com/coverdeskhq/coverdesk/internal/config"
	"github.com/coverdeskhq/coverdesk/internal/database"
	"github.com/coverdeskhq/coverdesk/internal/handlers"
	"github.com/coverdeskhq/coverdesk/internal/middleware"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/observability"
	"github.com/coverdeskhq/coverdesk/internal/repositories"
	"github.com/coverdeskhq/coverdesk/internal/routes"
	"github.com/coverdeskhq/coverdesk/internal/scheduler"
	"github.com/coverdeskhq/coverdesk/internal/services"
	"github.com/coverdeskhq/coverdesk/internal/session"
	pkgauth "github.com/coverdeskhq/coverdesk/pkg/auth"
	pkghttp "github.com/coverdeskhq/coverdesk/pkg/http"
	pkglogger "github.com/coverdeskhq/coverdesk/pkg/logger"
)

const (
	maintenanceInterval  = 1 * time.Hour
	activityLogRetention = 90 * 24 * time.Hour
	schedulerPassTimeout = 5 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := observability.InitSentry(cfg.Server.SentryDSN, cfg.Server.Env); err != nil {
		logger.Error("failed to initialize sentry", slog.Any("error", err))
		os.Exit(1)
	}
	defer observability.FlushSentry()

	// Run schema migrations before opening the pool
	if err := database.RunMigrations(&cfg.Database, logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	clientRepo := repositories.NewClientRepository(db)
	policyRepo := repositories.NewPolicyRepository(db)
	claimRepo := repositories.NewClaimRepository(db)
	settingRepo := repositories.NewSettingRepository(db)
	activityLogRepo := repositories.NewActivityLogRepository(db)
	rateLimitRepo := repositories.NewRateLimitRepository(db)
	scheduleRepo := repositories.NewReportScheduleRepository(db)

	// Session and throttle stores share one Redis client when configured
	var redisClient *redis.Client
	if cfg.Session.Store == "redis" || cfg.Throttle.Store == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Session.RedisAddr,
			DB:   cfg.Session.RedisDB,
		})
		defer redisClient.Close()
	}

	sessionStore, err := buildSessionStore(cfg, redisClient)
	if err != nil {
		logger.Error("failed to initialize session store", slog.Any("error", err))
		os.Exit(1)
	}

	var throttleStore auth.ThrottleStore
	if cfg.Throttle.Store == "redis" {
		throttleStore = auth.NewRedisThrottleStore(redisClient)
	} else {
		throttleStore = auth.NewMemoryThrottleStore()
	}

	// Auth building blocks
	authenticator := auth.NewAuthenticator(sessionStore, userRepo, cfg.Session.IdleTimeout, logger)
	throttle := auth.NewLoginThrottle(throttleStore, cfg.Throttle.MaxAttempts, cfg.Throttle.Window, logger)
	totpManager := auth.NewTOTPManager("CoverDesk")
	reportTokens := auth.NewReportTokenManager(cfg.Reports.SigningSecret, cfg.Reports.DownloadTTL)
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Report delivery mail
	var emailService services.EmailService
	if cfg.Email.Enabled {
		emailService, err = services.NewAWSSESEmailService(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		emailService = services.NewNoopEmailService(logger)
	}

	// Initialize services
	activityService := services.NewActivityService(activityLogRepo, logger)
	rateLimitService := services.NewRateLimitService(rateLimitRepo, cfg.RateLimit.Actions, logger)
	authService := services.NewAuthService(userRepo, authenticator, throttle, totpManager, activityService, logger, auditLogger, cfg.Throttle.MaxAttempts, cfg.Throttle.Window)
	userService := services.NewUserService(userRepo, totpManager, activityService, logger, auditLogger)
	clientService := services.NewClientService(clientRepo, activityService, logger)
	policyService := services.NewPolicyService(policyRepo, clientRepo, activityService, logger)
	claimService := services.NewClaimService(claimRepo, policyRepo, rateLimitService, activityService, logger)
	settingService := services.NewSettingService(settingRepo, rateLimitService, activityService, logger)
	dashboardService := services.NewDashboardService(clientRepo, policyRepo, claimRepo, activityService, logger)
	reportService := services.NewReportService(scheduleRepo, claimRepo, policyRepo, emailService, activityService, logger)

	// Background workers
	maintenanceManager := background.NewMaintenanceManager(rateLimitRepo, activityLogRepo, cfg.RateLimit.Retention, activityLogRetention, maintenanceInterval, logger)
	reportScheduler := scheduler.New(scheduleRepo, reportService, logger)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	cookieConfig := auth.CookieConfig{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Server.Env == "production",
		MaxAge: cfg.Session.IdleTimeout,
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
		Maintenance: handlers.NewMaintenanceHandler(maintenanceManager, reportScheduler, cfg.Reports.CronSecret),
	}

	// Bootstrap first admin user if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootCancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middleware.SecureLogger(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, handlerSet, authenticator, cfg.Session.CookieName, logger)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go maintenanceManager.Start(workerCtx)
	go reportScheduler.Start(workerCtx, cfg.Reports.TickInterval)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	workerCancel()
	maintenanceManager.Stop()
	reportScheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func buildSessionStore(cfg *config.Config, redisClient *redis.Client) (session.Store, error) {
	if cfg.Session.Store == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return session.NewRedisStore(ctx, redisClient)
	}
	return session.NewMemoryStore(), nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Name:         "Admin",
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
