package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/nexocrm/crm-ai-gateway/internal/config"
	"github.com/nexocrm/crm-ai-gateway/internal/database"
	"github.com/nexocrm/crm-ai-gateway/internal/handlers"
	"github.com/nexocrm/crm-ai-gateway/internal/logger"
	"github.com/nexocrm/crm-ai-gateway/internal/middleware"
	"github.com/nexocrm/crm-ai-gateway/internal/queue"
	"github.com/nexocrm/crm-ai-gateway/internal/redact"
	"github.com/nexocrm/crm-ai-gateway/internal/services/ai"
	"github.com/nexocrm/crm-ai-gateway/internal/services/auth"
	"github.com/nexocrm/crm-ai-gateway/internal/services/pii"
	"github.com/nexocrm/crm-ai-gateway/internal/services/pipeline"
	"github.com/nexocrm/crm-ai-gateway/internal/telemetry"
)

const serviceName = "crm-ai-gateway"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for model API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// OpenTelemetry
	if cfg.OTELEnabled && cfg.OTELEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint)
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	// Database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	// Redis for rate limiting
	redisClient, err := middleware.NewRedisClient(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// RabbitMQ job queue, optional: async re-evaluation is disabled without it.
	var jobQueue queue.JobQueue
	if cfg.RabbitMQURL != "" {
		jobQueue = connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	} else {
		zapLogger.Warn("rabbitmq_not_configured_async_evaluation_disabled")
	}

	// Redaction policy
	sensitiveFields := redact.DefaultFields()
	hashSalt := cfg.PIIHashSalt
	policy, err := cfg.LoadPolicy()
	if err != nil {
		zapLogger.Fatal("failed_to_load_redaction_policy", zap.Error(err))
	}
	if policy != nil {
		sensitiveFields = policy.SensitiveFields
		if policy.HashSalt != "" {
			hashSalt = policy.HashSalt
		}
		zapLogger.Info("loaded_redaction_policy",
			zap.Int("sensitive_fields", len(sensitiveFields)))
	}
	redactor := redact.New(sensitiveFields, hashSalt)

	// Repositories
	tokenRepo := database.NewTokenRepository(db)
	sanitizedRepo := database.NewSanitizedMessageRepository(db)
	entryRepo := database.NewContextEntryRepository(db)
	profileRepo := database.NewChatbotProfileRepository(db)
	qaPairRepo := database.NewQAPairRepository(db)
	conversationRepo := database.NewConversationRepository(db)
	messageRepo := database.NewMessageRepository(db)
	evaluationRepo := database.NewEvaluationRepository(db)

	// Model provider
	if cfg.OpenAIKey == "" {
		zapLogger.Fatal("OPENAI_API_KEY is required")
	}
	provider := ai.NewOpenAIProviderWithLogger(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger, debugMode)

	// Core services
	issuer := pii.NewIssuer(tokenRepo, cfg.TokenTTL)
	assembler := ai.NewAssembler(profileRepo, qaPairRepo, entryRepo, cfg.HistoryLimit)
	evaluator := ai.NewEvaluator(provider, zapLogger)
	pipe := pipeline.New(redactor, issuer, assembler, evaluator, provider,
		sanitizedRepo, entryRepo, conversationRepo, messageRepo, evaluationRepo, zapLogger)

	tokenService, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		zapLogger.Fatal("failed_to_create_token_service", zap.Error(err))
	}

	// Handlers
	messageHandler := handlers.NewMessageHandler(pipe, jobQueue, zapLogger)
	chatbotHandler := handlers.NewChatbotHandler(profileRepo, qaPairRepo)
	analyticsHandler := handlers.NewAnalyticsHandler(pipe, evaluationRepo, jobQueue, zapLogger)
	tokenHandler := handlers.NewTokenHandler(pipe, tokenService, cfg.ServiceID)
	healthChecker := handlers.NewHealthChecker(db, redisClient, jobQueue)

	// Router and middleware
	r := mux.NewRouter()
	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	// Public routes
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")
	tokenHandler.RegisterPublicRoutes(r)

	// Protected API routes
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.Auth(tokenService, zapLogger))
	apiRouter.Use(rateLimitMW)
	messageHandler.RegisterRoutes(apiRouter)
	chatbotHandler.RegisterRoutes(apiRouter)
	analyticsHandler.RegisterRoutes(apiRouter)
	tokenHandler.RegisterRoutes(apiRouter)

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	// Only expose minimal version info
	if _, err := fmt.Fprintf(w, `{"version":"1.0.0","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = err
	}
}

// connectRabbitMQ retries the connection with exponential backoff to ride
// out broker startup delays.
func connectRabbitMQ(url string, zapLogger *zap.Logger) queue.JobQueue {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		jobQueue, err := queue.NewRabbitMQQueue(url)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return jobQueue
		}

		lastErr = err
		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}

	zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return nil
}
