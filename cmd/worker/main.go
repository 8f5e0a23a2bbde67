package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nexocrm/crm-ai-gateway/internal/config"
	"github.com/nexocrm/crm-ai-gateway/internal/database"
	"github.com/nexocrm/crm-ai-gateway/internal/logger"
	"github.com/nexocrm/crm-ai-gateway/internal/queue"
	"github.com/nexocrm/crm-ai-gateway/internal/redact"
	"github.com/nexocrm/crm-ai-gateway/internal/services/ai"
	"github.com/nexocrm/crm-ai-gateway/internal/services/pii"
	"github.com/nexocrm/crm-ai-gateway/internal/services/pipeline"
	"github.com/nexocrm/crm-ai-gateway/internal/workers"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for model API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("ai_model", cfg.AIModel),
	)

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("RABBITMQ_URL is required")
	}
	if cfg.OpenAIKey == "" {
		zapLogger.Fatal("OPENAI_API_KEY is required")
	}

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

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq", zap.Int("prefetch", cfg.RabbitMQPrefetch))

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
	}
	redactor := redact.New(sensitiveFields, hashSalt)

	// Repositories and services; the worker shares the server's pipeline
	tokenRepo := database.NewTokenRepository(db)
	sanitizedRepo := database.NewSanitizedMessageRepository(db)
	entryRepo := database.NewContextEntryRepository(db)
	profileRepo := database.NewChatbotProfileRepository(db)
	qaPairRepo := database.NewQAPairRepository(db)
	conversationRepo := database.NewConversationRepository(db)
	messageRepo := database.NewMessageRepository(db)
	evaluationRepo := database.NewEvaluationRepository(db)

	provider := ai.NewOpenAIProviderWithLogger(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger, debugMode)
	issuer := pii.NewIssuer(tokenRepo, cfg.TokenTTL)
	assembler := ai.NewAssembler(profileRepo, qaPairRepo, entryRepo, cfg.HistoryLimit)
	evaluator := ai.NewEvaluator(provider, zapLogger)
	pipe := pipeline.New(redactor, issuer, assembler, evaluator, provider,
		sanitizedRepo, entryRepo, conversationRepo, messageRepo, evaluationRepo, zapLogger)

	worker := workers.NewEvaluationWorker(pipe, jobQueue, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DLQ garbage collector: run every hour, retain dead letters for 24 hours
	dlqGC := queue.NewGarbageCollector(jobQueue, 1*time.Hour, 24*time.Hour, zapLogger)
	go func() {
		if err := dlqGC.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
		}
	}()
	zapLogger.Info("started_dlq_garbage_collector",
		zap.Duration("interval", 1*time.Hour),
		zap.Duration("retention", 24*time.Hour),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- worker.Run(ctx, cfg.RabbitMQPrefetch)
	}()

	zapLogger.Info("worker_started_consuming")

	select {
	case sig := <-sigChan:
		zapLogger.Info("worker_shutting_down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		if err != nil && err != context.Canceled {
			zapLogger.Error("worker_stopped_with_error", zap.Error(err))
		}
	}

	zapLogger.Info("worker_exited")
}
