package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/petfolio/reminders/internal/config"
	"github.com/petfolio/reminders/internal/dispatch"
	"github.com/petfolio/reminders/internal/reminder"
	"github.com/petfolio/reminders/internal/scheduler"
	"github.com/petfolio/reminders/internal/webhook"
	"github.com/petfolio/reminders/pkg/database"
	"github.com/petfolio/reminders/pkg/jsonutil"
	"github.com/petfolio/reminders/pkg/messaging"
	"github.com/petfolio/reminders/pkg/observability"
	"github.com/petfolio/reminders/pkg/secrets"
)

// appSecrets is the JSON document stored in Secrets Manager when
// REMINDERS_SECRETS_NAME is set.
type appSecrets struct {
	WebhookAppSecret   string `json:"webhook_app_secret"`
	WebhookVerifyToken string `json:"webhook_verify_token"`
	InternalAPISecret  string `json:"internal_api_secret"`
	WhatsAppToken      string `json:"whatsapp_token"`
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := observability.NewLogger("reminders")

	if cfg.SecretsName != "" {
		loader, err := secrets.NewLoader(ctx)
		if err != nil {
			log.Fatalf("Failed to init secrets loader: %v", err)
		}
		var sec appSecrets
		if err := loader.GetJSON(ctx, cfg.SecretsName, &sec); err != nil {
			log.Fatalf("Failed to load secrets: %v", err)
		}
		cfg.WebhookAppSecret = sec.WebhookAppSecret
		cfg.WebhookVerifyToken = sec.WebhookVerifyToken
		cfg.InternalAPISecret = sec.InternalAPISecret
		cfg.WhatsAppToken = sec.WhatsAppToken
	}

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	schema, err := os.ReadFile("internal/reminder/schema.sql")
	if err != nil {
		log.Printf("Failed to read schema file: %v", err)
	} else if err := database.ApplySchema(db, string(schema)); err != nil {
		log.Printf("Failed to run migration: %v", err)
	} else {
		log.Println("Schema migration executed successfully")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v", err)
	}

	var deadLetters dispatch.DeadLetterPublisher
	rabbit, err := messaging.NewPublisher(cfg.RabbitURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to RabbitMQ: %v", err)
	} else {
		defer rabbit.Close()
		if _, err := rabbit.DeclareQueue(dispatch.DeadLetterQueue); err != nil {
			log.Printf("Warning: Failed to declare dead-letter queue: %v", err)
		}
		deadLetters = rabbit
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	gateway := scheduler.NewSFNGateway(sfn.NewFromConfig(awsCfg), cfg.StateMachineARN)

	waClient := dispatch.NewWhatsAppClient(
		cfg.WhatsAppEndpoint, cfg.WhatsAppToken, cfg.WhatsAppTemplate, cfg.DispatchTimeout)
	dispatcher := dispatch.NewDispatcher(
		waClient,
		dispatch.NewRecorder(db),
		deadLetters,
		cfg.DispatchMaxRetry,
		cfg.DispatchTimeout,
		logger.WithComponent("dispatcher"),
	)

	store := reminder.NewPostgresStore(db)
	service := reminder.NewService(store, gateway, logger.WithComponent("service"))
	triggers := reminder.NewTriggerHandler(store, dispatcher, gateway, logger.WithComponent("trigger"))

	authenticator := webhook.NewAuthenticator(
		cfg.WebhookAppSecret, cfg.ProxyIdentityHeader, cfg.ProxyIdentityExpected)
	webhookHandler := webhook.NewHandler(
		authenticator, cfg.WebhookVerifyToken, rdb, logger.WithComponent("webhook"))

	// Initialize Tracer
	shutdown, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    "reminders",
		ServiceVersion: "0.1.0",
		Endpoint:       cfg.OTELEndpoint,
		Environment:    cfg.Environment,
	})
	if err != nil {
		log.Printf("Failed to init tracer: %v", err)
	} else {
		defer shutdown(context.Background())
	}

	router := mux.NewRouter()
	apiServer := &ReminderServer{
		service:        service,
		triggers:       triggers,
		internalSecret: cfg.InternalAPISecret,
		log:            logger.WithComponent("api"),
	}
	apiServer.Register(router)
	webhookHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      otelhttp.NewHandler(router, "reminders-http"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Reminder service listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
