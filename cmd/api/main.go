package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dmarkov/bank-ledger/internal/config"
	"github.com/dmarkov/bank-ledger/internal/events"
	kafkaevents "github.com/dmarkov/bank-ledger/internal/events/kafka"
	"github.com/dmarkov/bank-ledger/internal/handler"
	"github.com/dmarkov/bank-ledger/internal/integrations/cbr"
	"github.com/dmarkov/bank-ledger/internal/middleware"
	"github.com/dmarkov/bank-ledger/internal/repository"
	"github.com/dmarkov/bank-ledger/internal/service"
	"github.com/dmarkov/bank-ledger/internal/utils/email"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; real deployments set env vars directly
	godotenv.Load()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Event publisher: Kafka when brokers are configured, noop otherwise
	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafkaevents.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		logger.Infof("Publishing transaction events to %v", cfg.KafkaBrokers)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, publisher, logger, cfg)
	h := handler.NewHandler(svc, logger)
	alerter := email.NewAlerter(cfg, logger)
	cbrClient := cbr.NewClient(cfg.CBRURL, logger)

	// Schedule due-payment processing in-process. The HTTP trigger below
	// stays available for external schedulers.
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.RecurringCron, func() {
		result, err := svc.ProcessDuePayments(context.Background(), time.Now().UTC())
		if err != nil {
			logger.Errorf("Scheduled due-payment run failed: %v", err)
			return
		}
		if result.Failed > 0 && alerter.Enabled() {
			alerter.SendDueRunAlert(result.Processed, result.Failed)
		}
	})
	if err != nil {
		logger.Fatalf("Invalid RECURRING_CRON %q: %v", cfg.RecurringCron, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.HandleFunc("/health", h.Health).Methods("GET")
	// CBR key rate endpoint
	r.HandleFunc("/key-rate", func(w http.ResponseWriter, r *http.Request) {
		rate, err := cbrClient.GetKeyRate()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get key rate: %v", err), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]float64{"key_rate": rate})
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	// Public routes
	api.HandleFunc("/register", h.Register).Methods("POST")
	api.HandleFunc("/login", h.Login).Methods("POST")
	api.HandleFunc("/logout", h.Logout).Methods("POST")
	// Trigger for external schedulers
	api.HandleFunc("/process_recurring_payments", h.ProcessRecurringPayments).Methods("POST")
	// Protected routes
	authRouter := api.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/accounts", h.Accounts).Methods("GET")
	authRouter.HandleFunc("/accounts/{id:[0-9]+}/transactions", h.Transactions).Methods("GET")
	authRouter.HandleFunc("/transfer", h.Transfer).Methods("POST")
	authRouter.HandleFunc("/charge", h.Charge).Methods("POST")
	authRouter.HandleFunc("/search_account", h.SearchAccount).Methods("POST")
	authRouter.HandleFunc("/recurring_payments", h.CreateRecurringPayment).Methods("POST")
	authRouter.HandleFunc("/recurring_payments", h.ListRecurringPayments).Methods("GET")
	authRouter.HandleFunc("/recurring_payments/{id:[0-9]+}", h.CancelRecurringPayment).Methods("DELETE")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
