// Command fakebank serves the in-memory banking backend under /api, seeded
// with demo users, for trying the CLI without a real backend.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bank-client/pkg/fakebackend"
	"bank-client/pkg/logging"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func main() {
	logger, err := logging.NewLoggerFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	backend := fakebackend.New(fakebackend.Options{
		BareResponses: os.Getenv("FAKEBANK_BARE") == "true",
	})
	seed(backend, logger)

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	r.PathPrefix("/api/").Handler(http.StripPrefix("/api", backend))

	port := getEnv("PORT", "3000")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Fake bank listening", zap.String("port", port), zap.String("base_url", "http://localhost:"+port+"/api"))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down fake bank")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
}

func seed(backend *fakebackend.Server, logger *logging.Logger) {
	ana := backend.AddUser("Ana", "user@bank.test", "Passw0rd", 10000)
	juan := backend.AddUser("Juan Pérez", "juan@bank.test", "Passw0rd", 2500)

	backend.AddCard(ana.Email, "4111111111111234", "DEBITO", "VISA", debitCardBalance)
	backend.AddCard(ana.Email, "5500000000005678", "CREDITO", "MASTERCARD", 0)
	backend.AddNotification(ana.Email, "info", "Bienvenida", "Tu cuenta está lista", false)
	backend.AddNotification(ana.Email, "warning", "Seguridad", "Nuevo inicio de sesión", true)

	logger.Info("Seeded demo users",
		zap.String("ana_account", ana.AccountNumber),
		zap.String("juan_account", juan.AccountNumber),
	)
}

// debitCardBalance mirrors the seeded account balance on the debit card.
const debitCardBalance = 10000

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
