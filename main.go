package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/medicalia/ordonnances-api/aiclient"
	"github.com/medicalia/ordonnances-api/config"
	"github.com/medicalia/ordonnances-api/handlers"
	"github.com/medicalia/ordonnances-api/health"
	"github.com/medicalia/ordonnances-api/logging"
	"github.com/medicalia/ordonnances-api/ocrclient"
	"github.com/medicalia/ordonnances-api/qrtoken"
	"github.com/medicalia/ordonnances-api/scheduler"
	"github.com/medicalia/ordonnances-api/server"
	"github.com/medicalia/ordonnances-api/store"
)

// defaultQRSecret keeps ordonnance QR codes working on unconfigured
// installs. Production deployments must set QR_SECRET.
const defaultQRSecret = "default-secret-change-in-production"

func main() {
	if err := godotenv.Load(); err != nil {
		// No .env file is fine, the process environment is authoritative.
		logging.Info("No .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Configuration error", "error", err)
		os.Exit(1)
	}

	logging.InitLoggerForConfig("logs", cfg)

	records := store.NewOrdonnanceStore()
	deliveries := store.NewDeliveryStore()
	passports := store.NewPassportCache()

	ocr := ocrclient.NewOrchestrator(
		ocrclient.New(cfg.MistralAPIKey),
		ocrclient.NewPreprocessor(cfg.PreprocessURL),
	)
	ai := aiclient.New(cfg.OpenAIAPIKey)

	qrSecret := cfg.QRSecret
	if qrSecret == "" {
		logging.Warn("QR_SECRET not set, ordonnance QR tokens use an insecure default")
		qrSecret = defaultQRSecret
	}
	ordSigner, err := qrtoken.New(qrSecret)
	if err != nil {
		logging.Error("QR signer setup failed", "error", err)
		os.Exit(1)
	}

	// Without a passport secret the passport routes answer with an
	// explicit configuration error instead of signing with a default.
	var passportSigner *qrtoken.Signer
	if secret := cfg.PassportSecret(); secret != "" {
		passportSigner, err = qrtoken.New(secret)
		if err != nil {
			logging.Error("Passport signer setup failed", "error", err)
			os.Exit(1)
		}
	} else {
		logging.Warn("PASSPORT_QR_SECRET and QR_SECRET not set, passport QR disabled")
	}

	h := handlers.New(cfg, handlers.Deps{
		Ordonnances: records,
		Deliveries:  deliveries,
		Passports:   passports,
		OCR:         ocr,
		Structurer:  ai,
		Summarizer:  ai,
		Health: health.NewHealthChecker(records, deliveries, passports,
			cfg.MistralAPIKey != "", cfg.OpenAIAPIKey != ""),
		OrdSigner:      ordSigner,
		PassportSigner: passportSigner,
	})

	jobs := scheduler.NewScheduler(deliveries, passports)
	if err := jobs.Start(); err != nil {
		logging.Error("Scheduler failed to start", "error", err)
		os.Exit(1)
	}
	defer jobs.Stop()

	srv := server.NewServer(cfg, h)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown error", "error", err)
	}
}
