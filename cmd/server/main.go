package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/karimdiab/saydaly/internal/config"
	"github.com/karimdiab/saydaly/internal/repository"
	"github.com/karimdiab/saydaly/internal/repository/memory"
	"github.com/karimdiab/saydaly/internal/repository/mongodb"
	"github.com/karimdiab/saydaly/internal/repository/sheets"
	"github.com/karimdiab/saydaly/internal/scheduler"
	"github.com/karimdiab/saydaly/internal/server/handlers"
	"github.com/karimdiab/saydaly/internal/server/router"
	debtsvc "github.com/karimdiab/saydaly/internal/service/debts"
	inventorysvc "github.com/karimdiab/saydaly/internal/service/inventory"
	reportingsvc "github.com/karimdiab/saydaly/internal/service/reporting"
	salessvc "github.com/karimdiab/saydaly/internal/service/sales"
	"github.com/karimdiab/saydaly/pkg/clients/alerts"
	"github.com/karimdiab/saydaly/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	var pool repository.Pool
	switch cfg.Store.Driver {
	case config.DriverMemory:
		baseLogger.Warn("using in-memory store, data will not survive restarts")
		pool = memory.NewPool()
	default:
		mongoClient, err := mongodb.NewClient(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBPrefix)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb client", zap.Error(err))
		}
		defer func() {
			if err := mongoClient.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		pool = mongoClient
	}

	var notifier alerts.Notifier
	if cfg.Alerts.WebhookURL != "" {
		notifier = alerts.NewWebhookClient(cfg.Alerts.WebhookURL)
		baseLogger.Info("low-stock webhook alerts enabled")
	} else {
		baseLogger.Warn("alert webhook url missing, low-stock notifications disabled")
	}

	var exporter sheets.Exporter
	if cfg.SheetsEnabled() {
		exporter, err = sheets.NewGoogleSheetExporter(context.Background(),
			cfg.Sheets.CredentialsPath, cfg.Sheets.SpreadsheetID, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets exporter", zap.Error(err))
		}
	}

	salesService := salessvc.NewService(pool, notifier, baseLogger.Named("svc.sales"))
	inventoryService := inventorysvc.NewService(pool, notifier, baseLogger.Named("svc.inventory"))
	debtService := debtsvc.NewService(pool, notifier, baseLogger.Named("svc.debts"))
	reportingService := reportingsvc.NewService(pool, exporter, baseLogger.Named("svc.reporting"))

	posHandler := handlers.NewPOSHandler(salesService, inventoryService, debtService,
		reportingService, pool, baseLogger.Named("handlers.pos"))
	engine := router.New(posHandler, cfg.Auth.JWTSecret, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(cfg.Rollup, reportingService, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
