package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/cache"
	"github.com/mamadbah2/kurban/internal/config"
	"github.com/mamadbah2/kurban/internal/domain/models"
	"github.com/mamadbah2/kurban/internal/repository/memory"
	"github.com/mamadbah2/kurban/internal/repository/mongodb"
	"github.com/mamadbah2/kurban/internal/repository/sheets"
	"github.com/mamadbah2/kurban/internal/scheduler"
	"github.com/mamadbah2/kurban/internal/server/handlers"
	"github.com/mamadbah2/kurban/internal/server/router"
	authsvc "github.com/mamadbah2/kurban/internal/service/auth"
	inventorysvc "github.com/mamadbah2/kurban/internal/service/inventory"
	reportingsvc "github.com/mamadbah2/kurban/internal/service/reporting"
	whatsappsvc "github.com/mamadbah2/kurban/internal/service/whatsapp"
	whatsappclient "github.com/mamadbah2/kurban/pkg/clients/whatsapp"
	"github.com/mamadbah2/kurban/pkg/logger"
)

// animalStore is what the process needs from a store backend.
type animalStore interface {
	inventorysvc.Store
	cache.Source
	reportingsvc.ReportSaver
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store animalStore
	if cfg.MongoDB.URI != "" {
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, cfg.MongoDB.Collection, baseLogger.Named("repo.mongodb"))
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		store = mongoRepo
	} else {
		baseLogger.Warn("MONGODB_URI not set, using in-memory store")
		store = memory.NewStore(baseLogger.Named("repo.memory"))
	}

	animalCache := cache.New(store, baseLogger.Named("cache"))
	if err := animalCache.Start(ctx); err != nil {
		baseLogger.Fatal("failed to start animal cache", zap.Error(err))
	}
	defer animalCache.Stop()

	var sheetsRepo sheets.Repository
	if cfg.Sheets.Enabled() {
		repo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		sheetsRepo = repo
	} else {
		baseLogger.Info("google sheet export disabled")
	}

	var whatsClient whatsappclient.Client
	if cfg.WhatsApp.Enabled() {
		whatsClient = whatsappclient.NewClient(cfg.WhatsApp)
	} else {
		baseLogger.Info("whatsapp token missing, sending disabled, deep links only")
	}

	location, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		baseLogger.Fatal("invalid timezone", zap.Error(err))
	}

	payments := models.PaymentOptions{Receivers: cfg.Payments.Receivers, Methods: cfg.Payments.Methods}
	inventory := inventorysvc.NewService(store, payments, baseLogger.Named("svc.inventory"))
	sessions := authsvc.NewManager(cfg.Auth, baseLogger.Named("svc.auth"))
	messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, baseLogger.Named("svc.whatsapp"))
	reportingSvc := reportingsvc.NewService(store, store, sheetsRepo, cfg.Sheets.ExportRange, location, baseLogger.Named("svc.reporting"))

	engine := router.New(router.Handlers{
		Auth:     handlers.NewAuthHandler(sessions, cfg.Auth, baseLogger.Named("handlers.auth")),
		Animals:  handlers.NewAnimalHandler(inventory, animalCache, baseLogger.Named("handlers.animals")),
		Shares:   handlers.NewShareHandler(inventory, messagingSvc, baseLogger.Named("handlers.shares")),
		Reports:  handlers.NewReportHandler(reportingSvc, messagingSvc, cfg.WhatsApp, baseLogger.Named("handlers.reports")),
		Messages: handlers.NewMessageHandler(messagingSvc, baseLogger.Named("handlers.messages")),
	}, baseLogger.Named("router"))

	sched, err := scheduler.NewScheduler(*cfg, reportingSvc, messagingSvc, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	readyCtx, cancelReady := context.WithTimeout(ctx, 30*time.Second)
	if err := animalCache.WaitReady(readyCtx); err != nil {
		baseLogger.Warn("animal cache not ready yet, serving anyway", zap.Error(err))
	}
	cancelReady()

	// No WriteTimeout: the SSE streams stay open for the whole session and
	// end through BaseContext on shutdown.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

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
