package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/Raleighawesome/family-movies/internal/auth"
	"github.com/Raleighawesome/family-movies/internal/config"
	"github.com/Raleighawesome/family-movies/internal/handler"
	"github.com/Raleighawesome/family-movies/internal/realtime"
	"github.com/Raleighawesome/family-movies/internal/service"
	"github.com/Raleighawesome/family-movies/internal/storage"
	"github.com/Raleighawesome/family-movies/internal/webhook"
	"github.com/Raleighawesome/family-movies/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog, err := logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	store, err := storage.New(cfg.Storage, appLog)
	if err != nil {
		logger.Fatalf("Failed to open storage: %v", err)
	}
	if err := store.Init(); err != nil {
		logger.Fatalf("Failed to initialise storage: %v", err)
	}
	defer store.Close()

	gate, err := auth.NewGate(cfg.Auth)
	if err != nil {
		logger.Fatalf("Failed to set up credential gate: %v", err)
	}

	hub := realtime.NewHub(appLog)
	agent := webhook.NewClient(cfg.Webhook, appLog)

	households := service.NewHouseholdService(store, appLog)
	preferences := service.NewPreferenceService(store, hub, appLog)
	chat := service.NewChatService(store, agent, hub, cfg.Webhook, cfg.Chat, appLog)
	feedback := service.NewFeedbackService(store, agent, hub, cfg.Webhook, appLog)

	identity := gate.Identity()
	hh, err := households.EnsureBootstrap(context.Background(), &identity, cfg.Household.BootstrapName, cfg.Household.BootstrapDisplayName)
	if err != nil {
		logger.Fatalf("Failed to bootstrap household: %v", err)
	}
	if hh == nil {
		appLog.WithField("user_id", identity.ID).Warn("no household for the configured identity, household routes answer 403 until onboarding completes")
	}

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.Dependencies{
		Config:      cfg,
		Gate:        gate,
		Households:  households,
		Preferences: preferences,
		Chat:        chat,
		Feedback:    feedback,
		Hub:         hub,
		Log:         appLog,
	})

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLog.WithFields(logrus.Fields{
			"port":    cfg.Server.Port,
			"storage": cfg.Storage.Type,
			"chat":    webhookMode(cfg.Webhook.ChatURL),
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("Server stopped with error: %v", err)
		return
	}
	appLog.Info("server stopped")
}

func webhookMode(url string) string {
	if url == "" {
		return "preview"
	}
	return "webhook"
}
