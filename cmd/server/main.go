package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/missionhub/missionhub/internal/api/http"
	appAuth "github.com/missionhub/missionhub/internal/application/auth"
	appChat "github.com/missionhub/missionhub/internal/application/chat"
	appEscrow "github.com/missionhub/missionhub/internal/application/escrow"
	appMission "github.com/missionhub/missionhub/internal/application/mission"
	appUser "github.com/missionhub/missionhub/internal/application/user"
	"github.com/missionhub/missionhub/internal/config"
	"github.com/missionhub/missionhub/internal/infrastructure/gatewayhttp"
	"github.com/missionhub/missionhub/internal/infrastructure/natspush"
	"github.com/missionhub/missionhub/internal/infrastructure/postgres"
	"github.com/missionhub/missionhub/internal/infrastructure/realtime"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, "internal/migrations"); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// repositories
	missionRepo := postgres.NewMissionRepository(pool)
	historyRepo := postgres.NewHistoryRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	chatRepo := postgres.NewChatRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)

	// infrastructure
	hub := realtime.NewHub()
	defer hub.Stop()

	natsConn, err := natspush.Connect(cfg.NATSURL, logger)
	if err != nil {
		log.Fatalf("nats error: %v", err)
	}
	defer natsConn.Close()
	notifier := natspush.NewNotifier(natsConn, logger)

	gateway := gatewayhttp.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, logger)

	reviewRule := appEscrow.NewReviewRule(cfg.EscrowReviewRule)

	// services
	escrowSvc := appEscrow.NewCoordinator(paymentRepo, gateway, reviewRule, cfg.PlatformAccountID, logger)
	chatSvc := appChat.NewService(chatRepo, missionRepo, hub, notifier, logger)
	missionSvc := appMission.NewService(missionRepo, historyRepo, userRepo, escrowSvc, chatSvc, int64(cfg.CommissionRateBps), logger)
	userSvc := appUser.NewService(userRepo, logger)
	authSvc := appAuth.NewService(userRepo, sessionRepo, cfg.SessionTTL, logger)

	// API server
	apiServer := httpapi.NewServer(missionSvc, chatSvc, escrowSvc, authSvc, userSvc, cfg.SessionCookieName, cfg.SessionCookieSecure)

	httpServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     apiServer.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// background loops
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := authSvc.SweepExpired(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("session sweep failed")
			} else if n > 0 {
				logger.Info().Int("count", n).Msg("expired sessions swept")
			}
		}
	}()

	// start server
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
