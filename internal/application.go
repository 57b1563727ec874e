package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/stakearena/arena-backend/internal/config"
	"github.com/stakearena/arena-backend/internal/repository"
	"github.com/stakearena/arena-backend/internal/repository/storage"
	"github.com/stakearena/arena-backend/internal/service"
	"github.com/stakearena/arena-backend/internal/session"
	"github.com/stakearena/arena-backend/transport/rest"
	"github.com/stakearena/arena-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

const staleSweepInterval = time.Minute

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	playerRepo := repository.NewPlayerRepository(redisStorage.Connection)
	sessionRepo := repository.NewSessionRepository(redisStorage.Connection)
	walletRepo := repository.NewWalletRepository(redisStorage.Connection)
	paymentRepo := repository.NewPaymentRepository(redisStorage.Connection)

	playerService := service.NewPlayerService(playerRepo)
	walletService := service.NewWalletService(walletRepo)
	botService := service.NewBotService()

	gateway := service.NewHTTPGateway(conf.Payment.BaseURL)
	paymentService := service.NewPaymentService(logger, gateway, paymentRepo, walletService)

	manager := session.NewManager(
		logger,
		conf.Game.TurnTimeout, conf.Game.GraceWindow, conf.Game.RematchWindow,
		walletService,
		botService,
		playerService,
		sessionRepo,
	)

	wsServer := websocket.New(logger, manager)
	manager.SetSink(wsServer)

	scheduler, err := startScheduler(ctx, logger, conf, paymentService, manager)
	if err != nil {
		return fmt.Errorf("could not start scheduler: %w", err)
	}
	defer func() {
		if shutdownErr := scheduler.Shutdown(); shutdownErr != nil {
			log.Error("could not stop scheduler", "error", shutdownErr)
		}
	}()

	restHandlers := rest.NewHandlers(logger, paymentService, walletService)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, conf.HTTPPort, restHandlers); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// startScheduler runs the background jobs: polling pending deposits
// against the payment provider and sweeping rooms whose rematch window
// expired without a restart.
func startScheduler(ctx context.Context, logger *slog.Logger, conf *config.Config, payments service.PaymentService, manager *session.Manager) (gocron.Scheduler, error) {
	log := logger.With("component", "scheduler")

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(conf.Payment.PollInterval),
		gocron.NewTask(func() {
			if pollErr := payments.PollPending(ctx); pollErr != nil {
				log.Error("failed to poll pending payments", "error", pollErr)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule payment polling: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(staleSweepInterval),
		gocron.NewTask(manager.SweepStale),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule stale session sweep: %w", err)
	}

	scheduler.Start()

	return scheduler, nil
}
