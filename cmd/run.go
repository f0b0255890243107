package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"lottery/api"
	"lottery/config"
	"lottery/database"
	"lottery/domain/entities"
	"lottery/domain/interfaces"
	"lottery/domain/ledger"
	"lottery/domain/services"
	"lottery/events"
	"lottery/infrastructure"
	"lottery/infrastructure/observability"
	"lottery/repository"
)

// Run initializes and starts the lottery service and blocks until ctx is cancelled
func Run(ctx context.Context) error {
	cfg := config.Get()
	if err := ConfigureLogging(cfg); err != nil {
		return err
	}

	log.WithField("environment", cfg.Environment).Info("Starting lottery service...")

	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL(), database.PoolOptions{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	eventBus := events.NewBus()
	eventBus.SubscribeAll(observability.GetMetrics().HandleEvent)

	var natsClient *infrastructure.NATSClient
	if cfg.NATSEnabled() {
		natsClient, err = connectNATS(ctx, cfg, eventBus)
		if err != nil {
			db.Close()
			return err
		}
	} else {
		log.Warn("NATS_SERVERS not set, ledger events stay in-process")
	}

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	entropy := ledger.NewSystemSource()

	state, err := deploy(ctx, uowFactory, entropy, cfg)
	if err != nil {
		db.Close()
		return err
	}
	log.WithFields(log.Fields{
		"operator": state.Operator.Hex(),
		"round":    state.Round.Number,
		"entrants": state.Round.EntrantCount(),
	}).Info("Ledger ready")

	server := api.NewServer(
		cfg.HTTPAddr,
		uowFactory,
		entropy,
		api.NewSignatureVerifier(cfg.SignatureMaxSkew),
		cfg.Operator(),
		db,
	)
	server.Start()

	<-ctx.Done()
	log.Info("Shutting down lottery service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down API server")
	}
	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}
	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics")
	}

	log.Info("Closing database connection...")
	db.Close()

	log.Info("Shutdown completed")
	return nil
}

// connectNATS connects to NATS and forwards every committed event from the bus
func connectNATS(ctx context.Context, cfg *config.Config, eventBus *events.Bus) (*infrastructure.NATSClient, error) {
	client := infrastructure.NewNATSClient(cfg.NATSServers)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, err
	}

	mapper := infrastructure.NewEventSubjectMapper()
	if err := infrastructure.EnsureLedgerEventStream(client, mapper); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ensure ledger event stream: %w", err)
	}

	publisher := infrastructure.NewNATSEventPublisher(client, mapper)
	eventBus.SubscribeAll(publisher.Handle)

	return client, nil
}

// deploy creates the ledger for the configured operator, or loads it if it already exists
func deploy(
	ctx context.Context,
	uowFactory interfaces.UnitOfWorkFactory,
	entropy ledger.EntropySource,
	cfg *config.Config,
) (*entities.LedgerState, error) {
	uow := uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	lottery := services.NewLotteryService(
		uow.LedgerRepository(),
		uow.DrawRepository(),
		uow.AccountRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
		entropy,
	)

	state, err := lottery.Deploy(ctx, cfg.Operator())
	if err != nil {
		return nil, fmt.Errorf("failed to deploy ledger: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ledger deployment: %w", err)
	}
	return state, nil
}
