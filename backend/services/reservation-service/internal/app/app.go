package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libredis "vaggo/backend/libs/redis"
	"vaggo/backend/libs/telemetry"
	"vaggo/backend/services/reservation-service/internal/catalog"
	"vaggo/backend/services/reservation-service/internal/config"
	"vaggo/backend/services/reservation-service/internal/db"
	"vaggo/backend/services/reservation-service/internal/guard"
	httpserver "vaggo/backend/services/reservation-service/internal/http"
	"vaggo/backend/services/reservation-service/internal/http/handlers"
	"vaggo/backend/services/reservation-service/internal/http/middleware"
	"vaggo/backend/services/reservation-service/internal/models"
	"vaggo/backend/services/reservation-service/internal/notify"
	redisstore "vaggo/backend/services/reservation-service/internal/redis"
	"vaggo/backend/services/reservation-service/internal/repository"
	"vaggo/backend/services/reservation-service/internal/repository/memory"
	"vaggo/backend/services/reservation-service/internal/service"
	"vaggo/backend/services/reservation-service/internal/timer"
)

// Version is stamped at build time.
var Version = "dev"

const (
	notificationMarkerPrefix = "notifications:sent"
	shutdownTimeout          = 5 * time.Second
)

type reservationBackend interface {
	service.ReservationStore
	guard.ActiveSpots
}

// App wires reservation-service dependencies.
type App struct {
	server       *httpserver.Server
	reservations *service.ReservationService
	scheduler    *timer.Scheduler
	hub          *notify.Hub
	db           *sql.DB
	redisClient  *redis.Client
	telemetry    telemetry.ShutdownFunc
	logger       *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     Version,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a := &App{telemetry: shutdown, logger: logger}

	if err := a.build(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config) error {
	var (
		ledgerStore  service.LedgerStore
		reservations reservationBackend
		holds        guard.HoldStore
		markers      notify.Marker
	)

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		sqlDB, err := db.NewPostgres(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		a.db = sqlDB
		if err := db.Migrate(ctx, sqlDB); err != nil {
			return err
		}

		redisClient, err := libredis.NewRedisClient(libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.redisClient = redisClient

		ledgerStore = repository.NewTransactionRepository(sqlDB)
		reservations = repository.NewReservationRepository(sqlDB)
		holds = redisstore.NewHoldStore(redisClient, cfg.Reservation.HoldTTL)
		markers = redisstore.NewMarkerStore(redisClient, notificationMarkerPrefix, cfg.Notifications.DedupeTTL)
	case config.DriverMemory:
		ledgerStore = memory.NewLedgerStore()
		reservations = memory.NewReservationStore()
		holds = guard.NewMemoryHolds(cfg.Reservation.HoldTTL)
		markers = notify.NewMemoryMarkers(cfg.Notifications.DedupeTTL)
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	spots, err := a.spotCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	a.hub = notify.NewHub(notify.HubConfig{
		PendingLimit:   cfg.Notifications.PendingLimit,
		PendingTTL:     cfg.Notifications.PendingTTL,
		AllowedOrigins: cfg.AllowedOrigins(),
	}, a.logger)
	notifier := notify.NewNotifier(markers, a.hub, a.logger)

	ledger := service.NewLedgerService(ledgerStore, a.logger)
	credits := service.NewCreditService(ledger, a.logger)
	clock := timer.RealClock()
	a.reservations = service.NewReservationService(
		ledger,
		reservations,
		guard.New(holds, spots, reservations, a.logger),
		nil,
		notifier,
		clock,
		service.ReservationConfig{
			StepTimeout:          cfg.Reservation.StepTimeout,
			CompensationTimeout:  cfg.Reservation.CompensationTimeout,
			AutoCompleteOnExpiry: cfg.Reservation.AutoCompleteOnExpiry,
		},
		a.logger,
	)
	a.scheduler = timer.NewScheduler(clock, a.reservations.HandleTimerEvent, a.logger)
	a.reservations.SetTimers(a.scheduler)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Wallet:         handlers.NewWalletHandlers(ledger, a.logger),
		Reservations:   handlers.NewReservationHandlers(a.reservations, a.logger),
		Payments:       handlers.NewPaymentHandlers(credits, cfg.Webhook.Secret, cfg.Webhook.Insecure, a.logger),
		Notifications:  handlers.NewNotificationHandlers(a.hub),
		Health:         handlers.NewHealthHandler(),
		AllowedOrigins: cfg.AllowedOrigins(),
	}, middleware.AuthMiddleware(cfg.JWT.Secret), a.logger)

	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, a.logger)
	return nil
}

func (a *App) spotCatalog(ctx context.Context, cfg *config.Config) (guard.SpotCatalog, error) {
	seeds := make([]models.Spot, 0, len(cfg.Catalog.Spots))
	for _, s := range cfg.Catalog.Spots {
		seeds = append(seeds, models.Spot{
			ID:           s.ID,
			Name:         s.Name,
			PricePerHour: s.PricePerHour,
			Latitude:     s.Latitude,
			Longitude:    s.Longitude,
			Available:    s.Available,
		})
	}

	switch cfg.Catalog.Driver {
	case config.DriverPostgres:
		if a.db == nil {
			return nil, errors.New("postgres catalog requires postgres storage")
		}
		if len(seeds) > 0 {
			if err := db.SeedSpots(ctx, a.db, seeds); err != nil {
				return nil, err
			}
		}
		return repository.NewSpotRepository(a.db), nil
	case config.DriverHTTP:
		return catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout), nil
	case config.DriverMemory:
		return memory.NewSpotCatalog(seeds...), nil
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Catalog.Driver)
	}
}

// Run re-arms timers for reservations that survived a restart, then serves HTTP traffic.
func (a *App) Run(ctx context.Context) error {
	restored, err := a.reservations.RestoreTimers(ctx)
	if err != nil {
		return fmt.Errorf("restore timers: %w", err)
	}
	a.logger.Info("reservation service ready", zap.Int("timers", restored))
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Close()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.telemetry(ctx); err != nil {
			a.logger.Warn("failed to flush telemetry", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
