package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/bloodconnect/bloodconnect/internal/config"
	"github.com/bloodconnect/bloodconnect/internal/domain/donor"
	"github.com/bloodconnect/bloodconnect/internal/domain/inventory"
	"github.com/bloodconnect/bloodconnect/internal/domain/organization"
	"github.com/bloodconnect/bloodconnect/internal/domain/request"
	"github.com/bloodconnect/bloodconnect/internal/domain/staff"
	"github.com/bloodconnect/bloodconnect/internal/platform/auth"
	"github.com/bloodconnect/bloodconnect/internal/platform/db"
	"github.com/bloodconnect/bloodconnect/internal/platform/dispatch"
	"github.com/bloodconnect/bloodconnect/internal/platform/metrics"
)

// app holds the wired services. pool is nil with in-memory storage and
// metrics is nil when disabled.
type app struct {
	pool      *pgxpool.Pool
	metrics   *metrics.Collector
	closers   []func()
	orgs      *organization.Service
	staff     *staff.Service
	donors    *donor.Service
	inventory *inventory.Service
	requests  *request.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}

	var (
		orgRepo     organization.OrganizationRepository
		staffRepo   staff.MemberRepository
		donorRepo   donor.DonorRepository
		unitRepo    inventory.UnitRepository
		requestRepo request.RequestRepository
		locker      request.Locker
	)

	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn().Msg("using in-memory storage: data is lost on restart")
		orgRepo = organization.NewOrganizationRepoMemory()
		staffRepo = staff.NewMemberRepoMemory()
		donorRepo = donor.NewDonorRepoMemory()
		unitRepo = inventory.NewUnitRepoMemory()
		requestRepo = request.NewRequestRepoMemory()
		locker = db.NewLocalLocker()
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info().Msg("connected to database")
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
		orgRepo = organization.NewOrganizationRepoPG(pool)
		staffRepo = staff.NewMemberRepoPG(pool)
		donorRepo = donor.NewDonorRepoPG(pool)
		unitRepo = inventory.NewUnitRepoPG(pool)
		requestRepo = request.NewRequestRepoPG(pool)
		locker = db.NewTxRunner(pool)
	}

	var pub dispatch.Publisher = dispatch.Nop{}
	if cfg.RedisURL != "" {
		client, err := dispatch.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, lifecycle events will not be dispatched")
		} else {
			logger.Info().Str("stream", cfg.DispatchStream).Msg("dispatching lifecycle events to redis")
			pub = dispatch.NewRedisPublisher(client, cfg.DispatchStream, cfg.DispatchMaxLen)
			a.closers = append(a.closers, func() { client.Close() })
		}
	}

	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
		pub = a.metrics.Publisher(pub)
	}

	a.orgs = organization.NewService(orgRepo)
	a.staff = staff.NewService(staffRepo)

	a.donors = donor.NewService(donorRepo)
	a.donors.SetDonationInterval(cfg.DonationInterval())
	a.donors.SetLogger(logger.With().Str("component", "donor").Logger())

	a.inventory = inventory.NewService(unitRepo)
	a.inventory.SetThresholds(cfg.NearExpiryWindow(), cfg.LowStockThreshold)
	a.inventory.SetLocker(locker)
	a.inventory.SetPublisher(pub)
	a.inventory.SetLogger(logger.With().Str("component", "inventory").Logger())

	a.requests = request.NewService(requestRepo, a.inventory, locker, auth.NewRoleAuthorizer(nil), a.staff)
	a.requests.SetPublisher(pub)
	a.requests.SetLogger(logger.With().Str("component", "request").Logger())

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) registerRoutes(api *echo.Group) {
	organization.NewHandler(a.orgs).RegisterRoutes(api)
	staff.NewHandler(a.staff).RegisterRoutes(api)
	donor.NewHandler(a.donors).RegisterRoutes(api)
	inventory.NewHandler(a.inventory).RegisterRoutes(api)
	request.NewHandler(a.requests).RegisterRoutes(api)
}

// sweep expires lapsed units and lifts finished donor deferrals across all
// organizations. Both services log their own counts.
func (a *app) sweep(ctx context.Context, logger zerolog.Logger) {
	if _, err := a.inventory.ExpireUnits(ctx, uuid.Nil); err != nil {
		logger.Error().Err(err).Msg("expire units")
	}
	if _, err := a.donors.Reevaluate(ctx, uuid.Nil); err != nil {
		logger.Error().Err(err).Msg("reevaluate donors")
	}
}

// runSweeper calls sweep every interval until ctx is cancelled.
func (a *app) runSweeper(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	a.sweep(ctx, logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx, logger)
		}
	}
}
