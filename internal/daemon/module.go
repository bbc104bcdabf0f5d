package daemon

import (
	"context"

	"github.com/gorilla/mux"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/amasampo/mesh/internal/api"
	"github.com/amasampo/mesh/internal/assist"
	"github.com/amasampo/mesh/internal/bus"
	"github.com/amasampo/mesh/internal/config"
	"github.com/amasampo/mesh/internal/ledger"
	"github.com/amasampo/mesh/internal/lock"
	"github.com/amasampo/mesh/internal/logging"
	"github.com/amasampo/mesh/internal/mesh"
	"github.com/amasampo/mesh/internal/outbox"
	"github.com/amasampo/mesh/internal/relay"
	"github.com/amasampo/mesh/internal/store"
)

// Params holds the resolved configuration passed to the fx module.
type Params struct {
	Config *config.Config
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideRelay,
			provideLedger,
			provideGenerator,
			provideSimulator,
			provideFlusher,
			provideRouter,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(p.Config.LogPath(), p.Config.Node.Name)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring daemon lock", zap.String("dir", p.Config.Node.DataDir))
	l, err := lock.Acquire(p.Config.Node.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("daemon lock acquired")
	return l, nil
}

func provideStore(p Params, b *bus.Bus, logger *zap.Logger) (*store.DB, error) {
	dbPath := p.Config.DBPath()
	db, err := store.Open(dbPath, b)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRelay(b *bus.Bus, logger *zap.Logger) *relay.Hub {
	return relay.NewHub(b, logger)
}

func provideLedger(p Params, db *store.DB, b *bus.Bus, logger *zap.Logger) *ledger.Service {
	return ledger.NewService(db, b, logger, ledger.Policy{
		CommissionRate: p.Config.Ledger.CommissionRate,
		WithdrawalFee:  p.Config.Ledger.WithdrawalFee,
		BoostPrice:     p.Config.Ledger.BoostPrice,
	})
}

func provideGenerator() assist.Generator {
	return assist.NewStaticGenerator(mesh.DefaultOptions().Seed)
}

func provideSimulator(p Params, db *store.DB, b *bus.Bus, gen assist.Generator, logger *zap.Logger) *mesh.Simulator {
	opts := mesh.DefaultOptions()
	opts.NodeName = p.Config.Node.Name
	opts.Region = p.Config.Mesh.Region
	opts.HeartbeatInterval = p.Config.Mesh.HeartbeatInterval.Duration
	opts.DiscoveryMin = p.Config.Mesh.DiscoveryMin.Duration
	opts.DiscoveryMax = p.Config.Mesh.DiscoveryMax.Duration
	return mesh.NewSimulator(db, b, gen, logger, opts)
}

func provideFlusher(p Params, db *store.DB, b *bus.Bus, logger *zap.Logger) *outbox.Flusher {
	opts := outbox.Options{
		FlushInterval: p.Config.Outbox.FlushInterval.Duration,
		UploadTimeout: p.Config.Outbox.UploadTimeout.Duration,
		RetryBackoff:  p.Config.Outbox.RetryBackoff.Duration,
		MaxAttempts:   p.Config.Outbox.MaxAttempts,
	}
	uploader := &outbox.SimulatedUploader{Latency: p.Config.Outbox.UploadLatency.Duration}
	return outbox.NewFlusher(db, uploader, b, logger, opts)
}

func provideRouter(p Params, db *store.DB, svc *ledger.Service, flusher *outbox.Flusher, sim *mesh.Simulator, hub *relay.Hub, logger *zap.Logger) *mux.Router {
	return api.NewRouter(api.Deps{
		DB:        db,
		Ledger:    svc,
		Flusher:   flusher,
		Presence:  sim,
		Relay:     hub.ServeWS,
		Logger:    logger,
		JWTSecret: p.Config.Auth.JWTSecret,
	})
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, hub *relay.Hub, flusher *outbox.Flusher, sim *mesh.Simulator, logger *zap.Logger) {
	var relayCancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			relayCtx, cancel := context.WithCancel(context.Background())
			relayCancel = cancel
			go hub.Run(relayCtx)

			flusher.Start(context.Background())

			if err := sim.Start(); err != nil {
				return err
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sim.Stop()
			flusher.Stop()
			srv.Stop(ctx)
			if relayCancel != nil {
				relayCancel()
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
