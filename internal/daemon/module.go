package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/batterydied/chatter/internal/api"
	"github.com/batterydied/chatter/internal/bus"
	"github.com/batterydied/chatter/internal/config"
	"github.com/batterydied/chatter/internal/conversation"
	"github.com/batterydied/chatter/internal/lock"
	"github.com/batterydied/chatter/internal/logging"
	"github.com/batterydied/chatter/internal/message"
	"github.com/batterydied/chatter/internal/metrics"
	"github.com/batterydied/chatter/internal/outbox"
	"github.com/batterydied/chatter/internal/presence"
	"github.com/batterydied/chatter/internal/profile"
	"github.com/batterydied/chatter/internal/relation"
	"github.com/batterydied/chatter/internal/store"
	intsync "github.com/batterydied/chatter/internal/sync"
	"github.com/batterydied/chatter/internal/user"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile    string
	SocketPath string // optional override for testing; empty = use default
	// Config overrides the config file when non-nil.
	Config *config.Config
	// Logger overrides the file logger when non-nil.
	Logger *zap.Logger
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideUsers,
			provideGraph,
			provideConversations,
			provideStream,
			provideTracker,
			provideLimiter,
			provideSender,
			provideSyncEngine,
			provideCollector,
			provideMetricsServer,
			provideServices,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return config.LoadOrDefault(profile.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger, nil
	}
	return logging.New(profile.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore takes the lock so the database is never opened by two daemons.
func provideStore(p Params, _ *lock.Lock, b *bus.Bus, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
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

func provideUsers(db *store.DB, logger *zap.Logger) *user.Directory {
	return user.New(db, logger.Named("user"))
}

func provideGraph(db *store.DB, logger *zap.Logger) *relation.Graph {
	return relation.New(db, logger.Named("relation"))
}

func provideConversations(db *store.DB, logger *zap.Logger) *conversation.Directory {
	return conversation.New(db, logger.Named("conversation"))
}

func provideStream(db *store.DB, convs *conversation.Directory, logger *zap.Logger) *message.Stream {
	return message.New(db, convs, logger.Named("message"))
}

func provideTracker(db *store.DB, cfg *config.Config, logger *zap.Logger) *presence.Tracker {
	return presence.NewTracker(db, logger.Named("presence"), presence.Options{
		SessionTTL:    cfg.Presence.SessionTTL,
		SweepInterval: cfg.Presence.SweepInterval,
	})
}

func provideLimiter(cfg *config.Config) *presence.Limiter {
	return presence.NewLimiter(cfg.Presence.HeartbeatRPS, cfg.Presence.HeartbeatBurst)
}

func provideSender(db *store.DB, convs *conversation.Directory, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, convs, b, logger.Named("repair"), cfg.Repair.Interval, cfg.Repair.MaxAttempts)
}

func provideSyncEngine(db *store.DB, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, logger.Named("sync"), intsync.OptionsFromConfig(cfg.Sync))
}

func provideCollector(b *bus.Bus, engine *intsync.Engine, logger *zap.Logger) *metrics.Collector {
	return metrics.NewCollector(b, engine, logger.Named("metrics"))
}

// provideMetricsServer returns nil when metrics_addr is "off".
func provideMetricsServer(cfg *config.Config, c *metrics.Collector, logger *zap.Logger) (*metrics.Server, error) {
	if cfg.MetricsAddr == config.MetricsOff {
		return nil, nil
	}
	return metrics.NewServer(cfg.MetricsAddr, c, logger)
}

func provideServices(
	users *user.Directory,
	graph *relation.Graph,
	convs *conversation.Directory,
	stream *message.Stream,
	tracker *presence.Tracker,
	limiter *presence.Limiter,
	engine *intsync.Engine,
	logger *zap.Logger,
) Services {
	return Services{
		Users:         api.NewUserService(users, tracker, limiter, logger.Named("api")),
		Relations:     api.NewRelationService(graph),
		Conversations: api.NewConversationService(convs, graph),
		Messages:      api.NewMessageService(stream),
		Sync:          api.NewSyncService(engine, logger.Named("api")),
	}
}

type lifecycleDeps struct {
	fx.In

	Server    *Server
	Lock      *lock.Lock
	DB        *store.DB
	Tracker   *presence.Tracker
	Sender    *outbox.Sender
	Engine    *intsync.Engine
	Collector *metrics.Collector
	Metrics   *metrics.Server `optional:"true"`
	Logger    *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Count events before anything publishes them.
			d.Collector.Start(context.Background())

			// Recover sessions a crashed run left online before serving.
			if err := d.Tracker.Start(context.Background()); err != nil {
				return err
			}
			d.Sender.Start(context.Background())
			d.Server.Start()

			if d.Metrics != nil {
				go func() {
					if err := d.Metrics.Start(); err != nil {
						d.Logger.Error("metrics server error", zap.Error(err))
					}
				}()
			}
			d.Logger.Info("daemon started", zap.Strings("addrs", d.Server.Addrs()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// Closing views ends the watch streams so the drain can finish.
			d.Logger.Info("closing live views", zap.Int("open", d.Engine.OpenViews()))
			d.Engine.Stop()
			d.Server.Stop(ctx)
			d.Sender.Stop()
			d.Tracker.Stop()
			if d.Metrics != nil {
				d.Metrics.Stop(ctx)
			}
			d.Collector.Stop()
			if err := d.DB.Close(); err != nil {
				d.Logger.Warn("error closing store", zap.Error(err))
			}
			if err := d.Lock.Release(); err != nil {
				d.Logger.Warn("error releasing lock", zap.Error(err))
			}
			d.Logger.Info("daemon stopped")
			return nil
		},
	})
}
