package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carcost/internal/amqp"
	"carcost/internal/backend"
	"carcost/internal/cache"
	"carcost/internal/calc"
	"carcost/internal/config"
	applog "carcost/internal/log"
	"carcost/internal/notify"
	"carcost/internal/services"
	"carcost/internal/store"
)

// App wires the record store, the change hub and the calculators for one
// process.
type App struct {
	Config  *config.Config
	Logger  *applog.Logger
	Hub     *notify.Hub
	Store   store.Store
	Records *services.RecordService
	Metrics *calc.Set
	Caches  *cache.Manager

	amqpClient *amqp.Client
	cleanup    []func() error
}

// Options tweaks how an App is built.
type Options struct {
	// Schedules starts the cache manager's cron jobs. One-shot commands
	// leave it off.
	Schedules bool
	// Remote forwards table changes over AMQP when the broker is configured.
	Remote bool
	// Now overrides the clock of the calculators.
	Now func() time.Time
}

// NewApp opens the configured store and builds everything on top of it.
// The returned App must be closed.
func NewApp(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts Options) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		Hub:    notify.NewHub(),
		Caches: cache.NewManager(),
	}

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	b, err := backend.NewFactory(logger).Open(ctx, bc, a.Hub)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	a.Store = b.Store
	a.cleanup = append(a.cleanup, b.Close)
	a.Records = services.NewRecordService(a.Store)

	calcOpts := []calc.Option{calc.WithConcurrency(cfg.RebuildConcurrency)}
	if opts.Now != nil {
		calcOpts = append(calcOpts, calc.WithClock(opts.Now))
	}
	a.Metrics = calc.NewSet(a.Store, a.Hub, calcOpts...)
	a.Metrics.Register(a.Caches)

	if opts.Schedules {
		if err := a.Caches.Start(cfg.InvalidationSchedule, cfg.CleanupSchedule); err != nil {
			_ = a.Close()
			return nil, err
		}
		logger.InfoContext(ctx, "Cache schedules started",
			"invalidation", cfg.InvalidationSchedule,
			"cleanup", cfg.CleanupSchedule)
	}

	if opts.Remote && cfg.AMQPEnabled() {
		if err := a.connectAMQP(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

// connectAMQP publishes local changes to the exchange and delivers changes
// made by other processes to the hub, so their caches go Dirty as well.
func (a *App) connectAMQP(ctx context.Context) error {
	client, err := amqp.NewClient(a.Config.AMQPURL, a.Config.AMQPExchange)
	if err != nil {
		return fmt.Errorf("connect AMQP: %w", err)
	}
	a.amqpClient = client

	consumeCtx, stopConsuming := context.WithCancel(context.Background())
	stopForwarding := client.Forward(consumeCtx, a.Hub)
	go func() {
		if err := client.DeliverTo(consumeCtx, a.Hub); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.WithComponent(applog.ComponentAMQP).Error("AMQP delivery stopped", applog.FieldError, err)
		}
	}()

	a.cleanup = append(a.cleanup, func() error {
		stopForwarding()
		stopConsuming()
		return client.Close()
	})
	a.Logger.InfoContext(ctx, "Forwarding table changes over AMQP",
		"exchange", a.Config.AMQPExchange,
		"origin", client.Origin())
	return nil
}

// Close stops the schedules and change listeners, then releases the store.
func (a *App) Close() error {
	a.Caches.Stop()
	if a.Metrics != nil {
		a.Metrics.Close()
	}
	var errs []error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanup = nil
	return errors.Join(errs...)
}
