// Package app wires the catalog, the Telegram bot, the HTTP API and the
// digest scheduler into one process and keeps them in sync with config.yaml.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"linkbot/internal/api"
	"linkbot/internal/bot"
	"linkbot/internal/catalog"
	"linkbot/internal/catalog/cache"
	"linkbot/internal/config"
	"linkbot/internal/digest"
	"linkbot/internal/eventbus"
	rtsup "linkbot/internal/runtime/supervisor"
	kit "linkbot/internal/transport"
	telegram "linkbot/internal/transport/telegram/adapter"
	"linkbot/internal/transport/telegram/router"
	logx "linkbot/pkg/logx"
)

type Options struct {
	ConfigPath string
	// EnvFiles are loaded before the config is parsed. Missing files are fine.
	EnvFiles []string
	Version  string
}

type App struct {
	opts Options

	cfgm *config.Manager
	sup  *rtsup.Supervisor
	regs *rtsup.Registry

	log  logx.Logger
	logs *logx.Service

	catalog *cache.Catalog
	adapter *telegram.Adapter
	router  *router.Router
	bot     *bot.Bot
	api     *api.Service
	digest  *digest.Service

	events   *eventbus.Bus
	activity *eventbus.Tally

	updates chan kit.Update
}

func New(ctx context.Context, opts Options) (*App, error) {
	if err := config.LoadEnv(opts.EnvFiles...); err != nil {
		return nil, err
	}
	cfgm := config.NewManager(opts.ConfigPath)
	cfgm.SetValidator(validate)
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}

	token, err := config.ResolveToken(cfg.Telegram)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       token,
		PollTimeout: config.DurationOr(cfg.Telegram.PollTimeout, config.DefaultPollTimeout),
		RatePerSec:  telegramRate(cfg),
	}, logx.NewConsole("INFO").With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg), ad)
	logSvc.SetTelegramTarget(cfg.Telegram.GroupLogChatID(), cfg.Logging.Telegram.ThreadID)
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		opts:     opts,
		cfgm:     cfgm,
		regs:     rtsup.NewRegistry(),
		log:      log,
		logs:     logSvc,
		adapter:  ad,
		events:   eventbus.New(),
		activity: eventbus.NewTally(),
		updates:  make(chan kit.Update, 256),
	}
	if err := a.build(ctx, cfg); err != nil {
		logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config) error {
	store, err := catalog.Open(ctx, mapStorage(cfg), a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	c, err := cache.New(mapCache(cfg))
	if err != nil {
		_ = store.Close()
		return err
	}
	a.catalog = cache.NewCatalog(store, c, a.log.With(logx.String("comp", "cache")))
	a.log.Info("catalog ready", logx.String("path", mapStorage(cfg).Path), logx.String("cache", mapCache(cfg).Driver))

	a.router = router.New(a.log.With(logx.String("comp", "router")), a.adapter, cfg.Telegram.OwnerUserIDs)
	a.bot = bot.New(a.catalog, a.adapter, a.router, mapBot(cfg), a.log.With(logx.String("comp", "bot")))
	a.bot.SetPublisher(a.events)
	a.bot.Register()

	if cfg.API.Enabled {
		a.api = api.New(mapAPI(cfg, a.opts.Version), a.catalog, a.log.With(logx.String("comp", "api")))
		a.api.SetHealth(a.health)
	}
	a.digest = digest.New(mapDigest(cfg), a.bot.SendPendingDigest, a.log.With(logx.String("comp", "digest")))
	return nil
}

// validate is the config manager's gate for both startup and hot reload.
func validate(_ context.Context, cfg *config.Config) error {
	err := config.Validate(cfg)
	if d := cfg.Digest; d != nil && d.Enabled {
		if _, serr := digest.ParseSchedule(scheduleOrDefault(d.Schedule)); serr != nil {
			err = errors.Join(err, fmt.Errorf("digest.schedule: %w", serr))
		}
	}
	return err
}

// Done is closed when the app supervisor is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()

	if err := a.adapter.Start(run, a.updates); err != nil {
		return err
	}
	a.regs.Set("telegram.adapter", a.adapter.Supervisor)
	a.regs.Set("router", a.router.Supervisor)
	a.sup.Go("router", func(c context.Context) error { return a.router.Run(c, a.updates) })

	if err := a.router.PublishMenu(run); err != nil {
		a.log.Warn("command menu not published", logx.Err(err))
	}

	if a.api != nil {
		a.api.Start(run)
		a.regs.Set("api", a.api.Supervisor)
	}
	if err := a.digest.Start(run); err != nil {
		return err
	}

	events, unsub := a.events.Subscribe(64)
	a.sup.Go0("events.tally", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.activity.Add(e)
				a.log.Debug("activity", logx.String("action", e.Action), logx.String("target", e.Target), logx.Int64("actor", e.Actor))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, rtsup.WithRestartBackoff(250*time.Millisecond, 5*time.Second))

	a.notifyReady()
	a.log.Info("app started", logx.String("version", a.opts.Version))
	return nil
}

// health feeds /api/health?verbose=1.
func (a *App) health() any {
	return map[string]any{
		"supervisors": a.regs.Snapshots(),
		"digest":      a.digest.Status(),
		"activity":    a.activity.Snapshot(),
		"dropped":     a.events.Dropped(),
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notifyStopping()

	// Cancel first so background loops start unwinding immediately.
	a.sup.Cancel()

	a.step(ctx, "digest", 2*time.Second, func(c context.Context) error { a.digest.Stop(c); return nil })
	if a.api != nil {
		a.step(ctx, "api", 3*time.Second, a.api.Stop)
	}
	a.step(ctx, "adapter", 2*time.Second, a.adapter.Stop)
	a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait)
	a.step(ctx, "catalog", time.Second, func(context.Context) error { return a.catalog.Close() })

	a.log.Info("stopped")
	a.logs.Close()
	return nil
}

// step runs one shutdown step bounded by budget and by ctx. A step that ignores
// its context is reported and left behind.
func (a *App) step(ctx context.Context, name string, budget time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		budget = min(budget, time.Until(dl))
	}
	if budget <= 0 {
		a.log.Warn("stop step skipped: no time left", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		if took := time.Since(start); took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		go func() {
			if err := <-done; err != nil {
				a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err))
			}
		}()
	}
}

func scheduleOrDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return config.DefaultDigestSchedule
	}
	return s
}
