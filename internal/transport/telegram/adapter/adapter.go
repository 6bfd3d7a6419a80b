// Package adapter implements transport.Adapter on top of telebot.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	rtsup "linkbot/internal/runtime/supervisor"
	kit "linkbot/internal/transport"
	logx "linkbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// RatePerSec bounds outgoing API calls. 0 uses 20/s.
	RatePerSec int
	// Offline skips the getMe call. Used by tests.
	Offline bool
}

type Adapter struct {
	log     logx.Logger
	bot     *tele.Bot
	limiter *rate.Limiter

	mu  sync.Mutex
	out chan<- kit.Update
	sup *rtsup.Supervisor

	// dropped counts updates lost because the consumer fell behind.
	dropped atomic.Uint64

	menuMu sync.Mutex
	menu   []tele.Command
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("telegram: empty bot token")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 20
	}
	b, err := tele.NewBot(tele.Settings{
		Token: token,
		Poller: &tele.LongPoller{
			Timeout:        cfg.PollTimeout,
			AllowedUpdates: []string{"message", "callback_query"},
		},
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
	}
	b.Handle(tele.OnText, a.onText)
	b.Handle(tele.OnWebApp, a.onWebApp)
	b.Handle(tele.OnCallback, a.onCallback)
	return a, nil
}

// SetRate changes the outgoing rate limit at runtime.
func (a *Adapter) SetRate(perSec int) {
	if perSec > 0 {
		a.limiter.SetLimit(rate.Limit(perSec))
		a.limiter.SetBurst(perSec)
	}
}

// Supervisor returns the adapter's goroutine supervisor, nil when stopped.
func (a *Adapter) Supervisor() *rtsup.Supervisor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sup
}

// Start begins long polling and delivers updates to out. Updates that find
// out full are dropped and reported periodically.
func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sup != nil {
		return nil
	}
	a.out = out
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log))
	a.sup.Go0("updates.drops", func(c context.Context) { a.reportDrops(c, cap(out)) })
	a.sup.Go0("telebot.stop", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})
	a.sup.GoRestart("telebot.poll", a.poll,
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithPublishFirstError(true),
	)
	return nil
}

// poll blocks inside telebot until Stop. Returning while ctx is live is a
// failure, so the supervisor restarts it.
func (a *Adapter) poll(ctx context.Context) error {
	a.log.Info("polling started")
	a.bot.Start()
	a.log.Info("polling stopped")
	if ctx.Err() != nil {
		return nil
	}
	return errors.New("poller exited")
}

// Stop waits at most two seconds for an in-flight getUpdates call.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	sup := a.sup
	a.sup, a.out = nil, nil
	a.mu.Unlock()
	if sup == nil {
		return nil
	}

	a.log.Info("stopping")
	sup.Cancel()
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sup.Wait(wctx); errors.Is(err, context.DeadlineExceeded) {
		a.log.Warn("telegram stop timed out", logx.Err(err))
	}
	return nil
}

func (a *Adapter) reportDrops(ctx context.Context, capacity int) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		done := false
		select {
		case <-ctx.Done():
			done = true
		case <-t.C:
		}
		if n := a.dropped.Swap(0); n > 0 {
			a.log.Warn("incoming updates dropped", logx.Uint64("count", n), logx.Int("chan_cap", capacity))
		}
		if done {
			return
		}
	}
}
