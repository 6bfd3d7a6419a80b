package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "linkbot/pkg/logx"
)

// notifyReady reports READY=1 to systemd and starts the watchdog pinger when
// the unit sets WatchdogSec. Both are no-ops outside a Type=notify unit.
func (a *App) notifyReady() {
	a.sdNotify(daemon.SdNotifyReady)

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		a.log.Warn("systemd watchdog misconfigured", logx.Err(err))
		return
	}
	if interval <= 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(ctx context.Context) {
		a.watchdog(ctx, interval/2)
	})
}

func (a *App) notifyStopping() { a.sdNotify(daemon.SdNotifyStopping) }

func (a *App) sdNotify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		a.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		a.log.Debug("sd_notify", logx.String("state", state))
	}
}

// watchdog pings systemd only while the catalog answers, so a wedged
// database gets the unit restarted.
func (a *App) watchdog(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, every/2)
			err := a.catalog.Ping(pctx)
			cancel()
			if err != nil {
				a.log.Warn("watchdog: catalog ping failed; skipping keepalive", logx.Err(err))
				continue
			}
			a.sdNotify(daemon.SdNotifyWatchdog)
		}
	}
}
