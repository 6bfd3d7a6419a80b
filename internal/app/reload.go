package app

import (
	"context"
	"strings"

	"linkbot/internal/config"
	logx "linkbot/pkg/logx"
)

// reloadLoop applies validated configs published by the manager. Sections
// that own open resources (storage, cache, api) only take effect on restart.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			cfg = latest(cfg, sub)
			a.apply(last, cfg)
			last = cfg
		}
	}
}

// latest drains sub so a burst of writes is applied once.
func latest(cfg *config.Config, sub <-chan *config.Config) *config.Config {
	for {
		select {
		case newer, ok := <-sub:
			if !ok {
				return cfg
			}
			if newer != nil {
				cfg = newer
			}
		default:
			return cfg
		}
	}
}

func (a *App) apply(prev, cfg *config.Config) {
	changed, attrs := config.SummarizeChange(prev, cfg)
	if len(changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if restart := config.RestartRequired(changed); len(restart) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.String("sections", strings.Join(restart, ",")))
	}

	// Target before Apply so enabling Telegram logging does not warn.
	a.logs.SetTelegramTarget(cfg.Telegram.GroupLogChatID(), cfg.Logging.Telegram.ThreadID)
	a.logs.Apply(mapLogging(cfg))

	a.router.SetOwners(cfg.Telegram.OwnerUserIDs)
	a.adapter.SetRate(telegramRate(cfg))
	a.bot.Apply(mapBot(cfg))

	if err := a.digest.Apply(mapDigest(cfg)); err != nil {
		a.log.Warn("digest config rejected; keeping previous", logx.Err(err))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
