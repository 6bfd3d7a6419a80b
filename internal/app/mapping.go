package app

import (
	"strings"
	"time"

	"linkbot/internal/api"
	"linkbot/internal/bot"
	"linkbot/internal/catalog"
	"linkbot/internal/catalog/cache"
	"linkbot/internal/config"
	"linkbot/internal/digest"
	logx "linkbot/pkg/logx"
)

// The map* helpers turn validated config sections into component configs,
// filling in defaults.

func mapLogging(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func telegramRate(cfg *config.Config) int {
	if cfg.Telegram.RatePerSec > 0 {
		return cfg.Telegram.RatePerSec
	}
	return config.DefaultTelegramRate
}

func mapStorage(cfg *config.Config) catalog.Config {
	path := strings.TrimSpace(cfg.Storage.Path)
	if path == "" {
		path = config.DefaultStoragePath
	}
	return catalog.Config{
		Path:        path,
		BusyTimeout: config.DurationOr(cfg.Storage.BusyTimeout, config.DefaultBusyTimeout),
	}
}

func mapCache(cfg *config.Config) cache.Config {
	c := cfg.Cache
	if c == nil {
		return cache.Config{Driver: "none"}
	}
	out := cache.Config{
		Driver:   strings.ToLower(strings.TrimSpace(c.Driver)),
		TTL:      config.DurationOr(c.TTL, config.DefaultCacheTTL),
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		Key:      c.Key,
	}
	if out.Driver == "" {
		out.Driver = "none"
	}
	if strings.TrimSpace(out.Key) == "" {
		out.Key = config.DefaultCacheKey
	}
	return out
}

func mapAPI(cfg *config.Config, version string) api.Config {
	c := cfg.API
	addr := strings.TrimSpace(c.Addr)
	if addr == "" {
		addr = config.DefaultAPIAddr
	}
	rate := c.RatePerSec
	if rate == 0 {
		rate = config.DefaultAPIRate
	}
	return api.Config{
		Addr:         addr,
		CORSOrigins:  c.CORSOrigins,
		RatePerSec:   max(rate, 0),
		TrustProxy:   c.TrustProxy,
		ReadTimeout:  config.DurationOr(c.ReadTimeout, 15*time.Second),
		WriteTimeout: config.DurationOr(c.WriteTimeout, 15*time.Second),
		StaticDir:    c.StaticDir,
		Version:      version,
		Pprof:        c.Pprof,
		PprofToken:   c.PprofToken,
	}
}

func mapBot(cfg *config.Config) bot.Settings {
	s := bot.Settings{
		LinkFormURL:     strings.TrimSpace(cfg.MiniApp.LinkFormURL),
		CategoryFormURL: strings.TrimSpace(cfg.MiniApp.CategoryFormURL),
	}
	// Click-counting links only make sense when the API serves /r/{id}.
	if cfg.API.Enabled {
		s.PublicURL = strings.TrimSpace(cfg.API.PublicURL)
	}
	return s
}

func mapDigest(cfg *config.Config) digest.Config {
	d := cfg.Digest
	if d == nil {
		return digest.Config{}
	}
	limit := d.Limit
	if limit == 0 {
		limit = config.DefaultDigestLimit
	}
	return digest.Config{
		Enabled:  d.Enabled,
		Schedule: scheduleOrDefault(d.Schedule),
		Timezone: strings.TrimSpace(d.Timezone),
		Limit:    limit,
	}
}
