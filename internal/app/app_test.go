package app

import (
	"context"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"linkbot/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Telegram: config.TelegramConfig{Token: "123:abc", OwnerUserIDs: []int64{1}},
		API:      config.APIConfig{Enabled: true, PublicURL: "https://links.example"},
		MiniApp:  config.MiniAppConfig{LinkFormURL: "https://app.example/link.html"},
	}
}

func TestMappingDefaults(t *testing.T) {
	cfg := baseConfig()

	if st := mapStorage(cfg); st.Path != config.DefaultStoragePath || st.BusyTimeout != config.DefaultBusyTimeout {
		t.Fatalf("storage = %+v", st)
	}
	if c := mapCache(cfg); c.Driver != "none" {
		t.Fatalf("cache without section = %+v", c)
	}
	cfg.Cache = &config.CacheConfig{Driver: " Redis ", Addr: "127.0.0.1:6379", TTL: "30s"}
	if c := mapCache(cfg); c.Driver != "redis" || c.TTL != 30*time.Second || c.Key != config.DefaultCacheKey {
		t.Fatalf("cache = %+v", c)
	}
	if a := mapAPI(cfg, "v1"); a.Addr != config.DefaultAPIAddr || a.RatePerSec != config.DefaultAPIRate || a.Version != "v1" {
		t.Fatalf("api = %+v", a)
	}
	if d := mapDigest(cfg); d.Enabled {
		t.Fatalf("digest without section = %+v", d)
	}
	cfg.Digest = &config.DigestConfig{Enabled: true}
	if d := mapDigest(cfg); d.Schedule != config.DefaultDigestSchedule || d.Limit != config.DefaultDigestLimit {
		t.Fatalf("digest = %+v", d)
	}
	if r := telegramRate(cfg); r != config.DefaultTelegramRate {
		t.Fatalf("rate = %d", r)
	}
}

func TestBotSettingsNeedAPIForRedirects(t *testing.T) {
	cfg := baseConfig()
	if s := mapBot(cfg); s.PublicURL != "https://links.example" || s.LinkFormURL == "" {
		t.Fatalf("settings = %+v", s)
	}
	cfg.API.Enabled = false
	if s := mapBot(cfg); s.PublicURL != "" {
		t.Fatalf("public url kept without api: %+v", s)
	}
}

func TestValidateChecksDigestSchedule(t *testing.T) {
	cfg := baseConfig()
	cfg.Digest = &config.DigestConfig{Enabled: true, Schedule: "every:6h"}
	if err := validate(context.Background(), cfg); err != nil {
		t.Fatalf("valid config: %v", err)
	}
	cfg.Digest.Schedule = "sometimes"
	err := validate(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "digest.schedule") {
		t.Fatalf("bad schedule err = %v", err)
	}
	cfg.Digest.Enabled = false
	if err := validate(context.Background(), cfg); err != nil {
		t.Fatalf("disabled digest is not parsed: %v", err)
	}
}

func TestLatestCoalescesBurst(t *testing.T) {
	sub := make(chan *config.Config, 4)
	a, b, c := baseConfig(), baseConfig(), baseConfig()
	sub <- b
	sub <- c
	if got := latest(a, sub); got != c {
		t.Fatalf("latest did not pick the newest config")
	}
	if len(sub) != 0 {
		t.Fatalf("channel not drained")
	}
}

func TestReasonForSignal(t *testing.T) {
	cases := map[os.Signal]StopReason{
		os.Interrupt:    StopSIGINT,
		syscall.SIGTERM: StopSIGTERM,
		syscall.SIGHUP:  StopUnknown,
	}
	for sig, want := range cases {
		if got := ReasonForSignal(sig); got != want {
			t.Fatalf("%v = %q, want %q", sig, got, want)
		}
	}
}
