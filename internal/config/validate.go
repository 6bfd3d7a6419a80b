package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Defaults used when a field is omitted.
const (
	DefaultPollTimeout    = 10 * time.Second
	DefaultTelegramRate   = 20
	DefaultStoragePath    = "./data/linkbot.db"
	DefaultBusyTimeout    = 5 * time.Second
	DefaultCacheTTL       = 5 * time.Minute
	DefaultCacheKey       = "linkbot:categories:active"
	DefaultAPIAddr        = ":8080"
	DefaultAPIRate        = 10
	DefaultDigestSchedule = "0 9 * * *"
	DefaultDigestLimit    = 20
)

// Validate checks cfg for values the runtime cannot use. All problems are
// joined into a single error.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(checkDuration("telegram.poll_timeout", cfg.Telegram.PollTimeout))
	if cfg.Telegram.RatePerSec < 0 {
		add(errors.New("telegram.rate_per_sec: must be >= 0"))
	}
	if slices.Contains(cfg.Telegram.OwnerUserIDs, 0) {
		add(errors.New("telegram.owner_user_ids: 0 is not a valid user id"))
	}
	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" {
		if _, err := strconv.ParseInt(g, 10, 64); err != nil {
			add(fmt.Errorf("telegram.group_log: %q is not a chat id", g))
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "sqlite":
	default:
		add(fmt.Errorf("storage.driver: unsupported driver %q", cfg.Storage.Driver))
	}
	add(checkDuration("storage.busy_timeout", cfg.Storage.BusyTimeout))

	if c := cfg.Cache; c != nil {
		switch strings.ToLower(strings.TrimSpace(c.Driver)) {
		case "", "none", "memory":
		case "redis":
			if strings.TrimSpace(c.Addr) == "" {
				add(errors.New("cache.addr: required for the redis driver"))
			}
		default:
			add(fmt.Errorf("cache.driver: unsupported driver %q", c.Driver))
		}
		add(checkDuration("cache.ttl", c.TTL))
	}

	if cfg.API.Enabled {
		add(checkDuration("api.read_timeout", cfg.API.ReadTimeout))
		add(checkDuration("api.write_timeout", cfg.API.WriteTimeout))
		if p := strings.TrimSpace(cfg.API.PublicURL); p != "" {
			add(checkHTTPURL("api.public_url", p))
		}
	}

	if u := strings.TrimSpace(cfg.MiniApp.LinkFormURL); u != "" {
		add(checkHTTPSURL("miniapp.link_form_url", u))
	}
	if u := strings.TrimSpace(cfg.MiniApp.CategoryFormURL); u != "" {
		add(checkHTTPSURL("miniapp.category_form_url", u))
	}

	if d := cfg.Digest; d != nil && d.Enabled {
		if d.Limit < 0 {
			add(errors.New("digest.limit: must be >= 0"))
		}
		if tz := strings.TrimSpace(d.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				add(fmt.Errorf("digest.timezone: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}

func checkHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s: %q is not an http(s) URL", field, raw)
	}
	return nil
}

// Telegram only opens Mini Apps over https.
func checkHTTPSURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Scheme != "https" {
		return fmt.Errorf("%s: %q is not an https URL", field, raw)
	}
	return nil
}

// GroupLogChatID returns the parsed telegram.group_log, or 0.
func (c TelegramConfig) GroupLogChatID() int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(c.GroupLog), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// IsOwner reports whether userID is listed in telegram.owner_user_ids.
func (c TelegramConfig) IsOwner(userID int64) bool {
	return userID != 0 && slices.Contains(c.OwnerUserIDs, userID)
}
