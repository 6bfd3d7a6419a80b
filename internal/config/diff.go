package config

import (
	"reflect"
	"sort"
	"strings"

	logx "linkbot/pkg/logx"
)

// SummarizeChange returns the sorted names of the sections that differ and
// safe attrs for logging. Tokens and passwords are never included; only
// whether they are set.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) ||
		!reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) ||
		strings.TrimSpace(ot.GroupLog) != strings.TrimSpace(nt.GroupLog) ||
		ot.RatePerSec != nt.RatePerSec ||
		ot.Token != nt.Token || ot.TokenEnv != nt.TokenEnv {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(nt.GroupLog) != ""),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token || ot.TokenEnv != nt.TokenEnv),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
		)
	}

	oc, nc := derefCache(oldCfg.Cache), derefCache(newCfg.Cache)
	if oc != nc {
		changed = append(changed, "cache")
		attrs = append(attrs,
			logx.String("cache.driver", nc.Driver),
			logx.String("cache.ttl", nc.TTL),
			logx.Bool("cache.password_set", nc.Password != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.API, newCfg.API) {
		changed = append(changed, "api")
		attrs = append(attrs,
			logx.Bool("api.enabled", newCfg.API.Enabled),
			logx.String("api.addr", newCfg.API.Addr),
		)
	}

	if oldCfg.MiniApp != newCfg.MiniApp {
		changed = append(changed, "miniapp")
	}

	od, nd := derefDigest(oldCfg.Digest), derefDigest(newCfg.Digest)
	if od != nd {
		changed = append(changed, "digest")
		attrs = append(attrs,
			logx.Bool("digest.enabled", nd.Enabled),
			logx.String("digest.schedule", nd.Schedule),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired reports sections that cannot be applied without a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "storage", "cache", "api":
			out = append(out, s)
		}
	}
	return out
}

func derefCache(c *CacheConfig) CacheConfig {
	if c == nil {
		return CacheConfig{}
	}
	return *c
}

func derefDigest(d *DigestConfig) DigestConfig {
	if d == nil {
		return DigestConfig{}
	}
	return *d
}
