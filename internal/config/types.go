package config

// Config is the root of config.yaml (or config.json).
//
// Durations are Go duration strings ("10s", "2m"). Unknown keys are rejected.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Cache    *CacheConfig   `json:"cache,omitempty"`
	API      APIConfig      `json:"api"`
	MiniApp  MiniAppConfig  `json:"miniapp"`
	Digest   *DigestConfig  `json:"digest,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token,omitempty"`
	// TokenEnv names an environment variable holding the token. It is used
	// when Token is empty (e.g. "LINKBOT_TOKEN" from a .env file).
	TokenEnv     string  `json:"token_env,omitempty"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	GroupLog     string  `json:"group_log,omitempty"`
	PollTimeout  string  `json:"poll_timeout,omitempty"`
	// RatePerSec caps outgoing messages (Telegram allows ~30/s per bot).
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the catalog database.
//
// Example:
//
//	storage: { driver: sqlite, path: ./data/linkbot.db }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// CacheConfig controls the active-category cache served to the Mini App.
// Driver is "none", "memory" or "redis".
type CacheConfig struct {
	Driver   string `json:"driver"`
	TTL      string `json:"ttl,omitempty"`
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Key      string `json:"key,omitempty"`
}

// APIConfig controls the HTTP API used by the link form.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":8080"
	// PublicURL is the externally reachable base URL. When set, links sent by
	// the bot go through /r/{id} so clicks are counted.
	PublicURL    string   `json:"public_url,omitempty"`
	CORSOrigins  []string `json:"cors_origins,omitempty"`
	RatePerSec   int      `json:"rate_per_sec,omitempty"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable it only behind a reverse proxy that overwrites those headers.
	TrustProxy   bool     `json:"trust_proxy,omitempty"`
	ReadTimeout  string   `json:"read_timeout,omitempty"`
	WriteTimeout string   `json:"write_timeout,omitempty"`
	// StaticDir, when set, is served under /app/ (Mini App pages + wasm).
	StaticDir string `json:"static_dir,omitempty"`
	// Pprof mounts net/http/pprof under /debug/. Requires PprofToken unless
	// Addr is loopback.
	Pprof      bool   `json:"pprof,omitempty"`
	PprofToken string `json:"pprof_token,omitempty"`
}

// MiniAppConfig points the bot's keyboard buttons at the web forms.
type MiniAppConfig struct {
	LinkFormURL     string `json:"link_form_url"`
	CategoryFormURL string `json:"category_form_url"`
}

// DigestConfig controls the periodic pending-link reminder for owners.
// Schedule accepts cron ("0 9 * * *") or an interval ("12h", "every:6h").
type DigestConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}
