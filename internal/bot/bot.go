// Package bot implements the link catalog conversation: Mini App
// submissions, owner moderation and the read-only catalog commands.
package bot

import (
	"context"
	"strconv"
	"sync/atomic"

	"linkbot/internal/catalog"
	"linkbot/internal/eventbus"
	kit "linkbot/internal/transport"
	"linkbot/internal/transport/telegram/router"
	logx "linkbot/pkg/logx"
)

// Store is the catalog surface the bot needs. *cache.Catalog satisfies it.
type Store interface {
	UpsertUser(ctx context.Context, id int64, username, firstName, role string) error
	GetUser(ctx context.Context, id int64) (catalog.User, error)

	AddCategory(ctx context.Context, name, emoji string, position int) (int64, error)
	ListCategories(ctx context.Context, onlyActive bool) ([]catalog.Category, error)
	GetCategory(ctx context.Context, id int64) (catalog.Category, error)
	UpdateCategory(ctx context.Context, id int64, name, emoji *string) error
	ToggleCategory(ctx context.Context, id int64) (bool, error)
	DeleteCategory(ctx context.Context, id int64) error

	AddLink(ctx context.Context, l catalog.NewLink) (int64, error)
	GetLink(ctx context.Context, id int64) (catalog.Link, error)
	ListLinksByCategory(ctx context.Context, categoryID int64, status catalog.Status) ([]catalog.Link, error)
	ListUserLinks(ctx context.Context, userID int64) ([]catalog.Link, error)
	ListPendingLinks(ctx context.Context, limit int) ([]catalog.Link, error)
	ListLinks(ctx context.Context, status catalog.Status, limit int) ([]catalog.Link, error)
	ModerateLink(ctx context.Context, id int64, status catalog.Status, reason *string, categoryID *int64) error
	SetLinkStatus(ctx context.Context, id int64, status catalog.Status, reason *string, categoryID *int64) error
	UpdateLink(ctx context.Context, id int64, e catalog.LinkEdit) error
	DeleteLink(ctx context.Context, id int64) error

	React(ctx context.Context, linkID, userID int64, reaction string) (bool, error)
	UserReaction(ctx context.Context, linkID, userID int64) (string, error)
	ReactionCounts(ctx context.Context, linkID int64) (map[string]int, error)

	Stats(ctx context.Context) (catalog.Stats, error)
	TopLinks(ctx context.Context, limit int) ([]catalog.Link, error)
	AppendAudit(ctx context.Context, e catalog.AuditEntry) error
	RecentAudit(ctx context.Context, limit int) ([]catalog.AuditEntry, error)
}

// Settings are the hot-reloadable knobs.
type Settings struct {
	LinkFormURL     string
	CategoryFormURL string
	// PublicURL is the API base; when set, links are sent as <PublicURL>/r/<id>
	// so clicks are counted.
	PublicURL string
}

type Bot struct {
	log      logx.Logger
	store    Store
	adapter  kit.Adapter
	router   *router.Router
	settings atomic.Pointer[Settings]
	events   eventbus.Publisher
}

func New(store Store, adapter kit.Adapter, r *router.Router, s Settings, log logx.Logger) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	b := &Bot{log: log, store: store, adapter: adapter, router: r}
	b.Apply(s)
	return b
}

// SetPublisher mirrors audit entries to p. Call before Register.
func (b *Bot) SetPublisher(p eventbus.Publisher) { b.events = p }

// Apply swaps the settings used by subsequent updates.
func (b *Bot) Apply(s Settings) { b.settings.Store(&s) }

func (b *Bot) cfg() Settings { return *b.settings.Load() }

// Register installs the bot's commands, callbacks and Mini App handler on the
// router.
func (b *Bot) Register() {
	b.router.SetRegistry(b.commands(), b.callbacks())
	b.router.HandleWebApp(b.handleWebApp)
}

// notifyOwners sends text to every owner's private chat. Failures are logged
// and do not stop the fan-out.
func (b *Bot) notifyOwners(ctx context.Context, text string, kb *kit.Keyboard) int {
	sent := 0
	for _, id := range b.router.Owners() {
		opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, Keyboard: kb}
		if _, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: id}, text, opt); err != nil {
			b.log.Warn("owner notification failed", logx.UserID(id), logx.Err(err))
			continue
		}
		sent++
	}
	return sent
}

func (b *Bot) audit(ctx context.Context, actor int64, action, target string, meta *string) {
	err := b.store.AppendAudit(ctx, catalog.AuditEntry{ActorID: actor, Action: action, Target: target, Meta: meta})
	if err != nil {
		b.log.Warn("audit append failed", logx.String("action", action), logx.String("target", target), logx.Err(err))
	}
	if b.events != nil {
		b.events.Publish(eventbus.Event{Action: action, Actor: actor, Target: target})
	}
}

func linkTarget(id int64) string     { return "link:" + strconv.FormatInt(id, 10) }
func categoryTarget(id int64) string { return "category:" + strconv.FormatInt(id, 10) }

func htmlOpts() *kit.SendOptions { return &kit.SendOptions{ParseMode: "HTML", DisablePreview: true} }
