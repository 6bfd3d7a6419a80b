package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"linkbot/internal/catalog"
	"linkbot/internal/transport/telegram/router"
	logx "linkbot/pkg/logx"
)

const (
	allLinksLimit = 20
	auditDefault  = 10
	auditMax      = 50
)

// cmdEditCategory: /editcat <id> <name|-> [emoji]. "-" keeps the name.
func (b *Bot) cmdEditCategory(ctx context.Context, req *router.Request) error {
	id, ok := req.ArgInt64(0)
	if !ok || len(req.Args) < 2 {
		return req.Reply(ctx, "Usage: /editcat <category_id> <name|-> [emoji]", nil)
	}
	var name, emoji *string
	if n := strings.TrimSpace(req.Args[1]); n != "-" && n != "" {
		name = &n
	}
	if len(req.Args) > 2 {
		e := strings.TrimSpace(req.Args[2])
		emoji = &e
	}
	if name == nil && emoji == nil {
		return req.Reply(ctx, "Nothing to change.", nil)
	}
	err := b.store.UpdateCategory(ctx, id, name, emoji)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return req.Reply(ctx, "Unknown category.", nil)
	case errors.Is(err, catalog.ErrDuplicate):
		return req.Reply(ctx, "A category with that name already exists.", nil)
	case err != nil:
		return err
	}
	b.audit(ctx, req.FromID, "category.edit", categoryTarget(id), nil)
	c, err := b.store.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	return req.Reply(ctx, "Category updated: "+esc(c.Label()), htmlOpts())
}

// cmdDeleteCategory: /delcat <id>. Its links stay and become undecided.
func (b *Bot) cmdDeleteCategory(ctx context.Context, req *router.Request) error {
	id, ok := req.ArgInt64(0)
	if !ok {
		return req.Reply(ctx, "Usage: /delcat <category_id>", nil)
	}
	c, err := b.store.GetCategory(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return req.Reply(ctx, "Unknown category.", nil)
	}
	if err != nil {
		return err
	}
	if err := b.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	meta := c.Label()
	b.audit(ctx, req.FromID, "category.delete", categoryTarget(id), &meta)
	return req.Reply(ctx, fmt.Sprintf("Category %s deleted. Its links are now undecided.", esc(c.Label())), htmlOpts())
}

// cmdEditLink: /editlink <id> <name|url|desc|cat> <value...>
func (b *Bot) cmdEditLink(ctx context.Context, req *router.Request) error {
	const usage = "Usage: /editlink <link_id> <name|url|desc|cat> <value>"
	id, ok := req.ArgInt64(0)
	if !ok || len(req.Args) < 2 {
		return req.Reply(ctx, usage, nil)
	}
	field := strings.ToLower(req.Args[1])
	value := strings.TrimSpace(strings.Join(req.Args[2:], " "))

	var e catalog.LinkEdit
	switch field {
	case "name":
		if value == "" {
			return req.Reply(ctx, "Name cannot be empty.", nil)
		}
		e.Name = &value
	case "url":
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return req.Reply(ctx, "URL must start with http:// or https://", nil)
		}
		e.URL = &value
	case "desc":
		e.Description = &value
	case "cat":
		c, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return req.Reply(ctx, "Category id must be a number, 0 for undecided.", nil)
		}
		e.CategoryID = &c
	default:
		return req.Reply(ctx, usage, nil)
	}

	err := b.store.UpdateLink(ctx, id, e)
	if errors.Is(err, catalog.ErrNotFound) {
		if e.CategoryID != nil && *e.CategoryID != 0 {
			if _, gerr := b.store.GetCategory(ctx, *e.CategoryID); errors.Is(gerr, catalog.ErrNotFound) {
				return req.Reply(ctx, "Unknown category.", nil)
			}
		}
		return b.answerLookup(ctx, req, err)
	}
	if err != nil {
		return err
	}
	b.audit(ctx, req.FromID, "link.edit", linkTarget(id), &field)
	l, err := b.store.GetLink(ctx, id)
	if err != nil {
		return err
	}
	return req.Reply(ctx, formatModerationCard(l), htmlOpts())
}

// cmdDeleteLink: /dellink <id>
func (b *Bot) cmdDeleteLink(ctx context.Context, req *router.Request) error {
	id, ok := req.ArgInt64(0)
	if !ok {
		return req.Reply(ctx, "Usage: /dellink <link_id>", nil)
	}
	if err := b.store.DeleteLink(ctx, id); err != nil {
		return b.answerLookup(ctx, req, err)
	}
	b.audit(ctx, req.FromID, "link.delete", linkTarget(id), nil)
	return req.Reply(ctx, fmt.Sprintf("Link #%d deleted.", id), nil)
}

// cmdReopen: /reopen <id> puts a decided link back in the moderation queue.
func (b *Bot) cmdReopen(ctx context.Context, req *router.Request) error {
	id, ok := req.ArgInt64(0)
	if !ok {
		return req.Reply(ctx, "Usage: /reopen <link_id>", nil)
	}
	l, err := b.store.GetLink(ctx, id)
	if err != nil {
		return b.answerLookup(ctx, req, err)
	}
	if l.Status == catalog.StatusPending {
		return req.Reply(ctx, fmt.Sprintf("Link #%d is already pending.", id), nil)
	}
	if err := b.store.SetLinkStatus(ctx, id, catalog.StatusPending, nil, nil); err != nil {
		return b.answerLookup(ctx, req, err)
	}
	b.audit(ctx, req.FromID, "link.reopen", linkTarget(id), nil)
	l.Status = catalog.StatusPending
	opt := htmlOpts()
	opt.Keyboard = moderationKeyboard(id)
	return req.Reply(ctx, formatModerationCard(l), opt)
}

// cmdAllLinks: /alllinks [status] lists the newest links regardless of
// category.
func (b *Bot) cmdAllLinks(ctx context.Context, req *router.Request) error {
	var status catalog.Status
	if len(req.Args) > 0 {
		status = catalog.Status(strings.ToLower(req.Args[0]))
		if !status.Valid() {
			return req.Reply(ctx, "Usage: /alllinks [pending|approved|rejected]", nil)
		}
	}
	links, err := b.store.ListLinks(ctx, status, allLinksLimit)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return req.Reply(ctx, "No links.", nil)
	}
	lines := []string{"🗃 <b>Latest links</b>"}
	for _, l := range links {
		lines = append(lines, fmt.Sprintf("%s #%d %s · %s · %s", statusIcon(l.Status), l.ID, esc(l.Name), esc(categoryLabel(l)), esc(author(l))))
	}
	return req.Reply(ctx, strings.Join(lines, "\n"), htmlOpts())
}

// cmdAudit: /audit [n] shows the newest audit entries.
func (b *Bot) cmdAudit(ctx context.Context, req *router.Request) error {
	n := auditDefault
	if v, ok := req.ArgInt64(0); ok && v > 0 {
		n = int(min(v, auditMax))
	}
	entries, err := b.store.RecentAudit(ctx, n)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return req.Reply(ctx, "Audit log is empty.", nil)
	}
	names := map[int64]string{}
	lines := []string{"📜 <b>Audit</b>"}
	for _, e := range entries {
		name, ok := names[e.ActorID]
		if !ok {
			name = b.actorName(ctx, req, e.ActorID)
			names[e.ActorID] = name
		}
		line := fmt.Sprintf("%s %s %s %s", e.At.Format("01-02 15:04"), esc(name), esc(e.Action), esc(e.Target))
		if e.Meta != nil {
			line += " <i>" + esc(*e.Meta) + "</i>"
		}
		lines = append(lines, line)
	}
	return req.Reply(ctx, strings.Join(lines, "\n"), htmlOpts())
}

func (b *Bot) actorName(ctx context.Context, req *router.Request, id int64) string {
	u, err := b.store.GetUser(ctx, id)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			req.Logger.Warn("audit actor lookup failed", logx.UserID(id), logx.Err(err))
		}
		return strconv.FormatInt(id, 10)
	}
	var username, first string
	if u.Username != nil {
		username = *u.Username
	}
	if u.FirstName != nil {
		first = *u.FirstName
	}
	return displayName(username, first, id)
}
