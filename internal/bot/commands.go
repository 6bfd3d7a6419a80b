package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"linkbot/internal/catalog"
	kit "linkbot/internal/transport"
	"linkbot/internal/transport/telegram/router"
	"linkbot/pkg/tgui"
)

const (
	topLimit     = 10
	pendingCards = 10
	linksPerPage = 8
	// openLabelRunes bounds the per-link button text on /links pages.
	openLabelRunes = 24
)

func (b *Bot) commands() []router.Command {
	return []router.Command{
		{Name: "start", Description: "open the link forms", Handle: b.handleStart},
		{Name: "categories", Aliases: []string{"cats"}, Description: "list categories", Handle: b.cmdCategories},
		{Name: "links", Description: "links in a category", Usage: "/links <category_id>", Handle: b.cmdLinks},
		{Name: "my", Description: "your submitted links", Handle: b.cmdMy},
		{Name: "top", Description: "most clicked links", Handle: b.cmdTop},
		{Name: "stats", Description: "catalog statistics", Handle: b.cmdStats},
		{Name: "pending", Description: "moderation queue", Access: router.AccessOwnerOnly, Handle: b.cmdPending},
		{Name: "approve", Description: "approve a link", Usage: "/approve <link_id> [category_id]", Access: router.AccessOwnerOnly, Handle: b.cmdApprove},
		{Name: "reject", Description: "reject a link", Usage: "/reject <link_id> [reason]", Access: router.AccessOwnerOnly, Handle: b.cmdReject},
		{Name: "togglecat", Description: "enable or disable a category", Usage: "/togglecat <category_id>", Access: router.AccessOwnerOnly, Handle: b.cmdToggleCategory},
		{Name: "editcat", Description: "rename a category", Usage: "/editcat <category_id> <name|-> [emoji]", Access: router.AccessOwnerOnly, Handle: b.cmdEditCategory},
		{Name: "delcat", Description: "delete a category", Usage: "/delcat <category_id>", Access: router.AccessOwnerOnly, Handle: b.cmdDeleteCategory},
		{Name: "editlink", Description: "edit a link", Usage: "/editlink <link_id> <name|url|desc|cat> <value>", Access: router.AccessOwnerOnly, Handle: b.cmdEditLink},
		{Name: "dellink", Description: "delete a link", Usage: "/dellink <link_id>", Access: router.AccessOwnerOnly, Handle: b.cmdDeleteLink},
		{Name: "reopen", Description: "send a link back to moderation", Usage: "/reopen <link_id>", Access: router.AccessOwnerOnly, Handle: b.cmdReopen},
		{Name: "alllinks", Description: "latest links of any status", Usage: "/alllinks [pending|approved|rejected]", Access: router.AccessOwnerOnly, Handle: b.cmdAllLinks},
		{Name: "audit", Description: "recent admin actions", Usage: "/audit [count]", Access: router.AccessOwnerOnly, Handle: b.cmdAudit},
	}
}

func (b *Bot) cmdCategories(ctx context.Context, req *router.Request) error {
	all := req.Owner && len(req.Args) > 0 && req.Args[0] == "all"
	cats, err := b.store.ListCategories(ctx, !all)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		return req.Reply(ctx, "No categories yet.", nil)
	}
	lines := []string{"📂 <b>Categories</b>"}
	for _, c := range cats {
		line := fmt.Sprintf("%s <code>%d</code> · %d links", esc(c.Label()), c.ID, c.Links)
		if !c.Active {
			line += " (disabled)"
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", "Open one with <code>/links &lt;id&gt;</code>.")
	return req.Reply(ctx, strings.Join(lines, "\n"), htmlOpts())
}

func (b *Bot) cmdLinks(ctx context.Context, req *router.Request) error {
	id, ok := req.ArgInt64(0)
	if !ok {
		return req.Reply(ctx, "Usage: /links <category_id>. See /categories for ids.", nil)
	}
	text, kb, err := b.linksPage(ctx, id, 0, req.Owner)
	if err != nil {
		return err
	}
	opt := htmlOpts()
	opt.Keyboard = kb
	return req.Reply(ctx, text, opt)
}

// cbLinksPage handles "links:page:<category>:<page>".
func (b *Bot) cbLinksPage(ctx context.Context, req *router.Request) error {
	catPart, pagePart, _ := strings.Cut(req.Payload, ":")
	catID, err1 := strconv.ParseInt(catPart, 10, 64)
	page, err2 := strconv.Atoi(pagePart)
	if err1 != nil || err2 != nil {
		return b.adapter.AnswerCallback(ctx, req.CallbackID, "Bad button.")
	}
	text, kb, err := b.linksPage(ctx, catID, page, req.Owner)
	if err != nil {
		return err
	}
	opt := htmlOpts()
	opt.Keyboard = kb
	opt.RemoveKeyboard = kb == nil
	return b.adapter.EditText(ctx, b.cardRef(req), text, opt)
}

// linksPage renders one page of a category's approved links with a button per
// link and prev/next buttons. Unknown or disabled categories render a notice
// instead.
func (b *Bot) linksPage(ctx context.Context, catID int64, page int, owner bool) (string, *kit.Keyboard, error) {
	cat, err := b.store.GetCategory(ctx, catID)
	if errors.Is(err, catalog.ErrNotFound) || (err == nil && !cat.Active && !owner) {
		return "Unknown category. See /categories.", nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	links, err := b.store.ListLinksByCategory(ctx, catID, catalog.StatusApproved)
	if err != nil {
		return "", nil, err
	}
	if len(links) == 0 {
		return esc(cat.Label()) + " has no links yet.", nil, nil
	}

	p := tgui.Paginate(links, page, linksPerPage)
	lines := []string{tgui.B(cat.Label()).String()}
	open := make([]kit.Button, 0, len(p.Items))
	for _, l := range p.Items {
		lines = append(lines, b.formatLinkLine(l))
		open = append(open, kit.Button{Text: tgui.TruncRunes(l.Name, openLabelRunes), Data: tgui.Data("link", "open", l.ID)})
	}
	rows := tgui.Grid(2, open)
	if p.Pages == 1 {
		return strings.Join(lines, "\n"), kit.InlineKeyboard(rows...), nil
	}
	lines = append(lines, "", p.Label())
	var nav []kit.Button
	if p.HasPrev {
		nav = append(nav, kit.Button{Text: "◀️", Data: tgui.Data("links", "page", catID, p.Index-1)})
	}
	if p.HasNext {
		nav = append(nav, kit.Button{Text: "▶️", Data: tgui.Data("links", "page", catID, p.Index+1)})
	}
	return strings.Join(lines, "\n"), kit.InlineKeyboard(append(rows, nav)...), nil
}

func (b *Bot) cmdMy(ctx context.Context, req *router.Request) error {
	links, err := b.store.ListUserLinks(ctx, req.FromID)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return req.Reply(ctx, "You have not submitted any links yet.", nil)
	}
	lines := []string{"🗂 <b>Your links</b>"}
	for _, l := range links {
		line := fmt.Sprintf("%s #%d %s · %s", statusIcon(l.Status), l.ID, esc(l.Name), esc(categoryLabel(l)))
		if l.Status == catalog.StatusRejected && l.RejectionReason != nil {
			line += "\n  <i>" + esc(*l.RejectionReason) + "</i>"
		}
		lines = append(lines, line)
	}
	return req.Reply(ctx, strings.Join(lines, "\n"), htmlOpts())
}

func (b *Bot) cmdTop(ctx context.Context, req *router.Request) error {
	links, err := b.store.TopLinks(ctx, topLimit)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return req.Reply(ctx, "No links yet.", nil)
	}
	lines := []string{"🏆 <b>Top links</b>"}
	for i, l := range links {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, strings.TrimPrefix(b.formatLinkLine(l), "• ")))
	}
	return req.Reply(ctx, strings.Join(lines, "\n"), htmlOpts())
}

func (b *Bot) cmdStats(ctx context.Context, req *router.Request) error {
	st, err := b.store.Stats(ctx)
	if err != nil {
		return err
	}
	return req.Reply(ctx, formatStats(st), htmlOpts())
}

// cmdPending sends one actionable card per pending link, oldest first.
func (b *Bot) cmdPending(ctx context.Context, req *router.Request) error {
	links, err := b.store.ListPendingLinks(ctx, pendingCards)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return req.Reply(ctx, "🎉 Nothing to moderate.", nil)
	}
	for _, l := range links {
		opt := htmlOpts()
		opt.Keyboard = moderationKeyboard(l.ID)
		if err := req.Reply(ctx, formatModerationCard(l), opt); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) cmdToggleCategory(ctx context.Context, req *router.Request) error {
	id, ok := req.ArgInt64(0)
	if !ok {
		return req.Reply(ctx, "Usage: /togglecat <category_id>", nil)
	}
	active, err := b.store.ToggleCategory(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return req.Reply(ctx, "Unknown category.", nil)
	}
	if err != nil {
		return err
	}
	state := "disabled"
	if active {
		state = "enabled"
	}
	b.audit(ctx, req.FromID, "category."+state, categoryTarget(id), nil)
	return req.Reply(ctx, fmt.Sprintf("Category %d %s.", id, state), nil)
}

// SendPendingDigest tells owners how many links wait for moderation, listing
// up to limit of them. Nothing is sent for an empty queue.
func (b *Bot) SendPendingDigest(ctx context.Context, limit int) error {
	st, err := b.store.Stats(ctx)
	if err != nil {
		return err
	}
	if st.Pending == 0 {
		return nil
	}
	links, err := b.store.ListPendingLinks(ctx, limit)
	if err != nil {
		return err
	}
	lines := []string{fmt.Sprintf("⏳ <b>%d link(s) waiting for moderation</b>", st.Pending)}
	for _, l := range links {
		lines = append(lines, fmt.Sprintf("#%d %s · %s · %s", l.ID, esc(l.Name), esc(categoryLabel(l)), esc(author(l))))
	}
	if st.Pending > len(links) {
		lines = append(lines, fmt.Sprintf("…and %d more.", st.Pending-len(links)))
	}
	lines = append(lines, "", "Review with /pending.")
	if b.notifyOwners(ctx, strings.Join(lines, "\n"), nil) == 0 {
		return errors.New("digest: no owner reachable")
	}
	return nil
}
