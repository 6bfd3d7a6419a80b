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
	logx "linkbot/pkg/logx"
	"linkbot/pkg/tgui"
)

func (b *Bot) callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Namespace: "mod", Action: "approve", Access: router.AccessOwnerOnly, Handle: b.cbApprove},
		{Namespace: "mod", Action: "reject", Access: router.AccessOwnerOnly, Handle: b.cbReject},
		{Namespace: "mod", Action: "cat", Access: router.AccessOwnerOnly, Handle: b.cbAssignCategory},
		{Namespace: "links", Action: "page", Handle: b.cbLinksPage},
		{Namespace: "link", Action: "open", Handle: b.cbOpenLink},
		{Namespace: "react", Action: "set", Handle: b.cbReact},
	}
}

func (b *Bot) cardRef(req *router.Request) kit.MessageRef {
	return kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: req.MessageID}
}

// cbApprove approves a pending link. An uncategorized link first gets a
// category picker.
func (b *Bot) cbApprove(ctx context.Context, req *router.Request) error {
	id, err := strconv.ParseInt(req.Payload, 10, 64)
	if err != nil {
		return b.adapter.AnswerCallback(ctx, req.CallbackID, "Bad button.")
	}
	l, err := b.store.GetLink(ctx, id)
	if err != nil {
		return b.answerLookup(ctx, req, err)
	}
	if l.Status != catalog.StatusPending {
		return b.showDecided(ctx, req, l)
	}
	if l.CategoryID == nil {
		kb, err := b.categoryPicker(ctx, id)
		if err != nil {
			return err
		}
		return b.adapter.EditText(ctx, b.cardRef(req), formatModerationCard(l)+"\n\nPick a category to approve:", &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, Keyboard: kb})
	}
	return b.decide(ctx, req, id, catalog.StatusApproved, nil, nil)
}

func (b *Bot) cbReject(ctx context.Context, req *router.Request) error {
	id, err := strconv.ParseInt(req.Payload, 10, 64)
	if err != nil {
		return b.adapter.AnswerCallback(ctx, req.CallbackID, "Bad button.")
	}
	return b.decide(ctx, req, id, catalog.StatusRejected, nil, nil)
}

// cbAssignCategory handles "mod:cat:<link>:<category>" from the picker.
func (b *Bot) cbAssignCategory(ctx context.Context, req *router.Request) error {
	linkPart, catPart, ok := strings.Cut(req.Payload, ":")
	id, err1 := strconv.ParseInt(linkPart, 10, 64)
	catID, err2 := strconv.ParseInt(catPart, 10, 64)
	if !ok || err1 != nil || err2 != nil {
		return b.adapter.AnswerCallback(ctx, req.CallbackID, "Bad button.")
	}
	if _, err := b.store.GetCategory(ctx, catID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			req.Logger.Debug("picker category vanished", logx.LinkID(id), logx.CategoryID(catID))
			return b.adapter.AnswerCallback(ctx, req.CallbackID, "That category no longer exists.")
		}
		return err
	}
	return b.decide(ctx, req, id, catalog.StatusApproved, nil, &catID)
}

func (b *Bot) categoryPicker(ctx context.Context, linkID int64) (*kit.Keyboard, error) {
	cats, err := b.store.ListCategories(ctx, true)
	if err != nil {
		return nil, err
	}
	buttons := make([]kit.Button, 0, len(cats))
	for _, c := range cats {
		buttons = append(buttons, kit.Button{Text: c.Label(), Data: tgui.Data("mod", "cat", linkID, c.ID)})
	}
	rows := append(tgui.Grid(2, buttons), kit.Row(kit.Button{Text: "❌ Reject", Data: tgui.Data("mod", "reject", linkID)}))
	return kit.InlineKeyboard(rows...), nil
}

func (b *Bot) answerLookup(ctx context.Context, req *router.Request, err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		if req.CallbackID != "" {
			return b.adapter.AnswerCallback(ctx, req.CallbackID, "That link no longer exists.")
		}
		return req.Reply(ctx, "That link no longer exists.", nil)
	}
	return err
}

// showDecided refreshes a stale card after someone else moderated the link.
func (b *Bot) showDecided(ctx context.Context, req *router.Request, l catalog.Link) error {
	_ = b.adapter.AnswerCallback(ctx, req.CallbackID, "Already "+string(l.Status)+".")
	return b.adapter.EditText(ctx, b.cardRef(req), formatModerationCard(l), &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, RemoveKeyboard: true})
}

// decide applies a moderation decision from a button (req.CallbackID set) or
// a command, records it and tells the author.
func (b *Bot) decide(ctx context.Context, req *router.Request, id int64, status catalog.Status, reason *string, catID *int64) error {
	err := b.store.ModerateLink(ctx, id, status, reason, catID)
	switch {
	case errors.Is(err, catalog.ErrModerated):
		l, gerr := b.store.GetLink(ctx, id)
		if gerr != nil {
			return gerr
		}
		if req.CallbackID != "" {
			return b.showDecided(ctx, req, l)
		}
		return req.Reply(ctx, fmt.Sprintf("Link #%d is already %s.", id, l.Status), nil)
	case err != nil:
		return b.answerLookup(ctx, req, err)
	}

	action := "link.approve"
	if status == catalog.StatusRejected {
		action = "link.reject"
	}
	b.audit(ctx, req.FromID, action, linkTarget(id), reason)

	l, err := b.store.GetLink(ctx, id)
	if err != nil {
		return err
	}
	verdict := fmt.Sprintf("%s %s by %s", statusIcon(l.Status), l.Status, esc(displayName(req.FromUsername, req.FromFirstName, req.FromID)))
	if reason != nil {
		verdict += "\nReason: " + esc(*reason)
	}
	card := formatModerationCard(l) + "\n\n" + verdict
	if req.CallbackID != "" {
		_ = b.adapter.AnswerCallback(ctx, req.CallbackID, "Link "+string(l.Status)+".")
		if err := b.adapter.EditText(ctx, b.cardRef(req), card, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, RemoveKeyboard: true}); err != nil {
			req.Logger.Warn("moderation card edit failed", logx.Err(err))
		}
	} else if err := req.Reply(ctx, card, htmlOpts()); err != nil {
		return err
	}
	b.notifyAuthor(ctx, req.FromID, l)
	return nil
}

func (b *Bot) notifyAuthor(ctx context.Context, moderator int64, l catalog.Link) {
	if l.UserID == nil || *l.UserID == moderator {
		return
	}
	var text string
	switch l.Status {
	case catalog.StatusApproved:
		text = fmt.Sprintf("✅ Your link <b>%s</b> was approved and is now listed in %s.", esc(l.Name), esc(categoryLabel(l)))
	case catalog.StatusRejected:
		text = fmt.Sprintf("❌ Your link <b>%s</b> was not accepted.", esc(l.Name))
		if l.RejectionReason != nil {
			text += "\nReason: " + esc(*l.RejectionReason)
		}
	default:
		return
	}
	if _, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: *l.UserID}, text, htmlOpts()); err != nil {
		b.log.Warn("author notification failed", logx.LinkID(l.ID), logx.Err(err))
	}
}

// cmdApprove: /approve <link_id> [category_id]
func (b *Bot) cmdApprove(ctx context.Context, req *router.Request) error {
	id, ok := req.ArgInt64(0)
	if !ok {
		return req.Reply(ctx, "Usage: /approve <link_id> [category_id]", nil)
	}
	var catID *int64
	if len(req.Args) > 1 {
		c, ok := req.ArgInt64(1)
		if !ok {
			return req.Reply(ctx, "Category id must be a number.", nil)
		}
		if _, err := b.store.GetCategory(ctx, c); errors.Is(err, catalog.ErrNotFound) {
			return req.Reply(ctx, "Unknown category.", nil)
		} else if err != nil {
			return err
		}
		catID = &c
	} else {
		l, err := b.store.GetLink(ctx, id)
		if err != nil {
			return b.answerLookup(ctx, req, err)
		}
		if l.Status == catalog.StatusPending && l.CategoryID == nil {
			return req.Reply(ctx, fmt.Sprintf("Link #%d has no category. Use /approve %d <category_id>.", id, id), nil)
		}
	}
	return b.decide(ctx, req, id, catalog.StatusApproved, nil, catID)
}

// cmdReject: /reject <link_id> [reason...]
func (b *Bot) cmdReject(ctx context.Context, req *router.Request) error {
	id, ok := req.ArgInt64(0)
	if !ok {
		return req.Reply(ctx, "Usage: /reject <link_id> [reason]", nil)
	}
	var reason *string
	if r := strings.TrimSpace(strings.Join(req.Args[1:], " ")); r != "" {
		reason = &r
	}
	return b.decide(ctx, req, id, catalog.StatusRejected, reason, nil)
}
