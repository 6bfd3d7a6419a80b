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

// cbOpenLink handles "link:open:<id>" from a /links page and sends the link
// as its own card with reaction buttons.
func (b *Bot) cbOpenLink(ctx context.Context, req *router.Request) error {
	id, err := strconv.ParseInt(req.Payload, 10, 64)
	if err != nil {
		return b.adapter.AnswerCallback(ctx, req.CallbackID, "Bad button.")
	}
	l, err := b.store.GetLink(ctx, id)
	if err == nil && l.Status != catalog.StatusApproved {
		err = catalog.ErrNotFound
	}
	if err != nil {
		return b.answerLookup(ctx, req, err)
	}
	text, kb, err := b.reactionCard(ctx, l, req.FromID)
	if err != nil {
		return err
	}
	opt := htmlOpts()
	opt.Keyboard = kb
	return req.Reply(ctx, text, opt)
}

// cbReact handles "react:set:<link>:<index>". Pressing the reaction the user
// already left takes it back.
func (b *Bot) cbReact(ctx context.Context, req *router.Request) error {
	linkPart, idxPart, ok := strings.Cut(req.Payload, ":")
	id, err1 := strconv.ParseInt(linkPart, 10, 64)
	idx, err2 := strconv.Atoi(idxPart)
	if !ok || err1 != nil || err2 != nil || idx < 0 || idx >= len(catalog.Reactions) {
		return b.adapter.AnswerCallback(ctx, req.CallbackID, "Bad button.")
	}
	l, err := b.store.GetLink(ctx, id)
	if err == nil && l.Status != catalog.StatusApproved {
		err = catalog.ErrNotFound
	}
	if err != nil {
		return b.answerLookup(ctx, req, err)
	}
	reaction := catalog.Reactions[idx]
	set, err := b.store.React(ctx, id, req.FromID, reaction)
	if errors.Is(err, catalog.ErrNotFound) {
		return b.answerLookup(ctx, req, err)
	}
	if err != nil {
		return err
	}
	answer := "Reaction removed."
	if set {
		answer = reaction + " saved."
	}
	_ = b.adapter.AnswerCallback(ctx, req.CallbackID, answer)

	text, kb, err := b.reactionCard(ctx, l, req.FromID)
	if err != nil {
		return err
	}
	opt := htmlOpts()
	opt.Keyboard = kb
	if err := b.adapter.EditText(ctx, b.cardRef(req), text, opt); err != nil {
		req.Logger.Warn("reaction card edit failed", logx.LinkID(id), logx.Err(err))
	}
	return nil
}

// reactionCard renders a link with one button per reaction. Counts come
// from every user; the viewer's own reaction is marked.
func (b *Bot) reactionCard(ctx context.Context, l catalog.Link, viewer int64) (string, *kit.Keyboard, error) {
	counts, err := b.store.ReactionCounts(ctx, l.ID)
	if err != nil {
		return "", nil, err
	}
	mine, err := b.store.UserReaction(ctx, l.ID, viewer)
	if err != nil {
		return "", nil, err
	}
	buttons := make([]kit.Button, 0, len(catalog.Reactions))
	for i, r := range catalog.Reactions {
		label := r
		if n := counts[r]; n > 0 {
			label += " " + strconv.Itoa(n)
		}
		if r == mine {
			label = "· " + label + " ·"
		}
		buttons = append(buttons, kit.Button{Text: label, Data: tgui.Data("react", "set", l.ID, i)})
	}
	text := b.formatLinkLine(l) + "\n" + fmt.Sprintf("%s · %s", esc(categoryLabel(l)), esc(author(l)))
	return text, kit.InlineKeyboard(buttons), nil
}
