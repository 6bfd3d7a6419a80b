package bot

import (
	"context"
	"errors"
	"fmt"

	"linkbot/internal/catalog"
	"linkbot/internal/miniapp"
	kit "linkbot/internal/transport"
	"linkbot/internal/transport/telegram/router"
	logx "linkbot/pkg/logx"
	"linkbot/pkg/tgui"
)

func role(owner bool) string {
	if owner {
		return "owner"
	}
	return "user"
}

func (b *Bot) touchUser(ctx context.Context, req *router.Request) {
	if err := b.store.UpsertUser(ctx, req.FromID, req.FromUsername, req.FromFirstName, role(req.Owner)); err != nil {
		req.Logger.Warn("user upsert failed", logx.UserID(req.FromID), logx.Err(err))
	}
}

// startKeyboard holds the Mini App buttons. Only reply-keyboard WebApp buttons
// can send data back, and only in private chats.
func (b *Bot) startKeyboard(owner bool) *kit.Keyboard {
	s := b.cfg()
	var row []kit.Button
	if s.LinkFormURL != "" {
		row = append(row, kit.Button{Text: "🔗 Submit link", WebAppURL: s.LinkFormURL})
	}
	if owner && s.CategoryFormURL != "" {
		row = append(row, kit.Button{Text: "➕ Add category", WebAppURL: s.CategoryFormURL})
	}
	if len(row) == 0 {
		return nil
	}
	return kit.ReplyKeyboard(row)
}

func (b *Bot) handleStart(ctx context.Context, req *router.Request) error {
	b.touchUser(ctx, req)
	if req.IsGroup {
		return req.Reply(ctx, "Open a private chat with me to submit links. Browse with /categories.", nil)
	}
	text := fmt.Sprintf("👋 Hi %s!\n\nBrowse the catalog with /categories or the most clicked links with /top.",
		esc(displayName(req.FromUsername, req.FromFirstName, req.FromID)))
	kb := b.startKeyboard(req.Owner)
	if kb != nil {
		text += "\nUse the button below to suggest a link."
	}
	opt := htmlOpts()
	opt.Keyboard = kb
	return req.Reply(ctx, text, opt)
}

// handleWebApp receives Mini App submissions. The payload is validated again
// because the client is not trusted.
func (b *Bot) handleWebApp(ctx context.Context, req *router.Request) error {
	p, err := miniapp.DecodePayload([]byte(req.Payload))
	if err != nil {
		_ = req.Reply(ctx, "Could not read the form data. Please try again.", nil)
		return fmt.Errorf("web app data: %w", err)
	}
	if err := p.Validate(); err != nil {
		var ve *miniapp.ValidationError
		if errors.As(err, &ve) {
			return req.Reply(ctx, ve.Message, nil)
		}
		return err
	}
	b.touchUser(ctx, req)

	switch p := p.(type) {
	case *miniapp.AddCategoryPayload:
		b.checkSender(req, p.UserID)
		return b.addCategory(ctx, req, p)
	case *miniapp.SubmitLinkPayload:
		b.checkSender(req, p.UserID)
		return b.submitLink(ctx, req, p)
	}
	return fmt.Errorf("web app data: unhandled action %q", p.Action())
}

// checkSender logs a payload user id that disagrees with the chat sender. The
// chat sender is authoritative.
func (b *Bot) checkSender(req *router.Request, claimed *int64) {
	if claimed != nil && *claimed != req.FromID {
		req.Logger.Warn("payload user id does not match sender", logx.Int64("claimed", *claimed))
	}
}

func (b *Bot) addCategory(ctx context.Context, req *router.Request, p *miniapp.AddCategoryPayload) error {
	if !req.Owner {
		return req.Reply(ctx, "Only owners can add categories.", nil)
	}
	existing, err := b.store.ListCategories(ctx, false)
	if err != nil {
		_ = req.Reply(ctx, miniapp.MsgAddCategoryFailed, nil)
		return err
	}
	id, err := b.store.AddCategory(ctx, p.Name, p.Emoji, len(existing))
	if errors.Is(err, catalog.ErrDuplicate) {
		return req.Reply(ctx, "A category with that name already exists.", nil)
	}
	if err != nil {
		_ = req.Reply(ctx, miniapp.MsgAddCategoryFailed, nil)
		return err
	}
	b.audit(ctx, req.FromID, "category.add", categoryTarget(id), &p.Name)
	label := catalog.Category{Name: p.Name, Emoji: p.Emoji}.Label()
	return req.Reply(ctx, fmt.Sprintf("✅ Category <b>%s</b> added (id %d).", esc(label), id), htmlOpts())
}

func (b *Bot) submitLink(ctx context.Context, req *router.Request, p *miniapp.SubmitLinkPayload) error {
	var catID *int64
	if !p.Undecided() {
		cat, err := b.store.GetCategory(ctx, p.CategoryID)
		if errors.Is(err, catalog.ErrNotFound) || (err == nil && !cat.Active) {
			return req.Reply(ctx, "That category is not available. Pick another one.", nil)
		}
		if err != nil {
			_ = req.Reply(ctx, miniapp.MsgSubmitLinkFailed, nil)
			return err
		}
		catID = &cat.ID
	}

	// Owner links skip moderation unless a category still has to be chosen.
	status := catalog.StatusPending
	if req.Owner && catID != nil {
		status = catalog.StatusApproved
	}
	uid := req.FromID
	id, err := b.store.AddLink(ctx, catalog.NewLink{
		CategoryID:  catID,
		UserID:      &uid,
		Name:        p.Name,
		URL:         p.URL,
		Description: p.Description,
		Status:      status,
	})
	if err != nil {
		_ = req.Reply(ctx, miniapp.MsgSubmitLinkFailed, nil)
		return err
	}
	b.audit(ctx, req.FromID, "link.submit", linkTarget(id), nil)

	if status == catalog.StatusApproved {
		return req.Reply(ctx, fmt.Sprintf("✅ Link #%d published.", id), nil)
	}

	if err := req.Reply(ctx, "📨 Thanks! Your link was sent for moderation.", nil); err != nil {
		req.Logger.Warn("submit ack failed", logx.Err(err))
	}
	l, err := b.store.GetLink(ctx, id)
	if err != nil {
		return fmt.Errorf("load link %d for moderation: %w", id, err)
	}
	if b.notifyOwners(ctx, "🆕 New link for moderation\n\n"+formatModerationCard(l), moderationKeyboard(id)) == 0 {
		req.Logger.Warn("no owner received the moderation request", logx.LinkID(id))
	}
	return nil
}

func moderationKeyboard(id int64) *kit.Keyboard {
	return kit.InlineKeyboard(kit.Row(
		kit.Button{Text: "✅ Approve", Data: tgui.Data("mod", "approve", id)},
		kit.Button{Text: "❌ Reject", Data: tgui.Data("mod", "reject", id)},
	))
}
