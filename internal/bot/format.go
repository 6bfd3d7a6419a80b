package bot

import (
	"fmt"
	"strconv"
	"strings"

	"linkbot/internal/catalog"
	"linkbot/pkg/tgui"
)

// maxCardDescription keeps moderation cards readable.
const maxCardDescription = 300

func esc(s string) string { return tgui.Esc(s).String() }

func statusIcon(s catalog.Status) string {
	switch s {
	case catalog.StatusApproved:
		return "✅"
	case catalog.StatusRejected:
		return "❌"
	default:
		return "⏳"
	}
}

// href is where the bot points users for a link: the counting redirect when
// a public API URL is configured, the raw URL otherwise.
func (b *Bot) href(l catalog.Link) string {
	if base := strings.TrimRight(b.cfg().PublicURL, "/"); base != "" {
		return base + "/r/" + strconv.FormatInt(l.ID, 10)
	}
	return l.URL
}

func categoryLabel(l catalog.Link) string {
	if l.CategoryID == nil {
		return "undecided"
	}
	return catalog.Category{Name: l.CategoryName, Emoji: l.CategoryEmoji}.Label()
}

func author(l catalog.Link) string {
	switch {
	case l.AuthorUsername != "":
		return "@" + l.AuthorUsername
	case l.AuthorName != "":
		return l.AuthorName
	case l.UserID != nil:
		return "user " + strconv.FormatInt(*l.UserID, 10)
	}
	return "unknown"
}

// formatLinkLine renders one catalog entry.
func (b *Bot) formatLinkLine(l catalog.Link) string {
	line := "• " + tgui.Link(l.Name, b.href(l)).String()
	if l.Clicks > 0 {
		line += fmt.Sprintf(" (%d 👆)", l.Clicks)
	}
	if l.Description != nil {
		line += "\n  " + tgui.I(*l.Description).String()
	}
	return line
}

// formatModerationCard is the message owners act on.
func formatModerationCard(l catalog.Link) string {
	parts := []tgui.H{
		tgui.H(fmt.Sprintf("%s <b>Link #%d</b>", statusIcon(l.Status), l.ID)),
		tgui.B("Name:") + " " + tgui.Esc(l.Name),
		tgui.B("URL:") + " " + tgui.Esc(l.URL),
		tgui.B("Category:") + " " + tgui.Esc(categoryLabel(l)),
	}
	if l.Description != nil {
		parts = append(parts, tgui.B("Description:")+" "+tgui.Esc(tgui.TruncRunes(*l.Description, maxCardDescription)))
	}
	parts = append(parts, tgui.B("From:")+" "+tgui.Esc(author(l)))
	return tgui.Join("\n", parts...).String()
}

func formatStats(s catalog.Stats) string {
	return strings.Join([]string{
		"📊 <b>Catalog</b>",
		fmt.Sprintf("Users: %d", s.Users),
		fmt.Sprintf("Active categories: %d", s.Categories),
		fmt.Sprintf("Links: %d approved, %d pending, %d rejected", s.Approved, s.Pending, s.Rejected),
		fmt.Sprintf("Clicks: %d", s.Clicks),
		fmt.Sprintf("Reactions: %d", s.Reactions),
	}, "\n")
}

func displayName(username, first string, id int64) string {
	if username != "" {
		return "@" + username
	}
	if first != "" {
		return first
	}
	return strconv.FormatInt(id, 10)
}
