package adapter

import (
	"strings"
	"testing"
	"unicode/utf8"

	kit "linkbot/internal/transport"
	logx "linkbot/pkg/logx"
)

func TestSplitTextShort(t *testing.T) {
	got := splitText("hello", 10, "")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	s := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	got := splitText(s, 12, "")
	if len(got) != 2 || got[0] != strings.Repeat("a", 8) || got[1] != strings.Repeat("b", 8) {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTextKeepsHTMLTagsWhole(t *testing.T) {
	s := "xxxxxxx<b>bold</b>"
	got := splitText(s, 9, "HTML")
	if got[0] != "xxxxxxx" {
		t.Fatalf("first chunk = %q", got[0])
	}
	if strings.Join(got, "") != s {
		t.Fatalf("chunks lost text: %q", got)
	}
}

func TestSplitTextRunes(t *testing.T) {
	s := strings.Repeat("é", 25)
	got := splitText(s, 10, "")
	if len(got) != 3 {
		t.Fatalf("chunks = %d", len(got))
	}
	for _, c := range got {
		if len([]rune(c)) > 10 {
			t.Fatalf("chunk too long: %q", c)
		}
	}
}

func TestToMarkupInline(t *testing.T) {
	rm := toMarkup(kit.InlineKeyboard(kit.Row(
		kit.Button{Text: "Approve", Data: "mod:approve:7"},
		kit.Button{Text: "Open", URL: "https://example.org"},
	)))
	if rm == nil || len(rm.InlineKeyboard) != 1 || len(rm.InlineKeyboard[0]) != 2 {
		t.Fatalf("markup = %+v", rm)
	}
	if b := rm.InlineKeyboard[0][0]; b.Data != "mod:approve:7" || b.Unique != "" {
		t.Fatalf("inline data must be sent verbatim, got %+v", b)
	}
	if rm.ReplyKeyboard != nil {
		t.Fatalf("inline markup must not carry a reply keyboard")
	}
}

func TestToMarkupReplyWebApp(t *testing.T) {
	rm := toMarkup(kit.ReplyKeyboard(kit.Row(kit.Button{Text: "Submit link", WebAppURL: "https://x.org/app"})))
	if rm == nil || !rm.ResizeKeyboard || len(rm.ReplyKeyboard) != 1 {
		t.Fatalf("markup = %+v", rm)
	}
	b := rm.ReplyKeyboard[0][0]
	if b.WebApp == nil || b.WebApp.URL != "https://x.org/app" {
		t.Fatalf("web app button = %+v", b)
	}
	if toMarkup(nil) != nil || toMarkup(&kit.Keyboard{}) != nil {
		t.Fatalf("empty keyboards should produce no markup")
	}
}

func TestToCommands(t *testing.T) {
	got := toCommands([]kit.BotCommand{
		{Command: "/start", Description: "Open the menu"},
		{Command: " "},
		{Command: "help"},
	})
	if len(got) != 2 || got[0].Text != "start" || got[1].Description != "help" {
		t.Fatalf("commands = %+v", got)
	}
}

func TestNewRejectsEmptyToken(t *testing.T) {
	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestToCommandsClipsDescription(t *testing.T) {
	got := toCommands([]kit.BotCommand{{Command: "links", Description: strings.Repeat("é", 200)}})
	d := got[0].Description
	if len(d) > maxMenuDescBytes || !utf8.ValidString(d) {
		t.Fatalf("description not clipped on a rune boundary: %d bytes", len(d))
	}
}

func TestEmitDropsWhenConsumerIsFull(t *testing.T) {
	a, err := New(Config{Token: "123:abc", Offline: true}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.emit(kit.Update{Kind: kit.UpdateMessage})
	if a.dropped.Load() != 0 {
		t.Fatalf("updates before Start must be ignored, not counted")
	}

	out := make(chan kit.Update, 1)
	a.mu.Lock()
	a.out = out
	a.mu.Unlock()
	a.emit(kit.Update{Kind: kit.UpdateMessage})
	a.emit(kit.Update{Kind: kit.UpdateCallback})
	if len(out) != 1 || a.dropped.Load() != 1 {
		t.Fatalf("queued = %d dropped = %d", len(out), a.dropped.Load())
	}
}
