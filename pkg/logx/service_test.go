package logx

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type captureSender struct {
	mu    sync.Mutex
	lines []string
	got   chan struct{}
}

func (c *captureSender) SendLog(_ context.Context, chatID int64, _ int, text string) error {
	c.mu.Lock()
	c.lines = append(c.lines, text)
	c.mu.Unlock()
	select {
	case c.got <- struct{}{}:
	default:
	}
	return nil
}

func TestFormatTelegramLine(t *testing.T) {
	got := formatTelegramLine([]byte(`{"level":"warn","message":"submission failed","time":"x","comp":"bot","err":"boom"}` + "\n"))
	want := "🟠 submission failed\ncomp: bot\nerr: boom"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := formatTelegramLine([]byte("plain text\n")); got != "plain text" {
		t.Fatalf("non-JSON line = %q", got)
	}
}

func TestServiceFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}}, nil)
	defer svc.Close()

	log.With(String("comp", "test")).Info("hello", Int("n", 3))

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(b)
	for _, want := range []string{`"message":"hello"`, `"comp":"test"`, `"n":3`} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %s", line, want)
		}
	}
}

func TestServiceTelegramSinkRespectsMinLevel(t *testing.T) {
	sender := &captureSender{got: make(chan struct{}, 4)}
	svc, log := New(Config{
		Level:    "debug",
		Telegram: TelegramConfig{Enabled: true, MinLevel: "warn", RatePerSec: 10},
	}, sender)
	defer svc.Close()
	svc.SetTelegramTarget(-100123, 0)

	log.Info("quiet")
	log.Warn("loud")

	select {
	case <-sender.got:
	case <-time.After(2 * time.Second):
		t.Fatalf("telegram sink did not deliver")
	}
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.lines) != 1 || !strings.HasPrefix(sender.lines[0], "🟠 loud") {
		t.Fatalf("unexpected lines: %q", sender.lines)
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatalf("zero logger should report IsZero")
	}
	l.Info("dropped")
	if Nop().IsZero() {
		t.Fatalf("Nop logger should not be zero")
	}
}
