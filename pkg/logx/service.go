package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Telegram TelegramConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// TelegramConfig mirrors log lines at or above MinLevel (default warn) into
// the log group, at most RatePerSec per second. Excess lines are dropped.
type TelegramConfig struct {
	Enabled    bool
	ThreadID   int
	MinLevel   string
	RatePerSec int
}

// Sender posts a plain-text log line to a Telegram chat.
type Sender interface {
	SendLog(ctx context.Context, chatID int64, threadID int, text string) error
}

const (
	defaultLogPath   = "./linkbot.log"
	telegramMaxBytes = 3500
	telegramQueue    = 256
)

// Service owns the root zerolog logger. Apply rebuilds its writers while
// Loggers handed out earlier keep working.
type Service struct {
	root   atomic.Pointer[zerolog.Logger]
	sender Sender

	mu       sync.Mutex
	file     *os.File
	filePath string
	tg       telegramSink

	worker sync.Once
	queue  chan telegramItem
	stop   context.CancelFunc
	wg     sync.WaitGroup
}

// telegramSink is the Telegram writer state, guarded by Service.mu.
type telegramSink struct {
	enabled  bool
	chatID   int64
	threadID int
	minLevel zerolog.Level
	limiter  *rate.Limiter
}

type telegramItem struct {
	chatID   int64
	threadID int
	text     string
}

// New applies cfg and returns the service with its root Logger. sender may be
// nil when Telegram logging is never enabled.
func New(cfg Config, sender Sender) (*Service, Logger) {
	setGlobals()
	s := &Service{sender: sender, queue: make(chan telegramItem, telegramQueue)}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// SetTelegramTarget points the Telegram sink at a chat. chatID 0 mutes it.
func (s *Service) SetTelegramTarget(chatID int64, threadID int) {
	s.mu.Lock()
	s.tg.chatID, s.tg.threadID = chatID, threadID
	s.mu.Unlock()
}

// Close stops the Telegram worker and closes the log file.
func (s *Service) Close() error {
	s.mu.Lock()
	f, stop := s.file, s.stop
	s.file, s.filePath, s.stop = nil, "", nil
	s.mu.Unlock()

	if stop != nil {
		stop()
		s.wg.Wait()
	}
	if f != nil {
		return f.Close()
	}
	return nil
}

// Apply swaps the sinks for cfg. A file that cannot be opened is reported on
// stderr and the previous file, if any, is kept.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rps := max(cfg.Telegram.RatePerSec, 1)
	s.tg.enabled = cfg.Telegram.Enabled && s.sender != nil
	s.tg.minLevel = ParseLevel(cfg.Telegram.MinLevel, zerolog.WarnLevel)
	s.tg.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	if cfg.Telegram.ThreadID != 0 {
		s.tg.threadID = cfg.Telegram.ThreadID
	}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, newConsoleWriter(Stdout()))
	}
	if f := s.swapFile(cfg.File); f != nil {
		writers = append(writers, zerolog.SyncWriter(f))
	}
	if s.tg.enabled {
		s.startWorker()
		writers = append(writers, &telegramWriter{svc: s})
	}
	if len(writers) == 0 {
		writers = append(writers, newConsoleWriter(Stdout()))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

// swapFile returns the file to log to for fc, reopening only when the path
// changes. Callers hold s.mu.
func (s *Service) swapFile(fc FileConfig) *os.File {
	if !fc.Enabled {
		if s.file != nil {
			_ = s.file.Close()
			s.file, s.filePath = nil, ""
		}
		return nil
	}
	path := strings.TrimSpace(fc.Path)
	if path == "" {
		path = defaultLogPath
	}
	if s.file != nil && path == s.filePath {
		return s.file
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logx: open %q: %v\n", path, err)
		return s.file
	}
	if s.file != nil {
		_ = s.file.Close()
	}
	s.file, s.filePath = f, path
	return f
}

func (s *Service) startWorker() {
	s.worker.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.stop = cancel
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case it := <-s.queue:
					_ = s.sender.SendLog(ctx, it.chatID, it.threadID, it.text)
				}
			}
		}()
	})
}

func newConsoleWriter(w io.Writer) io.Writer {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	cw.FormatCaller = func(i any) string {
		s, _ := i.(string)
		return s
	}
	return cw
}

// telegramWriter feeds the worker queue and never blocks the caller.
type telegramWriter struct{ svc *Service }

func (w *telegramWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *telegramWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s := w.svc
	s.mu.Lock()
	tg := s.tg
	s.mu.Unlock()

	if !tg.enabled || tg.chatID == 0 || level < tg.minLevel || !tg.limiter.Allow() {
		return len(p), nil
	}
	if text := formatTelegramLine(p); text != "" {
		select {
		case s.queue <- telegramItem{chatID: tg.chatID, threadID: tg.threadID, text: text}:
		default:
		}
	}
	return len(p), nil
}

var levelIcons = map[string]string{
	"debug": "⚪",
	"info":  "🔵",
	"warn":  "🟠",
	"error": "🔴",
	"fatal": "🔴",
	"panic": "🔴",
}

// formatTelegramLine turns a zerolog JSON line into
//
//	🟠 message
//	comp: bot
//	err: boom
//
// with comp first and the other fields sorted. Non-JSON input is sent as is.
func formatTelegramLine(p []byte) string {
	raw := strings.TrimSpace(string(p))
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return clip(raw, telegramMaxBytes)
	}
	lvl, _ := m[zerolog.LevelFieldName].(string)
	msg, _ := m[zerolog.MessageFieldName].(string)

	var b strings.Builder
	if icon, ok := levelIcons[lvl]; ok {
		b.WriteString(icon + " ")
	}
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName, "comp":
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if _, ok := m["comp"]; ok {
		keys = append([]string{"comp"}, keys...)
	}
	for _, k := range keys {
		b.WriteString("\n" + k + ": " + clip(fmt.Sprint(m[k]), 600))
	}
	return clip(b.String(), telegramMaxBytes)
}

// clip cuts s to at most n bytes on a rune boundary, marking the cut.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - len("…")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

// Stdout is the console sink.
func Stdout() io.Writer { return os.Stdout }
