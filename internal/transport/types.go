// Package transport holds the chat-platform neutral types the bot works with.
// The Telegram implementation lives in transport/telegram/adapter.
package transport

import "context"

type UpdateKind string

const (
	UpdateMessage    UpdateKind = "message"
	UpdateCallback   UpdateKind = "callback"
	UpdateWebAppData UpdateKind = "web_app_data"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID            int
	ChatID        int64
	ThreadID      int // forum topic thread id (0 if none)
	FromID        int64
	FromUsername  string
	FromFirstName string
	Text          string
	IsGroup       bool

	// WebAppData is the string a Mini App passed to sendData. Set only for
	// UpdateWebAppData.
	WebAppData string
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

// Button is one keyboard button. Exactly one of Data, URL or WebAppURL is set.
type Button struct {
	Text      string
	Data      string // inline callback payload
	URL       string
	WebAppURL string
}

// Keyboard is either an inline keyboard attached to a message or a reply
// keyboard replacing the user's input area.
type Keyboard struct {
	Inline bool
	Rows   [][]Button
	// Resize applies to reply keyboards only.
	Resize bool
}

func InlineKeyboard(rows ...[]Button) *Keyboard { return &Keyboard{Inline: true, Rows: rows} }

func ReplyKeyboard(rows ...[]Button) *Keyboard { return &Keyboard{Rows: rows, Resize: true} }

func Row(buttons ...Button) []Button { return buttons }

type SendOptions struct {
	ParseMode      string // "HTML" or ""
	DisablePreview bool
	Keyboard       *Keyboard
	// RemoveKeyboard clears EditText's inline keyboard.
	RemoveKeyboard bool
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is implemented by adapters that can publish the command
// menu shown by the client.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
