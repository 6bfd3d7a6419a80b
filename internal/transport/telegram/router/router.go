// Package router dispatches chat updates to commands, inline-button callbacks
// and Mini App submissions on a bounded worker pool.
package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "linkbot/internal/runtime/supervisor"
	kit "linkbot/internal/transport"
	logx "linkbot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	// Hidden commands work but are left out of /help and the client menu.
	Hidden  bool
	Timeout time.Duration
	Handle  HandlerFunc
}

// CallbackRoute matches inline-button data "<namespace>:<action>[:<payload>]".
type CallbackRoute struct {
	Namespace string
	Action    string
	Access    Access
	Timeout   time.Duration
	Handle    HandlerFunc
}

// Request is what a handler sees of one update.
type Request struct {
	Kind          kit.UpdateKind
	Chat          kit.ChatTarget
	MessageID     int
	FromID        int64
	FromUsername  string
	FromFirstName string
	IsGroup       bool
	Owner         bool

	Command string
	Args    []string
	// Payload is the callback payload or the raw Mini App data.
	Payload    string
	CallbackID string

	ReqID   string
	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply sends text to the chat the update came from.
func (r *Request) Reply(ctx context.Context, text string, opt *kit.SendOptions) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, opt)
	return err
}

// ArgInt64 parses positional argument i.
func (r *Request) ArgInt64(i int) (int64, bool) {
	if i >= len(r.Args) {
		return 0, false
	}
	v, err := strconv.ParseInt(r.Args[i], 10, 64)
	return v, err == nil
}

type Router struct {
	log     logx.Logger
	adapter kit.Adapter

	mu        sync.RWMutex
	commands  []Command
	byName    map[string]*Command
	callbacks map[string]CallbackRoute
	webApp    HandlerFunc
	owners    []int64

	jobs chan func()

	runMu sync.Mutex
	sup   *rtsup.Supervisor
}

func New(log logx.Logger, adapter kit.Adapter, owners []int64) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		log:       log,
		adapter:   adapter,
		byName:    map[string]*Command{},
		callbacks: map[string]CallbackRoute{},
		jobs:      make(chan func(), 256),
	}
	r.SetOwners(owners)
	return r
}

// SetOwners replaces the owner list. Safe during hot reload.
func (r *Router) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	r.mu.Lock()
	r.owners = cp
	r.mu.Unlock()
}

func (r *Router) IsOwner(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.owners, id)
}

// Owners returns a copy of the owner list.
func (r *Router) Owners() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]int64(nil), r.owners...)
}

// SetRegistry installs the command and callback tables. /help is added
// automatically.
func (r *Router) SetRegistry(cmds []Command, cbs []CallbackRoute) {
	cmds = append(slices.Clone(cmds), Command{
		Name:        "help",
		Description: "list commands",
		Usage:       "/help [command]",
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, r.helpText(req.Args, req.Owner), &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
		},
	})

	list := make([]Command, 0, len(cmds))
	byName := map[string]*Command{}
	for _, c := range cmds {
		name := sanitizeCommand(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		list = append(list, c)
	}
	for i := range list {
		c := &list[i]
		byName[c.Name] = c
		for _, a := range c.Aliases {
			if a = sanitizeCommand(a); a != "" {
				if _, taken := byName[a]; !taken {
					byName[a] = c
				}
			}
		}
	}

	cb := map[string]CallbackRoute{}
	for _, rt := range cbs {
		ns, act := strings.TrimSpace(rt.Namespace), strings.TrimSpace(rt.Action)
		if ns == "" || act == "" || rt.Handle == nil {
			continue
		}
		cb[ns+":"+act] = rt
	}

	r.mu.Lock()
	r.commands, r.byName, r.callbacks = list, byName, cb
	r.mu.Unlock()
}

// HandleWebApp installs the handler for Mini App data. Access checks are the
// handler's business because they depend on the payload.
func (r *Router) HandleWebApp(h HandlerFunc) {
	r.mu.Lock()
	r.webApp = h
	r.mu.Unlock()
}

// PublishMenu pushes the visible commands to the client menu when the adapter
// supports it.
func (r *Router) PublishMenu(ctx context.Context) error {
	up, ok := r.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	r.mu.RLock()
	menu := buildMenu(r.commands)
	r.mu.RUnlock()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return up.UpdateMenuCommands(ctx, menu)
}

// Supervisor returns the worker pool supervisor while Run is active.
func (r *Router) Supervisor() *rtsup.Supervisor {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.sup
}

// Run consumes updates until ctx is done or updates is closed.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	workers := max(runtime.NumCPU(), 2)
	sup := rtsup.New(ctx, rtsup.WithLogger(r.log.With(logx.String("comp", "router"))))
	r.runMu.Lock()
	r.sup = sup
	r.runMu.Unlock()

	for i := range workers {
		sup.GoRestart("router.worker."+strconv.Itoa(i), r.worker(i),
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithPublishFirstError(true),
		)
	}
	r.log.Info("router started", logx.Int("workers", workers), logx.Int("queue_cap", cap(r.jobs)))

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.runMu.Lock()
		r.sup = nil
		r.runMu.Unlock()
		r.log.Info("router stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			job := r.route(ctx, up)
			if job == nil {
				continue
			}
			select {
			case r.jobs <- job:
			default:
				r.busy(ctx, up)
			}
		}
	}
}

func (r *Router) worker(idx int) func(context.Context) error {
	return func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case job := <-r.jobs:
				func() {
					defer func() {
						if p := recover(); p != nil {
							r.log.Error("panic in router job", logx.Int("worker", idx), logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
						}
					}()
					job()
				}()
			}
		}
	}
}

// Handle routes one update synchronously.
func (r *Router) Handle(ctx context.Context, up kit.Update) {
	if job := r.route(ctx, up); job != nil {
		job()
	}
}

func (r *Router) busy(ctx context.Context, up kit.Update) {
	switch {
	case up.Callback != nil:
		_ = r.adapter.AnswerCallback(ctx, up.Callback.ID, "Busy, try again")
	case up.Message != nil:
		_, _ = r.adapter.SendText(ctx, kit.ChatTarget{ChatID: up.Message.ChatID, ThreadID: up.Message.ThreadID}, "Busy, try again in a moment.", nil)
	}
}

// route resolves an update to a job, or nil when nothing should run.
func (r *Router) route(ctx context.Context, up kit.Update) func() {
	switch up.Kind {
	case kit.UpdateMessage:
		return r.routeMessage(ctx, up)
	case kit.UpdateCallback:
		return r.routeCallback(ctx, up)
	case kit.UpdateWebAppData:
		return r.routeWebApp(ctx, up)
	}
	return nil
}

func (r *Router) newRequest(up kit.Update, msg *kit.Message, name string) *Request {
	rid := newReqID()
	req := &Request{
		Kind:          up.Kind,
		Chat:          kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		MessageID:     msg.ID,
		FromID:        msg.FromID,
		FromUsername:  msg.FromUsername,
		FromFirstName: msg.FromFirstName,
		IsGroup:       msg.IsGroup,
		Owner:         r.IsOwner(msg.FromID),
		Command:       name,
		ReqID:         rid,
		Adapter:       r.adapter,
	}
	req.Logger = r.log.With(
		logx.String("rid", rid),
		logx.Int64("chat_id", msg.ChatID),
		logx.Int64("from_id", msg.FromID),
		logx.String("cmd", name),
	)
	return req
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) func() {
	msg := up.Message
	if msg == nil {
		return nil
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return nil
	}
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return nil
	}
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}

	r.mu.RLock()
	cmd, ok := r.byName[word]
	r.mu.RUnlock()
	to := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	if !ok {
		if msg.IsGroup {
			return nil
		}
		return func() { _, _ = r.adapter.SendText(ctx, to, "Unknown command. Try /help", nil) }
	}
	c := *cmd
	req := r.newRequest(up, msg, c.Name)
	req.Args = parts[1:]
	if c.Access == AccessOwnerOnly && !req.Owner {
		return func() { _, _ = r.adapter.SendText(ctx, to, "This command is for owners only.", nil) }
	}
	h := r.wrap(c.Handle, c.Timeout)
	return func() { _ = h(ctx, req) }
}

func (r *Router) routeCallback(ctx context.Context, up kit.Update) func() {
	cb := up.Callback
	if cb == nil {
		return nil
	}
	parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
	if len(parts) < 2 {
		return func() { _ = r.adapter.AnswerCallback(ctx, cb.ID, "") }
	}
	r.mu.RLock()
	rt, ok := r.callbacks[parts[0]+":"+parts[1]]
	r.mu.RUnlock()
	if !ok {
		return func() { _ = r.adapter.AnswerCallback(ctx, cb.ID, "This button is no longer active.") }
	}

	req := r.newRequest(up, &kit.Message{ID: cb.MessageID, ChatID: cb.ChatID, ThreadID: cb.ThreadID, FromID: cb.FromID}, "cb:"+parts[0]+":"+parts[1])
	req.CallbackID = cb.ID
	if len(parts) == 3 {
		req.Payload = parts[2]
	}
	if rt.Access == AccessOwnerOnly && !req.Owner {
		return func() { _ = r.adapter.AnswerCallback(ctx, cb.ID, "Owners only.") }
	}
	h := r.wrap(rt.Handle, rt.Timeout)
	return func() {
		_ = h(ctx, req)
		// Stops the client spinner; a handler that answered already wins.
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
	}
}

func (r *Router) routeWebApp(ctx context.Context, up kit.Update) func() {
	msg := up.Message
	if msg == nil {
		return nil
	}
	r.mu.RLock()
	h := r.webApp
	r.mu.RUnlock()
	if h == nil {
		return nil
	}
	req := r.newRequest(up, msg, "web_app_data")
	req.Payload = msg.WebAppData
	final := r.wrap(h, 15*time.Second)
	return func() { _ = final(ctx, req) }
}
