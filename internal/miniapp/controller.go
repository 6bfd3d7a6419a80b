package miniapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logx "linkbot/pkg/logx"
)

const (
	DefaultErrorDismissAfter = 5 * time.Second
	DefaultCloseAfter        = 2 * time.Second
)

// Host is the Mini App bridge provided by the messaging client.
type Host interface {
	ExpandViewport()
	RegisterBackAction(fn func())
	CloseWindow()
	// SendData hands one opaque message to the bot. It closes the session on
	// the client side, so it is called at most once per successful submission.
	SendData(data string) error
	CurrentUserID() (int64, bool)
}

// View is the form's UI binding.
type View interface {
	SetCategoryOptions(opts []Option)
	ShowError(msg string)
	HideError()
	SetSubmit(enabled bool, label string)
	// ShowSuccess hides the form and reveals the success indicator.
	ShowSuccess()
}

type Deps struct {
	Host Host
	View View
	// Categories is consulted by the link form only. Nil behaves like an
	// unreachable source.
	Categories CategorySource
	Clock      Clock
	Logger     logx.Logger
}

type Options struct {
	ErrorDismissAfter time.Duration
	CloseAfter        time.Duration
}

// Controller mediates between one form and the host bridge.
type Controller struct {
	kind   Kind
	labels labels
	host   Host
	view   View
	cats   CategorySource
	clock  Clock
	log    logx.Logger
	opts   Options

	mu      sync.Mutex
	state   State
	dismiss Task
	closer  Task
}

func New(kind Kind, deps Deps, opts Options) (*Controller, error) {
	if kind.Action() == "" {
		return nil, fmt.Errorf("miniapp: unsupported form kind %v", kind)
	}
	if deps.Host == nil {
		return nil, errors.New("miniapp: host is required")
	}
	if deps.View == nil {
		return nil, errors.New("miniapp: view is required")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Logger.IsZero() {
		deps.Logger = logx.Nop()
	}
	if opts.ErrorDismissAfter <= 0 {
		opts.ErrorDismissAfter = DefaultErrorDismissAfter
	}
	if opts.CloseAfter <= 0 {
		opts.CloseAfter = DefaultCloseAfter
	}
	return &Controller{
		kind:   kind,
		labels: kind.labels(),
		host:   deps.Host,
		view:   deps.View,
		cats:   deps.Categories,
		clock:  deps.Clock,
		log:    deps.Logger.With(logx.String("form", kind.Action())),
		opts:   opts,
	}, nil
}

func (c *Controller) Kind() Kind { return c.kind }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Init expands the host viewport, wires the back action to close the window
// and, for the link form, loads the category selector.
func (c *Controller) Init(ctx context.Context) {
	c.host.ExpandViewport()
	c.host.RegisterBackAction(c.host.CloseWindow)
	c.view.SetSubmit(true, c.labels.idle)
	if c.kind == KindSubmitLink {
		c.LoadCategories(ctx)
	}
}

// LoadCategories fills the selector from the category source. Failures are
// logged and replaced by the sentinel-only list; the user never sees them.
func (c *Controller) LoadCategories(ctx context.Context) []Option {
	var cats []Category
	if c.cats != nil {
		got, err := c.cats.Categories(ctx)
		if err != nil {
			c.log.Debug("category load failed; using sentinel only", logx.Err(err))
		} else {
			cats = got
		}
	}
	opts := BuildOptions(cats)
	c.view.SetCategoryOptions(opts)
	return opts
}

// Submit validates the fields and hands the payload to the host. It returns
// a *ValidationError or *TransmissionError when the attempt is rejected, and
// ErrBusy/ErrClosed when no attempt was started.
func (c *Controller) Submit(fields Fields) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
	case StateClosing:
		c.mu.Unlock()
		return ErrClosed
	default:
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = StateValidating
	c.mu.Unlock()
	c.view.SetSubmit(false, c.labels.busy)

	var userID *int64
	if id, ok := c.host.CurrentUserID(); ok {
		userID = &id
	}

	p, err := Build(c.kind, userID, fields)
	if err != nil {
		var verr *ValidationError
		msg := c.labels.fail
		if errors.As(err, &verr) {
			msg = verr.Message
		}
		c.log.Debug("submission rejected", logx.Err(err))
		c.reset(msg)
		return err
	}

	c.setState(StateSubmitting)
	data, err := Encode(p)
	if err == nil {
		err = c.host.SendData(data)
	}
	if err != nil {
		c.log.Warn("submission failed", logx.Err(err))
		c.reset(c.labels.fail)
		return &TransmissionError{Message: c.labels.fail, Err: err}
	}

	c.view.ShowSuccess()
	c.mu.Lock()
	c.state = StateClosing
	c.closer = c.clock.AfterFunc(c.opts.CloseAfter, c.host.CloseWindow)
	c.mu.Unlock()
	c.log.Info("submission sent")
	return nil
}

// CancelPending stops the error auto-dismiss and the post-success close.
func (c *Controller) CancelPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dismiss != nil {
		c.dismiss.Cancel()
		c.dismiss = nil
	}
	if c.closer != nil {
		c.closer.Cancel()
		c.closer = nil
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// reset shows msg, schedules its dismissal and returns the form to Idle.
func (c *Controller) reset(msg string) {
	c.showError(msg)
	c.setState(StateIdle)
	c.view.SetSubmit(true, c.labels.idle)
}

// showError hands the dismissal to msg before it becomes visible, so the
// previous message's timer can no longer hide it.
func (c *Controller) showError(msg string) {
	c.mu.Lock()
	if c.dismiss != nil {
		c.dismiss.Cancel()
	}
	var task Task
	task = c.clock.AfterFunc(c.opts.ErrorDismissAfter, func() {
		c.mu.Lock()
		if c.dismiss != task {
			c.mu.Unlock()
			return
		}
		c.dismiss = nil
		c.mu.Unlock()
		c.view.HideError()
	})
	c.dismiss = task
	c.mu.Unlock()

	c.view.ShowError(msg)
}
