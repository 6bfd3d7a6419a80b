package config

import (
	"context"
	"os"
	"reflect"
	"slices"
	"sync"
	"time"

	logx "linkbot/pkg/logx"
)

// Validator vets a candidate config before it is committed.
type Validator func(ctx context.Context, cfg *Config) error

// Manager owns the committed config and fans reloads out to subscribers.
type Manager struct {
	path     string
	debounce time.Duration
	log      logx.Logger
	validate Validator

	mu  sync.RWMutex
	cfg *Config

	// subMu is held across sends so Unsubscribe cannot close a channel
	// mid-send.
	subMu sync.Mutex
	subs  []chan *Config
}

func NewManager(path string) *Manager {
	return &Manager{path: path, debounce: 250 * time.Millisecond, log: logx.Nop()}
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// SetValidator installs the hook used by Load and by every reload.
func (m *Manager) SetValidator(fn Validator) { m.validate = fn }

// Get returns the committed config, nil before Load.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Load reads, validates and commits the file.
func (m *Manager) Load(ctx context.Context) (*Config, error) {
	cfg, err := m.read()
	if err != nil {
		return nil, err
	}
	if err := m.check(ctx, cfg); err != nil {
		return nil, err
	}
	m.commit(cfg)
	return cfg, nil
}

func (m *Manager) read() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	return Decode(m.path, b)
}

func (m *Manager) check(ctx context.Context, cfg *Config) error {
	if m.validate == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.validate(ctx, cfg)
}

func (m *Manager) commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

// Subscribe returns a channel that receives every committed reload. When the
// buffer is full the oldest pending snapshot is replaced.
func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, max(buffer, 1))
	m.subMu.Lock()
	m.subs = append(m.subs, ch)
	m.subMu.Unlock()
	return ch
}

// Unsubscribe detaches and closes ch.
func (m *Manager) Unsubscribe(ch chan *Config) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if i := slices.Index(m.subs, ch); i >= 0 {
		m.subs = slices.Delete(m.subs, i, i+1)
		close(ch)
	}
}

func (m *Manager) publish(cfg *Config) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		for sent := false; !sent; {
			select {
			case ch <- cfg:
				sent = true
			default:
				select {
				case <-ch:
				default:
				}
			}
		}
	}
}

// reload re-reads the file after a change. Invalid or identical content is
// logged and left uncommitted.
func (m *Manager) reload(ctx context.Context) {
	log := m.log.With(logx.String("path", m.path))
	cfg, err := m.read()
	if err != nil {
		log.Warn("config parse failed", logx.Err(err))
		return
	}
	if reflect.DeepEqual(cfg, m.Get()) {
		log.Debug("config unchanged")
		return
	}
	if err := m.check(ctx, cfg); err != nil {
		log.Warn("config rejected", logx.Err(err))
		return
	}
	m.commit(cfg)
	m.publish(cfg)
	log.Debug("config published")
}
