package input

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lixenwraith/rawkey/terminal"
)

// ErrDisposed is returned when activating a closed subscription
var ErrDisposed = errors.New("input: subscription disposed")

// Handler receives the residual text and decoded event for every chunk.
// It runs on the source's reader goroutine; chunks arrive one at a time.
type Handler func(text string, ev KeyEvent)

// Option configures a registration
type Option func(*registration)

type registration struct {
	active bool
}

// WithActive sets the initial activation state (default true). An inactive
// subscription neither listens nor touches raw mode until SetActive(true).
func WithActive(active bool) Option {
	return func(r *registration) {
		r.active = active
	}
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithLogger sets the logger for activation lifecycle events
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// Manager hands out subscriptions on one byte source and owns its raw-mode switch.
// Sources implementing terminal.SharedRawMode get one acquire per activation and
// one release per deactivation, so raw mode is shared with every other Manager on
// the same source. Other sources get SetRawMode(true) on every activation and
// SetRawMode(false) when the last active subscription of this Manager deactivates.
type Manager struct {
	src terminal.ByteSource
	log *slog.Logger

	mu     sync.Mutex
	active int
	nextID uint64
}

// NewManager creates a Manager over src
func NewManager(src terminal.ByteSource, opts ...ManagerOption) *Manager {
	m := &Manager{
		src: src,
		log: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterInput registers h on src with a dedicated Manager. Sibling registrations
// only keep raw mode for each other when src implements terminal.SharedRawMode.
func RegisterInput(src terminal.ByteSource, h Handler, opts ...Option) (*Subscription, error) {
	return NewManager(src).Register(h, opts...)
}

// Register creates a subscription delivering decoded chunks to h.
// Source failures while activating are returned and no subscription is created.
func (m *Manager) Register(h Handler, opts ...Option) (*Subscription, error) {
	reg := registration{active: true}
	for _, opt := range opts {
		opt(&reg)
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	s := &Subscription{m: m, id: id, handler: h}
	if reg.active {
		if err := s.SetActive(true); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Active returns the number of currently active subscriptions
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) acquireRaw() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if shared, ok := m.src.(terminal.SharedRawMode); ok {
		err = shared.AcquireRawMode()
	} else {
		err = m.src.SetRawMode(true)
	}
	if err != nil {
		return err
	}
	m.active++
	return nil
}

func (m *Manager) releaseRaw() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == 0 {
		return nil
	}
	m.active--

	if shared, ok := m.src.(terminal.SharedRawMode); ok {
		return shared.ReleaseRawMode()
	}
	if m.active > 0 {
		return nil
	}
	return m.src.SetRawMode(false)
}

// Subscription is one registered listener. It must be closed by its owner.
type Subscription struct {
	m  *Manager
	id uint64

	// opMu serializes activation changes; mu guards state read by dispatch
	opMu     sync.Mutex
	listener terminal.ListenerID
	disposed bool

	mu      sync.Mutex
	handler Handler
	active  bool
	gen     uint64
}

// SetActive switches the subscription on or off. Repeating the current state
// is a no-op. Once SetActive(false) returns no handler call starts for a later
// chunk. A call that already passed the active check on the reader goroutine
// runs to completion.
func (s *Subscription) SetActive(active bool) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.disposed {
		if active {
			return ErrDisposed
		}
		return nil
	}

	s.mu.Lock()
	current := s.active
	s.mu.Unlock()

	if current == active {
		return nil
	}
	if active {
		return s.activate()
	}
	return s.deactivate()
}

// SetHandler replaces the handler; the next dispatched chunk uses h
func (s *Subscription) SetHandler(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Active reports whether the subscription is receiving chunks
func (s *Subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close deactivates the subscription permanently. Safe to call multiple times
// and from inside the handler.
func (s *Subscription) Close() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.disposed {
		return nil
	}
	s.disposed = true

	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	if !active {
		return nil
	}
	return s.deactivate()
}

// activate enables raw mode, then attaches the listener. Caller holds opMu.
func (s *Subscription) activate() error {
	if err := s.m.acquireRaw(); err != nil {
		return fmt.Errorf("input: enable raw mode: %w", err)
	}

	// Mark active before attaching so the first chunk is not dropped
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.active = true
	s.mu.Unlock()

	id, err := s.m.src.OnData(func(chunk []byte) {
		s.dispatch(gen, chunk)
	})
	if err != nil {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		return errors.Join(fmt.Errorf("input: attach listener: %w", err), s.m.releaseRaw())
	}
	s.listener = id

	s.m.log.Debug("input_activated", slog.Uint64("subscription", s.id), slog.Uint64("listener", uint64(id)))
	return nil
}

// deactivate detaches the listener, then releases raw mode. Caller holds opMu.
func (s *Subscription) deactivate() error {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()

	s.m.src.OffData(s.listener)
	s.listener = 0

	s.m.log.Debug("input_deactivated", slog.Uint64("subscription", s.id))

	if err := s.m.releaseRaw(); err != nil {
		return fmt.Errorf("input: disable raw mode: %w", err)
	}
	return nil
}

// dispatch decodes and forwards one chunk. Chunks captured by an older
// activation are dropped so a reactivated subscription never sees them.
// The handler runs unlocked so it may close its own subscription.
func (s *Subscription) dispatch(gen uint64, chunk []byte) {
	s.mu.Lock()
	if !s.active || s.gen != gen {
		s.mu.Unlock()
		return
	}
	h := s.handler
	s.mu.Unlock()

	if h == nil {
		return
	}
	ev := Decode(chunk)

	// Narrow the window for a deactivation racing the decode
	s.mu.Lock()
	live := s.active && s.gen == gen
	s.mu.Unlock()
	if !live {
		return
	}
	h(ev.Text, ev)
}
