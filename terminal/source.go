package terminal

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
)

var (
	// ErrNotTerminal is returned when raw mode is requested on a non-tty file
	ErrNotTerminal = errors.New("terminal: not a terminal")

	// ErrClosed is returned by operations on a closed source
	ErrClosed = errors.New("terminal: source closed")
)

// ListenerID identifies a data listener registered with OnData
type ListenerID uint64

// ByteSource abstracts a stream of raw input chunks with a raw-mode switch.
// Implementations deliver chunks sequentially and never hold internal locks while
// a listener runs, so listeners may call OffData or SetRawMode re-entrantly.
type ByteSource interface {
	// OnData registers fn to receive every chunk read after the call returns
	OnData(fn func(chunk []byte)) (ListenerID, error)

	// OffData removes a listener. No chunk reaches it once OffData returns.
	// Unknown ids are ignored.
	OffData(id ListenerID)

	// SetRawMode switches raw mode. Repeating the current state is a no-op.
	SetRawMode(enabled bool) error
}

// SharedRawMode is implemented by sources whose raw mode is held by several
// independent owners. Each AcquireRawMode is paired with one ReleaseRawMode and
// raw mode stays on until the last holder releases. SetRawMode(false) forces raw
// mode off and drops all holders.
type SharedRawMode interface {
	AcquireRawMode() error
	ReleaseRawMode() error
}

// readerStopTimeout bounds how long a stop waits for the reader goroutine.
// A stop issued from inside a listener runs on the reader goroutine itself and
// proceeds after the timeout; the reader exits once the listener returns.
const readerStopTimeout = 200 * time.Millisecond

// pollTimeoutMs is the poll tick used to observe stop requests
const pollTimeoutMs = 100

// SourceOption configures a source
type SourceOption func(*sourceConfig)

type sourceConfig struct {
	file *os.File
	tty  tcell.Tty
	log  *slog.Logger
}

func newSourceConfig(opts []SourceOption) sourceConfig {
	cfg := sourceConfig{log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithFile reads from f instead of os.Stdin (StdinSource only)
func WithFile(f *os.File) SourceOption {
	return func(c *sourceConfig) {
		c.file = f
	}
}

// WithTty uses an already constructed tcell.Tty (TtySource only)
func WithTty(tty tcell.Tty) SourceOption {
	return func(c *sourceConfig) {
		c.tty = tty
	}
}

// WithSourceLogger sets the logger for reader lifecycle and errors
func WithSourceLogger(l *slog.Logger) SourceOption {
	return func(c *sourceConfig) {
		if l != nil {
			c.log = l
		}
	}
}

type listener struct {
	id ListenerID
	fn func([]byte)
}

// dispatcher fans chunks out to listeners in registration order
type dispatcher struct {
	mu        sync.Mutex
	nextID    ListenerID
	listeners []listener
}

// add registers fn and returns its id with the resulting listener count
func (d *dispatcher) add(fn func([]byte)) (ListenerID, int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.listeners = append(d.listeners, listener{id: d.nextID, fn: fn})
	return d.nextID, len(d.listeners)
}

// remove drops id and returns the remaining listener count
func (d *dispatcher) remove(id ListenerID) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, l := range d.listeners {
		if l.id == id {
			d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
			break
		}
	}
	return len(d.listeners)
}

func (d *dispatcher) has(id ListenerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, l := range d.listeners {
		if l.id == id {
			return true
		}
	}
	return false
}

func (d *dispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

// emit delivers chunk to a snapshot of listeners without holding the lock.
// Membership is rechecked per listener so removals made by an earlier listener
// take effect for the same chunk.
func (d *dispatcher) emit(chunk []byte) {
	d.mu.Lock()
	snapshot := make([]listener, len(d.listeners))
	copy(snapshot, d.listeners)
	d.mu.Unlock()

	for _, l := range snapshot {
		if !d.has(l.id) {
			continue
		}
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		l.fn(buf)
	}
}

// reader tracks one run of a reader goroutine
type reader struct {
	stopCh chan struct{}
	doneCh chan struct{}
}

func newReader() *reader {
	return &reader{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (r *reader) stopped() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

// stop signals the reader and waits for it to exit, bounded by readerStopTimeout
func (r *reader) stop(wake func()) {
	if !r.stopped() {
		close(r.stopCh)
	}
	if wake != nil {
		wake()
	}
	select {
	case <-r.doneCh:
	case <-time.After(readerStopTimeout):
		// Reader busy in a listener or stuck in a read, proceed anyway
	}
}
