//go:build unix

package terminal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// TtySource reads the controlling terminal through tcell.Tty.
// Bytes are only read while raw mode is on: tcell starts and stops the device
// together with its termios settings.
type TtySource struct {
	tty  tcell.Tty
	log  *slog.Logger
	open func() (tcell.Tty, error)

	listeners dispatcher

	mu      sync.Mutex
	started bool
	holders int
	rd      *reader
	err     error
	closed  bool
}

// NewTtySource creates a source over /dev/tty unless WithTty is given.
// The device is opened on the first SetRawMode(true).
func NewTtySource(opts ...SourceOption) *TtySource {
	cfg := newSourceConfig(opts)
	return &TtySource{
		tty:  cfg.tty,
		log:  cfg.log,
		open: tcell.NewDevTty,
	}
}

// OnData implements ByteSource
func (s *TtySource) OnData(fn func(chunk []byte)) (ListenerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	id, _ := s.listeners.add(fn)
	return id, nil
}

// OffData implements ByteSource
func (s *TtySource) OffData(id ListenerID) {
	s.listeners.remove(id)
}

// SetRawMode implements ByteSource via tcell.Tty Start/Stop
func (s *TtySource) SetRawMode(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled {
		return s.startLocked()
	}
	s.holders = 0
	return s.stopLocked()
}

// AcquireRawMode implements SharedRawMode
func (s *TtySource) AcquireRawMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.startLocked(); err != nil {
		return err
	}
	s.holders++
	return nil
}

// ReleaseRawMode implements SharedRawMode, stopping the tty after the last holder
func (s *TtySource) ReleaseRawMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.holders > 0 {
		s.holders--
	}
	if s.holders > 0 {
		return nil
	}
	return s.stopLocked()
}

func (s *TtySource) startLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return nil
	}

	if s.tty == nil {
		tty, err := s.open()
		if err != nil {
			return fmt.Errorf("open tty: %w", err)
		}
		s.tty = tty
	}

	if err := s.tty.Start(); err != nil {
		return fmt.Errorf("start tty: %w", err)
	}
	s.started = true

	s.rd = newReader()
	go s.readLoop(s.tty, s.rd)
	s.log.Debug("raw_mode_on", slog.String("source", "tty"))
	return nil
}

// Raw reports whether the tty is started
func (s *TtySource) Raw() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Err returns the error that ended the last reader run
func (s *TtySource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the tty and releases the device. Safe to call multiple times.
func (s *TtySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.holders = 0

	err := s.stopLocked()
	if s.tty != nil {
		err = errors.Join(err, s.tty.Close())
	}
	return err
}

// stopLocked drains the reader out of its blocking read, then restores termios
func (s *TtySource) stopLocked() error {
	if !s.started {
		return nil
	}
	s.started = false

	tty := s.tty
	s.rd.stop(func() {
		tty.Drain()
	})
	s.rd = nil

	if err := tty.Stop(); err != nil {
		return fmt.Errorf("stop tty: %w", err)
	}
	s.log.Debug("raw_mode_off", slog.String("source", "tty"))
	return nil
}

func (s *TtySource) readLoop(tty tcell.Tty, rd *reader) {
	defer close(rd.doneCh)

	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.holders = 0
			s.stopLocked()
			s.mu.Unlock()
			EmergencyReset(os.Stdout)
			panic(r)
		}
	}()

	buf := make([]byte, 128)

	for {
		n, err := tty.Read(buf)
		if rd.stopped() {
			return
		}
		if n > 0 {
			s.listeners.emit(buf[:n])
		}
		if err != nil {
			// Drain wakes the read with io.EOF and is caught by the stop check above
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			s.log.Error("reader_failed", slog.String("source", "tty"), slog.String("error", err.Error()))
			return
		}
	}
}
