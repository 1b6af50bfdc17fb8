//go:build unix

package terminal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// StdinSource reads raw chunks from stdin (or the file given with WithFile).
// The reader goroutine only runs while at least one listener is registered.
type StdinSource struct {
	file *os.File
	fd   int
	log  *slog.Logger

	listeners dispatcher

	mu      sync.Mutex
	saved   *term.State
	holders int
	rd      *reader
	err     error
	closed  bool
}

// NewStdinSource creates a source over os.Stdin unless WithFile is given
func NewStdinSource(opts ...SourceOption) *StdinSource {
	cfg := newSourceConfig(opts)
	f := cfg.file
	if f == nil {
		f = os.Stdin
	}
	return &StdinSource{
		file: f,
		fd:   int(f.Fd()),
		log:  cfg.log,
	}
}

// OnData implements ByteSource, starting the reader on the first listener
func (s *StdinSource) OnData(fn func(chunk []byte)) (ListenerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	id, n := s.listeners.add(fn)
	if n == 1 && s.rd == nil {
		s.rd = newReader()
		go s.readLoop(s.rd)
		s.log.Debug("reader_started", slog.String("file", s.file.Name()))
	}
	return id, nil
}

// OffData implements ByteSource, stopping the reader after the last listener
func (s *StdinSource) OffData(id ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listeners.remove(id) == 0 && s.rd != nil {
		s.rd.stop(nil)
		s.rd = nil
		s.log.Debug("reader_stopped", slog.String("file", s.file.Name()))
	}
}

// SetRawMode implements ByteSource using x/term
func (s *StdinSource) SetRawMode(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled {
		return s.enableLocked()
	}
	s.holders = 0
	return s.restoreLocked()
}

// AcquireRawMode implements SharedRawMode
func (s *StdinSource) AcquireRawMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enableLocked(); err != nil {
		return err
	}
	s.holders++
	return nil
}

// ReleaseRawMode implements SharedRawMode, restoring the terminal after the last holder
func (s *StdinSource) ReleaseRawMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.holders > 0 {
		s.holders--
	}
	if s.holders > 0 {
		return nil
	}
	return s.restoreLocked()
}

func (s *StdinSource) enableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.saved != nil {
		return nil
	}
	if !term.IsTerminal(s.fd) {
		return fmt.Errorf("%s: %w", s.file.Name(), ErrNotTerminal)
	}
	old, err := term.MakeRaw(s.fd)
	if err != nil {
		return fmt.Errorf("make raw: %w", err)
	}
	s.saved = old
	s.log.Debug("raw_mode_on", slog.Int("fd", s.fd))
	return nil
}

// Raw reports whether the source currently holds the terminal in raw mode
func (s *StdinSource) Raw() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved != nil
}

// Err returns the error that ended the reader, io.EOF on end of input
func (s *StdinSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops reading and restores the terminal. Safe to call multiple times.
func (s *StdinSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.rd != nil {
		s.rd.stop(nil)
		s.rd = nil
	}
	s.holders = 0
	return s.restoreLocked()
}

func (s *StdinSource) restoreLocked() error {
	if s.saved == nil {
		return nil
	}
	old := s.saved
	s.saved = nil
	if err := term.Restore(s.fd, old); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	s.log.Debug("raw_mode_off", slog.Int("fd", s.fd))
	return nil
}

func (s *StdinSource) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	if err == io.EOF {
		s.log.Debug("reader_eof", slog.String("file", s.file.Name()))
		return
	}
	s.log.Error("reader_failed", slog.String("file", s.file.Name()), slog.String("error", err.Error()))
}

// readLoop polls the fd so stop requests are seen within one poll tick
func (s *StdinSource) readLoop(rd *reader) {
	defer close(rd.doneCh)

	// A panicking listener must not leave the terminal raw
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.holders = 0
			s.restoreLocked()
			s.mu.Unlock()
			EmergencyReset(os.Stdout)
			panic(r)
		}
	}()

	buf := make([]byte, 256)

	for {
		if rd.stopped() {
			return
		}

		fds := []unix.PollFd{
			{Fd: int32(s.fd), Events: unix.POLLIN},
		}

		n, err := unix.Poll(fds, pollTimeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			s.fail(err)
			return
		}

		if n == 0 {
			continue // Timeout
		}

		rn, err := unix.Read(s.fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			s.fail(err)
			return
		}

		if rn == 0 {
			s.fail(io.EOF)
			return
		}

		if rd.stopped() {
			return
		}

		s.listeners.emit(buf[:rn])
	}
}
