package input

import (
	"errors"
	"sync"
	"testing"

	"github.com/lixenwraith/rawkey/terminal"
)

// fakeSource is a synchronous ByteSource recording raw-mode calls
type fakeSource struct {
	mu        sync.Mutex
	raw       bool
	rawCalls  []bool
	nextID    terminal.ListenerID
	listeners map[terminal.ListenerID]func([]byte)
	order     []terminal.ListenerID

	rawErr  error
	dataErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{listeners: make(map[terminal.ListenerID]func([]byte))}
}

func (f *fakeSource) OnData(fn func([]byte)) (terminal.ListenerID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dataErr != nil {
		return 0, f.dataErr
	}
	f.nextID++
	f.listeners[f.nextID] = fn
	f.order = append(f.order, f.nextID)
	return f.nextID, nil
}

func (f *fakeSource) OffData(id terminal.ListenerID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listeners, id)
}

func (f *fakeSource) SetRawMode(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if enabled && f.rawErr != nil {
		return f.rawErr
	}
	f.rawCalls = append(f.rawCalls, enabled)
	f.raw = enabled
	return nil
}

// send delivers chunk to current listeners, rechecking membership like a real source
func (f *fakeSource) send(chunk string) {
	f.mu.Lock()
	order := append([]terminal.ListenerID(nil), f.order...)
	f.mu.Unlock()

	for _, id := range order {
		f.mu.Lock()
		fn, ok := f.listeners[id]
		f.mu.Unlock()
		if ok {
			fn([]byte(chunk))
		}
	}
}

func (f *fakeSource) state() (raw bool, listeners int, calls []bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw, len(f.listeners), append([]bool(nil), f.rawCalls...)
}

// sharedSource counts raw-mode holders the way the terminal sources do
type sharedSource struct {
	*fakeSource
	holders int
}

func (s *sharedSource) AcquireRawMode() error {
	if err := s.SetRawMode(true); err != nil {
		return err
	}
	s.mu.Lock()
	s.holders++
	s.mu.Unlock()
	return nil
}

func (s *sharedSource) ReleaseRawMode() error {
	s.mu.Lock()
	if s.holders > 0 {
		s.holders--
	}
	last := s.holders == 0
	s.mu.Unlock()
	if !last {
		return nil
	}
	return s.SetRawMode(false)
}

type call struct {
	text string
	ev   KeyEvent
}

type recorder struct {
	calls []call
}

func (r *recorder) handle(text string, ev KeyEvent) {
	r.calls = append(r.calls, call{text, ev})
}

// TestSessionEndToEnd feeds the canonical chunk sequence through a default registration
func TestSessionEndToEnd(t *testing.T) {
	src := newFakeSource()
	var rec recorder

	sub, err := RegisterInput(src, rec.handle)
	if err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}
	defer sub.Close()

	for _, chunk := range []string{"a", "\x01", "\x1b[A", "\r"} {
		src.send(chunk)
	}

	want := []call{
		{"a", KeyEvent{Text: "a"}},
		{"a", KeyEvent{Text: "a", Mods: ModCtrl}},
		{"", KeyEvent{Mods: ModUpArrow}},
		{"", KeyEvent{Mods: ModReturn}},
	}
	if len(rec.calls) != len(want) {
		t.Fatalf("handler called %d times, want %d", len(rec.calls), len(want))
	}
	for i, w := range want {
		if rec.calls[i] != w {
			t.Errorf("call %d = %+v, want %+v", i, rec.calls[i], w)
		}
	}
}

// TestSessionDefaultActivates verifies registration enables raw mode and listens
func TestSessionDefaultActivates(t *testing.T) {
	src := newFakeSource()
	sub, err := RegisterInput(src, func(string, KeyEvent) {})
	if err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}
	defer sub.Close()

	raw, listeners, _ := src.state()
	if !raw {
		t.Error("raw mode not enabled")
	}
	if listeners != 1 {
		t.Errorf("listeners = %d, want 1", listeners)
	}
	if !sub.Active() {
		t.Error("Active() = false")
	}
}

// TestSessionInactiveRegistration verifies WithActive(false) touches nothing
func TestSessionInactiveRegistration(t *testing.T) {
	src := newFakeSource()
	var rec recorder

	sub, err := RegisterInput(src, rec.handle, WithActive(false))
	if err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}

	raw, listeners, calls := src.state()
	if raw || listeners != 0 || len(calls) != 0 {
		t.Fatalf("inactive registration: raw=%v listeners=%d calls=%v", raw, listeners, calls)
	}

	src.send("x")
	if len(rec.calls) != 0 {
		t.Errorf("inactive handler called %d times", len(rec.calls))
	}

	// Activates later without re-registering
	if err := sub.SetActive(true); err != nil {
		t.Fatalf("SetActive(true): %v", err)
	}
	src.send("y")
	if len(rec.calls) != 1 || rec.calls[0].text != "y" {
		t.Errorf("calls after activation = %+v", rec.calls)
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestSessionIdempotentToggles verifies repeated states cause no extra source calls
func TestSessionIdempotentToggles(t *testing.T) {
	src := newFakeSource()
	sub, err := RegisterInput(src, func(string, KeyEvent) {})
	if err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}

	if err := sub.SetActive(true); err != nil {
		t.Fatalf("SetActive(true): %v", err)
	}
	_, listeners, calls := src.state()
	if listeners != 1 || len(calls) != 1 {
		t.Errorf("after redundant activate: listeners=%d rawCalls=%v", listeners, calls)
	}

	if err := sub.SetActive(false); err != nil {
		t.Fatalf("SetActive(false): %v", err)
	}
	if err := sub.SetActive(false); err != nil {
		t.Fatalf("second SetActive(false): %v", err)
	}
	raw, listeners, calls := src.state()
	if raw || listeners != 0 {
		t.Errorf("after deactivate: raw=%v listeners=%d", raw, listeners)
	}
	if want := []bool{true, false}; !equalBools(calls, want) {
		t.Errorf("raw calls = %v, want %v", calls, want)
	}
}

// TestSessionCloseRestores verifies disposal detaches and restores raw mode
func TestSessionCloseRestores(t *testing.T) {
	src := newFakeSource()
	var rec recorder

	sub, err := RegisterInput(src, rec.handle)
	if err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}
	src.send("a")

	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	src.send("b")

	if len(rec.calls) != 1 {
		t.Errorf("handler called %d times, want 1", len(rec.calls))
	}
	raw, listeners, _ := src.state()
	if raw {
		t.Error("raw mode left enabled after Close")
	}
	if listeners != 0 {
		t.Errorf("listeners = %d after Close", listeners)
	}

	if err := sub.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := sub.SetActive(true); !errors.Is(err, ErrDisposed) {
		t.Errorf("SetActive after Close error = %v, want ErrDisposed", err)
	}
	if err := sub.SetActive(false); err != nil {
		t.Errorf("SetActive(false) after Close error = %v", err)
	}
}

// TestSessionCloseFromHandler verifies deactivation inside the handler stops later chunks
func TestSessionCloseFromHandler(t *testing.T) {
	src := newFakeSource()
	var sub *Subscription
	var n int

	sub, err := RegisterInput(src, func(text string, ev KeyEvent) {
		n++
		if ev.Escape() {
			sub.Close()
		}
	})
	if err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}

	src.send("x")
	src.send("\x1b")
	src.send("y")

	if n != 2 {
		t.Errorf("handler called %d times, want 2", n)
	}
	if raw, _, _ := src.state(); raw {
		t.Error("raw mode left enabled")
	}
}

// TestSessionHandlerSwap verifies a swapped handler receives the next chunk and the old one does not
func TestSessionHandlerSwap(t *testing.T) {
	src := newFakeSource()
	var first, second recorder

	sub, err := RegisterInput(src, first.handle)
	if err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}
	defer sub.Close()

	src.send("a")
	sub.SetHandler(second.handle)
	src.send("b")

	if len(first.calls) != 1 || first.calls[0].text != "a" {
		t.Errorf("first handler calls = %+v", first.calls)
	}
	if len(second.calls) != 1 || second.calls[0].text != "b" {
		t.Errorf("second handler calls = %+v", second.calls)
	}
}

// TestSessionReactivateDropsStaleListener verifies an old listener cannot deliver after reactivation
func TestSessionReactivateDropsStaleListener(t *testing.T) {
	src := newFakeSource()
	var rec recorder

	sub, err := RegisterInput(src, rec.handle)
	if err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}
	defer sub.Close()

	src.mu.Lock()
	stale := src.listeners[src.order[0]]
	src.mu.Unlock()

	sub.SetActive(false)
	sub.SetActive(true)

	// A chunk captured by the first activation arrives late
	stale([]byte("late"))
	src.send("fresh")

	if len(rec.calls) != 1 || rec.calls[0].text != "fresh" {
		t.Errorf("calls = %+v, want only fresh", rec.calls)
	}
}

// TestManagerSharedRawMode verifies raw mode stays on until the last subscription deactivates
func TestManagerSharedRawMode(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src)

	var a, b recorder
	subA, err := m.Register(a.handle)
	if err != nil {
		t.Fatalf("Register a: %v", err)
	}
	subB, err := m.Register(b.handle)
	if err != nil {
		t.Fatalf("Register b: %v", err)
	}
	if n := m.Active(); n != 2 {
		t.Errorf("Active() = %d, want 2", n)
	}

	src.send("k")
	if len(a.calls) != 1 || len(b.calls) != 1 {
		t.Errorf("deliveries a=%d b=%d, want 1 each", len(a.calls), len(b.calls))
	}

	if err := subA.Close(); err != nil {
		t.Fatalf("Close a: %v", err)
	}
	if raw, _, _ := src.state(); !raw {
		t.Error("raw mode disabled while b is still active")
	}

	src.send("m")
	if len(a.calls) != 1 || len(b.calls) != 2 {
		t.Errorf("deliveries after close a=%d b=%d", len(a.calls), len(b.calls))
	}

	if err := subB.SetActive(false); err != nil {
		t.Fatalf("SetActive(false) b: %v", err)
	}
	raw, listeners, calls := src.state()
	if raw || listeners != 0 {
		t.Errorf("after all inactive: raw=%v listeners=%d", raw, listeners)
	}
	// Redundant enables are allowed, a single disable at the end
	if want := []bool{true, true, false}; !equalBools(calls, want) {
		t.Errorf("raw calls = %v, want %v", calls, want)
	}
	subB.Close()
}

// TestRegisterInputSharesRawMode verifies independent registrations on one source
// keep raw mode for each other
func TestRegisterInputSharesRawMode(t *testing.T) {
	src := &sharedSource{fakeSource: newFakeSource()}

	var a, b recorder
	subA, err := RegisterInput(src, a.handle)
	if err != nil {
		t.Fatalf("RegisterInput a: %v", err)
	}
	subB, err := RegisterInput(src, b.handle)
	if err != nil {
		t.Fatalf("RegisterInput b: %v", err)
	}
	defer subB.Close()

	if err := subA.Close(); err != nil {
		t.Fatalf("Close a: %v", err)
	}
	raw, listeners, _ := src.state()
	if !raw || listeners != 1 {
		t.Errorf("after closing a: raw=%v listeners=%d, want raw with 1 listener", raw, listeners)
	}
	if !subB.Active() {
		t.Error("b deactivated by a's close")
	}

	src.send("z")
	if len(a.calls) != 0 || len(b.calls) != 1 {
		t.Errorf("deliveries a=%d b=%d, want 0 and 1", len(a.calls), len(b.calls))
	}

	if err := subB.Close(); err != nil {
		t.Fatalf("Close b: %v", err)
	}
	raw, _, calls := src.state()
	if raw {
		t.Error("raw mode left on after the last registration closed")
	}
	if want := []bool{true, true, false}; !equalBools(calls, want) {
		t.Errorf("raw calls = %v, want %v", calls, want)
	}
}

// TestSessionRawModeError verifies source failures surface from Register
func TestSessionRawModeError(t *testing.T) {
	src := newFakeSource()
	src.rawErr = terminal.ErrNotTerminal

	sub, err := RegisterInput(src, func(string, KeyEvent) {})
	if !errors.Is(err, terminal.ErrNotTerminal) {
		t.Fatalf("error = %v, want ErrNotTerminal", err)
	}
	if sub != nil {
		t.Error("subscription returned on failure")
	}
	if _, listeners, _ := src.state(); listeners != 0 {
		t.Errorf("listeners = %d after failed register", listeners)
	}
}

// TestSessionAttachError verifies a listener failure rolls back raw mode
func TestSessionAttachError(t *testing.T) {
	src := newFakeSource()
	src.dataErr = terminal.ErrClosed
	m := NewManager(src)

	_, err := m.Register(func(string, KeyEvent) {})
	if !errors.Is(err, terminal.ErrClosed) {
		t.Fatalf("error = %v, want ErrClosed", err)
	}
	if raw, _, _ := src.state(); raw {
		t.Error("raw mode left enabled after attach failure")
	}
	if n := m.Active(); n != 0 {
		t.Errorf("Active() = %d, want 0", n)
	}
}

func equalBools(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestSessionDispatchAfterDeactivate verifies a chunk already handed to the listener
// does not reach the handler once deactivation has returned
func TestSessionDispatchAfterDeactivate(t *testing.T) {
	src := newFakeSource()
	var rec recorder

	sub, err := RegisterInput(src, rec.handle)
	if err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}
	defer sub.Close()

	sub.mu.Lock()
	gen := sub.gen
	sub.mu.Unlock()

	if err := sub.SetActive(false); err != nil {
		t.Fatalf("SetActive(false): %v", err)
	}
	sub.dispatch(gen, []byte("late"))
	if len(rec.calls) != 0 {
		t.Errorf("handler called %d times after deactivation", len(rec.calls))
	}
}
