package mplayer

import (
	"fmt"
	"sync"

	"github.com/subplay/subplay/internal/proc"
	"github.com/subplay/subplay/player"
)

// fakeEngine stands in for an MPlayer process. reply is called on its own
// goroutine for every written line.
type fakeEngine struct {
	mu      sync.Mutex
	name    string
	args    []string
	written []string
	onLine  func(string)
	reply   func(e *fakeEngine, line string)
	exited  chan struct{}
	once    sync.Once

	terminated      int
	killed          int
	ignoreQuit      bool
	ignoreTerminate bool
}

func (e *fakeEngine) WriteLine(line string) error {
	e.mu.Lock()
	if !e.Running() {
		e.mu.Unlock()
		return proc.ErrExited
	}
	e.written = append(e.written, line)
	reply, ignoreQuit := e.reply, e.ignoreQuit
	e.mu.Unlock()

	if (line == "quit" || line == "pausing quit") && !ignoreQuit {
		go e.exit()
		return nil
	}
	if reply != nil {
		go reply(e, line)
	}
	return nil
}

func (e *fakeEngine) Running() bool {
	select {
	case <-e.exited:
		return false
	default:
		return true
	}
}

func (e *fakeEngine) Exited() <-chan struct{} { return e.exited }

func (e *fakeEngine) Terminate() error {
	e.mu.Lock()
	e.terminated++
	ignore := e.ignoreTerminate
	e.mu.Unlock()

	if !ignore {
		e.exit()
	}
	return nil
}

func (e *fakeEngine) Kill() error {
	e.mu.Lock()
	e.killed++
	e.mu.Unlock()

	e.exit()
	return nil
}

func (e *fakeEngine) emit(lines ...string) {
	for _, line := range lines {
		e.onLine(line)
	}
}

func (e *fakeEngine) exit() {
	e.once.Do(func() { close(e.exited) })
}

func (e *fakeEngine) lines() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.written...)
}

// fakeLauncher hands out fresh fake engines and remembers them.
type fakeLauncher struct {
	mu      sync.Mutex
	engines []*fakeEngine
	prepare func(e *fakeEngine)
	err     error
}

func (l *fakeLauncher) start(name string, args []string, onLine func(string)) (engine, error) {
	if l.err != nil {
		return nil, l.err
	}

	e := &fakeEngine{name: name, args: args, onLine: onLine, exited: make(chan struct{})}
	if l.prepare != nil {
		l.prepare(e)
	}

	l.mu.Lock()
	l.engines = append(l.engines, e)
	l.mu.Unlock()
	return e, nil
}

func (l *fakeLauncher) last() *fakeEngine {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.engines) == 0 {
		return nil
	}
	return l.engines[len(l.engines)-1]
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.engines)
}

// fakeHost records what a backend reports.
type fakeHost struct {
	mu          sync.Mutex
	calls       []string
	closingDown bool
}

func (h *fakeHost) record(format string, args ...any) {
	h.mu.Lock()
	h.calls = append(h.calls, fmt.Sprintf(format, args...))
	h.mu.Unlock()
}

func (h *fakeHost) SetState(state player.State)    { h.record("state %s", state) }
func (h *fakeHost) SetErrorState(message string)   { h.record("error %s", message) }
func (h *fakeHost) SetPosition(seconds float64)    { h.record("position %g", seconds) }
func (h *fakeHost) SetLength(seconds float64)      { h.record("length %g", seconds) }
func (h *fakeHost) SetFramesPerSecond(fps float64) { h.record("fps %g", fps) }
func (h *fakeHost) ApplicationClosingDown() bool   { return h.closingDown }
func (h *fakeHost) SetAudioStreams(streams []string, active int) {
	h.record("streams %v %d", streams, active)
}

func (h *fakeHost) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *fakeHost) reset() {
	h.mu.Lock()
	h.calls = nil
	h.mu.Unlock()
}
