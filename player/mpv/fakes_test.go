package mpv

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/subplay/subplay/player"
)

type fakeEngine struct {
	args            []string
	ignoreQuit      bool
	ignoreTerminate bool

	mu         sync.Mutex
	exited     chan struct{}
	once       sync.Once
	terminated bool
	killed     bool
}

func newFakeEngine(args []string) *fakeEngine {
	return &fakeEngine{args: args, exited: make(chan struct{})}
}

func (e *fakeEngine) exit() { e.once.Do(func() { close(e.exited) }) }

func (e *fakeEngine) Running() bool {
	select {
	case <-e.exited:
		return false
	default:
		return true
	}
}

func (e *fakeEngine) Exited() <-chan struct{} { return e.exited }

func (e *fakeEngine) WaitFor(d time.Duration) bool {
	select {
	case <-e.exited:
		return true
	case <-time.After(d):
		return false
	}
}

func (e *fakeEngine) Terminate() error {
	e.mu.Lock()
	e.terminated = true
	e.mu.Unlock()

	if !e.ignoreTerminate {
		e.exit()
	}
	return nil
}

func (e *fakeEngine) Kill() error {
	e.mu.Lock()
	e.killed = true
	e.mu.Unlock()

	e.exit()
	return nil
}

func (e *fakeEngine) wasTerminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}

func (e *fakeEngine) wasKilled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.killed
}

// fakeServer answers IPC commands the way an idle mpv does.
type fakeServer struct {
	conn   net.Conn
	engine *fakeEngine

	mu       sync.Mutex
	commands []string
	failures map[string]string
}

func (s *fakeServer) serve() {
	scanner := bufio.NewScanner(s.conn)
	for scanner.Scan() {
		var cmd ipcCommand
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			continue
		}

		words := make([]string, len(cmd.Command))
		for i, arg := range cmd.Command {
			words[i] = fmt.Sprint(arg)
		}
		line := strings.Join(words, " ")

		s.mu.Lock()
		s.commands = append(s.commands, line)
		status, failed := s.failures[words[0]]
		s.mu.Unlock()

		if !failed {
			status = "success"
		}
		if status == "" {
			continue
		}
		s.send(map[string]any{"request_id": cmd.RequestID, "error": status, "data": nil})

		if words[0] == "quit" && !s.engine.ignoreQuit {
			s.engine.exit()
		}
	}
}

func (s *fakeServer) send(message map[string]any) {
	payload, _ := json.Marshal(message)
	_, _ = s.conn.Write(append(payload, '\n'))
}

func (s *fakeServer) event(name string, fields map[string]any) {
	message := map[string]any{"event": name}
	for k, v := range fields {
		message[k] = v
	}
	s.send(message)
}

func (s *fakeServer) property(name string, data any) {
	s.event("property-change", map[string]any{"name": name, "data": data})
}

func (s *fakeServer) fail(command, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[command] = status
}

// silence makes the server accept command without replying.
func (s *fakeServer) silence(command string) {
	s.fail(command, "")
}

func (s *fakeServer) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.commands)
}

func (s *fakeServer) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = nil
}

// fakeMPV starts fake engines and serves their sockets in memory.
type fakeMPV struct {
	mu       sync.Mutex
	engines  []*fakeEngine
	servers  []*fakeServer
	prepare  func(*fakeEngine)
	startErr error
	noSocket bool
}

func (f *fakeMPV) start(_ string, args []string, _ func(string)) (engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.startErr != nil {
		return nil, f.startErr
	}

	e := newFakeEngine(args)
	if f.prepare != nil {
		f.prepare(e)
	}
	f.engines = append(f.engines, e)
	return e, nil
}

func (f *fakeMPV) dial(string) (net.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.noSocket || len(f.engines) == 0 {
		return nil, errors.New("connection refused")
	}

	clientEnd, serverEnd := net.Pipe()
	s := &fakeServer{conn: serverEnd, engine: f.engines[len(f.engines)-1], failures: map[string]string{}}
	f.servers = append(f.servers, s)
	go s.serve()

	go func(e *fakeEngine) {
		<-e.exited
		_ = serverEnd.Close()
	}(s.engine)

	return clientEnd, nil
}

func (f *fakeMPV) engine() *fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engines[len(f.engines)-1]
}

func (f *fakeMPV) server() *fakeServer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.servers[len(f.servers)-1]
}

func (f *fakeMPV) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

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
	h.record("streams %q %d", streams, active)
}

func (h *fakeHost) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.calls)
}

func (h *fakeHost) saw(call string) bool {
	return slices.Contains(h.recorded(), call)
}

func (h *fakeHost) reset() {
	h.mu.Lock()
	h.calls = nil
	h.mu.Unlock()
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
