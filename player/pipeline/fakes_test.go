package pipeline

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/subplay/subplay/player"
)

type fakeHost struct {
	mu    sync.Mutex
	calls []string
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
func (h *fakeHost) ApplicationClosingDown() bool   { return false }
func (h *fakeHost) SetAudioStreams(streams []string, active int) {
	h.record("streams %v %d", streams, active)
}

func (h *fakeHost) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.calls)
}

func (h *fakeHost) reset() {
	h.mu.Lock()
	h.calls = nil
	h.mu.Unlock()
}

// fakeGraph moves to any requested state in one step unless a result is scripted.
type fakeGraph struct {
	mu       sync.Mutex
	path     string
	state    GraphState
	results  map[GraphState]StateChangeReturn
	calls    []string
	bus      Bus
	position float64
	duration float64
	linked   bool
	streams  []StreamInfo
	selected int
	closed   bool
}

func (g *fakeGraph) record(format string, args ...any) {
	g.calls = append(g.calls, fmt.Sprintf(format, args...))
}

func (g *fakeGraph) SetState(state GraphState, _ time.Duration) StateChangeReturn {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.record("state %s", state)
	if r, ok := g.results[state]; ok && r != Success {
		return r
	}
	g.state = state
	g.linked = state >= Paused
	return Success
}

func (g *fakeGraph) State() GraphState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *fakeGraph) Position() (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position, g.linked
}

func (g *fakeGraph) Duration() (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.duration, g.linked
}

func (g *fakeGraph) Seek(seconds float64, accurate bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("seek %g %t", seconds, accurate)
	return nil
}

func (g *fakeGraph) SetVolume(fraction float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("volume %g", fraction)
}

func (g *fakeGraph) SetAudioStream(index int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("stream %d", index)
	g.selected = index
}

func (g *fakeGraph) AudioStream() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selected
}

func (g *fakeGraph) AudioStreams() []StreamInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.streams)
}

func (g *fakeGraph) Pop() (Message, bool) { return g.bus.Pop() }

func (g *fakeGraph) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}

func (g *fakeGraph) set(state GraphState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = state
	g.linked = state >= Paused
}

func (g *fakeGraph) recorded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

func (g *fakeGraph) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}

func (g *fakeGraph) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// fakeFactory hands out fakeGraphs, letting tests script each one.
type fakeFactory struct {
	mu      sync.Mutex
	graphs  []*fakeGraph
	prepare func(*fakeGraph)
	err     error
}

func (f *fakeFactory) build(path string, _ Config) (Graph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	g := &fakeGraph{path: path, results: map[GraphState]StateChangeReturn{}}
	if f.prepare != nil {
		f.prepare(g)
	}
	f.graphs = append(f.graphs, g)
	return g, nil
}

func (f *fakeFactory) last() *fakeGraph {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.graphs) == 0 {
		return nil
	}
	return f.graphs[len(f.graphs)-1]
}

// pullSink is a sink driven by the test instead of a clock.
type pullSink struct {
	mu    sync.Mutex
	mixer beep.Mixer
	rate  beep.SampleRate
}

func (s *pullSink) open(rate beep.SampleRate) (beep.SampleRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rate == 0 {
		s.rate = rate
	}
	return s.rate, nil
}

func (s *pullSink) play(streamer beep.Streamer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mixer.Add(streamer)
}

func (s *pullSink) lock()   { s.mu.Lock() }
func (s *pullSink) unlock() { s.mu.Unlock() }

// pull consumes n samples in chunks of chunk.
func (s *pullSink) pull(n, chunk int) {
	buf := make([][2]float64, chunk)
	for ; n > 0; n -= chunk {
		s.mu.Lock()
		s.mixer.Stream(buf[:min(chunk, n)])
		s.mu.Unlock()
	}
}

func (s *pullSink) attached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mixer.Len()
}

func drain(g Graph) []Message {
	var messages []Message
	for {
		m, ok := g.Pop()
		if !ok {
			return messages
		}
		messages = append(messages, m)
	}
}
