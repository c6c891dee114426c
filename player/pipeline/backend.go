// Package pipeline plays media through an in-process processing graph whose
// state changes complete asynchronously and are observed by polling.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/subplay/subplay/internal/dispatch"
	"github.com/subplay/subplay/log"
	"github.com/subplay/subplay/player"
)

// Name is the registry name of the backend.
const Name = "Pipeline"

const (
	defaultPollInterval = 20 * time.Millisecond
	blockingTimeout     = time.Second
)

var _ player.Backend = (*Backend)(nil)

// Backend implements player.Backend on top of a Graph.
type Backend struct {
	log      log.Component
	config   func() Config
	newGraph GraphFactory
	interval time.Duration

	mu             sync.Mutex
	host           player.Host
	events         *dispatch.Queue
	graph          Graph
	updatePosition bool
	lengthKnown    bool
	stopPoll       chan struct{}
	pollDone       chan struct{}
}

// New creates a Backend building beep graphs.
func New() *Backend {
	return newBackend(ConfigFromViper, NewBeepGraph, defaultPollInterval)
}

func newBackend(config func() Config, newGraph GraphFactory, interval time.Duration) *Backend {
	return &Backend{
		log:      log.For("pipeline"),
		config:   config,
		newGraph: newGraph,
		interval: interval,
	}
}

// Initialize validates the configured sink and starts polling.
func (b *Backend) Initialize(host player.Host) error {
	if _, err := sinkFor(b.config().AudioSink); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.host = host
	b.events = dispatch.New()
	b.stopPoll = make(chan struct{})
	b.pollDone = make(chan struct{})
	go b.pollLoop(b.stopPoll, b.pollDone)
	return nil
}

func (b *Backend) Finalize() {
	b.mu.Lock()
	graph := b.graph
	b.graph = nil
	stop, done := b.stopPoll, b.pollDone
	events := b.events
	b.events = nil
	b.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if graph != nil {
		graph.Close()
	}
	if events != nil {
		events.Close()
	}
}

// OpenFile builds a fresh graph for path and starts it without waiting.
// The volume starts at zero until the player applies its own.
func (b *Backend) OpenFile(path string) (bool, error) {
	b.dropGraph()

	graph, err := b.newGraph(path, b.config())
	if err != nil {
		return false, err
	}

	if graph.SetState(Ready, blockingTimeout) == Failure {
		err := failure(graph)
		graph.Close()
		return false, fmt.Errorf("prepare %s: %w", path, err)
	}

	graph.SetVolume(0)

	b.mu.Lock()
	b.graph = graph
	b.updatePosition = false
	b.lengthKnown = false
	b.mu.Unlock()

	if graph.SetState(Playing, 0) == Failure {
		return false, fmt.Errorf("start %s: %w", path, ErrStateChange)
	}
	return true, nil
}

// CloseFile releases the graph, flushing everything linked.
func (b *Backend) CloseFile() {
	b.dropGraph()
}

func (b *Backend) dropGraph() {
	b.mu.Lock()
	graph := b.graph
	b.graph = nil
	b.mu.Unlock()

	if graph != nil {
		graph.Close()
	}
}

// failure takes the error a failed transition posted.
func failure(graph Graph) error {
	for {
		message, ok := graph.Pop()
		if !ok {
			return ErrStateChange
		}
		if m, ok := message.(MessageError); ok {
			return m.Err
		}
	}
}

func (b *Backend) current() (Graph, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.graph == nil {
		return nil, ErrNoGraph
	}
	return b.graph, nil
}

func (b *Backend) Play() error {
	return b.request(Playing, 0)
}

func (b *Backend) Pause() error {
	return b.request(Paused, 0)
}

func (b *Backend) Stop() error {
	return b.request(Ready, blockingTimeout)
}

func (b *Backend) request(state GraphState, timeout time.Duration) error {
	graph, err := b.current()
	if err != nil {
		return err
	}

	if graph.SetState(state, timeout) == Failure {
		return fmt.Errorf("%s: %w", state, ErrStateChange)
	}
	return nil
}

func (b *Backend) Seek(seconds float64, accurate bool) error {
	graph, err := b.current()
	if err != nil {
		return err
	}
	return graph.Seek(seconds, accurate)
}

// SetActiveAudioStream selects the stream linked when the graph next leaves Ready.
func (b *Backend) SetActiveAudioStream(index int) error {
	graph, err := b.current()
	if err != nil {
		return err
	}

	graph.SetAudioStream(index)
	return nil
}

func (b *Backend) SetVolume(volume float64) error {
	graph, err := b.current()
	if err != nil {
		return err
	}

	graph.SetVolume(volume * 0.01)
	return nil
}

func (b *Backend) DoesVolumeCorrection() bool { return true }

// SupportsChangingAudioStream reports that a new stream is linked only by a
// stop and replay cycle.
func (b *Backend) SupportsChangingAudioStream() (bool, bool) { return true, false }

func (b *Backend) pollLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.poll()
		}
	}
}

// poll queries position and duration, then drains the bus. Reports go
// through the dispatcher.
func (b *Backend) poll() {
	b.mu.Lock()
	graph := b.graph
	update := b.updatePosition
	lengthKnown := b.lengthKnown
	b.mu.Unlock()

	if graph == nil {
		return
	}

	if !lengthKnown {
		if seconds, ok := graph.Duration(); ok {
			b.setLengthKnown(true)
			b.report(func(host player.Host) { host.SetLength(seconds) })
		}
	}

	if update {
		if seconds, ok := graph.Position(); ok {
			b.report(func(host player.Host) { host.SetPosition(seconds) })
		}
	}

	for {
		message, ok := graph.Pop()
		if !ok {
			return
		}

		if !b.handle(graph, message) {
			return
		}
	}
}

// handle translates one bus message. It returns false when the rest of the
// bus must be skipped.
func (b *Backend) handle(graph Graph, message Message) bool {
	switch m := message.(type) {
	case MessageStateChanged:
		if m.Old == Ready && m.New > Ready {
			b.updateAudioData(graph)
		}

		// intermediate steps of a multi-step transition are not reported
		if m.Old == m.New || m.New != graph.State() {
			return true
		}

		switch m.New {
		case Paused:
			b.setUpdatePosition(false)
			b.report(func(host player.Host) { host.SetState(player.Paused) })
		case Playing:
			b.setUpdatePosition(true)
			b.report(func(host player.Host) { host.SetState(player.Playing) })
		case Ready:
			b.setUpdatePosition(false)
			b.report(func(host player.Host) { host.SetState(player.Ready) })
		}
	case MessageDuration:
		b.setLengthKnown(true)
		b.report(func(host player.Host) { host.SetLength(m.Seconds) })
	case MessageEOS:
		b.setUpdatePosition(false)
		b.report(func(host player.Host) { host.SetState(player.Ready) })
		b.rearm(graph)
		return false
	case MessageError:
		b.log.Errorf("graph error: %v (%s)", m.Err, m.Debug)
		graph.SetState(Null, 0)
		message := m.Err.Error()
		b.report(func(host player.Host) { host.SetErrorState(message) })
		return false
	}
	return true
}

// rearm returns the graph to Ready at position zero without playing, so
// the next Play starts over. Transitions it causes are already reported.
func (b *Backend) rearm(graph Graph) {
	graph.SetState(Ready, blockingTimeout)
	if err := graph.Seek(0, true); err != nil {
		b.log.Warnf("rewind: %v", err)
	}
	b.setLengthKnown(false)

	for {
		if _, ok := graph.Pop(); !ok {
			return
		}
	}
}

func (b *Backend) updateAudioData(graph Graph) {
	names := StreamNames(graph.AudioStreams())
	active := -1
	if len(names) > 0 {
		active = graph.AudioStream()
	}
	b.report(func(host player.Host) { host.SetAudioStreams(names, active) })
}

func (b *Backend) setUpdatePosition(update bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updatePosition = update
}

func (b *Backend) setLengthKnown(known bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lengthKnown = known
}

// report hands fn to the dispatcher so the host is never called from a Backend method.
func (b *Backend) report(fn func(player.Host)) {
	b.mu.Lock()
	host, events := b.host, b.events
	b.mu.Unlock()

	if events != nil {
		events.Post(func() { fn(host) })
	}
}
