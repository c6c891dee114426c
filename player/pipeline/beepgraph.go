package pipeline

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/samber/mo"
	"github.com/subplay/subplay/filesystem"
	"github.com/subplay/subplay/log"
	"github.com/subplay/subplay/util"
)

// chain is the linked part of a graph:
// decoder -> resampler -> ctrl -> volume -> tail -> sink.
// Fields read by the sink are only written with the sink locked.
type chain struct {
	decoder beep.StreamSeekCloser
	format  beep.Format
	ctrl    *beep.Ctrl
	volume  *effects.Volume
	tail    *tail
}

// tail keeps the chain attached to the sink after the decoder runs out,
// playing silence, and reports the end once until the next seek.
type tail struct {
	streamer beep.Streamer
	onEnd    func()
	ended    bool
	detached bool
}

func (t *tail) Stream(samples [][2]float64) (int, bool) {
	if t.detached {
		return 0, false
	}

	n := 0
	if !t.ended {
		var ok bool
		n, ok = t.streamer.Stream(samples)
		if !ok || n < len(samples) {
			t.ended = true
			t.onEnd()
		}
	}

	clear(samples[n:])
	return len(samples), true
}

func (t *tail) Err() error { return t.streamer.Err() }

// beepGraph is a Graph decoding one audio stream in process.
type beepGraph struct {
	log    log.Component
	path   string
	config Config
	output sink
	bus    Bus

	mu         sync.Mutex
	state      GraphState
	target     GraphState
	streams    []StreamInfo
	selected   int
	fraction   float64
	seek       mo.Option[float64]
	chain      *chain
	linkDone   chan struct{}
	generation uint64
	closed     bool
}

var _ Graph = (*beepGraph)(nil)

// NewBeepGraph is the GraphFactory of the in-process decoder.
func NewBeepGraph(path string, config Config) (Graph, error) {
	output, err := sinkFor(config.AudioSink)
	if err != nil {
		return nil, err
	}
	return newBeepGraph(path, config, output), nil
}

func newBeepGraph(path string, config Config, output sink) *beepGraph {
	return &beepGraph{
		log:      log.For("pipeline"),
		path:     path,
		config:   config,
		output:   output,
		fraction: 1,
	}
}

func (g *beepGraph) SetState(target GraphState, timeout time.Duration) StateChangeReturn {
	g.mu.Lock()

	if g.closed {
		g.mu.Unlock()
		return Failure
	}

	g.target = target

	if target < Paused && g.linkDone != nil {
		// the pending link is discarded when it completes
		g.generation++
		g.linkDone = nil
	}

	for g.state > target {
		g.stepDown()
	}

	if g.state == Null && target > Null {
		if err := g.prepare(); err != nil {
			g.mu.Unlock()
			return Failure
		}
	}

	if g.state == Paused && target == Playing {
		g.play()
	}

	if g.state == target {
		g.mu.Unlock()
		return Success
	}

	// Ready, linking towards Paused or Playing
	if g.linkDone == nil {
		g.generation++
		g.linkDone = make(chan struct{})
		go g.link(g.generation, g.linkDone, slices.Clone(g.streams), g.selected)
	}
	done := g.linkDone
	g.mu.Unlock()

	if timeout <= 0 {
		return Async
	}

	select {
	case <-done:
	case <-time.After(timeout):
		return Async
	}

	if g.State() == target {
		return Success
	}
	return Failure
}

// prepare runs stream discovery, moving Null to Ready.
func (g *beepGraph) prepare() error {
	streams, err := discover(g.path)
	if err != nil {
		g.fail(err)
		return err
	}

	g.streams = streams
	g.transition(Ready)
	return nil
}

func (g *beepGraph) play() {
	g.output.lock()
	g.chain.ctrl.Paused = false
	g.output.unlock()
	g.transition(Playing)
}

func (g *beepGraph) stepDown() {
	switch g.state {
	case Playing:
		g.output.lock()
		g.chain.ctrl.Paused = true
		g.output.unlock()
		g.transition(Paused)
	case Paused:
		g.unlink()
		g.transition(Ready)
	case Ready:
		g.streams = nil
		g.seek = mo.None[float64]()
		g.transition(Null)
	}
}

func (g *beepGraph) unlink() {
	g.output.lock()
	g.chain.tail.detached = true
	g.output.unlock()

	if err := g.chain.decoder.Close(); err != nil {
		g.log.Warnf("close decoder: %v", err)
	}
	g.chain = nil
}

func (g *beepGraph) transition(state GraphState) {
	old := g.state
	g.state = state
	g.log.Debugf("%s -> %s", old, state)
	g.bus.Post(MessageStateChanged{Old: old, New: state})
}

func (g *beepGraph) fail(err error) {
	g.log.Errorf("%s: %v", g.path, err)
	g.bus.Post(MessageError{Err: err, Debug: g.path})
}

// link builds and attaches the chain outside the lock, then completes the
// transition unless it was superseded meanwhile.
func (g *beepGraph) link(generation uint64, done chan struct{}, streams []StreamInfo, selected int) {
	defer close(done)

	c, err := g.build(streams, selected)

	g.mu.Lock()
	defer g.mu.Unlock()

	if generation != g.generation || g.closed {
		if c != nil {
			_ = c.decoder.Close()
		}
		return
	}
	g.linkDone = nil

	if err != nil {
		g.fail(err)
		return
	}

	if seconds, ok := g.seek.Get(); ok {
		if err := g.seekChain(c, seconds); err != nil {
			g.log.Warnf("deferred seek: %v", err)
		}
		g.seek = mo.None[float64]()
	}

	g.applyVolume(c)
	g.chain = c
	g.output.play(c.tail)
	g.transition(Paused)

	g.bus.Post(MessageDuration{Seconds: c.format.SampleRate.D(c.decoder.Len()).Seconds()})

	if g.target == Playing {
		g.play()
	}
}

// build announces every discovered stream to onStream and decodes the one it accepts.
func (g *beepGraph) build(streams []StreamInfo, selected int) (*chain, error) {
	audio := audioOnly(streams)
	if len(audio) == 0 {
		return nil, ErrNoAudioStream
	}
	if selected < 0 || selected >= len(audio) {
		selected = 0
	}

	var linked mo.Option[StreamInfo]
	index := 0
	for _, stream := range streams {
		if onStream(stream, index, selected) {
			linked = mo.Some(stream)
		}
		if stream.Kind == KindAudio {
			index++
		}
	}

	stream, ok := linked.Get()
	if !ok {
		return nil, ErrNoAudioStream
	}

	rate, err := g.output.open(g.config.sampleRate())
	if err != nil {
		return nil, err
	}

	file, err := filesystem.API().Open(stream.Path)
	if err != nil {
		return nil, err
	}

	decoder, format, err := decoders[extension(stream.Path)](file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("decode %s: %w", stream.Path, err)
	}

	c := &chain{decoder: decoder, format: format}
	c.ctrl = &beep.Ctrl{Streamer: beep.Resample(g.config.quality(), format.SampleRate, rate, decoder), Paused: true}
	c.volume = &effects.Volume{Streamer: c.ctrl, Base: 2}
	c.tail = &tail{
		streamer: c.volume,
		onEnd: func() {
			g.bus.Post(MessageEOS{})
		},
	}
	return c, nil
}

// onStream decides whether a discovered stream is linked. Streams left
// unlinked are never decoded.
func onStream(stream StreamInfo, audioIndex, selected int) bool {
	return stream.Kind == KindAudio && audioIndex == selected
}

func (g *beepGraph) State() GraphState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *beepGraph) Position() (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.chain == nil {
		return 0, false
	}

	g.output.lock()
	position := g.chain.decoder.Position()
	g.output.unlock()

	return g.chain.format.SampleRate.D(position).Seconds(), true
}

func (g *beepGraph) Duration() (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.chain == nil {
		return 0, false
	}
	return g.chain.format.SampleRate.D(g.chain.decoder.Len()).Seconds(), true
}

// Seek moves the decoder. A fast seek lands on the whole second before
// seconds. Seeking a graph that is not linked yet applies once it is.
func (g *beepGraph) Seek(seconds float64, accurate bool) error {
	if !accurate {
		seconds = math.Floor(seconds)
	}
	seconds = max(seconds, 0)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.chain == nil {
		if g.state < Ready {
			return ErrNotLinked
		}
		g.seek = mo.Some(seconds)
		return nil
	}

	return g.seekChain(g.chain, seconds)
}

func (g *beepGraph) seekChain(c *chain, seconds float64) error {
	position := util.Clamp(c.format.SampleRate.N(time.Duration(seconds*float64(time.Second))), 0, max(c.decoder.Len()-1, 0))

	g.output.lock()
	defer g.output.unlock()

	if err := c.decoder.Seek(position); err != nil {
		return fmt.Errorf("seek to %gs: %w", seconds, err)
	}
	c.tail.ended = false
	return nil
}

func (g *beepGraph) SetVolume(fraction float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.fraction = util.Clamp(fraction, 0, 1)
	if g.chain != nil {
		g.applyVolume(g.chain)
	}
}

// applyVolume maps the fraction to a gain following a square law, which
// tracks perceived loudness closely enough.
func (g *beepGraph) applyVolume(c *chain) {
	g.output.lock()
	defer g.output.unlock()

	c.volume.Silent = g.fraction <= 0
	if g.fraction > 0 {
		c.volume.Volume = 2 * math.Log2(g.fraction)
	}
}

func (g *beepGraph) SetAudioStream(index int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selected = index
}

func (g *beepGraph) AudioStream() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.selected < 0 || g.selected >= len(audioOnly(g.streams)) {
		return 0
	}
	return g.selected
}

func (g *beepGraph) AudioStreams() []StreamInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return audioOnly(g.streams)
}

func (g *beepGraph) Pop() (Message, bool) {
	return g.bus.Pop()
}

// Close unlinks the graph and refuses further state changes.
func (g *beepGraph) Close() {
	g.SetState(Null, 0)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}
