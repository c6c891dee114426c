package player

import (
	"slices"
	"sync"
	"time"

	"github.com/subplay/subplay/log"
	"github.com/subplay/subplay/service"
)

var logger = log.For("player")

// Player is the playback state machine callers drive. It owns the canonical
// state, position, length, audio streams and volume, and forwards commands to
// the active backend of its registry.
//
// Commands report whether they were attempted; outcomes arrive as events.
// Events are delivered in emission order after the Player's lock is released,
// so subscribers may call back into the Player.
type Player struct {
	mu       sync.Mutex
	registry *service.Registry[Backend]
	active   Backend

	state             State
	path              string
	position          float64
	savedPosition     float64
	length            float64
	fps               float64
	minPositionDelta  float64
	audioStreams      []string
	activeAudioStream int
	volume            float64
	muted             bool

	openTimeout time.Duration
	reseekDelay time.Duration
	afterFunc   AfterFunc
	watchdog    Timer
	openGen     uint64
	reseek      Timer
	reseekGen   uint64

	queueMu     sync.Mutex
	queue       []Event
	draining    bool
	subscribers map[int]func(Event)
	nextSubID   int
}

// New creates an uninitialized Player whose registry holds only the Dummy backend.
func New(opts ...Option) *Player {
	p := &Player{
		state:       Uninitialized,
		volume:      100,
		openTimeout: DefaultOpenTimeout,
		reseekDelay: DefaultReseekDelay,
		afterFunc:   realAfterFunc,
		subscribers: make(map[int]func(Event)),
	}
	p.clear()

	for _, opt := range opts {
		opt(p)
	}

	p.registry = service.New(service.Hooks[Backend]{
		Initialize: func(name string, b Backend) error {
			if err := b.Initialize(p); err != nil {
				return err
			}
			p.active = b
			return nil
		},
		Finalize: func(name string, b Backend) {
			p.closeFile()
			b.Finalize()
		},
		Initialized: func(name string) {
			p.state = Closed
			p.emit(EventBackendInitialized{Name: name})
		},
		Finalized: func(name string) {
			p.active = nil
			p.state = Uninitialized
			p.emit(EventBackendFinalized{Name: name})
		},
	})
	p.registry.SetFallback(DummyName, Dummy{})

	return p
}

// Register adds a backend under name. Backends are tried in registration order.
func (p *Player) Register(name string, backend Backend) {
	p.registry.Register(name, backend)
}

// Initialize activates the preferred backend, falling back to the others and
// finally to the Dummy. It returns false only if the Player was already initialized.
func (p *Player) Initialize(preferred string) bool {
	return p.do(func() bool {
		if err := p.registry.Initialize(preferred); err != nil {
			logger.Errorf("initialize %s: %v", preferred, err)
			return false
		}
		return true
	})
}

// Finalize closes any open file and tears down the active backend.
func (p *Player) Finalize() {
	p.do(func() bool {
		p.registry.Finalize()
		return true
	})
}

// SetActiveBackend switches to the named backend, closing any open file first.
func (p *Player) SetActiveBackend(name string) bool {
	return p.do(func() bool {
		if err := p.registry.Reinitialize(name); err != nil {
			logger.Errorf("reinitialize %s: %v", name, err)
			return false
		}
		return true
	})
}

// BackendNames lists registered backends in the order they are tried.
func (p *Player) BackendNames() []string {
	return p.registry.Names()
}

// Backends describes registered backends in the order they are tried.
func (p *Player) Backends() []service.Descriptor[Backend] {
	return p.registry.Descriptors()
}

// ActiveBackendName returns the name of the active backend, or an empty string.
func (p *Player) ActiveBackendName() string {
	return p.registry.ActiveName()
}

// IsInitialized reports whether a backend is active.
func (p *Player) IsInitialized() bool {
	return p.registry.IsInitialized()
}

// SetApplicationClosingDown tells backends the application is shutting down.
func (p *Player) SetApplicationClosingDown() {
	p.registry.SetApplicationClosingDown()
}

// Subscribe registers fn for every future event and returns a function that removes it.
func (p *Player) Subscribe(fn func(Event)) (cancel func()) {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()

	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = fn

	return func() {
		p.queueMu.Lock()
		defer p.queueMu.Unlock()
		delete(p.subscribers, id)
	}
}

// do runs fn under the lock and delivers the events it emitted afterwards.
func (p *Player) do(fn func() bool) bool {
	p.mu.Lock()
	ok := fn()
	p.mu.Unlock()

	p.drain()
	return ok
}

// emit queues an event. Callers hold p.mu, which keeps queue order equal to emission order.
func (p *Player) emit(e Event) {
	p.queueMu.Lock()
	p.queue = append(p.queue, e)
	p.queueMu.Unlock()
}

func (p *Player) drain() {
	p.queueMu.Lock()
	if p.draining {
		p.queueMu.Unlock()
		return
	}
	p.draining = true

	for len(p.queue) > 0 {
		e := p.queue[0]
		p.queue = p.queue[1:]

		ids := make([]int, 0, len(p.subscribers))
		for id := range p.subscribers {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		subs := make([]func(Event), 0, len(ids))
		for _, id := range ids {
			subs = append(subs, p.subscribers[id])
		}

		p.queueMu.Unlock()
		for _, fn := range subs {
			fn(e)
		}
		p.queueMu.Lock()
	}

	p.draining = false
	p.queueMu.Unlock()
}

// clear forgets everything known about the open file.
func (p *Player) clear() {
	p.path = ""
	p.position = -1
	p.savedPosition = -1
	p.length = -1
	p.fps = -1
	p.minPositionDelta = DefaultMinPositionDelta
	p.activeAudioStream = -1
	p.audioStreams = nil
}

// resetState collapses to Closed, dropping all file state and pending timers.
func (p *Player) resetState() {
	p.disarmWatchdog()
	p.cancelReseek()
	p.clear()
	p.state = Closed
}

func (p *Player) armWatchdog() {
	p.disarmWatchdog()
	gen := p.openGen
	p.watchdog = p.afterFunc(p.openTimeout, func() {
		p.onOpenTimeout(gen)
	})
}

func (p *Player) disarmWatchdog() {
	p.openGen++
	if p.watchdog != nil {
		p.watchdog.Stop()
		p.watchdog = nil
	}
}

func (p *Player) onOpenTimeout(gen uint64) {
	p.do(func() bool {
		if gen != p.openGen || p.state != Opening {
			return false
		}

		path := p.path
		logger.Warnf("%s was not confirmed within %s", path, p.openTimeout)

		_ = p.active.Stop()
		p.active.CloseFile()
		p.resetState()

		p.emit(EventFileOpenError{Path: path})
		return true
	})
}

func (p *Player) scheduleReseek() {
	p.cancelReseek()
	gen := p.reseekGen
	p.reseek = p.afterFunc(p.reseekDelay, func() {
		p.do(func() bool {
			if gen != p.reseekGen {
				return false
			}
			p.reseek = nil
			p.seekToSavedPosition()
			return true
		})
	})
}

func (p *Player) cancelReseek() {
	p.reseekGen++
	if p.reseek != nil {
		p.reseek.Stop()
		p.reseek = nil
	}
}

// backendVolume is the value the active backend applies for the current volume and mute.
func (p *Player) backendVolume() float64 {
	if p.muted {
		return 0
	}
	if p.active != nil && p.active.DoesVolumeCorrection() {
		return p.volume
	}
	return LogarithmicVolume(p.volume)
}

// fail applies the universal recovery rule after a backend command failed.
func (p *Player) fail(err error) {
	logger.Errorf("backend %T: %v", p.active, err)
	p.resetState()
	p.emit(EventPlaybackError{Message: err.Error()})
}

// Queries

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) IsPlaying() bool { return p.State() == Playing }
func (p *Player) IsPaused() bool  { return p.State() == Paused }
func (p *Player) IsStopped() bool { return p.State() == Ready }

// FilePath returns the open file, or an empty string.
func (p *Player) FilePath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path
}

// Position returns the last reported position in seconds, or -1 when unknown.
func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Length returns the media length in seconds, or -1 when unknown.
func (p *Player) Length() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.length
}

// FramesPerSecond returns the video frame rate, or -1 when unknown.
func (p *Player) FramesPerSecond() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fps
}

func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) IsMuted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// AudioStreams returns the audio stream names. It is empty until the open is confirmed.
func (p *Player) AudioStreams() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state <= Opening {
		return nil
	}
	return slices.Clone(p.audioStreams)
}

// ActiveAudioStream returns the active audio stream index, or -1.
func (p *Player) ActiveAudioStream() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeAudioStream
}
