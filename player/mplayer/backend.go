// Package mplayer drives an MPlayer process in slave mode over its stdin and output.
package mplayer

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/subplay/subplay/internal/dispatch"
	"github.com/subplay/subplay/log"
	"github.com/subplay/subplay/player"
)

// Name is the registry name of the backend.
const Name = "MPlayer"

const defaultStopWait = 3 * time.Second

// ErrEndedPrematurely is returned when a restarted process exits right away.
var ErrEndedPrematurely = errors.New("mplayer ended prematurely")

type playState int

const (
	stopped playState = iota
	paused
	playing
)

var _ player.Backend = (*Backend)(nil)

// Backend implements player.Backend on top of an MPlayer process.
type Backend struct {
	log      log.Component
	config   func() Config
	lookPath func(string) (string, error)
	start    startFunc
	stopWait time.Duration

	// serializes Backend calls, which the player already does; the seek loop relies on it
	callM sync.Mutex

	mu            sync.Mutex
	host          player.Host
	events        *dispatch.Queue
	slave         *slave
	cfg           Config
	path          string
	state         playState
	reportUpdates bool
	volume        float64
	audioStream   int
	audioCount    int
}

// New creates a Backend reading its options from viper on every start.
func New() *Backend {
	return newBackend(ConfigFromViper, exec.LookPath, startProcess)
}

func newBackend(config func() Config, lookPath func(string) (string, error), start startFunc) *Backend {
	return &Backend{
		log:           log.For("mplayer"),
		config:        config,
		lookPath:      lookPath,
		start:         start,
		stopWait:      defaultStopWait,
		reportUpdates: true,
		volume:        -1,
		audioStream:   -1,
	}
}

// Initialize checks the executable is available and starts the event dispatcher.
func (b *Backend) Initialize(host player.Host) error {
	cfg := b.config()
	if _, err := b.lookPath(cfg.Executable); err != nil {
		return fmt.Errorf("find %s: %w", cfg.Executable, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.host = host
	b.cfg = cfg
	b.events = dispatch.New()
	b.slave = newSlave(b.start, b.receive)
	return nil
}

func (b *Backend) Finalize() {
	_ = b.Stop()

	b.mu.Lock()
	events := b.events
	b.events = nil
	b.mu.Unlock()

	if events != nil {
		events.Close()
	}
}

func (b *Backend) OpenFile(path string) (bool, error) {
	b.callM.Lock()
	defer b.callM.Unlock()

	b.mu.Lock()
	b.path = path
	b.state = stopped
	b.reportUpdates = true
	b.audioStream = -1
	b.audioCount = 0
	b.mu.Unlock()

	if err := b.launch(); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) CloseFile() {
	b.mu.Lock()
	b.path = ""
	b.mu.Unlock()
}

// launch starts the process for the current file and stream selection.
func (b *Backend) launch() error {
	cfg := b.config()
	media := b.slave.mediaData()

	b.mu.Lock()
	b.cfg = cfg
	path := b.path
	aid := -1
	if b.audioCount > 1 {
		aid = media.IDForIndex(b.audioStream)
	}
	count := b.audioCount
	b.mu.Unlock()

	return b.slave.launch(cfg.Executable, cfg.args(path, aid, count))
}

// Stop asks the process to quit, then terminates and finally kills it,
// waiting a bounded time after each step.
func (b *Backend) Stop() error {
	b.callM.Lock()
	defer b.callM.Unlock()
	return b.stop()
}

func (b *Backend) stop() error {
	if b.slave == nil || !b.slave.running() {
		return nil
	}

	// a quit sent while the application goes down is never processed
	if !b.host.ApplicationClosingDown() {
		b.slave.sendQuit()
		if b.slave.waitExit(b.stopWait) {
			return nil
		}
	}

	b.log.Warnf("process did not quit, terminating")
	b.slave.terminate()
	if b.slave.waitExit(b.stopWait) {
		return nil
	}

	b.log.Warnf("process did not terminate, killing")
	b.slave.kill()
	b.slave.waitExit(b.stopWait)
	return nil
}

// Play restarts the process when it is not running and toggles pause otherwise.
func (b *Backend) Play() error {
	b.callM.Lock()
	defer b.callM.Unlock()

	if b.slave.running() {
		b.slave.sendTogglePause()
		return nil
	}
	return b.restart()
}

// Pause toggles pause, restarting the process first when it is not running.
func (b *Backend) Pause() error {
	b.callM.Lock()
	defer b.callM.Unlock()

	if !b.slave.running() {
		if err := b.restart(); err != nil {
			return err
		}
	}
	b.slave.sendTogglePause()
	return nil
}

func (b *Backend) restart() error {
	if err := b.launch(); err != nil {
		return err
	}
	if !b.slave.running() {
		return ErrEndedPrematurely
	}
	return nil
}

// Seek either steps back until the engine lands at or before seconds, or
// queues a keyframe seek replacing any seek not yet sent.
func (b *Backend) Seek(seconds float64, accurate bool) error {
	b.callM.Lock()
	defer b.callM.Unlock()

	if !b.slave.running() {
		return player.ErrNotRunning
	}

	if !accurate {
		b.slave.sendFastSeek(seconds)
		return nil
	}

	b.mu.Lock()
	wasMuted := b.volume == 0
	b.reportUpdates = false
	b.mu.Unlock()

	wasPaused := b.slave.isPaused()
	wrap := b.slave.engineVersion() == 1

	if wrap {
		if !wasPaused {
			b.slave.sendTogglePause()
		}
		if !wasMuted {
			b.slave.sendToggleMute()
		}
	}

	target := seconds
	for {
		b.slave.sendSeek(target)

		if target <= 0 {
			break
		}
		target = max(target-1, 0)

		if b.slave.lastPosition() <= seconds {
			break
		}
	}

	if wrap {
		if !wasMuted {
			b.slave.sendToggleMute()
		}
		if !wasPaused {
			b.slave.sendTogglePause()
		}
	}

	b.mu.Lock()
	b.reportUpdates = true
	b.mu.Unlock()

	position := b.slave.lastPosition()
	b.report(func(host player.Host) { host.SetPosition(position) })
	return nil
}

// SetActiveAudioStream switches to the track at index and reapplies the volume.
func (b *Backend) SetActiveAudioStream(index int) error {
	b.callM.Lock()
	defer b.callM.Unlock()

	b.mu.Lock()
	b.audioStream = index
	volume := b.volume
	b.mu.Unlock()

	if !b.slave.running() {
		return nil
	}

	b.slave.sendAudioStream(b.slave.mediaData().IDForIndex(index))
	if volume >= 0 {
		b.sendVolume(volume)
	}
	return nil
}

func (b *Backend) SetVolume(volume float64) error {
	b.callM.Lock()
	defer b.callM.Unlock()

	b.mu.Lock()
	b.volume = volume
	b.mu.Unlock()

	b.sendVolume(volume)
	return nil
}

func (b *Backend) sendVolume(volume float64) {
	b.mu.Lock()
	amplification := b.cfg.amplification()
	b.mu.Unlock()

	b.slave.sendVolume(volume * amplification)
}

func (b *Backend) DoesVolumeCorrection() bool { return false }

// SupportsChangingAudioStream reports that a switch needs a restart.
func (b *Backend) SupportsChangingAudioStream() (bool, bool) { return true, false }

// report hands fn to the dispatcher so the host is never called from a Backend method.
func (b *Backend) report(fn func(player.Host)) {
	b.mu.Lock()
	host, events := b.host, b.events
	b.mu.Unlock()

	if events != nil {
		events.Post(func() { fn(host) })
	}
}

// receive runs on the reader goroutine. State and position reports are
// dropped while an accurate seek is stepping.
func (b *Backend) receive(n any) {
	switch n.(type) {
	case playingReceived, pausedReceived, positionReceived:
		if !b.reporting() {
			return
		}
	}

	b.mu.Lock()
	events := b.events
	b.mu.Unlock()

	if events != nil {
		events.Post(func() { b.handle(n) })
	}
}

// handle runs on the dispatcher goroutine.
func (b *Backend) handle(n any) {
	switch n := n.(type) {
	case mediaDataLoaded:
		b.onMediaDataLoaded(n.data)
	case playingReceived:
		b.setState(playing)
	case pausedReceived:
		b.setState(paused)
	case positionReceived:
		b.setState(playing)
		b.host.SetPosition(n.seconds)
	case processExited:
		b.setState(stopped)
	}
}

func (b *Backend) reporting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reportUpdates
}

func (b *Backend) onMediaDataLoaded(data MediaData) {
	names := data.AudioStreamNames()

	b.mu.Lock()
	active := -1
	if len(names) > 0 {
		active = 0
		// a restart passed the selected track as -aid; keep it while the
		// stream count matches, otherwise fall back to stream 0
		if b.audioCount == len(names) && b.audioStream > 0 && b.audioStream < len(names) {
			active = b.audioStream
		}
	}
	b.audioCount = len(names)
	b.audioStream = active
	b.mu.Unlock()

	b.host.SetAudioStreams(names, active)

	if data.Duration > 0 {
		b.host.SetLength(data.Duration)
	}
	if data.VideoFPS > 0 {
		b.host.SetFramesPerSecond(data.VideoFPS)
	}
}

func (b *Backend) setState(state playState) {
	b.mu.Lock()
	if b.state == state {
		b.mu.Unlock()
		return
	}
	b.state = state
	b.mu.Unlock()

	switch state {
	case stopped:
		b.host.SetState(player.Ready)
	case paused:
		b.host.SetState(player.Paused)
	case playing:
		b.host.SetState(player.Playing)
	}
}
