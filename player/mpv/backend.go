// Package mpv drives an idle mpv process through its JSON IPC socket.
package mpv

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/subplay/subplay/filesystem"
	"github.com/subplay/subplay/internal/dispatch"
	"github.com/subplay/subplay/internal/proc"
	"github.com/subplay/subplay/log"
	"github.com/subplay/subplay/player"
	"github.com/subplay/subplay/where"
)

// Name is the registry name of the backend.
const Name = "MPV"

const defaultStopWait = 3 * time.Second

type engine interface {
	Running() bool
	Exited() <-chan struct{}
	WaitFor(d time.Duration) bool
	Terminate() error
	Kill() error
}

type startFunc func(name string, args []string, onLine func(string)) (engine, error)

func startProcess(name string, args []string, onLine func(string)) (engine, error) {
	return proc.Start(proc.Config{Name: name, Args: args, OnLine: onLine})
}

type playState int

const (
	stopped playState = iota
	paused
	playing
)

var _ player.Backend = (*Backend)(nil)

// Backend implements player.Backend on top of an mpv process.
type Backend struct {
	log      log.Component
	config   func() Config
	lookPath func(string) (string, error)
	start    startFunc
	dial     dialFunc
	stopWait time.Duration

	callM sync.Mutex

	mu         sync.Mutex
	host       player.Host
	events     *dispatch.Queue
	eng        engine
	ipc        *client
	socket     string
	path       string
	loaded     bool
	paused     bool
	state      playState
	tracks     []track
	audioIndex int
}

// New creates a Backend reading its options from viper on every start.
func New() *Backend {
	return newBackend(ConfigFromViper, exec.LookPath, startProcess, dialUnix)
}

func newBackend(config func() Config, lookPath func(string) (string, error), start startFunc, dial dialFunc) *Backend {
	return &Backend{
		log:        log.For("mpv"),
		config:     config,
		lookPath:   lookPath,
		start:      start,
		dial:       dial,
		stopWait:   defaultStopWait,
		audioIndex: -1,
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
	b.events = dispatch.New()
	return nil
}

// Finalize shuts the process down and stops the dispatcher.
func (b *Backend) Finalize() {
	b.callM.Lock()
	b.shutdown()
	b.callM.Unlock()

	b.mu.Lock()
	events := b.events
	b.events = nil
	b.mu.Unlock()

	if events != nil {
		events.Close()
	}
}

// OpenFile loads path into the running process, starting one if needed.
func (b *Backend) OpenFile(path string) (bool, error) {
	target, err := mediaTarget(path)
	if err != nil {
		return false, err
	}

	b.callM.Lock()
	defer b.callM.Unlock()

	b.mu.Lock()
	b.path = target
	b.state = stopped
	b.loaded = false
	b.tracks = nil
	b.audioIndex = -1
	b.mu.Unlock()

	if !b.running() {
		if err := b.launch(); err != nil {
			return false, err
		}
	}

	if err := b.load(false); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) CloseFile() {
	b.callM.Lock()
	defer b.callM.Unlock()

	if b.running() {
		if _, err := b.command("stop"); err != nil {
			b.log.Warnf("stop: %v", err)
		}
	}

	b.mu.Lock()
	b.path = ""
	b.mu.Unlock()
}

// load replaces whatever is loaded with the current path.
func (b *Backend) load(pause bool) error {
	b.mu.Lock()
	path := b.path
	b.mu.Unlock()

	if err := b.issue("set_property", "pause", pause); err != nil {
		return err
	}
	return b.issue("loadfile", path, "replace")
}

func socketPath() (string, error) {
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("generate socket name: %w", err)
	}
	return filepath.Join(where.Temp(), fmt.Sprintf("mpv-%x.sock", randomBytes)), nil
}

// launch starts an idle process, connects to its socket and registers the
// observed properties.
func (b *Backend) launch() error {
	cfg := b.config()

	socket, err := socketPath()
	if err != nil {
		return err
	}

	b.mu.Lock()
	aid := -1
	if len(b.tracks) > 1 && b.audioIndex >= 0 && b.audioIndex < len(b.tracks) {
		aid = b.tracks[b.audioIndex].ID
	}
	b.mu.Unlock()

	eng, err := b.start(cfg.Executable, cfg.args(socket, aid), func(line string) {
		b.log.Warnf("%s", line)
	})
	if err != nil {
		return fmt.Errorf("start %s: %w", cfg.Executable, err)
	}

	ipc, err := connect(b.dial, socket, eng.Exited(), b.receive)
	if err != nil {
		b.log.Warnf("killing mpv: socket never became ready")
		_ = eng.Kill()
		return fmt.Errorf("mpv socket not ready: %w", err)
	}

	b.mu.Lock()
	b.eng = eng
	b.ipc = ipc
	b.socket = socket
	b.loaded = false
	b.paused = false
	b.mu.Unlock()

	go b.watch(eng, ipc)

	for _, property := range observed {
		if _, err := ipc.command("observe_property", property.id, property.name); err != nil {
			return fmt.Errorf("observe %s: %w", property.name, err)
		}
	}

	b.log.Infof("mpv listening on %s", socket)
	return nil
}

// watch reports the exit of eng once it happens.
func (b *Backend) watch(eng engine, ipc *client) {
	<-eng.Exited()
	ipc.close()
	b.post(processExited{eng: eng})
}

func (b *Backend) running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.eng != nil && b.eng.Running()
}

func (b *Backend) command(args ...any) (any, error) {
	b.mu.Lock()
	ipc := b.ipc
	b.mu.Unlock()

	if ipc == nil {
		return nil, player.ErrNotRunning
	}
	return ipc.command(args...)
}

// issue sends a playback command to the engine. Only a missing or broken
// connection is an error; the engine is still alive when it rejects a command
// or a reply gets lost, so those are logged and the command counts as done.
func (b *Backend) issue(args ...any) error {
	_, err := b.command(args...)
	switch {
	case errors.Is(err, ErrReplyTimeout):
		b.log.Warnf("%v", err)
		return nil
	case errors.Is(err, ErrRejected):
		b.log.Warnf("%v: %v", args[0], err)
		return nil
	}
	return err
}

// shutdown asks the process to quit, then terminates and finally kills it,
// waiting a bounded time after each step.
func (b *Backend) shutdown() {
	b.mu.Lock()
	eng, socket := b.eng, b.socket
	b.mu.Unlock()

	if eng == nil {
		return
	}

	defer func() {
		_ = filesystem.API().Remove(socket)
	}()

	if !eng.Running() {
		return
	}

	if !b.host.ApplicationClosingDown() {
		if _, err := b.command("quit"); err != nil {
			b.log.Debugf("quit: %v", err)
		}
		if eng.WaitFor(b.stopWait) {
			return
		}
	}

	b.log.Warnf("process did not quit, terminating")
	_ = eng.Terminate()
	if eng.WaitFor(b.stopWait) {
		return
	}

	b.log.Warnf("process did not terminate, killing")
	_ = eng.Kill()
	eng.WaitFor(b.stopWait)
}

// Play resumes, reloads the file after it ended, or restarts a dead process.
func (b *Backend) Play() error {
	b.callM.Lock()
	defer b.callM.Unlock()

	if !b.running() {
		if err := b.launch(); err != nil {
			return err
		}
	}

	b.mu.Lock()
	loaded := b.loaded
	b.mu.Unlock()

	if !loaded {
		return b.load(false)
	}

	return b.issue("set_property", "pause", false)
}

// Pause pauses, loading the file paused when it is not loaded.
func (b *Backend) Pause() error {
	b.callM.Lock()
	defer b.callM.Unlock()

	if !b.running() {
		return player.ErrNotRunning
	}

	b.mu.Lock()
	loaded := b.loaded
	b.mu.Unlock()

	if !loaded {
		return b.load(true)
	}

	return b.issue("set_property", "pause", true)
}

func (b *Backend) Seek(seconds float64, accurate bool) error {
	b.callM.Lock()
	defer b.callM.Unlock()

	if !b.running() {
		return player.ErrNotRunning
	}

	flags := "absolute+keyframes"
	if accurate {
		flags = "absolute+exact"
	}

	return b.issue("seek", seconds, flags)
}

// Stop unloads the file; the process stays idle for the next Play.
func (b *Backend) Stop() error {
	b.callM.Lock()
	defer b.callM.Unlock()

	if !b.running() {
		return nil
	}

	return b.issue("stop")
}

// SetActiveAudioStream switches tracks while playing.
func (b *Backend) SetActiveAudioStream(index int) error {
	b.callM.Lock()
	defer b.callM.Unlock()

	b.mu.Lock()
	b.audioIndex = index
	id := -1
	if index >= 0 && index < len(b.tracks) {
		id = b.tracks[index].ID
	}
	b.mu.Unlock()

	if id < 0 || !b.running() {
		return nil
	}

	return b.issue("set_property", "aid", id)
}

func (b *Backend) SetVolume(volume float64) error {
	b.callM.Lock()
	defer b.callM.Unlock()

	if !b.running() {
		return nil
	}

	return b.issue("set_property", "volume", volume)
}

func (b *Backend) DoesVolumeCorrection() bool { return true }

// SupportsChangingAudioStream reports that tracks switch on the fly.
func (b *Backend) SupportsChangingAudioStream() (bool, bool) { return true, true }

// receive runs on the socket reader.
func (b *Backend) receive(m ipcMessage) {
	b.post(notification(m))
}

func (b *Backend) post(n any) {
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
	case fileLoaded:
		b.mu.Lock()
		b.loaded = true
		state := playing
		if b.paused {
			state = paused
		}
		b.mu.Unlock()
		b.setState(state)
	case fileEnded:
		b.mu.Lock()
		b.loaded = false
		b.mu.Unlock()

		if n.reason == "error" {
			b.mu.Lock()
			b.state = stopped
			b.mu.Unlock()
			b.host.SetErrorState("mpv: " + n.fileError)
			return
		}
		b.setState(stopped)
	case pauseChanged:
		b.mu.Lock()
		b.paused = n.paused
		loaded := b.loaded
		b.mu.Unlock()

		if !loaded {
			return
		}
		if n.paused {
			b.setState(paused)
		} else {
			b.setState(playing)
		}
	case positionChanged:
		if b.isLoaded() {
			b.host.SetPosition(n.seconds)
		}
	case durationChanged:
		b.host.SetLength(n.seconds)
	case fpsChanged:
		b.host.SetFramesPerSecond(n.fps)
	case tracksChanged:
		if len(n.tracks) == 0 {
			return
		}

		active := selectedTrack(n.tracks)
		b.mu.Lock()
		b.tracks = n.tracks
		b.audioIndex = active
		b.mu.Unlock()

		b.host.SetAudioStreams(trackNames(n.tracks), active)
	case processExited:
		b.mu.Lock()
		if b.eng != n.eng {
			b.mu.Unlock()
			return
		}
		b.eng = nil
		b.ipc = nil
		b.loaded = false
		b.mu.Unlock()

		b.log.Infof("process exited")
		b.setState(stopped)
	}
}

func (b *Backend) isLoaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
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
