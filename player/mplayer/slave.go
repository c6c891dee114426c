package mplayer

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/mo"
	"github.com/subplay/subplay/internal/proc"
	"github.com/subplay/subplay/log"
	"github.com/subplay/subplay/util"
)

// CommandMode decides how a slave command treats the pause state.
type CommandMode int

const (
	// Playing sends the command as is. The engine resumes if it was paused.
	Playing CommandMode = iota
	// Pausing leaves the engine paused after the command.
	Pausing
	// PausingKeep preserves the current pause state.
	PausingKeep
)

const (
	defaultBlockTimeout  = 5 * time.Second
	defaultFlushInterval = 100 * time.Millisecond

	// frame derived positions further than this from the reported one are not trusted
	maxFrameDrift = 0.5
)

var (
	positionRe = regexp.MustCompile(`^[AV]: *(?P<position>[0-9,:.-]+)`)
	frameRe    = regexp.MustCompile(`^[AV]:.* (?P<frame>\d+)\/.\d+`)
	tagRe      = regexp.MustCompile(`^(?P<tag>ID_.*)=(?P<value>.*)`)
	audioTagRe = regexp.MustCompile(`^ID_AID_(?P<id>\d+)_(?P<field>LANG|NAME)=(?P<value>.*)`)
	pausedRe   = regexp.MustCompile(`^ID_PAUSED`)
	versionRe  = regexp.MustCompile(`^MPlayer(?P<major>\d?) (?P<revision>\S+) `)
)

// engine is the running process as the slave sees it.
type engine interface {
	WriteLine(line string) error
	Running() bool
	Exited() <-chan struct{}
	Terminate() error
	Kill() error
}

type startFunc func(name string, args []string, onLine func(string)) (engine, error)

func startProcess(name string, args []string, onLine func(string)) (engine, error) {
	return proc.Start(proc.Config{Name: name, Args: args, OnLine: onLine})
}

// Notifications the slave posts for the backend.
type (
	mediaDataLoaded  struct{ data MediaData }
	playingReceived  struct{}
	pausedReceived   struct{}
	positionReceived struct{ seconds float64 }
	processExited    struct{}
)

type signal int

const (
	signalPlaying signal = iota
	signalPaused
)

// pendingCommand is the one blocking command waiting for its reply.
type pendingCommand struct {
	want signal
	done chan struct{}
}

// run is one started process. exited is closed after processExited was posted
// and every line of the process was parsed.
type run struct {
	eng    engine
	exited chan struct{}
}

// slave speaks the slave mode protocol with one process at a time.
type slave struct {
	log   log.Component
	start startFunc
	post  func(any)

	blockTimeout  time.Duration
	flushInterval time.Duration

	mu          sync.Mutex
	run         *run
	media       MediaData
	mediaLoaded bool
	paused      bool
	emitPlaying bool
	position    float64
	version     int
	revision    string
	pending     mo.Option[pendingCommand]
	queue       []string
	flushing    bool
}

func newSlave(start startFunc, post func(any)) *slave {
	return &slave{
		log:           log.For("mplayer"),
		start:         start,
		post:          post,
		blockTimeout:  defaultBlockTimeout,
		flushInterval: defaultFlushInterval,
		media:         newMediaData(),
	}
}

// launch starts a new process. Any previous process must have exited.
func (s *slave) launch(name string, args []string) error {
	s.mu.Lock()
	s.media = newMediaData()
	s.mediaLoaded = false
	s.paused = false
	s.emitPlaying = false
	s.position = 0
	s.queue = nil
	s.mu.Unlock()

	s.log.Infof("starting %s %s", name, strings.Join(args, " "))

	eng, err := s.start(name, args, s.parseLine)
	if err != nil {
		return err
	}

	r := &run{eng: eng, exited: make(chan struct{})}
	s.mu.Lock()
	s.run = r
	s.mu.Unlock()

	go func() {
		<-eng.Exited()
		s.log.Infof("process exited")
		s.post(processExited{})
		close(r.exited)
	}()

	return nil
}

func (s *slave) current() *run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// running reports whether a process is up.
func (s *slave) running() bool {
	r := s.current()
	if r == nil {
		return false
	}
	select {
	case <-r.exited:
		return false
	default:
		return true
	}
}

// waitExit waits up to d for the current process to be gone.
func (s *slave) waitExit(d time.Duration) bool {
	r := s.current()
	if r == nil {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-r.exited:
		return true
	case <-timer.C:
		return false
	}
}

func (s *slave) terminate() {
	if r := s.current(); r != nil {
		if err := r.eng.Terminate(); err != nil {
			s.log.Warnf("terminate: %v", err)
		}
	}
}

func (s *slave) kill() {
	if r := s.current(); r != nil {
		if err := r.eng.Kill(); err != nil {
			s.log.Warnf("kill: %v", err)
		}
	}
}

func (s *slave) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *slave) lastPosition() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *slave) engineVersion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *slave) mediaData() MediaData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media.clone()
}

// Commands

func (s *slave) sendTogglePause() {
	if s.isPaused() {
		s.sendCommand("pause", Playing, false)
	} else {
		s.sendCommand("pause", Pausing, true)
	}
}

func (s *slave) sendSeek(seconds float64) {
	s.sendCommand("seek "+number(seconds)+" 2", PausingKeep, true)
}

// sendFastSeek replaces any seek still waiting in the queue.
func (s *slave) sendFastSeek(seconds float64) {
	s.mu.Lock()
	kept := s.queue[:0]
	for _, line := range s.queue {
		if !strings.Contains(line, "seek") {
			kept = append(kept, line)
		}
	}
	s.queue = kept
	s.mu.Unlock()

	s.queueCommand("seek "+number(seconds)+" 2", PausingKeep)
}

func (s *slave) sendToggleMute() {
	s.sendCommand("mute", PausingKeep, true)
}

func (s *slave) sendVolume(volume float64) {
	s.sendCommand("volume "+number(volume)+" 1", PausingKeep, false)
}

func (s *slave) sendAudioStream(id int) {
	s.sendCommand("switch_audio "+strconv.Itoa(id), PausingKeep, false)
}

func (s *slave) sendQuit() {
	s.sendCommand("quit", PausingKeep, false)
}

// sendCommand writes cmd now. A blocking send waits for the engine to report
// the pause state the command leads to; a wait that times out is logged and
// treated as done. Only one blocking send may be in flight; commands arriving
// meanwhile are dropped.
func (s *slave) sendCommand(cmd string, mode CommandMode, block bool) {
	s.mu.Lock()
	if s.pending.IsPresent() {
		s.mu.Unlock()
		s.log.Debugf("dropping %q, a blocking command is in progress", cmd)
		return
	}

	r := s.run
	if r == nil || !r.eng.Running() {
		s.mu.Unlock()
		return
	}

	line, want := cmd, signalPlaying
	if mode == Pausing || (mode == PausingKeep && s.paused) {
		line, want = "pausing "+cmd, signalPaused
	}

	var pc pendingCommand
	if block {
		pc = pendingCommand{want: want, done: make(chan struct{})}
		s.pending = mo.Some(pc)
		if want == signalPlaying {
			// the next position line confirms playback
			s.emitPlaying = true
		}
	}
	s.mu.Unlock()

	s.log.Tracef("> %s", line)
	if err := r.eng.WriteLine(line); err != nil {
		s.log.Warnf("write %q: %v", line, err)
	}

	if !block {
		return
	}

	timer := time.NewTimer(s.blockTimeout)
	defer timer.Stop()

	select {
	case <-pc.done:
	case <-r.exited:
	case <-timer.C:
		s.log.Warnf("%q: no reply within %s", line, s.blockTimeout)
	}

	s.mu.Lock()
	if current, ok := s.pending.Get(); ok && current.done == pc.done {
		s.pending = mo.None[pendingCommand]()
	}
	s.mu.Unlock()
}

// queueCommand defers cmd to the periodic flush.
func (s *slave) queueCommand(cmd string, mode CommandMode) {
	switch mode {
	case Pausing:
		cmd = "pausing " + cmd
	case PausingKeep:
		cmd = "pausing_keep " + cmd
	}

	s.mu.Lock()
	s.queue = append(s.queue, cmd)
	start := !s.flushing
	s.flushing = true
	s.mu.Unlock()

	if start {
		go s.flushLoop()
	}
}

func (s *slave) flushLoop() {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for range ticker.C {
		if !s.flushOnce() {
			return
		}
	}
}

// flushOnce writes the head of the queue and drops it once written.
// It reports false when the queue is empty and flushing stopped.
func (s *slave) flushOnce() bool {
	s.mu.Lock()
	if len(s.queue) == 0 || s.run == nil || !s.run.eng.Running() {
		s.queue = nil
		s.flushing = false
		s.mu.Unlock()
		return false
	}
	line, r := s.queue[0], s.run
	s.mu.Unlock()

	s.log.Tracef("> %s", line)
	if err := r.eng.WriteLine(line); err != nil {
		s.log.Warnf("write %q: %v", line, err)
		return true
	}

	s.mu.Lock()
	if len(s.queue) > 0 && s.queue[0] == line {
		s.queue = s.queue[1:]
	}
	s.mu.Unlock()
	return true
}

// signal completes the pending blocking command if it waits for sig.
// Callers hold s.mu.
func (s *slave) signal(sig signal) {
	if pc, ok := s.pending.Get(); ok && pc.want == sig {
		close(pc.done)
		s.pending = mo.None[pendingCommand]()
	}
}

// Parsing

func (s *slave) parseLine(line string) {
	if line == "" {
		return
	}

	s.mu.Lock()
	hideSubtitles := s.parseLocked(line)
	s.mu.Unlock()

	if hideSubtitles {
		// embedded subtitles are shown by default in newer versions
		s.sendCommand("sub_select -1", PausingKeep, false)
	}
}

func (s *slave) parseLocked(line string) (hideSubtitles bool) {
	position, isPosition := parsePosition(line)

	if frame := util.ReGroups(frameRe, line)["frame"]; s.media.VideoFPS != 0 && frame != "" {
		s.loaded()
		s.resumed()

		n, _ := strconv.Atoi(frame)
		fromFrame := float64(n) / s.media.VideoFPS
		if isPosition && (fromFrame-position > maxFrameDrift || fromFrame-position < -maxFrameDrift) {
			fromFrame = position
		}
		s.reportPosition(fromFrame)
		return false
	}

	if isPosition {
		hideSubtitles = !s.mediaLoaded
		s.loaded()
		s.resumed()
		s.reportPosition(position)
		return hideSubtitles
	}

	if pausedRe.MatchString(line) {
		s.paused = !s.paused
		if s.paused {
			s.signal(signalPaused)
			s.post(pausedReceived{})
		} else {
			s.signal(signalPlaying)
			s.post(playingReceived{})
		}
	}

	// identification lines are only interesting before playback starts
	if s.mediaLoaded {
		return false
	}

	if groups := util.ReGroups(audioTagRe, line); len(groups) > 0 {
		id, _ := strconv.Atoi(groups["id"])
		track := s.media.AudioTracks[id]
		if groups["field"] == "NAME" {
			track.Name = groups["value"]
		} else {
			track.Language = groups["value"]
		}
		s.media.AudioTracks[id] = track
		return false
	}

	if groups := util.ReGroups(tagRe, line); len(groups) > 0 {
		s.parseTag(groups["tag"], groups["value"])
		return false
	}

	if groups := util.ReGroups(versionRe, line); s.version == 0 && len(groups) > 0 {
		major, err := strconv.Atoi(groups["major"])
		if err != nil {
			major = 1
		}
		s.version = major
		s.revision = groups["revision"]
		s.log.Infof("engine version %d revision %s", s.version, s.revision)
	}

	return false
}

func (s *slave) parseTag(tag, value string) {
	switch tag {
	case "ID_AUDIO_ID":
		id, _ := strconv.Atoi(value)
		if _, ok := s.media.AudioTracks[id]; !ok {
			s.media.AudioTracks[id] = TrackData{}
		}
	case "ID_LENGTH":
		s.media.Duration = toFloat(value)
	case "ID_VIDEO_WIDTH":
		s.media.HasVideo = true
		s.media.VideoWidth, _ = strconv.Atoi(value)
	case "ID_VIDEO_HEIGHT":
		s.media.HasVideo = true
		s.media.VideoHeight, _ = strconv.Atoi(value)
	case "ID_VIDEO_ASPECT":
		s.media.HasVideo = true
		s.media.VideoDAR = toFloat(value)
		if s.media.VideoDAR == 0 && s.media.VideoWidth != 0 && s.media.VideoHeight != 0 {
			s.media.VideoDAR = float64(s.media.VideoWidth) / float64(s.media.VideoHeight)
		}
	case "ID_VIDEO_FPS":
		s.media.VideoFPS = toFloat(value)
	}
}

// loaded posts the media data once, on the first position line.
func (s *slave) loaded() {
	if s.mediaLoaded {
		return
	}
	s.mediaLoaded = true
	s.post(mediaDataLoaded{data: s.media.clone()})
}

// resumed reports playback after a pause or when a blocking command asked for it.
func (s *slave) resumed() {
	if s.paused || s.emitPlaying {
		s.paused = false
		s.emitPlaying = false
		s.signal(signalPlaying)
		s.post(playingReceived{})
	}
}

func (s *slave) reportPosition(seconds float64) {
	s.position = seconds
	s.post(positionReceived{seconds: seconds})
}

func parsePosition(line string) (float64, bool) {
	raw, ok := util.ReGroups(positionRe, line)["position"]
	if !ok {
		return 0, false
	}
	return toFloat(raw), true
}

// toFloat parses like the engine prints: anything unparsable is zero.
func toFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// number formats a command argument the way the engine expects it.
func number(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}
