package cmd

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/subplay/subplay/icon"
	"github.com/subplay/subplay/player"
	"github.com/subplay/subplay/style"
)

var errUnknownCommand = errors.New("unknown command")

// switchGrace is how long a Stopped event after an audio stream switch is
// taken as part of the engine restart.
const switchGrace = 2 * time.Second

// sessionOptions are applied once the file is opened.
type sessionOptions struct {
	seek        mo.Option[float64]
	audioStream mo.Option[int]
}

// session prints the events of one played file and executes line commands
// against its Player.
type session struct {
	p       *player.Player
	out     io.Writer
	step    float64
	options sessionOptions

	mu         sync.Mutex
	lastSecond int
	switchEnd  time.Time
	done       chan struct{}
	once       sync.Once
	err        mo.Option[string]
}

func newSession(p *player.Player, out io.Writer, step float64, options sessionOptions) *session {
	return &session{
		p:          p,
		out:        out,
		step:       step,
		options:    options,
		lastSecond: -1,
		done:       make(chan struct{}),
	}
}

// Done is closed when the file stops, closes or fails to open.
func (s *session) Done() <-chan struct{} {
	return s.done
}

func (s *session) finish() {
	s.once.Do(func() { close(s.done) })
}

// onEvent is subscribed to the Player.
func (s *session) onEvent(e player.Event) {
	switch e := e.(type) {
	case player.EventFileOpened:
		s.applyOptions()
	case player.EventFileOpenError:
		s.mu.Lock()
		s.err = mo.Some("cannot open " + e.Path)
		s.mu.Unlock()
		s.finish()
	case player.EventPlaybackError:
		s.mu.Lock()
		s.err = mo.Some(lo.Ternary(e.Message == "", "playback failed", e.Message))
		s.mu.Unlock()
	case player.EventStopped:
		// a stream switch may restart the engine through Ready
		s.mu.Lock()
		switching := time.Now().Before(s.switchEnd)
		s.mu.Unlock()
		if !switching {
			defer s.finish()
		}
	case player.EventFileClosed:
		defer s.finish()
	case player.EventPositionChanged:
		second := int(math.Floor(e.Seconds))
		s.mu.Lock()
		same := second == s.lastSecond
		s.lastSecond = second
		s.mu.Unlock()
		if same {
			return
		}
	}

	if line, ok := describe(e); ok {
		_, _ = fmt.Fprintln(s.out, line)
	}
}

// Err returns the last failure reported during the session.
func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if message, ok := s.err.Get(); ok {
		return errors.New(message)
	}
	return nil
}

func (s *session) applyOptions() {
	if index, ok := s.options.audioStream.Get(); ok {
		s.switchAudioStream(index)
	}
	if seconds, ok := s.options.seek.Get(); ok {
		s.p.Seek(seconds, true)
	}
}

func (s *session) switchAudioStream(index int) bool {
	s.mu.Lock()
	s.switchEnd = time.Now().Add(switchGrace)
	s.mu.Unlock()

	if s.p.SetActiveAudioStream(index) {
		return true
	}

	s.mu.Lock()
	s.switchEnd = time.Time{}
	s.mu.Unlock()
	return false
}

// execute runs one line command and reports whether the session should end.
func (s *session) execute(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	argument := func() (float64, error) {
		if len(fields) != 2 {
			return 0, fmt.Errorf("%s takes one number", fields[0])
		}
		return strconv.ParseFloat(fields[1], 64)
	}

	switch fields[0] {
	case "q", "quit":
		return true, nil
	case "?", "h", "help":
		_, _ = fmt.Fprintln(s.out, style.Faint(playHelp))
	case "p", "pause":
		s.p.TogglePlayPaused()
	case "s", "stop":
		s.p.Stop()
	case "+":
		s.p.IncreaseVolume(s.step)
	case "-":
		s.p.DecreaseVolume(s.step)
	case "m", "mute":
		s.p.SetMuted(!s.p.IsMuted())
	case "seek":
		seconds, err := argument()
		if err != nil {
			return false, err
		}
		s.p.Seek(seconds, true)
	case "aid":
		index, err := argument()
		if err != nil {
			return false, err
		}
		if !s.switchAudioStream(int(index)) {
			return false, fmt.Errorf("no audio stream %d", int(index))
		}
	default:
		return false, fmt.Errorf("%w: %s", errUnknownCommand, fields[0])
	}

	return false, nil
}

func stateTag(c lipgloss.Color, label string) string {
	return style.Tag(style.Text, c)(label)
}

// describe renders an event as one output line. Events without a line
// return false.
func describe(e player.Event) (string, bool) {
	switch e := e.(type) {
	case player.EventBackendInitialized:
		return fmt.Sprintf("%s backend %s", icon.Get(icon.Backend), style.Bold(e.Name)), true
	case player.EventFileOpened:
		return fmt.Sprintf("%s opened %s", icon.Get(icon.Opened), e.Path), true
	case player.EventFileOpenError:
		return fmt.Sprintf("%s %s", icon.Get(icon.Fail), style.Fg(style.ErrorColor)("cannot open "+e.Path)), true
	case player.EventFileClosed:
		return fmt.Sprintf("%s closed", icon.Get(icon.Closed)), true
	case player.EventPlaybackError:
		message := lo.Ternary(e.Message == "", "playback error", "playback error: "+e.Message)
		return fmt.Sprintf("%s %s", icon.Get(icon.Fail), style.Fg(style.ErrorColor)(message)), true
	case player.EventPlaying:
		return fmt.Sprintf("%s %s", icon.Get(icon.Playing), stateTag(style.PlayingColor, "Playing")), true
	case player.EventPaused:
		return fmt.Sprintf("%s %s", icon.Get(icon.Paused), stateTag(style.PausedColor, "Paused")), true
	case player.EventStopped:
		return fmt.Sprintf("%s %s", icon.Get(icon.Stopped), stateTag(style.StoppedColor, "Stopped")), true
	case player.EventPositionChanged:
		return style.Faint(timestamp(e.Seconds)), true
	case player.EventLengthChanged:
		return fmt.Sprintf("length %s", timestamp(e.Seconds)), true
	case player.EventFramesPerSecondChanged:
		return fmt.Sprintf("%.3f fps", e.FPS), true
	case player.EventAudioStreamsChanged:
		lines := lo.Map(e.Streams, func(name string, i int) string {
			return fmt.Sprintf("  %d  %s", i, name)
		})
		return "audio streams\n" + strings.Join(lines, "\n"), len(lines) > 0
	case player.EventActiveAudioStreamChanged:
		return fmt.Sprintf("audio stream %d", e.Index), true
	case player.EventVolumeChanged:
		return fmt.Sprintf("%s %s", icon.Get(icon.Volume), style.Fg(style.VolumeColor)(fmt.Sprintf("%.0f%%", e.Volume))), true
	case player.EventMuteChanged:
		if e.Muted {
			return fmt.Sprintf("%s muted", icon.Get(icon.Muted)), true
		}
		return fmt.Sprintf("%s unmuted", icon.Get(icon.Volume)), true
	default:
		return "", false
	}
}

// timestamp formats seconds as [h:]mm:ss.
func timestamp(seconds float64) string {
	total := int(math.Max(0, math.Floor(seconds)))
	h, m, sec := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}
