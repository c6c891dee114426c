package mplayer

import (
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type collector struct {
	mu    sync.Mutex
	notes []any
}

func (c *collector) post(n any) {
	c.mu.Lock()
	c.notes = append(c.notes, n)
	c.mu.Unlock()
}

func (c *collector) all() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.notes...)
}

// attach gives s a running fake process without going through launch.
func attach(s *slave, reply func(e *fakeEngine, line string)) *fakeEngine {
	e := &fakeEngine{onLine: s.parseLine, reply: reply, exited: make(chan struct{})}
	s.run = &run{eng: e, exited: make(chan struct{})}
	return e
}

var identify = []string{
	"MPlayer SVN-r38151-4.9.2 (C) 2000-2017 MPlayer Team",
	"ID_AUDIO_ID=0",
	"ID_AID_0_LANG=eng",
	"ID_AUDIO_ID=1",
	"ID_AID_1_LANG=jpn",
	"ID_AID_1_NAME=Commentary",
	"ID_AUDIO_ID=3",
	"ID_LENGTH=1440.50",
	"ID_VIDEO_WIDTH=1920",
	"ID_VIDEO_HEIGHT=1080",
	"ID_VIDEO_ASPECT=0.0000",
	"ID_VIDEO_FPS=23.976",
}

func TestParser(t *testing.T) {
	Convey("Given a slave reading identification output", t, func() {
		c := &collector{}
		s := newSlave(nil, c.post)
		for _, line := range identify {
			s.parseLine(line)
		}

		Convey("Nothing is reported before the first position", func() {
			So(c.all(), ShouldBeEmpty)
		})

		Convey("The banner sets the engine version", func() {
			So(s.engineVersion(), ShouldEqual, 1)
			So(s.revision, ShouldEqual, "SVN-r38151-4.9.2")
		})

		Convey("The media data is collected", func() {
			media := s.mediaData()
			So(media.Duration, ShouldEqual, 1440.5)
			So(media.HasVideo, ShouldBeTrue)
			So(media.VideoWidth, ShouldEqual, 1920)
			So(media.VideoHeight, ShouldEqual, 1080)
			So(media.VideoDAR, ShouldAlmostEqual, 1920.0/1080.0)
			So(media.VideoFPS, ShouldEqual, 23.976)
			So(media.AudioStreamNames(), ShouldResemble, []string{"eng", "jpn / Commentary", "Audio Stream #3"})
			So(media.IDForIndex(2), ShouldEqual, 3)
		})

		Convey("A frame counted status line loads the media and reports the frame position", func() {
			s.parseLine("A:   1.5 V:   1.5 A-V:  0.000 ct:  0.000  36/ 36  0%  0%  0.5% 0 0")

			notes := c.all()
			So(notes, ShouldHaveLength, 2)
			loaded, ok := notes[0].(mediaDataLoaded)
			So(ok, ShouldBeTrue)
			So(loaded.data.Duration, ShouldEqual, 1440.5)
			So(notes[1].(positionReceived).seconds, ShouldAlmostEqual, 36/23.976)

			Convey("and identification lines are ignored afterwards", func() {
				s.parseLine("ID_LENGTH=99")
				So(s.mediaData().Duration, ShouldEqual, 1440.5)
			})
		})

		Convey("A frame position far from the reported one is not trusted", func() {
			s.parseLine("A:  10.0 V:  10.0 A-V:  0.000 ct:  0.000 500/500  0%  0%  0.5% 0 0")
			So(c.all()[1], ShouldResemble, positionReceived{seconds: 10})
		})

		Convey("Pause markers toggle", func() {
			s.parseLine("ID_PAUSED")
			So(s.isPaused(), ShouldBeTrue)
			s.parseLine("ID_PAUSED")
			So(s.isPaused(), ShouldBeFalse)
			So(c.all(), ShouldResemble, []any{pausedReceived{}, playingReceived{}})
		})
	})

	Convey("Given a slave without a frame rate", t, func() {
		c := &collector{}
		s := newSlave(nil, c.post)
		e := attach(s, nil)

		Convey("The first position hides embedded subtitles and loads the media", func() {
			s.parseLine("A:  12.3 (12.3) of 100.0 (01:40.0)  0.5%")
			So(e.lines(), ShouldResemble, []string{"sub_select -1"})
			So(c.all(), ShouldHaveLength, 2)
			So(c.all()[1], ShouldResemble, positionReceived{seconds: 12.3})

			s.parseLine("A:  12.4 (12.4) of 100.0 (01:40.0)  0.5%")
			So(e.lines(), ShouldHaveLength, 1)
		})

		Convey("A position after a pause reports playing first", func() {
			s.parseLine("ID_PAUSED")
			s.parseLine("A:   3.0 (03.0) of 100.0 (01:40.0)  0.5%")
			notes := c.all()
			So(notes[0], ShouldResemble, pausedReceived{})
			So(notes[2], ShouldResemble, playingReceived{})
			So(notes[3], ShouldResemble, positionReceived{seconds: 3})
		})

		Convey("Empty lines are ignored", func() {
			s.parseLine("")
			So(c.all(), ShouldBeEmpty)
		})

		Convey("An MPlayer2 banner reports its major version", func() {
			s.parseLine("MPlayer2 2.0-728-g2c378c7-4 (C) 2000-2012 MPlayer Team")
			So(s.engineVersion(), ShouldEqual, 2)
		})
	})
}

func TestCommands(t *testing.T) {
	Convey("Given a slave attached to a process", t, func() {
		c := &collector{}
		s := newSlave(nil, c.post)
		s.blockTimeout = 20 * time.Millisecond

		Convey("Pausing blocks until the engine reports it", func() {
			e := attach(s, func(e *fakeEngine, line string) {
				if line == "pausing pause" {
					e.emit("ID_PAUSED")
				}
			})
			s.blockTimeout = 5 * time.Second

			start := time.Now()
			s.sendTogglePause()
			So(time.Since(start), ShouldBeLessThan, time.Second)
			So(s.isPaused(), ShouldBeTrue)
			So(s.pending.IsAbsent(), ShouldBeTrue)

			Convey("and keeping commands keep the pause", func() {
				s.sendVolume(27.5)
				s.sendAudioStream(3)
				So(e.lines()[1:], ShouldResemble, []string{"pausing volume 27.5 1", "pausing switch_audio 3"})
			})

			Convey("and toggling again resumes without waiting", func() {
				s.sendTogglePause()
				So(e.lines(), ShouldResemble, []string{"pausing pause", "pause"})
			})
		})

		Convey("A silent engine times out the wait", func() {
			e := attach(s, nil)
			s.sendSeek(42)
			So(e.lines(), ShouldResemble, []string{"seek 42 2"})
			So(s.pending.IsAbsent(), ShouldBeTrue)
			So(s.emitPlaying, ShouldBeTrue)
		})

		Convey("Commands sent during a blocking wait are dropped", func() {
			var once sync.Once
			e := attach(s, func(e *fakeEngine, line string) {
				once.Do(func() {
					s.sendVolume(10)
					e.emit("A:   5.0 (05.0) of 100.0 (01:40.0)  0.5%")
				})
			})
			s.blockTimeout = 5 * time.Second

			s.sendToggleMute()
			for _, line := range e.lines() {
				So(line, ShouldNotStartWith, "volume")
			}
			So(s.lastPosition(), ShouldEqual, 5)
		})

		Convey("Nothing is written without a process", func() {
			s.sendQuit()
			So(s.running(), ShouldBeFalse)
		})

		Convey("Queued seeks are superseded by a later fast seek", func() {
			e := attach(s, nil)
			s.flushing = true

			s.queueCommand("mute", Pausing)
			s.sendFastSeek(10)
			s.sendFastSeek(20.25)
			So(s.queue, ShouldResemble, []string{"pausing mute", "pausing_keep seek 20.25 2"})

			So(s.flushOnce(), ShouldBeTrue)
			So(s.flushOnce(), ShouldBeTrue)
			So(s.flushOnce(), ShouldBeFalse)
			So(s.flushing, ShouldBeFalse)
			So(e.lines(), ShouldResemble, []string{"pausing mute", "pausing_keep seek 20.25 2"})
		})

		Convey("The flush loop drains the queue on its own", func() {
			e := attach(s, nil)
			s.flushInterval = 5 * time.Millisecond

			s.queueCommand("osd 0", Playing)
			So(eventually(func() bool { return len(e.lines()) == 1 }), ShouldBeTrue)
			So(e.lines()[0], ShouldEqual, "osd 0")
		})
	})
}

func TestNumber(t *testing.T) {
	Convey("Command arguments use short decimal notation", t, func() {
		So(number(100), ShouldEqual, "100")
		So(number(12.5), ShouldEqual, "12.5")
		So(number(50*1.1), ShouldEqual, "55")
		So(strings.Contains(number(1.0/3), "e"), ShouldBeFalse)
	})
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
