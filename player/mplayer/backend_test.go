package mplayer

import (
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/subplay/subplay/player"
)

const movie = "/media/movie.mkv"

var opening = []string{
	"ID_AUDIO_ID=0",
	"ID_AID_0_LANG=eng",
	"ID_AUDIO_ID=1",
	"ID_AID_1_LANG=jpn",
	"ID_LENGTH=1440.00",
	"ID_VIDEO_FPS=25.000",
	"A:   1.5 (01.5) of 1440.0 (24:00.0)  0.3%",
}

// keyframes lands every seek on the next multiple of five seconds.
func keyframes(e *fakeEngine, line string) {
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "seek" && i+1 < len(fields) {
			target := toFloat(fields[i+1])
			landed := float64(int(target+4.999)/5) * 5
			e.emit("A:" + number(landed) + " (00.0) of 1440.0 (24:00.0)  0.3%")
			return
		}
	}
	if line == "pausing pause" {
		e.emit("ID_PAUSED")
	}
}

func TestBackend(t *testing.T) {
	Convey("Given an initialized backend", t, func() {
		launcher := &fakeLauncher{prepare: func(e *fakeEngine) { e.reply = keyframes }}
		host := &fakeHost{}
		config := Config{Executable: "mplayer", VolumeAmplification: 110}
		found := func(string) (string, error) { return "/usr/bin/mplayer", nil }

		b := newBackend(func() Config { return config }, found, launcher.start)
		b.stopWait = 100 * time.Millisecond
		So(b.Initialize(host), ShouldBeNil)
		b.slave.blockTimeout = time.Second
		b.slave.flushInterval = 5 * time.Millisecond
		Reset(b.Finalize)

		So(b.DoesVolumeCorrection(), ShouldBeFalse)
		supported, onTheFly := b.SupportsChangingAudioStream()
		So(supported, ShouldBeTrue)
		So(onTheFly, ShouldBeFalse)

		Convey("Opening starts the engine on the file", func() {
			playingAfterCall, err := b.OpenFile(movie)
			So(err, ShouldBeNil)
			So(playingAfterCall, ShouldBeTrue)

			e := launcher.last()
			So(e.name, ShouldEqual, "mplayer")
			So(e.args[len(e.args)-1], ShouldEqual, movie)
			So(e.args, ShouldNotContain, "-aid")

			Convey("and the first position confirms playback", func() {
				e.emit(opening...)
				b.events.Flush()

				So(host.recorded(), ShouldResemble, []string{
					"streams [eng jpn] 0",
					"length 1440",
					"fps 25",
					"state playing",
					"position 1.5",
				})
				So(e.lines(), ShouldResemble, []string{"sub_select -1"})
			})

			Convey("and stop asks it to quit", func() {
				e.emit(opening...)
				b.events.Flush()
				host.reset()

				So(b.Stop(), ShouldBeNil)
				So(e.lines(), ShouldContain, "quit")
				So(e.terminated, ShouldEqual, 0)
				b.events.Flush()
				So(host.recorded(), ShouldResemble, []string{"state ready"})

				Convey("after which play starts it again", func() {
					So(b.Play(), ShouldBeNil)
					So(launcher.count(), ShouldEqual, 2)
				})

				Convey("after which seeking is refused", func() {
					So(b.Seek(10, true), ShouldEqual, player.ErrNotRunning)
				})
			})
		})

		Convey("An engine that cannot start fails the open", func() {
			launcher.err = errors.New("exec format error")
			_, err := b.OpenFile(movie)
			So(err, ShouldNotBeNil)
		})

		Convey("An engine ignoring quit is terminated", func() {
			launcher.prepare = func(e *fakeEngine) { e.ignoreQuit = true }
			_, _ = b.OpenFile(movie)
			e := launcher.last()

			So(b.Stop(), ShouldBeNil)
			So(e.terminated, ShouldEqual, 1)
			So(e.killed, ShouldEqual, 0)
		})

		Convey("An engine ignoring terminate is killed", func() {
			launcher.prepare = func(e *fakeEngine) { e.ignoreQuit, e.ignoreTerminate = true, true }
			_, _ = b.OpenFile(movie)
			e := launcher.last()

			So(b.Stop(), ShouldBeNil)
			So(e.terminated, ShouldEqual, 1)
			So(e.killed, ShouldEqual, 1)
			So(b.slave.running(), ShouldBeFalse)
		})

		Convey("While the application closes down no quit is sent", func() {
			host.closingDown = true
			_, _ = b.OpenFile(movie)
			e := launcher.last()

			So(b.Stop(), ShouldBeNil)
			So(e.lines(), ShouldNotContain, "quit")
			So(e.terminated, ShouldEqual, 1)
		})

		Convey("Given a playing file", func() {
			_, _ = b.OpenFile(movie)
			e := launcher.last()
			e.emit(opening...)
			b.events.Flush()
			host.reset()

			Convey("Pause blocks until the engine pauses", func() {
				So(b.Pause(), ShouldBeNil)
				So(e.lines(), ShouldContain, "pausing pause")
				b.events.Flush()
				So(host.recorded(), ShouldResemble, []string{"state paused"})

				Convey("and play resumes", func() {
					So(b.Play(), ShouldBeNil)
					So(e.lines()[len(e.lines())-1], ShouldEqual, "pause")
				})
			})

			Convey("Volumes are amplified", func() {
				So(b.SetVolume(50), ShouldBeNil)
				So(e.lines(), ShouldContain, "volume 55 1")
			})

			Convey("An accurate seek steps back until it lands before the target", func() {
				So(b.Seek(12, true), ShouldBeNil)
				So(e.lines()[1:], ShouldResemble, []string{"seek 12 2", "seek 11 2", "seek 10 2"})

				b.events.Flush()
				So(host.recorded(), ShouldResemble, []string{"position 10"})
			})

			Convey("A fast seek goes through the queue", func() {
				So(b.Seek(30, false), ShouldBeNil)
				So(eventually(func() bool {
					for _, line := range e.lines() {
						if line == "pausing_keep seek 30 2" {
							return true
						}
					}
					return false
				}), ShouldBeTrue)
			})

			Convey("An unexpected exit reports the engine stopped", func() {
				e.exit()
				So(eventually(func() bool { return !b.slave.running() }), ShouldBeTrue)
				b.events.Flush()
				So(host.recorded(), ShouldResemble, []string{"state ready"})
			})

			Convey("Switching the audio stream survives a restart", func() {
				So(b.SetVolume(20), ShouldBeNil)
				So(b.SetActiveAudioStream(1), ShouldBeNil)
				So(e.lines()[len(e.lines())-2:], ShouldResemble, []string{"switch_audio 1", "volume 22 1"})

				So(b.Stop(), ShouldBeNil)
				So(b.Play(), ShouldBeNil)

				restarted := launcher.last()
				So(restarted, ShouldNotEqual, e)
				So(restarted.args[:2], ShouldResemble, []string{"-aid", "1"})

				restarted.emit(opening...)
				b.events.Flush()
				So(host.recorded(), ShouldContain, "streams [eng jpn] 1")
			})

			Convey("A restart that renumbers the streams falls back to the first", func() {
				So(b.SetActiveAudioStream(1), ShouldBeNil)
				So(b.Stop(), ShouldBeNil)
				So(b.Play(), ShouldBeNil)

				restarted := launcher.last()
				restarted.emit(append([]string{"ID_AUDIO_ID=2", "ID_AID_2_LANG=fra"}, opening...)...)
				b.events.Flush()
				So(host.recorded(), ShouldContain, "streams [eng jpn fra] 0")
			})
		})
	})

	Convey("A missing executable fails initialization", t, func() {
		missing := func(string) (string, error) { return "", errors.New("not found") }
		b := newBackend(func() Config { return Config{Executable: "mplayer"} }, missing, (&fakeLauncher{}).start)
		So(b.Initialize(&fakeHost{}), ShouldNotBeNil)
	})
}

func TestVersionOneSeek(t *testing.T) {
	Convey("Given an MPlayer 1 engine", t, func() {
		launcher := &fakeLauncher{prepare: func(e *fakeEngine) { e.reply = keyframes }}
		host := &fakeHost{}
		found := func(string) (string, error) { return "/usr/bin/mplayer", nil }

		b := newBackend(func() Config { return Config{Executable: "mplayer"} }, found, launcher.start)
		b.stopWait = 100 * time.Millisecond
		So(b.Initialize(host), ShouldBeNil)
		b.slave.blockTimeout = 200 * time.Millisecond
		Reset(b.Finalize)

		_, _ = b.OpenFile(movie)
		e := launcher.last()
		e.emit("MPlayer SVN-r38151 (C) 2000-2017 MPlayer Team")
		e.emit(opening...)
		b.events.Flush()

		Convey("An accurate seek is wrapped in pause and mute", func() {
			So(b.Seek(12, true), ShouldBeNil)

			lines := e.lines()[1:]
			So(lines[0], ShouldEqual, "pausing pause")
			So(lines[1], ShouldEqual, "pausing mute")
			So(lines[len(lines)-1], ShouldEqual, "pausing pause")

			mutes := 0
			for _, line := range lines {
				if strings.HasSuffix(line, "mute") {
					mutes++
				}
			}
			So(mutes, ShouldEqual, 2)
		})
	})
}
