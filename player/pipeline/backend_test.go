package pipeline

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const episode = "/media/episode01.mkv"

func TestBackend(t *testing.T) {
	Convey("Given an initialized backend", t, func() {
		factory := &fakeFactory{prepare: func(g *fakeGraph) {
			g.duration = 1420
			g.position = 12.5
			g.streams = []StreamInfo{
				{Kind: KindAudio, Language: "jpn", Codec: "PCM"},
				{Kind: KindAudio, Language: "eng", Codec: "PCM"},
			}
		}}
		host := &fakeHost{}
		config := Config{AudioSink: "null"}

		b := newBackend(func() Config { return config }, factory.build, time.Hour)
		So(b.Initialize(host), ShouldBeNil)
		Reset(b.Finalize)

		settle := func() {
			b.poll()
			b.events.Flush()
		}

		So(b.DoesVolumeCorrection(), ShouldBeTrue)
		supported, onTheFly := b.SupportsChangingAudioStream()
		So(supported, ShouldBeTrue)
		So(onTheFly, ShouldBeFalse)

		Convey("Commands without a file fail", func() {
			So(b.Play(), ShouldEqual, ErrNoGraph)
			So(b.Seek(1, true), ShouldEqual, ErrNoGraph)
			So(b.SetVolume(50), ShouldEqual, ErrNoGraph)
		})

		Convey("Opening prepares the graph and starts it muted", func() {
			playing, err := b.OpenFile(episode)
			So(err, ShouldBeNil)
			So(playing, ShouldBeTrue)

			g := factory.last()
			So(g.path, ShouldEqual, episode)
			So(g.recorded(), ShouldResemble, []string{"state ready", "volume 0", "state playing"})
		})

		Convey("Opening a file that cannot be prepared fails with the graph's error", func() {
			factory.prepare = func(g *fakeGraph) {
				g.results[Ready] = Failure
				g.bus.Post(MessageError{Err: ErrNoAudioStream})
			}

			_, err := b.OpenFile(episode)
			So(errors.Is(err, ErrNoAudioStream), ShouldBeTrue)
			So(factory.last().isClosed(), ShouldBeTrue)
			So(b.Play(), ShouldEqual, ErrNoGraph)
		})

		Convey("A factory error is returned", func() {
			factory.err = errors.New("unknown audio sink")
			_, err := b.OpenFile(episode)
			So(err, ShouldEqual, factory.err)
		})

		Convey("Once opened", func() {
			_, err := b.OpenFile(episode)
			So(err, ShouldBeNil)
			g := factory.last()
			g.reset()

			Convey("Reaching Playing reports streams and the state", func() {
				g.bus.Post(MessageStateChanged{Old: Ready, New: Paused})
				g.bus.Post(MessageDuration{Seconds: 1420})
				g.bus.Post(MessageStateChanged{Old: Paused, New: Playing})
				settle()

				So(host.recorded(), ShouldResemble, []string{
					"length 1420",
					"streams [jpn / PCM eng / PCM] 0",
					"length 1420",
					"state playing",
				})

				Convey("After which positions are polled", func() {
					host.reset()
					settle()
					So(host.recorded(), ShouldResemble, []string{"position 12.5"})
				})
			})

			Convey("Length is queried once per open", func() {
				settle()
				settle()
				So(host.recorded(), ShouldResemble, []string{"length 1420"})
			})

			Convey("Positions are not polled while paused", func() {
				g.bus.Post(MessageStateChanged{Old: Playing, New: Paused})
				g.set(Paused)
				settle()
				host.reset()

				settle()
				So(host.recorded(), ShouldBeEmpty)
			})

			Convey("Stopping reports Ready only", func() {
				g.set(Ready)
				g.bus.Post(MessageStateChanged{Old: Playing, New: Paused})
				g.bus.Post(MessageStateChanged{Old: Paused, New: Ready})
				settle()

				So(host.recorded(), ShouldResemble, []string{"state ready"})
			})

			Convey("The end of the stream re-arms the graph without playing", func() {
				g.set(Playing)
				g.bus.Post(MessageEOS{})
				g.bus.Post(MessageStateChanged{Old: Ready, New: Null})
				settle()

				So(host.recorded(), ShouldResemble, []string{"length 1420", "state ready"})
				So(g.recorded(), ShouldResemble, []string{"state ready", "seek 0 true"})
				So(g.State(), ShouldEqual, Ready)

				_, pending := g.Pop()
				So(pending, ShouldBeFalse)
			})

			Convey("A graph error is reported and resets the graph", func() {
				g.bus.Post(MessageError{Err: errors.New("decode failed"), Debug: episode})
				settle()

				So(host.recorded(), ShouldContain, "error decode failed")
				So(g.recorded(), ShouldResemble, []string{"state null"})
			})

			Convey("Commands map onto graph requests", func() {
				So(b.Pause(), ShouldBeNil)
				So(b.Play(), ShouldBeNil)
				So(b.Seek(30, false), ShouldBeNil)
				So(b.SetActiveAudioStream(1), ShouldBeNil)
				So(b.SetVolume(50), ShouldBeNil)
				So(b.Stop(), ShouldBeNil)

				So(g.recorded(), ShouldResemble, []string{
					"state paused",
					"state playing",
					"seek 30 false",
					"stream 1",
					"volume 0.5",
					"state ready",
				})
			})

			Convey("A refused state change is an error", func() {
				g.results[Paused] = Failure
				So(errors.Is(b.Pause(), ErrStateChange), ShouldBeTrue)
			})

			Convey("Closing releases the graph", func() {
				b.CloseFile()
				So(g.isClosed(), ShouldBeTrue)
				So(b.Play(), ShouldEqual, ErrNoGraph)
			})

			Convey("Opening again replaces the graph", func() {
				_, err := b.OpenFile("/media/episode02.mkv")
				So(err, ShouldBeNil)
				So(g.isClosed(), ShouldBeTrue)
				So(factory.last().path, ShouldEqual, "/media/episode02.mkv")
			})
		})
	})

	Convey("The poll loop runs on its own", t, func() {
		factory := &fakeFactory{prepare: func(g *fakeGraph) { g.duration = 60 }}
		host := &fakeHost{}

		b := newBackend(func() Config { return Config{AudioSink: "null"} }, factory.build, 5*time.Millisecond)
		So(b.Initialize(host), ShouldBeNil)
		Reset(b.Finalize)

		_, err := b.OpenFile(episode)
		So(err, ShouldBeNil)

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) && len(host.recorded()) == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		So(host.recorded(), ShouldContain, "length 60")
	})

	Convey("An unknown sink fails initialization", t, func() {
		b := newBackend(func() Config { return Config{AudioSink: "alsa"} }, (&fakeFactory{}).build, time.Hour)
		So(b.Initialize(&fakeHost{}), ShouldNotBeNil)
	})
}
