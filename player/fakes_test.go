package player

import (
	"fmt"
	"time"
)

type fakeBackend struct {
	host  Host
	calls []string

	playingAfterCall bool
	volumeCorrection bool
	supported        bool
	onTheFly         bool

	initErr  error
	openErr  error
	playErr  error
	pauseErr error
	seekErr  error
	stopErr  error
	aidErr   error
	volErr   error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{playingAfterCall: true, supported: true}
}

func (b *fakeBackend) record(format string, args ...any) {
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
}

func (b *fakeBackend) Initialize(host Host) error {
	b.record("init")
	if b.initErr != nil {
		return b.initErr
	}
	b.host = host
	return nil
}

func (b *fakeBackend) Finalize() { b.record("finalize") }

func (b *fakeBackend) OpenFile(path string) (bool, error) {
	b.record("open %s", path)
	return b.playingAfterCall, b.openErr
}

func (b *fakeBackend) CloseFile() { b.record("close") }

func (b *fakeBackend) Play() error {
	b.record("play")
	return b.playErr
}

func (b *fakeBackend) Pause() error {
	b.record("pause")
	return b.pauseErr
}

func (b *fakeBackend) Seek(seconds float64, accurate bool) error {
	b.record("seek %g %t", seconds, accurate)
	return b.seekErr
}

func (b *fakeBackend) Stop() error {
	b.record("stop")
	return b.stopErr
}

func (b *fakeBackend) SetActiveAudioStream(index int) error {
	b.record("aid %d", index)
	return b.aidErr
}

func (b *fakeBackend) SetVolume(volume float64) error {
	b.record("volume %.2f", volume)
	return b.volErr
}

func (b *fakeBackend) DoesVolumeCorrection() bool { return b.volumeCorrection }

func (b *fakeBackend) SupportsChangingAudioStream() (bool, bool) {
	return b.supported, b.onTheFly
}

func (b *fakeBackend) reset() { b.calls = nil }

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) last() *fakeTimer {
	if len(c.timers) == 0 {
		return nil
	}
	return c.timers[len(c.timers)-1]
}

type recorder struct {
	events []Event
}

func (r *recorder) record(e Event) { r.events = append(r.events, e) }

func (r *recorder) reset() { r.events = nil }

func (r *recorder) count(match func(Event) bool) int {
	n := 0
	for _, e := range r.events {
		if match(e) {
			n++
		}
	}
	return n
}

func is[T Event](e Event) bool {
	_, ok := e.(T)
	return ok
}
