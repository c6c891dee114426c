package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// sink is the end of every graph. Sinks outlive graphs; a graph detaches by
// making its streamer report exhaustion.
type sink interface {
	// open prepares the sink and returns the rate it consumes samples at.
	open(rate beep.SampleRate) (beep.SampleRate, error)
	play(s beep.Streamer)
	lock()
	unlock()
}

var (
	speakerOutput = &speakerSink{}
	nullOutput    = &nullSink{}
)

// sinkFor returns the process wide sink registered under name.
func sinkFor(name string) (sink, error) {
	switch name {
	case "speaker", "":
		return speakerOutput, nil
	case "null":
		return nullOutput, nil
	default:
		return nil, fmt.Errorf("unknown audio sink %q", name)
	}
}

// speakerSink plays through the system audio device. The device can only be
// initialized once, so later graphs resample to the first rate.
type speakerSink struct {
	mu   sync.Mutex
	rate beep.SampleRate
}

func (s *speakerSink) open(rate beep.SampleRate) (beep.SampleRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rate != 0 {
		return s.rate, nil
	}

	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return 0, fmt.Errorf("speaker init: %w", err)
	}
	s.rate = rate
	return rate, nil
}

func (s *speakerSink) play(streamer beep.Streamer) { speaker.Play(streamer) }
func (s *speakerSink) lock()                       { speaker.Lock() }
func (s *speakerSink) unlock()                     { speaker.Unlock() }

// nullSink consumes samples in real time and discards them.
type nullSink struct {
	mu     sync.Mutex
	mixer  beep.Mixer
	rate   beep.SampleRate
	period time.Duration
}

func (s *nullSink) open(rate beep.SampleRate) (beep.SampleRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rate != 0 {
		return s.rate, nil
	}

	s.rate = rate
	if s.period == 0 {
		s.period = 10 * time.Millisecond
	}
	go s.run()
	return rate, nil
}

func (s *nullSink) run() {
	buf := make([][2]float64, s.rate.N(s.period))

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		s.mixer.Stream(buf)
		s.mu.Unlock()
	}
}

func (s *nullSink) play(streamer beep.Streamer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mixer.Add(streamer)
}

func (s *nullSink) lock()   { s.mu.Lock() }
func (s *nullSink) unlock() { s.mu.Unlock() }
