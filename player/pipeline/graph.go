package pipeline

import (
	"errors"
	"sync"
	"time"
)

// GraphState is the lifecycle state of a processing graph. States are
// ordered; a graph moves through every state between its current and its
// requested one.
type GraphState int

const (
	Null GraphState = iota
	Ready
	Paused
	Playing
)

func (s GraphState) String() string {
	switch s {
	case Null:
		return "null"
	case Ready:
		return "ready"
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// StateChangeReturn is the immediate outcome of a state change request.
type StateChangeReturn int

const (
	// Success means the graph reached the requested state before returning.
	Success StateChangeReturn = iota
	// Async means the change continues in the background and completes
	// with a MessageStateChanged on the bus.
	Async
	// Failure means the change was refused or failed.
	Failure
)

func (r StateChangeReturn) String() string {
	switch r {
	case Success:
		return "success"
	case Async:
		return "async"
	default:
		return "failure"
	}
}

var (
	ErrNoGraph       = errors.New("no graph")
	ErrNoAudioStream = errors.New("no decodable audio stream")
	ErrNotLinked     = errors.New("graph is not linked")
	ErrStateChange   = errors.New("state change failed")
)

// Message is posted by a graph to its bus.
type Message interface {
	message()
}

type MessageStateChanged struct {
	Old, New GraphState
}

type MessageDuration struct {
	Seconds float64
}

// MessageEOS is posted once when the linked stream runs out.
type MessageEOS struct{}

type MessageError struct {
	Err   error
	Debug string
}

func (MessageStateChanged) message() {}
func (MessageDuration) message()     {}
func (MessageEOS) message()          {}
func (MessageError) message()        {}

// StreamKind is the media type of a discovered elementary stream.
type StreamKind int

const (
	KindAudio StreamKind = iota
	KindVideo
)

// StreamInfo describes one discovered elementary stream.
type StreamInfo struct {
	Kind     StreamKind
	Path     string
	Language string
	Codec    string
}

// Graph is a processing graph for a single media path.
//
// SetState requests a transition; with a non-zero timeout it waits up to that
// long for an asynchronous change to complete. Everything the graph learns
// afterwards is reported through Pop.
type Graph interface {
	SetState(state GraphState, timeout time.Duration) StateChangeReturn
	State() GraphState

	Position() (seconds float64, ok bool)
	Duration() (seconds float64, ok bool)
	Seek(seconds float64, accurate bool) error

	// SetVolume takes a fraction in [0, 1].
	SetVolume(fraction float64)

	// SetAudioStream selects the audio stream linked on the next transition to Paused.
	SetAudioStream(index int)
	AudioStream() int
	AudioStreams() []StreamInfo

	// Pop returns the oldest unread bus message.
	Pop() (Message, bool)
	Close()
}

// GraphFactory builds the graph for path.
type GraphFactory func(path string, config Config) (Graph, error)

// Bus is the FIFO message queue a graph reports through.
type Bus struct {
	mu       sync.Mutex
	messages []Message
}

func (b *Bus) Post(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, m)
}

func (b *Bus) Pop() (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.messages) == 0 {
		return nil, false
	}

	m := b.messages[0]
	b.messages[0] = nil
	b.messages = b.messages[1:]
	return m, true
}

// Drop discards every queued message.
func (b *Bus) Drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = nil
}
