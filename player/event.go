package player

// Event is anything a Player notifies its subscribers about.
type Event interface {
	event()
}

type (
	EventFileOpenError struct{ Path string }
	EventFileOpened    struct{ Path string }
	EventFileClosed    struct{}

	// EventPlaybackError carries the engine message, which may be empty.
	EventPlaybackError struct{ Message string }

	EventPlaying struct{}
	EventPaused  struct{}
	EventStopped struct{}

	EventPositionChanged          struct{ Seconds float64 }
	EventLengthChanged            struct{ Seconds float64 }
	EventFramesPerSecondChanged   struct{ FPS float64 }
	EventAudioStreamsChanged      struct{ Streams []string }
	EventActiveAudioStreamChanged struct{ Index int }
	EventVolumeChanged            struct{ Volume float64 }
	EventMuteChanged              struct{ Muted bool }

	EventBackendInitialized struct{ Name string }
	EventBackendFinalized   struct{ Name string }
)

func (EventFileOpenError) event()            {}
func (EventFileOpened) event()               {}
func (EventFileClosed) event()               {}
func (EventPlaybackError) event()            {}
func (EventPlaying) event()                  {}
func (EventPaused) event()                   {}
func (EventStopped) event()                  {}
func (EventPositionChanged) event()          {}
func (EventLengthChanged) event()            {}
func (EventFramesPerSecondChanged) event()   {}
func (EventAudioStreamsChanged) event()      {}
func (EventActiveAudioStreamChanged) event() {}
func (EventVolumeChanged) event()            {}
func (EventMuteChanged) event()              {}
func (EventBackendInitialized) event()       {}
func (EventBackendFinalized) event()         {}
