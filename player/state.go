package player

// State is the canonical playback state. States are ordered: comparisons such
// as state > Opening mean "a file is open and the backend has confirmed it".
type State int

const (
	Uninitialized State = iota
	Closed
	Opening
	Playing
	Paused
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}
