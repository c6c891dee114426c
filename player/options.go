package player

import "time"

const (
	DefaultOpenTimeout = 6000 * time.Millisecond
	DefaultReseekDelay = 500 * time.Millisecond

	// DefaultMinPositionDelta is the smallest position change reported before
	// the frame rate is known.
	DefaultMinPositionDelta = 0.02
)

// Timer is a pending call scheduled by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run on its own goroutine after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Player.
type Option func(*Player)

// WithOpenTimeout sets how long an opening file may go unconfirmed before it fails.
func WithOpenTimeout(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.openTimeout = d
		}
	}
}

// WithReseekDelay sets the delay before seeking back after a restarting audio stream switch.
func WithReseekDelay(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.reseekDelay = d
		}
	}
}

// WithVolume sets the initial volume.
func WithVolume(volume float64) Option {
	return func(p *Player) {
		p.volume = clampVolume(volume)
	}
}

// WithAfterFunc replaces the timer used by the open watchdog and deferred seeks.
func WithAfterFunc(after AfterFunc) Option {
	return func(p *Player) {
		p.afterFunc = after
	}
}
