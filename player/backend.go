// Package player fronts interchangeable playback engines with one state machine.
//
// Callers drive a Player through synchronous-looking commands and observe the
// outcome through events. Engines plug in by implementing Backend and report
// back through the Host the Player hands them on initialization.
package player

import "errors"

// ErrNotRunning is returned by backends asked to act while their engine is absent or dead.
var ErrNotRunning = errors.New("engine is not running")

// Backend is the contract every playback engine adapter implements.
//
// Command methods return an error only when the request could not even be
// attempted. Deeper failures surface later through Host.SetErrorState.
// Backend methods are called with the Player's lock held, so they must never
// call Host methods synchronously; report from another goroutine instead.
type Backend interface {
	// Initialize prepares the engine and stores the host for later reports.
	Initialize(host Host) error
	Finalize()

	// OpenFile starts opening path and returns quickly. playingAfterCall tells
	// the Player whether the engine starts playing by itself; when false the
	// Player follows up with Play.
	OpenFile(path string) (playingAfterCall bool, err error)
	CloseFile()

	Play() error
	Pause() error
	Seek(seconds float64, accurate bool) error
	Stop() error
	SetActiveAudioStream(index int) error

	// SetVolume applies volume in [0, 100]. Muting is expressed as volume 0.
	SetVolume(volume float64) error

	// DoesVolumeCorrection reports whether the engine maps volume to perceived
	// loudness itself. When false the Player applies LogarithmicVolume first.
	DoesVolumeCorrection() bool

	// SupportsChangingAudioStream reports whether the active audio stream can be
	// changed at all, and whether that works without a stop and replay cycle.
	SupportsChangingAudioStream() (supported, onTheFly bool)
}

// Host receives engine reports. The Player implements it.
type Host interface {
	SetState(state State)
	SetErrorState(message string)
	SetPosition(seconds float64)
	SetLength(seconds float64)
	SetFramesPerSecond(fps float64)
	SetAudioStreams(streams []string, active int)

	// ApplicationClosingDown reports whether the application is shutting down,
	// letting backends skip slow graceful teardown.
	ApplicationClosingDown() bool
}
