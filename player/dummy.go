package player

// DummyName is the registry name of the no-op fallback backend.
const DummyName = "Dummy"

// Dummy is the fallback backend. It always initializes and refuses every file,
// so a Player always has a backend to report errors through.
type Dummy struct{}

func (Dummy) Initialize(Host) error                     { return nil }
func (Dummy) Finalize()                                 {}
func (Dummy) OpenFile(string) (bool, error)             { return false, ErrNotRunning }
func (Dummy) CloseFile()                                {}
func (Dummy) Play() error                               { return ErrNotRunning }
func (Dummy) Pause() error                              { return ErrNotRunning }
func (Dummy) Seek(float64, bool) error                  { return ErrNotRunning }
func (Dummy) Stop() error                               { return ErrNotRunning }
func (Dummy) SetActiveAudioStream(int) error            { return ErrNotRunning }
func (Dummy) SetVolume(float64) error                   { return ErrNotRunning }
func (Dummy) DoesVolumeCorrection() bool                { return false }
func (Dummy) SupportsChangingAudioStream() (bool, bool) { return false, false }
