package player

import (
	"path/filepath"

	"github.com/subplay/subplay/filesystem"
)

// OpenFile starts opening path. It requires the Closed state. The outcome is
// reported as EventFileOpened or EventFileOpenError; the latter also fires if
// the backend stays silent for the open timeout.
func (p *Player) OpenFile(path string) bool {
	return p.do(func() bool {
		if p.state != Closed {
			return false
		}

		if !filesystem.IsReadableFile(path) {
			p.emit(EventFileOpenError{Path: path})
			return true
		}

		// events carry the path as given, the backend gets it absolute
		absolute := path
		if abs, err := filepath.Abs(path); err == nil {
			absolute = abs
		}

		p.path = path
		p.state = Opening
		p.armWatchdog()

		playingAfterCall, err := p.active.OpenFile(absolute)
		if err != nil {
			logger.Errorf("open %s: %v", absolute, err)
			p.resetState()
			p.emit(EventFileOpenError{Path: path})
			return true
		}

		if !playingAfterCall {
			if err := p.active.Play(); err != nil {
				logger.Warnf("play after open: %v", err)
			}
		}

		return true
	})
}

// CloseFile stops playback if needed and returns to Closed.
func (p *Player) CloseFile() bool {
	return p.do(p.closeFile)
}

func (p *Player) closeFile() bool {
	if p.state <= Closed {
		return false
	}

	stop := p.state != Ready
	if stop {
		_ = p.active.Stop()
	}
	p.active.CloseFile()
	p.resetState()

	if stop {
		p.emit(EventStopped{})
	}
	p.emit(EventFileClosed{})
	return true
}

func (p *Player) Play() bool {
	return p.do(func() bool {
		if p.state <= Opening || p.state == Playing {
			return false
		}

		if err := p.active.Play(); err != nil {
			p.fail(err)
		}
		return true
	})
}

func (p *Player) Pause() bool {
	return p.do(func() bool {
		if p.state <= Opening || p.state == Paused {
			return false
		}

		if err := p.active.Pause(); err != nil {
			p.fail(err)
		}
		return true
	})
}

func (p *Player) TogglePlayPaused() bool {
	return p.do(func() bool {
		if p.state <= Opening {
			return false
		}

		var err error
		if p.state == Playing {
			err = p.active.Pause()
		} else {
			err = p.active.Play()
		}
		if err != nil {
			p.fail(err)
		}
		return true
	})
}

// Seek moves to seconds, which must lie within [0, Length]. Accurate seeks land
// on the exact position; others may snap to a nearby keyframe.
func (p *Player) Seek(seconds float64, accurate bool) bool {
	return p.do(func() bool {
		return p.seek(seconds, accurate)
	})
}

func (p *Player) seek(seconds float64, accurate bool) bool {
	if (p.state != Playing && p.state != Paused) || seconds < 0 || seconds > p.length {
		return false
	}

	if seconds == p.position {
		return true
	}

	if err := p.active.Seek(seconds, accurate); err != nil {
		p.fail(err)
	}
	return true
}

func (p *Player) seekToSavedPosition() {
	if p.savedPosition >= 0 {
		p.seek(p.savedPosition, true)
		p.savedPosition = -1
	}
}

func (p *Player) Stop() bool {
	return p.do(func() bool {
		if p.state <= Opening || p.state == Ready {
			return false
		}

		if err := p.active.Stop(); err != nil {
			p.fail(err)
		}
		return true
	})
}

// SetActiveAudioStream selects the audio stream at index. Backends that cannot
// switch on the fly are stopped and restarted, and the position is restored
// once the engine had time to come back.
func (p *Player) SetActiveAudioStream(index int) bool {
	return p.do(func() bool {
		if p.state <= Opening || len(p.audioStreams) <= 1 {
			return false
		}

		if index == p.activeAudioStream || index < 0 || index >= len(p.audioStreams) {
			return false
		}

		supported, onTheFly := p.active.SupportsChangingAudioStream()
		if !supported {
			return true
		}

		p.activeAudioStream = index

		if p.state != Ready {
			savedPosition := p.position

			if err := p.active.SetActiveAudioStream(index); err != nil {
				p.fail(err)
				return true
			}

			if !onTheFly {
				if err := p.active.Stop(); err != nil {
					p.fail(err)
					return true
				}

				if savedPosition > 0 {
					if err := p.active.Play(); err != nil {
						p.fail(err)
						return true
					}

					p.savedPosition = savedPosition
					p.scheduleReseek()
				}
			}
		}

		p.emit(EventActiveAudioStreamChanged{Index: index})
		return true
	})
}

func (p *Player) IncreaseVolume(amount float64) {
	p.do(func() bool {
		p.setVolume(p.volume + amount)
		p.setMuted(false)
		return true
	})
}

func (p *Player) DecreaseVolume(amount float64) {
	p.do(func() bool {
		p.setVolume(p.volume - amount)
		return true
	})
}

// SetVolume stores volume clamped to [0, 100] and applies it while playing.
func (p *Player) SetVolume(volume float64) {
	p.do(func() bool {
		p.setVolume(volume)
		return true
	})
}

func (p *Player) setVolume(volume float64) {
	volume = clampVolume(volume)
	if volume == p.volume {
		return
	}
	p.volume = volume

	if !p.muted && p.state == Playing {
		if err := p.active.SetVolume(p.backendVolume()); err != nil {
			p.fail(err)
			return
		}
	}

	p.emit(EventVolumeChanged{Volume: volume})
}

func (p *Player) SetMuted(muted bool) {
	p.do(func() bool {
		p.setMuted(muted)
		return true
	})
}

func (p *Player) setMuted(muted bool) {
	if muted == p.muted {
		return
	}
	p.muted = muted

	if p.state == Playing {
		if err := p.active.SetVolume(p.backendVolume()); err != nil {
			p.fail(err)
			return
		}
	}

	p.emit(EventMuteChanged{Muted: muted})
}
