package player

import "slices"

// Host implementation. Backends call these from their own goroutines.

// SetState applies an engine-reported state.
func (p *Player) SetState(state State) {
	p.do(func() bool {
		p.setState(state)
		return true
	})
}

func (p *Player) setState(state State) {
	switch {
	case p.state == Opening:
		if state != Playing {
			return
		}

		p.disarmWatchdog()
		p.state = Playing
		p.applyVolume()

		p.emit(EventFileOpened{Path: p.path})

		// values that arrived before the open was confirmed
		if p.length >= 0 {
			p.emit(EventLengthChanged{Seconds: p.length})
		}
		if p.fps > 0 {
			p.emit(EventFramesPerSecondChanged{FPS: p.fps})
		}
		if len(p.audioStreams) > 0 {
			p.emit(EventAudioStreamsChanged{Streams: slices.Clone(p.audioStreams)})
			p.emit(EventActiveAudioStreamChanged{Index: p.activeAudioStream})
		}

		p.emit(EventPlaying{})
	case p.state > Opening:
		if state == p.state || state <= Opening {
			return
		}

		p.state = state
		switch state {
		case Playing:
			p.applyVolume()
			p.emit(EventPlaying{})
		case Paused:
			p.emit(EventPaused{})
		case Ready:
			p.emit(EventStopped{})
		}
	}
}

// applyVolume pushes the current volume to the backend on entering Playing.
// A failure here is logged only; the engine already confirmed it is playing.
func (p *Player) applyVolume() {
	if err := p.active.SetVolume(p.backendVolume()); err != nil {
		logger.Warnf("apply volume: %v", err)
	}
}

// SetErrorState reports an engine failure. While opening it fails the open;
// afterwards it stops playback and reports the message.
func (p *Player) SetErrorState(message string) {
	p.do(func() bool {
		switch {
		case p.state == Opening:
			path := p.path
			logger.Errorf("opening %s: %s", path, message)
			p.resetState()
			p.emit(EventFileOpenError{Path: path})
		case p.state > Opening:
			logger.Errorf("playback: %s", message)
			_ = p.active.Stop()
			p.state = Ready
			p.emit(EventPlaybackError{Message: message})
			p.emit(EventStopped{})
		}
		return true
	})
}

// SetPosition records a reported position, suppressing changes smaller than
// the minimum reportable delta.
func (p *Player) SetPosition(seconds float64) {
	p.do(func() bool {
		p.setPosition(seconds)
		return true
	})
}

func (p *Player) setPosition(seconds float64) {
	if p.state <= Closed {
		return
	}

	if seconds > p.length && p.length > 0 {
		p.setLength(seconds)
	}

	if seconds == p.position {
		return
	}

	if p.position > 0 && p.minPositionDelta > 0 {
		delta := p.position - seconds
		if delta < p.minPositionDelta && -delta < p.minPositionDelta {
			return
		}
	}

	p.position = seconds
	p.emit(EventPositionChanged{Seconds: seconds})
}

// SetLength records the media length.
func (p *Player) SetLength(seconds float64) {
	p.do(func() bool {
		p.setLength(seconds)
		return true
	})
}

func (p *Player) setLength(seconds float64) {
	if p.state <= Closed {
		return
	}

	if seconds >= 0 && seconds != p.length {
		p.length = seconds
		p.emit(EventLengthChanged{Seconds: seconds})
	}
}

// SetFramesPerSecond records the frame rate and tightens the position debounce to one frame.
func (p *Player) SetFramesPerSecond(fps float64) {
	p.do(func() bool {
		if p.state <= Closed {
			return false
		}

		if fps > 0 && fps != p.fps {
			p.fps = fps
			p.minPositionDelta = 1 / fps
			p.emit(EventFramesPerSecondChanged{FPS: fps})
		}
		return true
	})
}

// SetAudioStreams replaces the audio stream list. An out of range active index selects the first stream.
func (p *Player) SetAudioStreams(streams []string, active int) {
	p.do(func() bool {
		if p.state <= Closed {
			return false
		}

		p.audioStreams = slices.Clone(streams)
		p.emit(EventAudioStreamsChanged{Streams: slices.Clone(streams)})

		switch {
		case len(streams) == 0:
			p.activeAudioStream = -1
		case active < 0 || active >= len(streams):
			p.activeAudioStream = 0
		default:
			p.activeAudioStream = active
		}
		p.emit(EventActiveAudioStreamChanged{Index: p.activeAudioStream})
		return true
	})
}

// ApplicationClosingDown reports whether SetApplicationClosingDown was called.
func (p *Player) ApplicationClosingDown() bool {
	return p.registry.IsApplicationClosingDown()
}
