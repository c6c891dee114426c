package mplayer

import (
	"fmt"
	"maps"
	"slices"

	"github.com/samber/lo"
)

// TrackData describes one audio track as the engine identifies it.
type TrackData struct {
	Language string
	Name     string
}

// MediaData is what the engine reports about a file before it starts playing.
type MediaData struct {
	Duration    float64
	HasVideo    bool
	VideoWidth  int
	VideoHeight int
	VideoDAR    float64
	VideoFPS    float64

	// AudioTracks is keyed by engine track id.
	AudioTracks map[int]TrackData
}

func newMediaData() MediaData {
	return MediaData{
		VideoDAR:    4.0 / 3.0,
		AudioTracks: make(map[int]TrackData),
	}
}

func (m MediaData) clone() MediaData {
	m.AudioTracks = maps.Clone(m.AudioTracks)
	return m
}

// trackIDs returns the engine track ids in display order.
func (m MediaData) trackIDs() []int {
	ids := lo.Keys(m.AudioTracks)
	slices.Sort(ids)
	return ids
}

// IDForIndex maps a display index to the engine track id, or -1.
func (m MediaData) IDForIndex(index int) int {
	ids := m.trackIDs()
	if index < 0 || index >= len(ids) {
		return -1
	}
	return ids[index]
}

// AudioStreamNames returns a display name per track, in display order.
func (m MediaData) AudioStreamNames() []string {
	return lo.Map(m.trackIDs(), func(id int, i int) string {
		track := m.AudioTracks[id]

		name := track.Language
		if track.Name != "" {
			if name != "" {
				name += " / "
			}
			name += track.Name
		}
		if name == "" {
			name = fmt.Sprintf("Audio Stream #%d", i+1)
		}
		return name
	})
}
