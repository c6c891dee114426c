package mpv

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// observed properties and the ids they are registered under
var observed = []struct {
	id   int
	name string
}{
	{1, "time-pos"},
	{2, "pause"},
	{3, "duration"},
	{4, "track-list"},
	{5, "container-fps"},
}

// Notifications the event reader posts for the backend.
type (
	fileLoaded      struct{}
	fileEnded       struct{ reason, fileError string }
	pauseChanged    struct{ paused bool }
	positionChanged struct{ seconds float64 }
	durationChanged struct{ seconds float64 }
	fpsChanged      struct{ fps float64 }
	tracksChanged   struct{ tracks []track }
	processExited   struct{ eng engine }
	unknownEvent    struct{}
)

// track is an audio entry of mpv's track-list.
type track struct {
	ID       int
	Language string
	Title    string
	Codec    string
	Selected bool
}

// notification translates an event message. Property changes without a
// value, which mpv sends while nothing is loaded, yield unknownEvent.
func notification(m ipcMessage) any {
	switch m.Event {
	case "file-loaded":
		return fileLoaded{}
	case "end-file":
		return fileEnded{reason: m.Reason, fileError: m.FileError}
	case "property-change":
		return propertyChange(m.Name, m.Data)
	default:
		return unknownEvent{}
	}
}

func propertyChange(name string, data any) any {
	switch name {
	case "pause":
		if paused, ok := data.(bool); ok {
			return pauseChanged{paused: paused}
		}
	case "time-pos":
		if seconds, ok := data.(float64); ok {
			return positionChanged{seconds: seconds}
		}
	case "duration":
		if seconds, ok := data.(float64); ok {
			return durationChanged{seconds: seconds}
		}
	case "container-fps":
		if fps, ok := data.(float64); ok {
			return fpsChanged{fps: fps}
		}
	case "track-list":
		if list, ok := data.([]any); ok {
			return tracksChanged{tracks: audioTracks(list)}
		}
	}
	return unknownEvent{}
}

func audioTracks(list []any) []track {
	var tracks []track
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok || entry["type"] != "audio" {
			continue
		}

		id, _ := entry["id"].(float64)
		lang, _ := entry["lang"].(string)
		title, _ := entry["title"].(string)
		codec, _ := entry["codec"].(string)
		selected, _ := entry["selected"].(bool)

		tracks = append(tracks, track{
			ID:       int(id),
			Language: lang,
			Title:    title,
			Codec:    codec,
			Selected: selected,
		})
	}
	return tracks
}

// trackNames renders "<language> / <title> [codec]", falling back to a
// numbered placeholder when neither language nor title is known.
func trackNames(tracks []track) []string {
	return lo.Map(tracks, func(t track, i int) string {
		name := strings.Join(lo.Compact([]string{t.Language, t.Title}), " / ")
		if name == "" {
			name = fmt.Sprintf("Audio Stream #%d", i+1)
		}
		if t.Codec != "" {
			name += " [" + t.Codec + "]"
		}
		return name
	})
}

// selectedTrack returns the index of the selected track, or -1.
func selectedTrack(tracks []track) int {
	_, index, ok := lo.FindIndexOf(tracks, func(t track) bool { return t.Selected })
	if !ok {
		return -1
	}
	return index
}
