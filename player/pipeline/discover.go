package pipeline

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/samber/lo"
	"github.com/subplay/subplay/filesystem"
	"github.com/subplay/subplay/util"
)

type decodeFunc func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decodeFunc{
	".mp3": mp3.Decode,
	".ogg": vorbis.Decode,
	".oga": vorbis.Decode,
	".wav": func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
		return wav.Decode(rc)
	},
}

var codecs = map[string]string{
	".mp3": "MPEG-1 Layer 3",
	".ogg": "Vorbis",
	".oga": "Vorbis",
	".wav": "PCM",
}

// containers holds the extensions recognised as video. Their streams are
// discovered but never decoded.
var containers = []string{".mkv", ".mp4", ".avi", ".webm", ".mov", ".ogv"}

func extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// discover lists the elementary streams belonging to path: the file itself,
// followed by sibling audio tracks named "<stem>.<language>.<ext>".
func discover(path string) ([]StreamInfo, error) {
	fs := filesystem.API()

	if _, err := fs.Stat(path); err != nil {
		return nil, err
	}

	var streams []StreamInfo

	ext := extension(path)
	switch {
	case slices.Contains(containers, ext):
		streams = append(streams, StreamInfo{Kind: KindVideo, Path: path, Codec: strings.TrimPrefix(ext, ".")})
	case decoders[ext] != nil:
		streams = append(streams, StreamInfo{Kind: KindAudio, Path: path, Codec: codecs[ext]})
	}

	dir := filepath.Dir(path)
	stem := util.FileStem(path) + "."

	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, stem) {
			continue
		}

		ext := extension(name)
		if decoders[ext] == nil {
			continue
		}

		language := strings.TrimSuffix(strings.TrimPrefix(name, stem), filepath.Ext(name))
		if language == "" || strings.Contains(language, ".") {
			continue
		}

		streams = append(streams, StreamInfo{
			Kind:     KindAudio,
			Path:     filepath.Join(dir, name),
			Language: language,
			Codec:    codecs[ext],
		})
	}

	return streams, nil
}

func audioOnly(streams []StreamInfo) []StreamInfo {
	return lo.Filter(streams, func(s StreamInfo, _ int) bool {
		return s.Kind == KindAudio
	})
}

// StreamNames renders audio stream descriptions as "<language> / <codec>",
// falling back to a numbered placeholder.
func StreamNames(streams []StreamInfo) []string {
	return lo.Map(streams, func(s StreamInfo, i int) string {
		name := strings.Join(lo.Compact([]string{s.Language, s.Codec}), " / ")
		if name == "" {
			return fmt.Sprintf("Audio Stream #%d", i+1)
		}
		return name
	})
}
