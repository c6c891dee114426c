package mpv

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/subplay/subplay/key"
)

// Config holds the options a process is started with.
type Config struct {
	Executable  string
	VideoOutput string
	AudioOutput string
	HWDecode    string
}

// ConfigFromViper reads the mpv.* keys.
func ConfigFromViper() Config {
	return Config{
		Executable:  viper.GetString(key.MPVExecutable),
		VideoOutput: viper.GetString(key.MPVVideoOutput),
		AudioOutput: viper.GetString(key.MPVAudioOutput),
		HWDecode:    viper.GetString(key.MPVHWDecode),
	}
}

// args builds the command line of an idle process listening on socket.
// audioID is the track to start with; negative leaves the choice to mpv.
func (c Config) args(socket string, audioID int) []string {
	args := []string{
		"--idle=yes",
		"--no-terminal",
		"--msg-level=all=warn",
		fmt.Sprintf("--input-ipc-server=%s", socket),
		"--force-window=yes",
		"--keep-open=no",
		"--sub-visibility=no",
		"--sid=no",
	}

	if c.VideoOutput != "" {
		args = append(args, "--vo="+c.VideoOutput)
	}
	if c.AudioOutput != "" {
		args = append(args, "--ao="+c.AudioOutput)
	}
	if c.HWDecode != "" {
		args = append(args, "--hwdec="+c.HWDecode)
	}
	if audioID >= 0 {
		args = append(args, fmt.Sprintf("--aid=%d", audioID))
	}

	return args
}

// mediaTarget validates a path before it is handed to loadfile.
func mediaTarget(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", fmt.Errorf("empty path")
	}

	if strings.ContainsAny(p, "\x00\n\r") {
		return "", fmt.Errorf("invalid control characters in path")
	}

	return filepath.Clean(p), nil
}
