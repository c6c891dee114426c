package mplayer

import (
	"strconv"

	"github.com/spf13/viper"
	"github.com/subplay/subplay/key"
)

// Config holds the options a process is started with.
type Config struct {
	Executable          string
	VideoOutput         string
	AudioOutput         string
	AudioChannels       int
	CacheSize           int
	VolumeAmplification int
	VolumeNormalization bool
	FrameDropping       bool
	HardFrameDropping   bool
	AutoSync            int
}

// ConfigFromViper reads the mplayer.* keys.
func ConfigFromViper() Config {
	return Config{
		Executable:          viper.GetString(key.MPlayerExecutable),
		VideoOutput:         viper.GetString(key.MPlayerVideoOutput),
		AudioOutput:         viper.GetString(key.MPlayerAudioOutput),
		AudioChannels:       viper.GetInt(key.MPlayerAudioChannels),
		CacheSize:           viper.GetInt(key.MPlayerCacheSize),
		VolumeAmplification: viper.GetInt(key.MPlayerVolumeAmplification),
		VolumeNormalization: viper.GetBool(key.MPlayerVolumeNormalization),
		FrameDropping:       viper.GetBool(key.MPlayerFrameDropping),
		HardFrameDropping:   viper.GetBool(key.MPlayerHardFrameDropping),
		AutoSync:            viper.GetInt(key.MPlayerAutoSync),
	}
}

// amplification is the factor volumes are scaled by before they are sent.
func (c Config) amplification() float64 {
	if c.VolumeAmplification < 1 {
		return 1
	}
	return float64(c.VolumeAmplification) / 100
}

// args builds the command line for playing path. audioStream is the engine
// track id to start with; it is passed only when there is a choice.
func (c Config) args(path string, audioStream, audioStreamCount int) []string {
	var args []string

	if audioStream >= 0 && audioStreamCount > 1 {
		args = append(args, "-aid", strconv.Itoa(audioStream))
	}

	args = append(args,
		"-noquiet",
		"-nofs",
		"-identify",
		"-slave",
		"-input", "nodefault-bindings:conf=/dev/null",
	)

	if c.VideoOutput != "" {
		args = append(args, "-vo", c.VideoOutput)
	}
	if c.AudioOutput != "" {
		args = append(args, "-ao", c.AudioOutput)
	}
	if c.AudioChannels > 0 {
		args = append(args, "-channels", strconv.Itoa(c.AudioChannels))
	}

	args = append(args, "-zoom", "-nokeepaspect")

	if c.FrameDropping {
		args = append(args, "-framedrop")
	}
	if c.HardFrameDropping {
		args = append(args, "-hardframedrop")
	}
	if c.AutoSync > 0 {
		args = append(args, "-autosync", strconv.Itoa(c.AutoSync))
	}

	args = append(args, "-noautosub")

	if c.CacheSize > 0 {
		args = append(args,
			"-cache", strconv.Itoa(c.CacheSize),
			"-cache-min", "99",
			"-cache-seek-min", "99",
		)
	}

	args = append(args, "-osdlevel", "0")

	if c.VolumeNormalization {
		args = append(args, "-af", "volnorm=2")
	}

	args = append(args, "-softvol")
	if c.VolumeAmplification > 0 {
		args = append(args, "-softvol-max", strconv.Itoa(c.VolumeAmplification))
	}

	return append(args, path)
}
