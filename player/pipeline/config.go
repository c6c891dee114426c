package pipeline

import (
	"github.com/gopxl/beep/v2"
	"github.com/spf13/viper"
	"github.com/subplay/subplay/key"
	"github.com/subplay/subplay/util"
)

// Config holds the options a graph is built with.
type Config struct {
	AudioSink       string
	SampleRate      int
	ResampleQuality int
}

// ConfigFromViper reads the pipeline.* keys.
func ConfigFromViper() Config {
	return Config{
		AudioSink:       viper.GetString(key.PipelineAudioSink),
		SampleRate:      viper.GetInt(key.PipelineSampleRate),
		ResampleQuality: viper.GetInt(key.PipelineResampleQuality),
	}
}

func (c Config) sampleRate() beep.SampleRate {
	if c.SampleRate <= 0 {
		return 44100
	}
	return beep.SampleRate(c.SampleRate)
}

func (c Config) quality() int {
	return util.Clamp(c.ResampleQuality, 1, 6)
}
