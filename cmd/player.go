package cmd

import (
	"github.com/spf13/viper"
	"github.com/subplay/subplay/config"
	"github.com/subplay/subplay/key"
	"github.com/subplay/subplay/player"
	"github.com/subplay/subplay/player/mplayer"
	"github.com/subplay/subplay/player/mpv"
	"github.com/subplay/subplay/player/pipeline"
)

// newPlayer builds a Player from the player.* settings with every backend
// registered in fallback order. The Dummy backend is always tried last.
func newPlayer() *player.Player {
	p := player.New(
		player.WithOpenTimeout(config.Millis(key.PlayerOpenTimeout)),
		player.WithReseekDelay(config.Millis(key.PlayerReseekDelay)),
		player.WithVolume(viper.GetFloat64(key.PlayerVolume)),
	)

	p.Register(mplayer.Name, mplayer.New())
	p.Register(mpv.Name, mpv.New())
	p.Register(pipeline.Name, pipeline.New())

	return p
}

func backendNames() []string {
	return []string{mplayer.Name, mpv.Name, pipeline.Name, player.DummyName}
}
