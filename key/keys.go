// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// Playback - these keys configure the state machine that fronts every backend.
const (
	PlayerBackend     = "player.backend"
	PlayerOpenTimeout = "player.open_timeout"
	PlayerReseekDelay = "player.reseek_delay"
	PlayerVolume      = "player.volume"
	PlayerVolumeStep  = "player.volume_step"
)

// MPlayer - these keys configure the slave-mode subprocess backend.
const (
	MPlayerExecutable          = "mplayer.executable"
	MPlayerVideoOutput         = "mplayer.video_output"
	MPlayerAudioOutput         = "mplayer.audio_output"
	MPlayerAudioChannels       = "mplayer.audio_channels"
	MPlayerCacheSize           = "mplayer.cache_size"
	MPlayerVolumeAmplification = "mplayer.volume_amplification"
	MPlayerVolumeNormalization = "mplayer.volume_normalization"
	MPlayerFrameDropping       = "mplayer.frame_dropping"
	MPlayerHardFrameDropping   = "mplayer.hard_frame_dropping"
	MPlayerAutoSync            = "mplayer.auto_sync"
)

// MPV - these keys configure the JSON IPC subprocess backend.
const (
	MPVExecutable  = "mpv.executable"
	MPVVideoOutput = "mpv.video_output"
	MPVAudioOutput = "mpv.audio_output"
	MPVHWDecode    = "mpv.hw_decode"
)

// Pipeline - these keys configure the in-process decoding graph.
const (
	PipelineAudioSink       = "pipeline.audio_sink"
	PipelineSampleRate      = "pipeline.sample_rate"
	PipelineResampleQuality = "pipeline.resample_quality"
)

// Iconography - these keys manage the visual rendering of UI symbols.
const (
	IconsVariant = "icons.variant"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment - these settings govern command output.
const (
	CliColored = "cli.colored"
)
