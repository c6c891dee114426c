package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/samber/lo"
	"github.com/spf13/viper"
	"github.com/subplay/subplay/color"
	"github.com/subplay/subplay/constant"
	"github.com/subplay/subplay/key"
	"github.com/subplay/subplay/style"
)

// Field is one setting: its key, its default and what it controls.
// The default also fixes the type a value set from the CLI is parsed into.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Env is the variable overriding the field, e.g. SUBPLAY_PLAYER_BACKEND.
func (f *Field) Env() string {
	return strings.ToUpper(constant.Subplay + "_" + EnvKeyReplacer.Replace(f.Key))
}

// Type names the kind of value the field holds.
func (f *Field) Type() string {
	switch f.Value.(type) {
	case bool:
		return "bool"
	case int:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	}
	return "unknown"
}

// Pretty renders the field with its current value for "config info".
func (f *Field) Pretty() string {
	var b strings.Builder
	lo.Must0(prettyTemplate.Execute(&b, f))
	return b.String()
}

type fieldJSON struct {
	Key         string `json:"key"`
	Env         string `json:"env"`
	Type        string `json:"type"`
	Value       any    `json:"value"`
	Default     any    `json:"default"`
	Description string `json:"description"`
}

func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(fieldJSON{
		Key:         f.Key,
		Env:         f.Env(),
		Type:        f.Type(),
		Value:       viper.Get(f.Key),
		Default:     f.Value,
		Description: f.Description,
	})
}

// Default maps every known key to its field.
var Default = make(map[string]Field)

// EnvExposed lists the keys in registration order. Each one can be
// overridden from the environment.
var EnvExposed []string

func register(k string, v any, desc string) {
	if _, exists := Default[k]; exists {
		panic("config: key registered twice: " + k)
	}
	Default[k] = Field{Key: k, Value: v, Description: desc}
	EnvExposed = append(EnvExposed, k)
}

func init() {
	register(key.PlayerBackend, "MPlayer", "Preferred playback backend.\nOthers are tried in registration order if it fails to initialize.\nType \"subplay backends\" to list them")
	register(key.PlayerOpenTimeout, 6000, "Milliseconds to wait for a backend to confirm an opened file before reporting an open error")
	register(key.PlayerReseekDelay, 500, "Milliseconds to wait before seeking back after an audio stream switch that restarted playback")
	register(key.PlayerVolume, 100, "Initial volume. From 0 to 100")
	register(key.PlayerVolumeStep, 5, "Volume step used by the increase and decrease volume commands")

	register(key.MPlayerExecutable, "mplayer", "MPlayer executable name or path")
	register(key.MPlayerVideoOutput, "", "Video output driver passed to -vo. Empty means the MPlayer default")
	register(key.MPlayerAudioOutput, "", "Audio output driver passed to -ao. Empty means the MPlayer default")
	register(key.MPlayerAudioChannels, 0, "Number of audio channels passed to -channels. 0 keeps the MPlayer default")
	register(key.MPlayerCacheSize, 5120, "Cache size in kilobytes. 0 disables the cache")
	register(key.MPlayerVolumeAmplification, 110, "Maximum software volume in percent. Volumes are scaled into this range")
	register(key.MPlayerVolumeNormalization, true, "Enable the volnorm audio filter")
	register(key.MPlayerFrameDropping, false, "Drop frames when the video falls behind")
	register(key.MPlayerHardFrameDropping, false, "Drop frames aggressively, including before decoding")
	register(key.MPlayerAutoSync, 100, "A/V sync adjustment factor passed to -autosync. 0 disables it")

	register(key.MPVExecutable, "mpv", "MPV executable name or path")
	register(key.MPVVideoOutput, "", "Video output driver passed to --vo. Empty means the MPV default")
	register(key.MPVAudioOutput, "", "Audio output driver passed to --ao. Empty means the MPV default")
	register(key.MPVHWDecode, "no", "Hardware decoding mode passed to --hwdec")

	register(key.PipelineAudioSink, "speaker", "Audio sink of the in-process pipeline.\nAvailable options are: speaker, null")
	register(key.PipelineSampleRate, 44100, "Output sample rate of the in-process pipeline")
	register(key.PipelineResampleQuality, 4, "Resampling quality of the in-process pipeline. From 1 to 6")

	register(key.IconsVariant, "plain", "Icons variant.\nAvailable options are: emoji, kaomoji, plain, squares, nerd (nerd-font required)")
	register(key.LogsWrite, false, "Write logs")
	register(key.LogsLevel, "info", "Available options are: (from less to most verbose)\npanic, fatal, error, warn, info, debug, trace")
	register(key.LogsJson, false, "Use json format for logs")
	register(key.CliColored, true, "Enable colored CLI output")
}

var prettyTemplate = lo.Must(template.New("field").Funcs(template.FuncMap{
	"faint":   style.Faint,
	"label":   func(s string) string { return style.Fg(color.Blue)(fmt.Sprintf("%-8s", s+":")) },
	"key":     style.Fg(color.Purple),
	"current": func(k string) string { return highlight(viper.Get(k)) },
	"hl":      highlight,
}).Parse(`{{ faint .Description }}
{{ label "Key" }} {{ key .Key }}
{{ label "Env" }} {{ .Env }}
{{ label "Value" }} {{ current .Key }}
{{ label "Default" }} {{ hl .Value }}
{{ label "Type" }} {{ .Type }}`))

// highlight colors booleans by truth and strings as literals.
func highlight(v any) string {
	switch value := v.(type) {
	case bool:
		return style.Fg(lo.Ternary(value, color.Green, color.Red))(strconv.FormatBool(value))
	case string:
		return style.Fg(color.Yellow)(strconv.Quote(value))
	}
	return fmt.Sprint(v)
}
