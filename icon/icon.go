// Package icon renders the symbols the CLI prefixes its output with.
//
// Icons can be displayed as emoji, nerd-font glyphs, plain ASCII, kaomoji,
// or Unicode squares depending on the icons.variant setting.
package icon

import (
	"github.com/spf13/viper"
	"github.com/subplay/subplay/key"
)

const (
	emoji   = "emoji"
	nerd    = "nerd"
	plain   = "plain"
	kaomoji = "kaomoji"
	squares = "squares"
)

// AvailableVariants returns every supported variant name.
func AvailableVariants() []string {
	return []string{emoji, nerd, plain, kaomoji, squares}
}

// Icon identifies one symbol.
type Icon int

const (
	Success Icon = iota
	Fail
	Progress
	Playing
	Paused
	Stopped
	Opened
	Closed
	Volume
	Muted
	Backend
	Missing
)

type iconDef struct {
	emoji   string
	nerd    string
	plain   string
	kaomoji string
	squares string
}

var icons = map[Icon]iconDef{
	Success:  {emoji: "🎉", nerd: "", plain: "✓", kaomoji: "(ᵔ◡ᵔ)", squares: "🟩"},
	Fail:     {emoji: "💀", nerd: "", plain: "✗", kaomoji: "(×_×)", squares: "🟥"},
	Progress: {emoji: "👾", nerd: "", plain: "~", kaomoji: "(・_・)", squares: "🟦"},
	Playing:  {emoji: "▶️", nerd: "", plain: ">", kaomoji: "(ﾉ◕ヮ◕)ﾉ", squares: "🟩"},
	Paused:   {emoji: "⏸️", nerd: "", plain: "||", kaomoji: "(-_-)", squares: "🟨"},
	Stopped:  {emoji: "⏹️", nerd: "", plain: "[]", kaomoji: "(._.)", squares: "⬛"},
	Opened:   {emoji: "📂", nerd: "", plain: "+", kaomoji: "(o_o)", squares: "🟪"},
	Closed:   {emoji: "📁", nerd: "", plain: "-", kaomoji: "(u_u)", squares: "⬜"},
	Volume:   {emoji: "🔊", nerd: "", plain: "vol", kaomoji: "(°o°)", squares: "🟧"},
	Muted:    {emoji: "🔇", nerd: "", plain: "mute", kaomoji: "(-_-)zzz", squares: "⬛"},
	Backend:  {emoji: "🎬", nerd: "", plain: "*", kaomoji: "(⌐■_■)", squares: "🟦"},
	Missing:  {emoji: "❓", nerd: "", plain: "?", kaomoji: "(?_?)", squares: "🟫"},
}

func (d iconDef) get(variant string) string {
	switch variant {
	case emoji:
		return d.emoji
	case nerd:
		return d.nerd
	case plain:
		return d.plain
	case kaomoji:
		return d.kaomoji
	case squares:
		return d.squares
	default:
		return ""
	}
}

// Get renders i in the configured variant. Unknown variants render nothing.
func Get(i Icon) string {
	return icons[i].get(viper.GetString(key.IconsVariant))
}
