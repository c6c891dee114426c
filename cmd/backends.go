package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subplay/subplay/constant"
	"github.com/subplay/subplay/icon"
	"github.com/subplay/subplay/key"
	"github.com/subplay/subplay/player"
	"github.com/subplay/subplay/player/mplayer"
	"github.com/subplay/subplay/player/mpv"
	"github.com/subplay/subplay/player/pipeline"
	"github.com/subplay/subplay/style"
	"github.com/subplay/subplay/util"
)

func init() {
	rootCmd.AddCommand(backendsCmd)
	backendsCmd.Flags().BoolP("check", "c", false, "Initialize the preferred backend and report which one became active")
	backendsCmd.SetOut(os.Stdout)
}

// backendStatus describes one registered backend for listing.
type backendStatus struct {
	name       string
	executable string
	available  bool
	preferred  bool
}

// backendStatuses lists backends in fallback order. lookPath resolves the
// executables of the subprocess backends.
func backendStatuses(preferred string, lookPath func(string) (string, error)) []backendStatus {
	executables := map[string]string{
		mplayer.Name: mplayer.ConfigFromViper().Executable,
		mpv.Name:     mpv.ConfigFromViper().Executable,
	}

	return lo.Map(backendNames(), func(name string, _ int) backendStatus {
		status := backendStatus{name: name, preferred: name == preferred, available: true}
		if executable, ok := executables[name]; ok {
			status.executable = executable
			_, err := lookPath(executable)
			status.available = err == nil
		}
		return status
	})
}

func (s backendStatus) String() string {
	mark := lo.Ternary(s.available, icon.Get(icon.Success), icon.Get(icon.Missing))
	name := lo.Ternary(s.preferred, style.Bold(s.name), s.name)

	line := fmt.Sprintf("%s %s", mark, name)
	switch {
	case s.name == player.DummyName:
		line += style.Faint("  no playback, last fallback")
	case s.name == pipeline.Name:
		line += style.Faint("  in-process, audio only")
	case !s.available:
		line += style.Fg(style.ErrorColor)(fmt.Sprintf("  %s not found", s.executable))
	default:
		line += style.Faint("  " + s.executable)
	}
	if s.preferred {
		line += " " + style.Tag(style.Text, style.AccentColor)("preferred")
	}
	return line
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List the playback backends in the order they are tried",
	Run: func(cmd *cobra.Command, args []string) {
		preferred := viper.GetString(key.PlayerBackend)
		statuses := backendStatuses(preferred, exec.LookPath)

		for _, status := range statuses {
			cmd.Println(status)
		}

		available := lo.CountBy(statuses, func(s backendStatus) bool { return s.available })
		cmd.Println(style.Faint(util.Quantify(available, "backend", "backends") + " available"))

		if !lo.Contains(backendNames(), preferred) {
			cmd.Println()
			cmd.Println(errUnknownBackend(preferred))
		}

		missing := lo.Filter(statuses, func(s backendStatus, _ int) bool { return !s.available })
		if status, ok := lo.Find(missing, func(s backendStatus) bool { return s.preferred }); ok {
			cmd.Println(missingExecutable(status.executable))
		}

		if lo.Must(cmd.Flags().GetBool("check")) {
			p := newPlayer()
			if !p.Initialize(preferred) {
				handleErr(fmt.Errorf("cannot initialize %s", preferred))
			}
			active := p.ActiveBackendName()
			p.Finalize()

			cmd.Printf("\n%s active backend %s\n", icon.Get(icon.Backend), style.Bold(active))
		}
	},
}

// missingExecutable renders installation hints for a subprocess backend.
func missingExecutable(executable string) string {
	var install string
	switch runtime.GOOS {
	case constant.Darwin:
		install = "brew install " + executable
	case constant.Linux:
		install = "sudo apt install " + executable
	case constant.Windows:
		install = "scoop install " + executable
	}

	title := style.New().Bold(true).Foreground(style.ErrorColor).Render(fmt.Sprintf("%s Missing executable", icon.Get(icon.Fail)))
	body := style.New().Foreground(style.Text).Render(fmt.Sprintf("The preferred backend needs '%s' in your PATH.", executable))

	suggestion := ""
	if install != "" {
		suggestion = fmt.Sprintf("\n\nTo install it, try running:\n  %s", style.New().Foreground(style.AccentColor).Bold(true).Render(install))
	}

	return style.Box(style.ErrorColor).Render(lipgloss.JoinVertical(lipgloss.Left, title, "\n", body, suggestion))
}
