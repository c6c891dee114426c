package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subplay/subplay/icon"
	"github.com/subplay/subplay/key"
	"github.com/subplay/subplay/log"
	"github.com/subplay/subplay/style"
	"golang.org/x/term"
)

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().Float64P("seek", "s", 0, "Seek to this position in seconds once the file is open")
	playCmd.Flags().Float64P("volume", "V", 0, "Initial volume, from 0 to 100")
	playCmd.Flags().IntP("audio-stream", "a", 0, "Audio stream to switch to once the file is open")

	playCmd.SetOut(os.Stdout)
}

const playHelp = `commands: p pause/resume, s stop, + / - volume, m mute, seek N, aid N, q quit`

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Play a media file and print the playback events",
	Long: `Open a file with the preferred backend, falling back to the other registered backends,
and print every playback event until the file stops or closes.
On an interactive terminal, line commands control the playback:
  ` + playHelp,
	Args:    cobra.ExactArgs(1),
	Example: "  subplay play --backend Pipeline episode.jpn.ogg",
	Run: func(cmd *cobra.Command, args []string) {
		preferred := viper.GetString(key.PlayerBackend)
		if !lo.Contains(backendNames(), preferred) {
			_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", icon.Get(icon.Missing), errUnknownBackend(preferred))
		}

		options := sessionOptions{}
		if cmd.Flags().Changed("seek") {
			options.seek = mo.Some(lo.Must(cmd.Flags().GetFloat64("seek")))
		}
		if cmd.Flags().Changed("audio-stream") {
			options.audioStream = mo.Some(lo.Must(cmd.Flags().GetInt("audio-stream")))
		}

		p := newPlayer()
		if cmd.Flags().Changed("volume") {
			p.SetVolume(lo.Must(cmd.Flags().GetFloat64("volume")))
		}

		s := newSession(p, cmd.OutOrStdout(), viper.GetFloat64(key.PlayerVolumeStep), options)
		defer p.Subscribe(s.onEvent)()

		if !p.Initialize(preferred) {
			handleErr(fmt.Errorf("cannot initialize %s", preferred))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		interrupted := play(ctx, s, args[0], commandLines(os.Stdin))
		if interrupted {
			p.SetApplicationClosingDown()
		}

		p.CloseFile()
		p.Finalize()

		handleErr(s.Err())
	},
}

// play opens path and runs the session until it ends, q is entered or ctx
// is cancelled. It reports whether ctx ended it.
func play(ctx context.Context, s *session, path string, lines <-chan string) bool {
	if !s.p.OpenFile(path) {
		s.mu.Lock()
		s.err = mo.Some("cannot open " + path)
		s.mu.Unlock()
		return false
	}

	for {
		select {
		case <-ctx.Done():
			return true
		case <-s.Done():
			return false
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}

			quit, err := s.execute(line)
			if err != nil {
				log.Warnf("command %q: %v", line, err)
				_, _ = fmt.Fprintf(s.out, "%s %s\n", icon.Get(icon.Fail), style.Fg(style.WarningColor)(err.Error()))
			}
			if quit {
				return false
			}
		}
	}
}

// commandLines reads lines from in while it is a terminal. Otherwise it
// returns nil, which blocks forever in a select.
func commandLines(in *os.File) <-chan string {
	if !term.IsTerminal(int(in.Fd())) {
		return nil
	}
	return readLines(in)
}

func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
