package cmd

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/subplay/subplay/icon"
	"github.com/subplay/subplay/util"
	"github.com/subplay/subplay/where"
)

type clearTarget struct {
	name     string
	argLong  string
	argShort string
	location func() string
}

var clearTargets = []clearTarget{
	{"log files", "logs", "l", where.Logs},
	{"stale sockets", "sockets", "s", where.Temp},
}

func init() {
	rootCmd.AddCommand(clearCmd)

	for _, target := range clearTargets {
		clearCmd.Flags().BoolP(target.argLong, target.argShort, false, "clear "+target.name)
	}
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove logs and sockets left behind by engines",
	Run: func(cmd *cobra.Command, args []string) {
		selected := lo.Filter(clearTargets, func(t clearTarget, _ int) bool {
			return lo.Must(cmd.Flags().GetBool(t.argLong))
		})

		if len(selected) == 0 {
			cmd.Println("nothing selected, see --help")
			return
		}

		for _, target := range selected {
			handleErr(util.Delete(target.location()))
			fmt.Printf("%s %s cleared\n", icon.Get(icon.Success), util.Capitalize(target.name))
		}
	},
}
