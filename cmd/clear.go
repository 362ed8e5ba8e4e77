package cmd

import (
	"fmt"

	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/history"
	"github.com/audiobook-dl/audiobook-dl/icon"
	"github.com/audiobook-dl/audiobook-dl/util"
	"github.com/audiobook-dl/audiobook-dl/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type clearTarget struct {
	name, flag, short string
	clear             func() error
}

func removeAll(dir func() string) func() error {
	return func() error { return filesystem.API().RemoveAll(dir()) }
}

var clearTargets = []clearTarget{
	{"cache directory", "cache", "c", removeAll(where.Cache)},
	{"download history", "history", "s", history.Clear},
	{"temporary files", "temp", "t", removeAll(where.Temp)},
	{"source database", "database", "d", removeAll(where.Database)},
}

func init() {
	rootCmd.AddCommand(clearCmd)

	for _, target := range clearTargets {
		clearCmd.Flags().BoolP(target.flag, target.short, false, "clear "+target.name)
	}
	clearCmd.Flags().BoolP("all", "a", false, "clear everything above")
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached and recorded application data",
	Run: func(cmd *cobra.Command, args []string) {
		all := lo.Must(cmd.Flags().GetBool("all"))
		selected := lo.Filter(clearTargets, func(t clearTarget, _ int) bool {
			return all || lo.Must(cmd.Flags().GetBool(t.flag))
		})
		if len(selected) == 0 {
			handleErr(cmd.Help())
			return
		}

		for _, target := range selected {
			erase := util.PrintErasable(fmt.Sprintf("%s Clearing %s...", icon.Get(icon.Progress), target.name))
			err := target.clear()
			erase()
			handleErr(err)
			fmt.Printf("%s %s cleared\n", icon.Get(icon.Success), util.Capitalize(target.name))
		}
	},
}
