package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/color"
	"github.com/audiobook-dl/audiobook-dl/style"
	"github.com/audiobook-dl/audiobook-dl/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type location struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	resolve func() string
}

var locations = []location{
	{Name: "config", resolve: where.Config},
	{Name: "logs", resolve: where.Logs},
	{Name: "database", resolve: where.Database},
	{Name: "history", resolve: where.History},
	{Name: "cache", resolve: where.Cache},
	{Name: "temp", resolve: where.Temp},
}

func locationNames() []string {
	return lo.Map(locations, func(l location, _ int) string { return l.Name })
}

func init() {
	rootCmd.AddCommand(whereCmd)
	whereCmd.Flags().BoolP("json", "j", false, "Print the locations as JSON")
	whereCmd.SetOut(os.Stdout)
}

var whereCmd = &cobra.Command{
	Use:       "where [" + strings.Join(locationNames(), "|") + "]",
	Short:     "Show where configuration, logs and recorded data live",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: locationNames(),
	Run: func(cmd *cobra.Command, args []string) {
		resolved := lo.Map(locations, func(l location, _ int) location {
			l.Path = l.resolve()
			return l
		})

		if len(args) == 1 {
			l, _ := lo.Find(resolved, func(l location) bool { return l.Name == args[0] })
			cmd.Println(l.Path)
			return
		}

		if lo.Must(cmd.Flags().GetBool("json")) {
			handleErr(json.NewEncoder(cmd.OutOrStdout()).Encode(resolved))
			return
		}

		header := style.New().Bold(true).Foreground(color.HiPurple).Render
		for _, l := range resolved {
			cmd.Printf("%s %s\n", header(fmt.Sprintf("%-9s", l.Name)), l.Path)
		}
	},
}
