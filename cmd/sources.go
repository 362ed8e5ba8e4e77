package cmd

import (
	"os"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/color"
	"github.com/audiobook-dl/audiobook-dl/provider"
	"github.com/audiobook-dl/audiobook-dl/session"
	"github.com/audiobook-dl/audiobook-dl/source"
	"github.com/audiobook-dl/audiobook-dl/style"
	"github.com/audiobook-dl/audiobook-dl/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesListCmd)

	sourcesListCmd.Flags().BoolP("raw", "r", false, "Print only source names")
	sourcesListCmd.SetOut(os.Stdout)
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect the supported audiobook services",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the supported services and how they authenticate",
	Run: func(cmd *cobra.Command, args []string) {
		if lo.Must(cmd.Flags().GetBool("raw")) {
			for _, name := range provider.Names() {
				cmd.Println(name)
			}
			return
		}

		nameStyle := style.New().Foreground(color.HiBlue).Bold(true).Render
		for _, p := range provider.Builtins() {
			methods := lo.Map(p.New(source.Options{DatabaseDirectory: where.Database()}).AuthMethods(), func(m session.AuthMethod, _ int) string {
				return string(m)
			})
			auth := "none"
			if len(methods) > 0 {
				auth = strings.Join(methods, ", ")
			}

			cmd.Printf("%s %s\n", nameStyle(p.Name), style.Faint("("+p.ID+")"))
			if len(p.Aliases) > 0 {
				cmd.Printf("  %s %s\n", style.Faint("aliases"), strings.Join(p.Aliases, ", "))
			}
			cmd.Printf("  %s %s\n", style.Faint("auth"), style.Fg(color.Yellow)(auth))
		}
	},
}
