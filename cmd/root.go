// Package cmd implements the command-line interface of audiobook-dl.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/color"
	"github.com/audiobook-dl/audiobook-dl/config"
	"github.com/audiobook-dl/audiobook-dl/constant"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/ffmpeg"
	"github.com/audiobook-dl/audiobook-dl/icon"
	"github.com/audiobook-dl/audiobook-dl/key"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/pipeline"
	"github.com/audiobook-dl/audiobook-dl/style"
	"github.com/audiobook-dl/audiobook-dl/version"
	cc "github.com/ivanpirog/coloredcobra"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print the application version")

	rootCmd.PersistentFlags().StringP("icons", "I", "", "Set the visual icon variant (e.g., nerd, emoji, squares)")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("icons", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return icon.AvailableVariants(), cobra.ShellCompDirectiveDefault
	}))
	lo.Must0(viper.BindPFlag(key.IconsVariant, rootCmd.PersistentFlags().Lookup("icons")))

	rootCmd.PersistentFlags().String("config", "", "Read configuration from this file instead of the default one")

	bind := func(name, k string) {
		lo.Must0(viper.BindPFlag(k, rootCmd.Flags().Lookup(name)))
	}

	rootCmd.Flags().StringP("output", "o", "", "Output location template, e.g. \"{series}/{title}\"")
	bind("output", key.OutputTemplate)
	rootCmd.Flags().StringP("output-format", "f", "", "Convert the finished book to this format")
	bind("output-format", key.OutputFormat)
	rootCmd.Flags().BoolP("combine", "c", false, "Combine all files into a single file")
	bind("combine", key.Combine)
	rootCmd.Flags().String("remove-chars", "", "Characters removed from values used in the output path")
	bind("remove-chars", key.RemoveChars)
	rootCmd.Flags().Bool("no-chapters", false, "Do not embed chapter marks")
	bind("no-chapters", key.NoChapters)
	rootCmd.Flags().Bool("write-json-metadata", false, "Write metadata to a JSON sidecar")
	bind("write-json-metadata", key.WriteJSONMetadata)
	rootCmd.Flags().Bool("skip-downloaded", false, "Skip books downloaded before")
	bind("skip-downloaded", key.SkipDownloaded)
	rootCmd.Flags().String("mp4-audio-encoder", "", "FFmpeg encoder for mp4 family outputs")
	bind("mp4-audio-encoder", key.Mp4AudioEncoder)
	rootCmd.Flags().String("database-directory", "", "Directory of per-source book documents")
	bind("database-directory", key.DatabaseDirectory)
	rootCmd.Flags().Int("workers", 0, "Number of concurrent file downloads")
	bind("workers", key.DownloadWorkers)

	addCredentialFlags(rootCmd)

	helpFunc := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helpFunc(cmd, args)
		version.Notify(cmd.Context())
	})
}

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().String("cookies", "", "Netscape cookie file used to authenticate")
	cmd.Flags().StringP("username", "u", "", "Username of the service")
	cmd.Flags().StringP("password", "p", "", "Password of the service")
	cmd.Flags().String("library", "", "Library of the service, for services that need one")
}

func authFromFlags(cmd *cobra.Command) pipeline.Auth {
	get := func(name string) string {
		return lo.Must(cmd.Flags().GetString(name))
	}
	return pipeline.Auth{
		Username:   get("username"),
		Password:   get("password"),
		Library:    get("library"),
		CookieFile: get("cookies"),
		Keyring:    true,
		Prompt:     pipeline.SurveyPrompt,
	}
}

var rootCmd = &cobra.Command{
	Use:   constant.App + " [url]...",
	Short: "Download audiobooks from online services",
	Long: constant.AsciiArtLogo + "\n" +
		style.New().Italic(true).Foreground(color.HiRed).Render("    - Download, decrypt and tag audiobooks from online services"),
	Example: "  " + constant.App + " -c -f m4b https://www.storytel.com/se/sv/books/the-book-123",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if path := lo.Must(cmd.Flags().GetString("config")); path != "" {
			handleErr(config.Load(path))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("version") {
			versionCmd.Run(versionCmd, args)
			return
		}
		if len(args) == 0 {
			handleErr(cmd.Help())
			return
		}

		c := pipeline.New(config.Snapshot(), ffmpeg.New())
		c.Auth = authFromFlags(cmd)

		var failed []error
		for _, url := range args {
			if err := c.Run(cmd.Context(), url); err != nil {
				reportErr(err)
				failed = append(failed, err)
			}
		}
		if len(failed) > 0 {
			os.Exit(1)
		}
	},
}

// Execute runs the command line. An interrupt cancels running downloads.
func Execute() {
	if viper.GetBool(key.CliColored) {
		cc.Init(&cc.Config{
			RootCmd:       rootCmd,
			Headings:      cc.HiCyan + cc.Bold + cc.Underline,
			Commands:      cc.HiYellow + cc.Bold,
			Example:       cc.Italic,
			ExecName:      cc.Bold,
			Flags:         cc.Bold,
			FlagsDataType: cc.Italic + cc.HiBlue,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func reportErr(err error) {
	if errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintf(os.Stderr, "%s interrupted\n", icon.Get(icon.Warn))
		return
	}
	log.WithFields(errs.As(err).Fields()).Error(err)
	_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", icon.Get(icon.Fail), strings.Trim(err.Error(), " \n"))
}

func handleErr(err error) {
	if err != nil {
		reportErr(err)
		os.Exit(1)
	}
}
