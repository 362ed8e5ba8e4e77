package cmd

import (
	"fmt"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/auth"
	"github.com/audiobook-dl/audiobook-dl/color"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/icon"
	"github.com/audiobook-dl/audiobook-dl/key"
	"github.com/audiobook-dl/audiobook-dl/pipeline"
	"github.com/audiobook-dl/audiobook-dl/provider"
	"github.com/audiobook-dl/audiobook-dl/session"
	"github.com/audiobook-dl/audiobook-dl/source"
	"github.com/audiobook-dl/audiobook-dl/style"
	"github.com/audiobook-dl/audiobook-dl/util"
	"github.com/audiobook-dl/audiobook-dl/where"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd)

	loginCmd.Flags().StringP("username", "u", "", "Username of the service")
	loginCmd.Flags().String("library", "", "Library of the service, for services that need one")
	loginCmd.Flags().Bool("no-verify", false, "Store the password without logging in first")

	logoutCmd.Flags().StringP("username", "u", "", "Username of the service, defaults to the configured one")
}

func completionSources(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return provider.Names(), cobra.ShellCompDirectiveNoFileComp
}

func loginSource(name string) *provider.Provider {
	p, ok := provider.Get(name)
	if !ok {
		err := errs.NoSourceFound(name)
		if suggestions := provider.Suggest("https://" + name); len(suggestions) > 0 {
			err = err.With("suggestions", strings.Join(suggestions, ", "))
		}
		handleErr(err)
	}
	return p
}

func usernameKey(p *provider.Provider) string {
	return key.Sources + "." + strings.ToLower(p.Name) + ".username"
}

var loginCmd = &cobra.Command{
	Use:               "login <source>",
	Short:             "Store the password of a service in the system keyring",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completionSources,
	Run: func(cmd *cobra.Command, args []string) {
		p := loginSource(args[0])
		src := p.New(source.Options{DatabaseDirectory: where.Database()})
		if !src.Session().Supports(session.Login) {
			handleErr(errs.UnsupportedAuth(p.Name, string(session.Login)))
		}

		creds := source.Credentials{
			Username: lo.Must(cmd.Flags().GetString("username")),
			Library:  lo.Must(cmd.Flags().GetString("library")),
		}
		creds.Username = lo.Ternary(creds.Username != "", creds.Username, viper.GetString(usernameKey(p)))

		var err error
		if creds.Username == "" {
			creds.Username, err = pipeline.SurveyPrompt("Username", false)
			handleErr(err)
		}
		creds.Password, err = pipeline.SurveyPrompt("Password", true)
		handleErr(err)
		if creds.Username == "" || creds.Password == "" {
			handleErr(errs.MissingCredentials())
		}

		if !lo.Must(cmd.Flags().GetBool("no-verify")) {
			erase := util.PrintErasable(fmt.Sprintf("%s Logging in to %s...", icon.Get(icon.Lock), p.Name))
			err := src.Login(cmd.Context(), "", creds)
			erase()
			handleErr(err)
		}

		handleErr(auth.SetPassword(p.Name, creds.Username, creds.Password))
		viper.Set(usernameKey(p), creds.Username)
		if creds.Library != "" {
			viper.Set(key.Sources+"."+strings.ToLower(p.Name)+".library", creds.Library)
		}
		writeConfig()

		success("stored credentials of %s for %s", style.Fg(color.Yellow)(creds.Username), style.Fg(color.Purple)(p.Name))
	},
}

var logoutCmd = &cobra.Command{
	Use:               "logout <source>",
	Short:             "Remove the stored password of a service",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completionSources,
	Run: func(cmd *cobra.Command, args []string) {
		p := loginSource(args[0])

		username := lo.Must(cmd.Flags().GetString("username"))
		if username == "" {
			username = viper.GetString(usernameKey(p))
		}
		if username == "" {
			handleErr(errs.MissingCredentials())
		}

		handleErr(auth.DeletePassword(p.Name, username))
		success("removed credentials of %s for %s", style.Fg(color.Yellow)(username), style.Fg(color.Purple)(p.Name))
	},
}
