package pipeline

import (
	"context"

	"github.com/AlecAivazis/survey/v2"
	"github.com/audiobook-dl/audiobook-dl/auth"
	"github.com/audiobook-dl/audiobook-dl/config"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/session"
	"github.com/audiobook-dl/audiobook-dl/source"
	"github.com/audiobook-dl/audiobook-dl/util"
)

// Prompter asks the user for a missing credential field.
type Prompter func(field string, secret bool) (string, error)

// Auth decides how a source gets authenticated.
// Values given on the command line win over the [sources.<name>] table, which wins over the keyring.
type Auth struct {
	Username   string
	Password   string
	Library    string
	CookieFile string

	// Keyring enables looking up stored passwords.
	Keyring bool
	// Prompt, when set, is asked for fields nothing else provided.
	Prompt Prompter
}

// Credentials merges the configured values for the named source.
func (a *Auth) Credentials(name string) (source.Credentials, string) {
	creds := source.Credentials{Username: a.Username, Password: a.Password, Library: a.Library}
	cookieFile := a.CookieFile

	sc, err := config.Source(name)
	if err != nil {
		log.Warnf("auth: invalid configuration of %s: %s", name, err)
	}
	creds.Username = first(creds.Username, sc.Username)
	creds.Password = first(creds.Password, sc.Password)
	creds.Library = first(creds.Library, sc.Library)
	cookieFile = first(cookieFile, sc.CookieFile)

	if creds.Password == "" && creds.Username != "" && a.Keyring {
		password, err := auth.Password(name, creds.Username)
		if err != nil {
			log.Debugf("auth: keyring unavailable: %s", err)
		}
		creds.Password = password.OrEmpty()
	}
	return creds, cookieFile
}

// Authenticate loads cookies or logs in, as the source supports.
// Sources without authentication methods are left alone.
func (a *Auth) Authenticate(ctx context.Context, src source.Source, url string) error {
	sess := src.Session()
	if !sess.RequiresAuthentication() {
		return nil
	}

	name := source.Name(src)
	creds, cookieFile := a.Credentials(name)

	if cookieFile != "" && sess.Supports(session.Cookies) {
		log.Infof("auth: loading %s cookies from %s", name, cookieFile)
		if err := sess.LoadCookieFile(cookieFile); err != nil {
			return err
		}
		if !sess.Supports(session.Login) || creds.Username == "" {
			return nil
		}
	}

	if !sess.Supports(session.Login) {
		return errs.MissingCredentials()
	}

	if err := a.fill(&creds); err != nil {
		return err
	}
	if creds.Username == "" || creds.Password == "" {
		return errs.MissingCredentials()
	}

	log.Infof("auth: logging in to %s as %s", name, creds.Username)
	return src.Login(ctx, url, creds)
}

func (a *Auth) fill(creds *source.Credentials) error {
	if a.Prompt == nil {
		return nil
	}

	var err error
	if creds.Username == "" {
		if creds.Username, err = a.Prompt("Username", false); err != nil {
			return err
		}
	}
	if creds.Password == "" {
		if creds.Password, err = a.Prompt("Password", true); err != nil {
			return err
		}
	}
	return nil
}

// SurveyPrompt asks on the terminal, or returns nothing when stdin is not one.
func SurveyPrompt(field string, secret bool) (string, error) {
	if !util.IsTerminal() {
		return "", nil
	}

	var (
		answer string
		prompt survey.Prompt
	)
	if secret {
		prompt = &survey.Password{Message: field}
	} else {
		prompt = &survey.Input{Message: field}
	}
	err := survey.AskOne(prompt, &answer)
	return answer, err
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
