// Package source defines the contract every audiobook service adapter implements.
package source

import (
	"context"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/session"
)

// Source is a service adapter bound to one authenticated session.
type Source interface {
	// Names returns the display names of the service, the first being the canonical one.
	Names() []string

	// AuthMethods returns the authentication methods the service accepts.
	AuthMethods() []session.AuthMethod

	// LoginData returns the credential fields a login needs, e.g. username and password.
	LoginData() []string

	// Login authenticates the session with credentials.
	Login(ctx context.Context, url string, creds Credentials) error

	// Download resolves url into a single audiobook or a series of book ids.
	Download(ctx context.Context, url string) (audiobook.Result, error)

	// DownloadByID resolves one book of a series.
	DownloadByID(ctx context.Context, id string) (*audiobook.Audiobook, error)

	// Session returns the session every request of this source goes through.
	Session() *session.Session
}

// Completer is implemented by sources that keep their own record of finished books.
type Completer interface {
	OnDownloadComplete(book *audiobook.Audiobook) error
}

// Credentials are the values of LoginData.
type Credentials struct {
	Username string
	Password string
	Library  string
}

// Options configure a source when it is constructed.
type Options struct {
	// DatabaseDirectory is where sources keeping documents store them.
	DatabaseDirectory string
	// SkipDownloaded makes sources leave already completed books out of series.
	SkipDownloaded bool
}
