package source

import (
	"context"

	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/session"
)

// DefaultLoginData is requested for sources that do not declare their own fields.
var DefaultLoginData = []string{"username", "password"}

// Base implements the session bookkeeping shared by all sources.
// Adapters embed it and provide Download and DownloadByID.
type Base struct {
	names   []string
	session *session.Session
	login   session.LoginFunc
}

// NewBase creates a Base around s. A nil login means the service has no login.
func NewBase(names []string, s *session.Session, login session.LoginFunc) Base {
	return Base{names: names, session: s, login: login}
}

func (b *Base) Names() []string {
	return b.names
}

func (b *Base) AuthMethods() []session.AuthMethod {
	return b.session.AuthMethods()
}

func (b *Base) LoginData() []string {
	return DefaultLoginData
}

func (b *Base) Session() *session.Session {
	return b.session
}

// Login runs the adapter login through the session, which tracks whether it succeeded.
func (b *Base) Login(ctx context.Context, url string, creds Credentials) error {
	if b.login == nil || !b.session.Supports(session.Login) {
		return errs.UnsupportedAuth(b.names[0], string(session.Login))
	}
	return b.session.Login(ctx, b.login, url, creds.Username, creds.Password)
}

// Name returns the canonical name of src.
func Name(src Source) string {
	names := src.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
