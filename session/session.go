// Package session holds the authenticated HTTP state of one audiobook service:
// a cookie jar, default headers and whether login or cookie import succeeded.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/audiobook-dl/audiobook-dl/constant"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/network"
	"github.com/samber/lo"
	"golang.org/x/net/publicsuffix"
)

// AuthMethod is a way a service can be authenticated against.
type AuthMethod string

const (
	Cookies AuthMethod = "cookies"
	Login   AuthMethod = "login"
)

// LoginFunc performs a service-specific login on the given session.
type LoginFunc func(ctx context.Context, s *Session, url, username, password string) error

// Session is safe for concurrent use by download workers.
type Session struct {
	client  *http.Client
	methods []AuthMethod

	mu            sync.RWMutex
	headers       map[string]string
	authenticated bool
}

// Option configures a Session.
type Option func(*Session)

// WithTransport replaces the shared transport, e.g. with a fingerprinted one.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Session) {
		s.client.Transport = rt
	}
}

// WithAuthMethods declares which authentication methods the service supports.
func WithAuthMethods(methods ...AuthMethod) Option {
	return func(s *Session) {
		s.methods = methods
	}
}

// New creates an unauthenticated session with an empty cookie jar.
func New(opts ...Option) *Session {
	jar := lo.Must(cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}))

	s := &Session{
		client: &http.Client{
			Jar:       jar,
			Transport: network.Transport,
		},
		headers: map[string]string{
			"User-Agent": constant.UserAgent,
		},
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying HTTP client. Its jar is shared with the session.
func (s *Session) Client() *http.Client {
	return s.client
}

// AuthMethods returns the supported authentication methods.
func (s *Session) AuthMethods() []AuthMethod {
	return s.methods
}

// Supports reports whether the service accepts m.
func (s *Session) Supports(m AuthMethod) bool {
	return lo.Contains(s.methods, m)
}

// RequiresAuthentication is true when the service declares any authentication method.
func (s *Session) RequiresAuthentication() bool {
	return len(s.methods) > 0
}

// Authenticated reports whether cookies were imported or a login succeeded.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Session) setAuthenticated() {
	s.mu.Lock()
	s.authenticated = true
	s.mu.Unlock()
}

// SetHeader sets a default header sent with every request of this session.
func (s *Session) SetHeader(name, value string) {
	s.mu.Lock()
	s.headers[name] = value
	s.mu.Unlock()
}

// Headers returns a copy of the default headers.
func (s *Session) Headers() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Assign(s.headers)
}

// Cookies returns the cookies the jar would send to rawURL.
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.client.Jar.Cookies(u)
}

// Login authenticates with username and password through fn.
// Both credentials are required; a failed login leaves the session unauthenticated.
func (s *Session) Login(ctx context.Context, fn LoginFunc, url, username, password string) error {
	if username == "" || password == "" {
		return errs.MissingCredentials()
	}

	if err := fn(ctx, s, url, username, password); err != nil {
		return err
	}

	s.setAuthenticated()
	return nil
}

// NewRequest builds a request carrying the session's default headers.
func (s *Session) NewRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}

	for k, v := range s.Headers() {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Do sends req with the session client, filling in default headers the request does not set.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	for k, v := range s.Headers() {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	log.Tracef("%s %s", req.Method, req.URL)
	return s.client.Do(req)
}

// DoNoRedirect sends req without following redirects, returning the redirect response itself.
func (s *Session) DoNoRedirect(req *http.Request) (*http.Response, error) {
	client := *s.client
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	for k, v := range s.Headers() {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return client.Do(req)
}

// Get performs a GET request and returns the response body.
// Any non-2xx status is reported as a request error.
func (s *Session) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := s.NewRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.RequestError(rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// GetJSON performs a GET request and decodes the JSON response into v.
func (s *Session) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := s.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// PostJSON sends v as a JSON body and returns the raw response.
func (s *Session) PostJSON(ctx context.Context, rawURL string, v any) (*http.Response, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	req, err := s.NewRequest(ctx, http.MethodPost, rawURL, strings.NewReader(string(payload)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.Do(req)
}

// PostForm sends form as an urlencoded body and returns the raw response.
func (s *Session) PostForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	req, err := s.NewRequest(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.Do(req)
}
