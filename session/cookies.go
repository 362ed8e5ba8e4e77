package session

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/util"
)

const httpOnlyPrefix = "#HttpOnly_"

// ParseError reports a malformed line of a Netscape cookie file.
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed cookie file line %d: %q", e.Line, e.Text)
}

// LoadCookieFile imports a Netscape-format cookie file into the session jar.
//
// A missing file returns an error wrapping fs.ErrNotExist. A file without any
// cookie lines is valid. Cookies already in the jar with the same name, domain and
// path are replaced, so loading a file twice has no further effect.
func (s *Session) LoadCookieFile(path string) error {
	f, err := filesystem.API().Open(path)
	if err != nil {
		return fmt.Errorf("open cookie file: %w", err)
	}
	defer util.Ignore(f.Close)

	return s.LoadCookies(f)
}

// LoadCookies imports Netscape-format cookies from r.
func (s *Session) LoadCookies(r io.Reader) error {
	cookies, err := ParseNetscape(r)
	if err != nil {
		return err
	}

	for _, c := range cookies {
		u := &url.URL{Scheme: "http", Host: strings.TrimPrefix(c.Domain, "."), Path: "/"}
		if c.Secure {
			u.Scheme = "https"
		}
		if !c.includeSubdomains {
			c.Domain = ""
		}
		s.client.Jar.SetCookies(u, []*http.Cookie{&c.Cookie})
	}

	s.setAuthenticated()
	return nil
}

// NetscapeCookie is a cookie parsed from a Netscape cookie file.
type NetscapeCookie struct {
	http.Cookie
	includeSubdomains bool
}

// ParseNetscape parses the tab separated fields
// domain, include subdomains, path, secure, expiry, name and value.
func ParseNetscape(r io.Reader) ([]NetscapeCookie, error) {
	var cookies []NetscapeCookie

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimRight(scanner.Text(), "\r")

		httpOnly := strings.HasPrefix(line, httpOnlyPrefix)
		if httpOnly {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		} else if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) == 6 {
			fields = append(fields, "")
		}
		if len(fields) != 7 {
			return nil, &ParseError{Line: n, Text: line}
		}

		expires, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, &ParseError{Line: n, Text: line}
		}

		c := NetscapeCookie{
			Cookie: http.Cookie{
				Domain:   fields[0],
				Path:     fields[2],
				Secure:   strings.EqualFold(fields[3], "TRUE"),
				Name:     fields[5],
				Value:    fields[6],
				HttpOnly: httpOnly,
			},
			includeSubdomains: strings.EqualFold(fields[1], "TRUE"),
		}
		if expires > 0 {
			c.Expires = time.Unix(expires, 0)
		}
		cookies = append(cookies, c)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}
