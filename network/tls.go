package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/audiobook-dl/audiobook-dl/log"
	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

const dialTimeout = 30 * time.Second

// fingerprint is the ClientHello sent to Cloudflare-fronted APIs.
var fingerprint = utls.HelloChrome_120

var (
	chrome     http.RoundTripper
	chromeOnce sync.Once
)

// ChromeTransport returns a transport that performs the TLS handshake with a browser fingerprint.
//
// HTTP/2 is attempted first; when the handshake or the request fails on it,
// the request is retried over HTTP/1.1 with only http/1.1 advertised in ALPN.
func ChromeTransport() http.RoundTripper {
	chromeOnce.Do(func() {
		chrome = &fallbackTransport{
			h2: &http2.Transport{
				DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
					return dialFingerprinted(ctx, network, addr, nil)
				},
			},
			h1: &http.Transport{
				DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					return dialFingerprinted(ctx, network, addr, []string{"http/1.1"})
				},
				ResponseHeaderTimeout: dialTimeout,
			},
		}
	})
	return chrome
}

type fallbackTransport struct {
	h2 http.RoundTripper
	h1 http.RoundTripper
}

func (t *fallbackTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}

	retry := req
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, err
		}
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, bodyErr
		}
		retry = req.Clone(req.Context())
		retry.Body = body
	}

	log.Debugf("h2 request to %s failed (%v), retrying over http/1.1", req.URL.Host, err)
	return t.h1.RoundTrip(retry)
}

func dialFingerprinted(ctx context.Context, network, addr string, alpn []string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	tlsConn := utls.UClient(conn, &utls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
		NextProtos: alpn,
	}, fingerprint)

	if err := tlsConn.Handshake(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
