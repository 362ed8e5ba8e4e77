// Package network provides the pre-configured HTTP transports shared by every audiobook service session.
package network

import (
	"net/http"
	"time"
)

// Client is the shared HTTP client for requests that need no session state, such as release checks.
var Client = &http.Client{
	Timeout:   time.Minute,
	Transport: Transport,
}

// Transport is the tuned transport reused by every session so connection pools are shared.
// It carries no overall timeout: audio downloads can stream for a long time.
var Transport http.RoundTripper = newTransport()

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 100
	t.MaxConnsPerHost = 200
	t.IdleConnTimeout = 30 * time.Second
	t.ResponseHeaderTimeout = 30 * time.Second
	t.ExpectContinueTimeout = 30 * time.Second
	return t
}
