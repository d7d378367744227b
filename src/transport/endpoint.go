// Package transport adapts fasthttp/websocket to the connection seams in
// src/types and builds chat endpoint URLs.
package transport

import (
	"fmt"
	"net/url"
)

// ChatPath is the fixed path of the chat socket.
const ChatPath = "/ws/chat/"

// DefaultEndpoint derives the chat socket URL from the URL of the page or API
// host: same host, ws for http and wss for https.
func DefaultEndpoint(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("page url %q has no host", pageURL)
	}

	scheme := "ws"
	switch u.Scheme {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws":
	default:
		return "", fmt.Errorf("unsupported page scheme %q", u.Scheme)
	}
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: ChatPath}).String(), nil
}

// WithToken returns endpoint with the token query credential set.
func WithToken(endpoint, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redact strips the query so tokens never reach logs or errors.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
