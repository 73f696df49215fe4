// Package fetcher defines the contract shared by the page fetchers: load one
// URL and hand back its rendered visible text plus debug material.
package fetcher

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyURL is returned when a fetch is attempted without a target.
var ErrEmptyURL = errors.New("target url is required")

// Mode names a fetcher implementation.
type Mode string

// Supported fetcher modes.
const (
	ModeHeadless Mode = "headless"
	ModeStatic   Mode = "static"
	// ModeAuto probes statically and renders headless only when needed.
	ModeAuto Mode = "auto"
)

// Page is the snapshot produced by a single fetch.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	// HTML is the serialized DOM after rendering (or the raw body for static fetches).
	HTML []byte
	// Text is the human-readable text of the page body.
	Text string
	// Screenshot holds a full-page PNG when the fetcher supports it.
	Screenshot []byte
	Duration   time.Duration
	Mode       Mode
}

// Fetcher loads a single page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Func adapts an ordinary function to the Fetcher interface.
type Func func(ctx context.Context, rawURL string) (Page, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, rawURL string) (Page, error) {
	return f(ctx, rawURL)
}
