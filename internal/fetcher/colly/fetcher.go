// Package collyfetcher implements a fetcher for pages that render without
// JavaScript, using gocolly for the request and goquery for the body text.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/cagewatch/internal/fetcher"
)

const (
	defaultTimeout = 15 * time.Second
	blockSelector  = "address, article, aside, blockquote, br, dd, div, dl, dt, footer, form, " +
		"h1, h2, h3, h4, h5, h6, header, hr, li, main, nav, ol, p, pre, section, table, td, th, tr, ul"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements fetcher.Fetcher using the Colly collector.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	return &Fetcher{
		cfg:       cfg,
		transport: newHTTPTransport(),
	}
}

// Fetch executes a single HTTP GET and extracts the body text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (fetcher.Page, error) {
	if strings.TrimSpace(rawURL) == "" {
		return fetcher.Page{}, fetcher.ErrEmptyURL
	}
	result, err := f.runCollector(ctx, rawURL)
	if err != nil {
		return fetcher.Page{}, err
	}
	result.URL = rawURL

	text, err := VisibleText(result.HTML)
	if err != nil {
		return fetcher.Page{}, err
	}
	result.Text = text
	return result, nil
}

func (f *Fetcher) buildCollector() *colly.Collector {
	collector := colly.NewCollector(colly.Async(false))
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *fetcher.Page,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = fetcher.Page{
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			HTML:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
			Mode:       fetcher.ModeStatic,
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

type visitOutcome struct {
	page     fetcher.Page
	visitErr error
	fetchErr error
}

// runCollector visits url on its own goroutine. The page and errors filled in
// by the collector hooks belong to that goroutine and reach the caller only
// through the channel, so a canceled fetch can finish in the background.
func (f *Fetcher) runCollector(ctx context.Context, url string) (fetcher.Page, error) {
	done := make(chan visitOutcome, 1)
	go func() {
		var out visitOutcome
		collector := f.buildCollector()
		f.configureCollectorHooks(collector, time.Now(), &out.page, &out.fetchErr)
		out.visitErr = collector.Visit(url)
		done <- out
	}()

	select {
	case <-ctx.Done():
		return fetcher.Page{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case out := <-done:
		if out.visitErr != nil {
			return fetcher.Page{}, fmt.Errorf("colly visit failed: %w", out.visitErr)
		}
		if out.fetchErr != nil {
			return fetcher.Page{}, fmt.Errorf("colly response failed: %w", out.fetchErr)
		}
		return out.page, nil
	}
}

// VisibleText returns the text a reader would see in the body: script, style
// and template content is dropped and blank lines are collapsed.
func VisibleText(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()
	// Text() concatenates sibling nodes; block ends need a separator or
	// adjacent cells would fuse into a single word.
	doc.Find(blockSelector).AppendHtml("\n")

	raw := doc.Find("body").Text()
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
