// Package headless loads pages in headless Chrome so client-side rendered
// content is visible before the text is read.
package headless

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/cagewatch/internal/fetcher"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	defaultExtractTimeout    = 30 * time.Second
	defaultViewportWidth     = 1280
	defaultViewportHeight    = 800

	// DefaultUserAgent presents the browser as a regular desktop Chrome.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/109.0.0.0 Safari/537.36"

	visibleTextScript = `document.body ? document.body.innerText : ""`
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// RenderDelay is the fixed pause after the body is ready that lets
	// client-side frameworks finish drawing.
	RenderDelay    time.Duration
	ExtractTimeout time.Duration
	ViewportWidth  int64
	ViewportHeight int64
	Screenshot     bool
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

// Fetcher implements fetcher.Fetcher using chromedp and headless Chrome.
type Fetcher struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp. Chrome itself is
// only launched on the first Fetch.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.NavigationTimeout < 0 || cfg.RenderDelay < 0 || cfg.ExtractTimeout < 0 {
		return nil, fmt.Errorf("headless timeouts must be >= 0")
	}
	if cfg.ViewportWidth < 0 || cfg.ViewportHeight < 0 {
		return nil, fmt.Errorf("viewport dimensions must be >= 0")
	}
	cfg = withDefaults(cfg)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(int(cfg.ViewportWidth), int(cfg.ViewportHeight)),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

func withDefaults(cfg Config) Config {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.ExtractTimeout == 0 {
		cfg.ExtractTimeout = defaultExtractTimeout
	}
	if cfg.ViewportWidth == 0 {
		cfg.ViewportWidth = defaultViewportWidth
	}
	if cfg.ViewportHeight == 0 {
		cfg.ViewportHeight = defaultViewportHeight
	}
	return cfg
}

// Close shuts down the browser allocator.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch opens a fresh browser tab, navigates to rawURL, waits for rendering to
// settle and returns the DOM, the visible text and (optionally) a screenshot.
// The tab and its browser are closed before Fetch returns.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (fetcher.Page, error) {
	if strings.TrimSpace(rawURL) == "" {
		return fetcher.Page{}, fetcher.ErrEmptyURL
	}

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.budget())
	defer cancel()

	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	snap, err := f.runHeadless(taskCtx, rawURL)
	if err != nil {
		return fetcher.Page{}, err
	}

	status, finalURL := meta.snapshotWithFallbacks(rawURL, snap.location)
	return fetcher.Page{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: status,
		HTML:       []byte(snap.html),
		Text:       snap.text,
		Screenshot: snap.screenshot,
		Duration:   time.Since(start),
		Mode:       fetcher.ModeHeadless,
	}, nil
}

type snapshot struct {
	html       string
	text       string
	location   string
	screenshot []byte
}

func (f *Fetcher) runHeadless(ctx context.Context, rawURL string) (snapshot, error) {
	var snap snapshot
	actions := []chromedp.Action{
		network.Enable(),
		emulation.SetUserAgentOverride(f.cfg.UserAgent),
		chromedp.EmulateViewport(f.cfg.ViewportWidth, f.cfg.ViewportHeight),
		f.navigateAction(rawURL),
		chromedp.Sleep(f.cfg.RenderDelay),
		chromedp.Location(&snap.location),
		chromedp.OuterHTML("html", &snap.html, chromedp.ByQuery),
		chromedp.Evaluate(visibleTextScript, &snap.text),
	}
	if f.cfg.Screenshot {
		// Quality 100 selects PNG encoding.
		actions = append(actions, chromedp.FullScreenshot(&snap.screenshot, 100))
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return snapshot{}, fmt.Errorf("chromedp run: %w", err)
	}
	return snap, nil
}

// navigateAction bounds navigation and the body-ready wait by the navigation
// timeout, independent of the render delay that follows.
func (f *Fetcher) navigateAction(rawURL string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		navCtx, cancel := context.WithTimeout(ctx, f.cfg.NavigationTimeout)
		defer cancel()
		if err := chromedp.Navigate(rawURL).Do(navCtx); err != nil {
			return fmt.Errorf("navigate %s: %w", rawURL, err)
		}
		if err := chromedp.WaitReady("body", chromedp.ByQuery).Do(navCtx); err != nil {
			return fmt.Errorf("wait for body: %w", err)
		}
		return nil
	})
}

func (f *Fetcher) budget() time.Duration {
	return f.navTimeout() + f.cfg.RenderDelay + f.extractTimeout()
}

func (f *Fetcher) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

func (f *Fetcher) extractTimeout() time.Duration {
	if f.cfg.ExtractTimeout > 0 {
		return f.cfg.ExtractTimeout
	}
	return defaultExtractTimeout
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

// capture records the first document response; later documents belong to
// frames or client-side navigations.
func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != 0 {
		return
	}
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, location string) (int, string) {
	m.mu.RLock()
	status, url := m.status, m.url
	m.mu.RUnlock()

	switch {
	case location != "":
		url = location
	case url != "":
	default:
		url = requestURL
	}
	if status == 0 {
		status = 200
	}
	return status, url
}
