// Package auto fetches statically first and falls back to a headless browser
// when the static result looks client-rendered.
package auto

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/cagewatch/internal/fetcher"
)

// Detector decides whether a static page needs headless rendering.
type Detector interface {
	ShouldPromote(page fetcher.Page) bool
}

// Fetcher chains a probe fetcher and a headless fetcher.
type Fetcher struct {
	probe    fetcher.Fetcher
	headless fetcher.Fetcher
	detector Detector
	logger   *zap.Logger
}

// New builds an auto Fetcher.
func New(probe, headless fetcher.Fetcher, detector Detector, logger *zap.Logger) (*Fetcher, error) {
	if probe == nil || headless == nil {
		return nil, fmt.Errorf("probe and headless fetchers are required")
	}
	if detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{probe: probe, headless: headless, detector: detector, logger: logger}, nil
}

// Fetch probes rawURL and promotes to headless when the probe fails or the
// detector asks for it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (fetcher.Page, error) {
	page, err := f.probe.Fetch(ctx, rawURL)
	switch {
	case err != nil:
		f.logger.Info("static probe failed; promoting to headless", zap.Error(err))
	case f.detector.ShouldPromote(page):
		f.logger.Info("page looks client-rendered; promoting to headless",
			zap.Int("html_bytes", len(page.HTML)),
			zap.Int("text_bytes", len(page.Text)),
		)
	default:
		return page, nil
	}
	return f.headless.Fetch(ctx, rawURL)
}
