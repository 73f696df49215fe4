// Package detector decides whether a statically fetched page needs a
// headless browser to show its real content.
package detector

import (
	"bytes"
	"net/http"

	"github.com/JakeFAU/cagewatch/internal/fetcher"
)

const (
	defaultMinTextBytes = 200
	// Pages whose visible text is under this share of the markup (percent)
	// are mostly script.
	defaultMinTextRatio = 2
)

// Heuristic promotes pages that look client-rendered.
type Heuristic struct {
	MinTextBytes int
	MinTextRatio int
}

// NewHeuristic creates a detector. Zero values select the defaults.
func NewHeuristic(minTextBytes, minTextRatio int) *Heuristic {
	if minTextBytes <= 0 {
		minTextBytes = defaultMinTextBytes
	}
	if minTextRatio <= 0 {
		minTextRatio = defaultMinTextRatio
	}
	return &Heuristic{MinTextBytes: minTextBytes, MinTextRatio: minTextRatio}
}

// Framework shells that render their content in the browser.
var appShellMarkers = [][]byte{
	[]byte("ng-version"),
	[]byte("<app-root"),
	[]byte("__next"),
	[]byte("data-reactroot"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
}

// ShouldPromote reports whether page should be re-fetched headless.
func (h *Heuristic) ShouldPromote(page fetcher.Page) bool {
	if page.StatusCode != http.StatusOK {
		return false
	}
	if len(page.Text) < h.MinTextBytes {
		return true
	}
	for _, marker := range appShellMarkers {
		if bytes.Contains(page.HTML, marker) {
			return true
		}
	}
	if len(page.HTML) > 0 && len(page.Text)*100/len(page.HTML) < h.MinTextRatio {
		return true
	}
	return false
}
