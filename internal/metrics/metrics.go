// Package metrics exposes Prometheus gauges describing the last check run.
// A scheduled run is too short-lived to be scraped, so the registry is
// written to a node-exporter textfile instead of being served.
package metrics

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for the last run.
const (
	OutcomeNotified  = "notified"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

var outcomes = []string{OutcomeNotified, OutcomeUnchanged, OutcomeFailed}

// Run carries the figures observed for one check.
type Run struct {
	Site        string
	Outcome     string
	FinishedAt  time.Time
	Duration    time.Duration
	Matched     int
	New         int
	Removed     int
	TextBytes   int
	FetchStatus int
}

// Recorder owns a private registry with the run gauges.
type Recorder struct {
	registry    *prometheus.Registry
	lastRun     *prometheus.GaugeVec
	lastOutcome *prometheus.GaugeVec
	duration    *prometheus.GaugeVec
	keywords    *prometheus.GaugeVec
	textBytes   *prometheus.GaugeVec
	fetchStatus *prometheus.GaugeVec
}

// New registers the gauges on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cagewatch_last_run_timestamp_seconds",
			Help: "Unix time the last check finished.",
		}, []string{"site"}),
		lastOutcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cagewatch_last_run_outcome",
			Help: "1 for the outcome of the last check, 0 for the others.",
		}, []string{"site", "outcome"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cagewatch_last_run_duration_seconds",
			Help: "Wall time of the last check.",
		}, []string{"site"}),
		keywords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cagewatch_keywords",
			Help: "Keywords seen by the last check, labeled by kind (matched, new, removed).",
		}, []string{"site", "kind"}),
		textBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cagewatch_page_text_bytes",
			Help: "Length of the visible text read by the last check.",
		}, []string{"site"}),
		fetchStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cagewatch_fetch_status_code",
			Help: "HTTP status of the document response in the last check.",
		}, []string{"site"}),
	}
	r.registry.MustRegister(r.lastRun, r.lastOutcome, r.duration, r.keywords, r.textBytes, r.fetchStatus)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRun records the figures of a finished check.
func (r *Recorder) ObserveRun(run Run) {
	site := SanitizeSite(run.Site)
	r.lastRun.WithLabelValues(site).Set(float64(run.FinishedAt.Unix()))
	for _, o := range outcomes {
		v := 0.0
		if o == run.Outcome {
			v = 1
		}
		r.lastOutcome.WithLabelValues(site, o).Set(v)
	}
	r.duration.WithLabelValues(site).Set(run.Duration.Seconds())
	r.keywords.WithLabelValues(site, "matched").Set(float64(run.Matched))
	r.keywords.WithLabelValues(site, "new").Set(float64(run.New))
	r.keywords.WithLabelValues(site, "removed").Set(float64(run.Removed))
	r.textBytes.WithLabelValues(site).Set(float64(run.TextBytes))
	r.fetchStatus.WithLabelValues(site).Set(float64(run.FetchStatus))
}

// WriteTextfile atomically writes the registry in text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
