package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveRun(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObserveRun(Run{
		Site:        "https://Booking.example.com/cages",
		Outcome:     OutcomeNotified,
		FinishedAt:  time.Unix(1700000000, 0),
		Duration:    1500 * time.Millisecond,
		Matched:     3,
		New:         1,
		TextBytes:   42,
		FetchStatus: 200,
	})

	site := "booking.example.com"
	if got := testutil.ToFloat64(r.lastRun.WithLabelValues(site)); got != 1700000000 {
		t.Fatalf("unexpected last run %v", got)
	}
	if got := testutil.ToFloat64(r.lastOutcome.WithLabelValues(site, OutcomeNotified)); got != 1 {
		t.Fatalf("expected notified outcome gauge to be 1, got %v", got)
	}
	if got := testutil.ToFloat64(r.lastOutcome.WithLabelValues(site, OutcomeFailed)); got != 0 {
		t.Fatalf("expected failed outcome gauge to be 0, got %v", got)
	}
	if got := testutil.ToFloat64(r.keywords.WithLabelValues(site, "matched")); got != 3 {
		t.Fatalf("expected 3 matched keywords, got %v", got)
	}
	if got := testutil.ToFloat64(r.duration.WithLabelValues(site)); got != 1.5 {
		t.Fatalf("expected 1.5s duration, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObserveRun(Run{Site: "https://example.com", Outcome: OutcomeFailed, FinishedAt: time.Unix(1, 0)})

	path := filepath.Join(t.TempDir(), "textfile", "cagewatch.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile error = %v", err)
	}
	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	content := string(raw)
	for _, want := range []string{
		`cagewatch_last_run_outcome{outcome="failed",site="example.com"} 1`,
		`cagewatch_last_run_timestamp_seconds{site="example.com"} 1`,
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in textfile:\n%s", want, content)
		}
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://google.com", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned empty string", orig)
		}
	})
}
