// Package artifact writes the write-only debug material of a run: HTML
// sample, visible text, screenshot, check timestamp and the run record.
// Nothing here is read back by later runs.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cagewatch/internal/clock/system"
	"github.com/JakeFAU/cagewatch/internal/fetcher"
)

// Artifact file names inside the data directory.
const (
	CheckTimeFile  = "last_check_time.txt"
	SampleFile     = "page_sample.txt"
	TextFile       = "visible_text.txt"
	ScreenshotFile = "screenshot.png"
	RunFile        = "run.json"
)

// DefaultSampleBytes caps the raw HTML sample.
const DefaultSampleBytes = 10000

// BlobStore writes an artifact and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Recorder writes artifacts to the primary store and, when configured,
// copies them to a mirror under <runID>/<name>.
type Recorder struct {
	primary     BlobStore
	mirror      BlobStore
	runID       string
	sampleBytes int
	logger      *zap.Logger
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithMirror copies every artifact to store as well. Mirror failures are
// logged and never fail the write.
func WithMirror(store BlobStore) Option {
	return func(r *Recorder) {
		r.mirror = store
	}
}

// WithSampleBytes overrides the HTML sample size.
func WithSampleBytes(n int) Option {
	return func(r *Recorder) {
		if n >= 0 {
			r.sampleBytes = n
		}
	}
}

// NewRecorder builds a Recorder over primary.
func NewRecorder(primary BlobStore, runID string, logger *zap.Logger, opts ...Option) (*Recorder, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary artifact store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		primary:     primary,
		runID:       runID,
		sampleBytes: DefaultSampleBytes,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Put writes a single artifact.
func (r *Recorder) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	uri, err := r.primary.PutObject(ctx, name, contentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if r.mirror != nil {
		mirrorPath := path.Join(r.runID, name)
		if mirrorURI, mErr := r.mirror.PutObject(ctx, mirrorPath, contentType, bytes.NewReader(data)); mErr != nil {
			r.logger.Warn("artifact mirror failed", zap.String("artifact", name), zap.Error(mErr))
		} else {
			r.logger.Debug("artifact mirrored", zap.String("artifact", name), zap.String("uri", mirrorURI))
		}
	}
	return uri, nil
}

// RecordCheckTime stamps the start of the run.
func (r *Recorder) RecordCheckTime(ctx context.Context, at time.Time) error {
	_, err := r.Put(ctx, CheckTimeFile, "text/plain; charset=utf-8", []byte(system.Format(at)))
	return err
}

// RecordPage writes the HTML sample, the visible text dump and, when
// present, the screenshot.
func (r *Recorder) RecordPage(ctx context.Context, page fetcher.Page) error {
	sample := Sample(page.HTML, r.sampleBytes)
	if _, err := r.Put(ctx, SampleFile, "text/plain; charset=utf-8", sample); err != nil {
		return err
	}
	r.logger.Debug("saved page sample", zap.Int("bytes", len(sample)))

	if _, err := r.Put(ctx, TextFile, "text/plain; charset=utf-8", []byte(page.Text)); err != nil {
		return err
	}
	r.logger.Debug("saved visible text", zap.Int("bytes", len(page.Text)))

	if len(page.Screenshot) > 0 {
		if _, err := r.Put(ctx, ScreenshotFile, "image/png", page.Screenshot); err != nil {
			return err
		}
		r.logger.Debug("saved screenshot", zap.Int("bytes", len(page.Screenshot)))
	}
	return nil
}

// RecordRun writes v as indented JSON to run.json.
func (r *Recorder) RecordRun(ctx context.Context, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	_, err = r.Put(ctx, RunFile, "application/json", payload)
	return err
}

// Sample returns at most n leading bytes of html.
func Sample(html []byte, n int) []byte {
	if n < 0 || len(html) <= n {
		return html
	}
	return html[:n]
}
