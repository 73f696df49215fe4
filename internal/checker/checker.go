// Package checker runs one keyword check: fetch the page, match the
// vocabulary, compare with the previous run and emit the outputs.
package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cagewatch/internal/fetcher"
	"github.com/JakeFAU/cagewatch/internal/keyword"
	"github.com/JakeFAU/cagewatch/internal/metrics"
	"github.com/JakeFAU/cagewatch/internal/state"
)

// ErrorMessage is emitted whenever the check could not complete.
const ErrorMessage = "Error checking website"

// MessagePrefix starts the message announcing new keywords.
const MessagePrefix = "Cages updated with "

// Config controls a Checker.
type Config struct {
	RunID           string
	URL             string
	Vocabulary      keyword.Vocabulary
	Topic           string
	MetricsTextfile string
}

// Deps bundles the collaborators of a Checker. Publisher and Metrics are
// optional.
type Deps struct {
	Fetcher   fetcher.Fetcher
	State     state.Store
	Artifacts Artifacts
	Output    Emitter
	Publisher Publisher
	Metrics   Metrics
	Hasher    Hasher
	Clock     Clock
}

// Result describes the outcome of a run.
type Result struct {
	Notify   bool
	Message  string
	Current  []string
	New      []string
	Removed  []string
	Previous []string
	Err      error
}

// Notification is the payload published when new keywords appear.
type Notification struct {
	RunID       string    `json:"run_id"`
	URL         string    `json:"url"`
	Message     string    `json:"message"`
	NewKeywords []string  `json:"new_keywords"`
	Keywords    []string  `json:"keywords"`
	CheckedAt   time.Time `json:"checked_at"`
}

// RunRecord is written to run.json after every run.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	URL        string    `json:"url"`
	FinalURL   string    `json:"final_url,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Mode       string    `json:"mode,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	TextSHA256 string    `json:"text_sha256,omitempty"`
	// ScreenshotSHA256 identifies the screenshot stored next to the record.
	ScreenshotSHA256 string   `json:"screenshot_sha256,omitempty"`
	TextBytes        int      `json:"text_bytes"`
	Previous         []string `json:"previous"`
	Current          []string `json:"current"`
	New              []string `json:"new"`
	Removed          []string `json:"removed"`
	Notify           bool     `json:"notify"`
	Message          string   `json:"message"`
	Error            string   `json:"error,omitempty"`
}

// Checker performs a single check.
type Checker struct {
	cfg     Config
	deps    Deps
	matcher *keyword.Matcher
	logger  *zap.Logger
}

// New constructs a Checker.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Checker, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fetcher.ErrEmptyURL
	}
	if deps.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if deps.State == nil {
		return nil, errors.New("state store is required")
	}
	if deps.Artifacts == nil {
		return nil, errors.New("artifact recorder is required")
	}
	if deps.Output == nil {
		return nil, errors.New("output emitter is required")
	}
	if deps.Hasher == nil {
		return nil, errors.New("hasher is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("clock is required")
	}
	if len(cfg.Vocabulary) == 0 {
		cfg.Vocabulary = keyword.DefaultVocabulary
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		cfg:     cfg,
		deps:    deps,
		matcher: keyword.NewMatcher(cfg.Vocabulary),
		logger:  logger.With(zap.String("run_id", cfg.RunID), zap.String("url", cfg.URL)),
	}, nil
}

// Run executes the check. Fetch and processing failures are folded into a
// notify=false result; the returned error is non-nil only when the outputs
// themselves could not be written.
func (c *Checker) Run(ctx context.Context) (Result, error) {
	startedAt := c.deps.Clock.Now()
	c.logger.Info("starting website check", zap.Strings("vocabulary", c.cfg.Vocabulary))

	if err := c.deps.Artifacts.RecordCheckTime(ctx, startedAt); err != nil {
		c.logger.Warn("failed to record check time", zap.Error(err))
	}

	previous := c.loadPrevious(ctx)
	record := RunRecord{
		RunID:     c.cfg.RunID,
		URL:       c.cfg.URL,
		StartedAt: startedAt,
		Previous:  previous.Sorted(c.cfg.Vocabulary),
	}

	page, res := c.check(ctx, previous)
	res.Previous = record.Previous

	if res.Err != nil {
		c.logger.Error("error during website check", zap.Error(res.Err))
		res.Notify = false
		res.Message = ErrorMessage
	}

	if err := c.deps.Output.Emit(res.Notify, res.Message); err != nil {
		return res, fmt.Errorf("emit outputs: %w", err)
	}

	switch {
	case res.Err != nil:
	case res.Notify:
		c.logger.Info("new slots available", zap.Strings("new", res.New))
		c.publish(ctx, res, startedAt)
	default:
		c.logger.Info("no new slots detected")
	}

	finishedAt := c.deps.Clock.Now()
	c.writeRunRecord(ctx, record, page, res, finishedAt)
	c.observe(page, res, finishedAt, finishedAt.Sub(startedAt))
	return res, nil
}

// check holds the fallible part of the run. Any error stops the run before
// state is written.
func (c *Checker) check(ctx context.Context, previous keyword.Set) (fetcher.Page, Result) {
	c.logger.Info("fetching page")
	page, err := c.deps.Fetcher.Fetch(ctx, c.cfg.URL)
	if err != nil {
		return page, Result{Err: fmt.Errorf("fetch page: %w", err)}
	}
	c.logger.Info("page loaded",
		zap.String("final_url", page.FinalURL),
		zap.Int("status", page.StatusCode),
		zap.Int("html_bytes", len(page.HTML)),
		zap.Int("text_bytes", len(page.Text)),
		zap.Duration("duration", page.Duration),
	)

	if err := c.deps.Artifacts.RecordPage(ctx, page); err != nil {
		return page, Result{Err: fmt.Errorf("record page artifacts: %w", err)}
	}

	current := c.matcher.Match(page.Text)
	res := Result{Current: current.Sorted(c.cfg.Vocabulary)}
	for _, kw := range res.Current {
		c.logger.Debug("found keyword", zap.String("keyword", kw))
	}
	c.logger.Info("keywords found", zap.Strings("keywords", res.Current))

	if err := c.deps.State.Save(ctx, res.Current); err != nil {
		return page, Result{Err: fmt.Errorf("save keyword state: %w", err)}
	}
	c.logger.Debug("saved current keyword state")

	res.New = keyword.Diff(current, previous).Sorted(c.cfg.Vocabulary)
	res.Removed = keyword.Diff(previous, current).Sorted(c.cfg.Vocabulary)
	if len(res.Removed) > 0 {
		c.logger.Info("keywords no longer present", zap.Strings("removed", res.Removed))
	}
	c.logger.Info("new keywords", zap.Strings("new", res.New))

	res.Notify = len(res.New) > 0
	res.Message = Message(res.New)
	return page, res
}

// loadPrevious returns the stored set, or an empty set when none can be read.
func (c *Checker) loadPrevious(ctx context.Context) keyword.Set {
	prev, err := c.deps.State.Load(ctx)
	switch {
	case errors.Is(err, state.ErrNoState):
		c.logger.Info("no previous keywords found, starting fresh")
		return keyword.NewSet()
	case err != nil:
		c.logger.Warn("error reading previous keywords", zap.Error(err))
		return keyword.NewSet()
	}
	c.logger.Info("loaded previous keywords", zap.Strings("previous", prev.Sorted(c.cfg.Vocabulary)))
	return prev
}

func (c *Checker) publish(ctx context.Context, res Result, checkedAt time.Time) {
	if c.deps.Publisher == nil || c.cfg.Topic == "" {
		return
	}
	payload := Notification{
		RunID:       c.cfg.RunID,
		URL:         c.cfg.URL,
		Message:     res.Message,
		NewKeywords: res.New,
		Keywords:    res.Current,
		CheckedAt:   checkedAt,
	}
	id, err := c.deps.Publisher.Publish(ctx, c.cfg.Topic, payload)
	if err != nil {
		c.logger.Warn("publish notification failed", zap.String("topic", c.cfg.Topic), zap.Error(err))
		return
	}
	c.logger.Info("notification published", zap.String("topic", c.cfg.Topic), zap.String("message_id", id))
}

func (c *Checker) writeRunRecord(ctx context.Context, record RunRecord, page fetcher.Page, res Result, finishedAt time.Time) {
	record.FinishedAt = finishedAt
	record.FinalURL = page.FinalURL
	record.StatusCode = page.StatusCode
	record.Mode = string(page.Mode)
	record.TextBytes = len(page.Text)
	record.Current = nonNil(res.Current)
	record.New = nonNil(res.New)
	record.Removed = nonNil(res.Removed)
	record.Notify = res.Notify
	record.Message = res.Message
	if res.Err != nil {
		record.Error = res.Err.Error()
	}
	record.TextSHA256 = c.digest("visible text", []byte(page.Text))
	record.ScreenshotSHA256 = c.digest("screenshot", page.Screenshot)
	if err := c.deps.Artifacts.RecordRun(ctx, record); err != nil {
		c.logger.Warn("failed to write run record", zap.Error(err))
	}
}

func (c *Checker) digest(what string, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum, err := c.deps.Hasher.Hash(data)
	if err != nil {
		c.logger.Warn("hash failed", zap.String("content", what), zap.Error(err))
		return ""
	}
	return sum
}

func (c *Checker) observe(page fetcher.Page, res Result, finishedAt time.Time, elapsed time.Duration) {
	if c.deps.Metrics == nil {
		return
	}
	outcome := metrics.OutcomeUnchanged
	switch {
	case res.Err != nil:
		outcome = metrics.OutcomeFailed
	case res.Notify:
		outcome = metrics.OutcomeNotified
	}
	c.deps.Metrics.ObserveRun(metrics.Run{
		Site:        metrics.SanitizeSite(c.cfg.URL),
		Outcome:     outcome,
		FinishedAt:  finishedAt,
		Duration:    elapsed,
		Matched:     len(res.Current),
		New:         len(res.New),
		Removed:     len(res.Removed),
		TextBytes:   len(page.Text),
		FetchStatus: page.StatusCode,
	})
	if c.cfg.MetricsTextfile == "" {
		return
	}
	if err := c.deps.Metrics.WriteTextfile(c.cfg.MetricsTextfile); err != nil {
		c.logger.Warn("failed to write metrics textfile", zap.String("path", c.cfg.MetricsTextfile), zap.Error(err))
	}
}

// Message renders the notification text for the newly present keywords.
// It is empty when nothing is new.
func Message(newKeywords []string) string {
	if len(newKeywords) == 0 {
		return ""
	}
	return MessagePrefix + strings.Join(newKeywords, ", ")
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
