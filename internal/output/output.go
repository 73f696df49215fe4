// Package output emits the notify/message pair read by the automation step
// that runs after a check.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Emitter appends key=value lines to a step output file, or writes them to a
// fallback writer when no file is configured.
type Emitter struct {
	path     string
	fallback io.Writer
}

// New returns an Emitter. An empty path sends lines to fallback.
func New(path string, fallback io.Writer) *Emitter {
	if fallback == nil {
		fallback = os.Stdout
	}
	return &Emitter{path: strings.TrimSpace(path), fallback: fallback}
}

// Path returns the configured output file, if any.
func (e *Emitter) Path() string {
	return e.path
}

// Emit writes the notify flag and the message as two lines.
func (e *Emitter) Emit(notify bool, message string) error {
	lines := Format(notify, message)
	if e.path == "" {
		if _, err := io.WriteString(e.fallback, lines); err != nil {
			return fmt.Errorf("write outputs: %w", err)
		}
		return nil
	}

	// #nosec G304 -- path is provided by the CI runner.
	file, err := os.OpenFile(e.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	if _, err := io.WriteString(file, lines); err != nil {
		_ = file.Close()
		return fmt.Errorf("append outputs: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}

// Format renders the two output lines. Line breaks inside message would
// start a new key, so they are folded into spaces.
func Format(notify bool, message string) string {
	message = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(message)
	return fmt.Sprintf("notify=%t\nmessage=%s\n", notify, message)
}
