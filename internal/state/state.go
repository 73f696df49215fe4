// Package state persists the keyword set seen by the previous check so the
// next run can tell which keywords are new.
package state

import (
	"context"
	"errors"

	"github.com/JakeFAU/cagewatch/internal/keyword"
)

// ErrNoState indicates that no previous run has stored a keyword set yet.
var ErrNoState = errors.New("no previous keyword state")

// Store reads and fully replaces the persisted keyword set.
type Store interface {
	// Load returns the persisted set, or ErrNoState when nothing was stored.
	Load(ctx context.Context) (keyword.Set, error)
	// Save replaces the persisted set with keywords. It never merges.
	Save(ctx context.Context, keywords []string) error
}
