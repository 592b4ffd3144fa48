package masterdata

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Store holds the current snapshot behind an atomic pointer. Readers always
// see either the previous snapshot or the new one, never a torn state, so no
// lock is needed on the fill path.
type Store struct {
	snap    atomic.Pointer[Snapshot]
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewStore loads the initial snapshot through the fetcher and fails if the
// profile source is unusable, since nothing can be filled without it.
func NewStore(ctx context.Context, fetcher *Fetcher, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{fetcher: fetcher, logger: logger}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore wraps an already-parsed snapshot; used by the CLI and tests.
func NewStaticStore(snap *Snapshot) *Store {
	s := &Store{logger: slog.Default()}
	s.snap.Store(snap)
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *Snapshot {
	return s.snap.Load()
}

// Refresh fetches and parses the profile source, then atomically replaces the
// snapshot. In-flight requests keep the snapshot they already read.
func (s *Store) Refresh(ctx context.Context) error {
	start := time.Now()
	raw, src, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.logger.Error("masterdata.refresh.fetch_error", "error", err)
		return err
	}
	snap, err := Parse(bytes.NewReader(raw))
	if err != nil {
		s.logger.Error("masterdata.refresh.parse_error", "source", src, "error", err)
		return err
	}
	s.snap.Store(snap)
	s.logger.Info("masterdata.refresh.ok",
		"source", src,
		"entries", snap.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
