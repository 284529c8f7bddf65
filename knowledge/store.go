package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/richinex/concierge/locale"
)

// ErrNoLoader is returned by Reload when the store has no loader.
var ErrNoLoader = errors.New("knowledge: no loader configured")

// Store is the process-scoped knowledge store. The index is built on
// first use; concurrent first callers share one in-flight load. A failed
// load is not cached, so a later call retries it.
type Store struct {
	loader      Loader
	logger      zerolog.Logger
	minCoverage float64

	mu    sync.RWMutex
	index *Index
	sf    singleflight.Group
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMinCoverage sets the share of query terms a document must match.
func WithMinCoverage(c float64) StoreOption {
	return func(s *Store) {
		if c > 0 && c <= 1 {
			s.minCoverage = c
		}
	}
}

// NewStore creates a store over loader. Nothing is loaded until the first
// Search or Reload.
func NewStore(loader Loader, logger zerolog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		loader:      loader,
		logger:      logger.With().Str("component", "knowledge").Logger(),
		minCoverage: DefaultMinCoverage,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns up to limit matches for query. It never fails: when the
// index cannot be loaded the result is empty.
func (s *Store) Search(ctx context.Context, query string, lang locale.Language, limit int) []Match {
	idx, err := s.ensure(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("knowledge index unavailable")
		return nil
	}
	return idx.Search(query, lang, limit, s.minCoverage)
}

// Len returns the number of indexed documents, loading the index if needed.
func (s *Store) Len(ctx context.Context) int {
	idx, err := s.ensure(ctx)
	if err != nil {
		return 0
	}
	return idx.Len()
}

// Reload rebuilds the index from the loader, replacing the current one
// only on success.
func (s *Store) Reload(ctx context.Context) error {
	_, err := s.load(ctx, "reload")
	return err
}

func (s *Store) ensure(ctx context.Context) (*Index, error) {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}
	return s.load(ctx, "init")
}

// load runs one shared build per key. The build is detached from the
// caller's cancellation so one impatient caller cannot fail the others.
func (s *Store) load(ctx context.Context, key string) (*Index, error) {
	ch := s.sf.DoChan(key, func() (interface{}, error) {
		if key == "init" {
			s.mu.RLock()
			idx := s.index
			s.mu.RUnlock()
			if idx != nil {
				return idx, nil
			}
		}
		if s.loader == nil {
			return nil, ErrNoLoader
		}

		docs, err := s.loader.LoadDocuments(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to load documents: %w", err)
		}
		idx := BuildIndex(docs)

		s.mu.Lock()
		s.index = idx
		s.mu.Unlock()

		s.logger.Debug().Int("documents", idx.Len()).Str("trigger", key).Msg("knowledge index built")
		return idx, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Index), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ Searcher = (*Store)(nil)
