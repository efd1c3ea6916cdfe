// Package indexer builds immutable snapshots of the moment corpus: the
// store plus its lexical and tag indexes. A snapshot is never modified after
// Build returns, so any number of queries may read it concurrently.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/echomindr/echomindr/internal/indexer/index"
	"github.com/echomindr/echomindr/internal/moment"
)

type Snapshot struct {
	Version uint64
	BuiltAt time.Time
	Store   *moment.Store
	Lexical *index.LexicalIndex
	Tags    *index.TagIndex
	Stats   moment.Stats
}

// Build creates a snapshot from moments. The lexical index, tag index and
// stats are built concurrently over the same store.
func Build(ctx context.Context, version uint64, moments []moment.Moment) (*Snapshot, error) {
	logger := slog.Default().With("component", "indexer")
	start := time.Now()

	store, err := moment.NewStore(moments)
	if err != nil {
		return nil, fmt.Errorf("building moment store: %w", err)
	}

	snap := &Snapshot{
		Version: version,
		Store:   store,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lex := index.NewLexicalIndex(store.Len())
		ordinal := 0
		for m := range store.All() {
			if ordinal%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			lex.Add(ordinal, m)
			ordinal++
		}
		snap.Lexical = lex
		return nil
	})
	g.Go(func() error {
		tags := index.NewTagIndex()
		ordinal := 0
		for m := range store.All() {
			tags.Add(ordinal, m.Tags)
			ordinal++
		}
		snap.Tags = tags
		return ctx.Err()
	})
	g.Go(func() error {
		snap.Stats = moment.ComputeStats(store)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building indexes: %w", err)
	}
	snap.BuiltAt = time.Now()

	logger.Info("snapshot built",
		"version", version,
		"moments", store.Len(),
		"terms", snap.Lexical.TermCount(),
		"tags", snap.Tags.Len(),
		"index_bytes", snap.Lexical.Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}
