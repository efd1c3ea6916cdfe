// Package loader reads upstream moment records from a JSON file, an
// episodes directory, SQLite or PostgreSQL, normalizes them into moments
// and drives corpus reloads of the query facade.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/pkg/config"
	"github.com/echomindr/echomindr/pkg/postgres"
)

// Source yields raw upstream records. Implementations must be safe to call
// repeatedly; every call reads the source afresh.
type Source interface {
	Name() string
	Records(ctx context.Context) ([]moment.Record, error)
}

// Report summarizes one load.
type Report struct {
	Source  string   `json:"source"`
	Read    int      `json:"read"`
	Loaded  int      `json:"loaded"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// maxReportedErrors caps Report.Errors; the skip count stays exact.
const maxReportedErrors = 20

// Load reads src and normalizes every record. Invalid records and records
// repeating an earlier id are skipped and counted rather than failing the
// load; an unreadable source is an error.
func Load(ctx context.Context, src Source) ([]moment.Moment, Report, error) {
	logger := slog.Default().With("component", "loader", "source", src.Name())
	report := Report{Source: src.Name()}

	records, err := src.Records(ctx)
	if err != nil {
		return nil, report, fmt.Errorf("reading %s: %w", src.Name(), err)
	}
	report.Read = len(records)

	skip := func(err error) {
		report.Skipped++
		if len(report.Errors) < maxReportedErrors {
			report.Errors = append(report.Errors, err.Error())
		}
		logger.Warn("record skipped", "error", err)
	}

	moments := make([]moment.Moment, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		m, err := moment.Normalize(r)
		if err != nil {
			skip(err)
			continue
		}
		if _, dup := seen[m.ID]; dup {
			skip(fmt.Errorf("record %q: duplicate id", m.ID))
			continue
		}
		seen[m.ID] = struct{}{}
		moments = append(moments, m)
	}
	report.Loaded = len(moments)

	logger.Info("corpus loaded",
		"read", report.Read,
		"loaded", report.Loaded,
		"skipped", report.Skipped,
	)
	return moments, report, nil
}

// Open builds the Source selected by cfg. The returned close function
// releases any database handle and is never nil.
func Open(cfg *config.Config) (Source, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(cfg.Source.Driver) {
	case config.SourceJSON:
		return NewJSONSource(cfg.Source.Path), noop, nil
	case config.SourceSQLite:
		src, err := OpenSQLite(cfg.Source.Path)
		if err != nil {
			return nil, noop, err
		}
		return src, src.Close, nil
	case config.SourcePostgres:
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, noop, err
		}
		return NewPostgresSource(client), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown source driver %q", cfg.Source.Driver)
	}
}
