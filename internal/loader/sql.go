package loader

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/pkg/postgres"
)

// momentColumns matches the moments table written by the corpus build
// step. tags holds a JSON array of strings.
const momentColumns = `id, type, timestamp, summary, quote, decision, outcome, lesson,
	stage, situation, tags, podcast, episode, guest, episode_date, source_url, url_at_moment`

// SQLiteSource reads the moments table of a SQLite database opened
// read-only.
type SQLiteSource struct {
	path string
	db   *sql.DB
}

func OpenSQLite(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	return &SQLiteSource{path: path, db: db}, nil
}

func (s *SQLiteSource) Name() string {
	return "sqlite:" + s.path
}

func (s *SQLiteSource) Records(ctx context.Context) ([]moment.Record, error) {
	return queryRecords(ctx, s.db, `SELECT `+momentColumns+` FROM moments ORDER BY rowid`)
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// PostgresSource reads the same moments table from PostgreSQL.
type PostgresSource struct {
	client *postgres.Client
}

func NewPostgresSource(client *postgres.Client) *PostgresSource {
	return &PostgresSource{client: client}
}

func (s *PostgresSource) Name() string {
	return "postgres"
}

func (s *PostgresSource) Records(ctx context.Context) ([]moment.Record, error) {
	return queryRecords(ctx, s.client.DB, `SELECT `+momentColumns+` FROM moments ORDER BY created_at, id`)
}

func queryRecords(ctx context.Context, db *sql.DB, query string) ([]moment.Record, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying moments: %w", err)
	}
	defer rows.Close()

	var out []moment.Record
	for rows.Next() {
		var (
			r                                  moment.Record
			ts, quote, decision, outcome       sql.NullString
			lesson, stage, situation, tags     sql.NullString
			podcast, episode, guest, date, url sql.NullString
			id, urlAtMoment                    sql.NullString
		)
		if err := rows.Scan(
			&id, &r.Type, &ts, &r.Summary, &quote, &decision, &outcome, &lesson,
			&stage, &situation, &tags, &podcast, &episode, &guest, &date, &url, &urlAtMoment,
		); err != nil {
			return nil, fmt.Errorf("scanning moment row: %w", err)
		}
		r.ID = id.String
		r.Timestamp = ts.String
		r.Quote = quote.String
		r.Decision = decision.String
		r.Outcome = outcome.String
		r.Lesson = lesson.String
		r.Stage = stage.String
		r.Situation = situation.String
		r.Tags = decodeTags(r.ID, tags.String)
		r.Source = moment.RecordSource{
			Podcast:     podcast.String,
			Episode:     episode.String,
			Guest:       guest.String,
			Date:        date.String,
			URL:         url.String,
			URLAtMoment: urlAtMoment.String,
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating moment rows: %w", err)
	}
	return out, nil
}

// decodeTags accepts a JSON array and falls back to a comma separated list.
func decodeTags(id, raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err == nil {
		return tags
	}
	slog.Debug("tags column is not JSON, splitting on commas", "id", id)
	return strings.Split(raw, ",")
}
