package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/echomindr/echomindr/internal/moment"
)

// JSONSource reads records from a JSON file holding either an array of
// records or an object with a "moments" array. When Path is a directory it
// is read as an episodes tree: every <dir>/<episode>/moments.json, with the
// episode's meta.json overriding the provenance of its moments.
type JSONSource struct {
	Path   string
	logger *slog.Logger
}

func NewJSONSource(path string) *JSONSource {
	return &JSONSource{
		Path:   path,
		logger: slog.Default().With("component", "json-source"),
	}
}

func (s *JSONSource) Name() string {
	return "json:" + s.Path
}

func (s *JSONSource) Records(ctx context.Context) ([]moment.Record, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening moments source: %w", err)
	}
	if !info.IsDir() {
		return readRecordsFile(s.Path)
	}
	return s.readEpisodes(ctx)
}

type episodeMeta struct {
	Podcast string `json:"podcast"`
	Episode string `json:"episode"`
	Guest   string `json:"guest"`
	Date    string `json:"date"`
	URL     string `json:"url"`
}

func (s *JSONSource) readEpisodes(ctx context.Context) ([]moment.Record, error) {
	entries, err := os.ReadDir(s.Path)
	if err != nil {
		return nil, fmt.Errorf("listing episodes: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []moment.Record
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := filepath.Join(s.Path, name)
		records, err := readRecordsFile(filepath.Join(dir, "moments.json"))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			s.logger.Warn("episode skipped", "episode", name, "error", err)
			continue
		}
		if len(records) == 0 {
			s.logger.Warn("episode has no moments", "episode", name)
			continue
		}
		meta, err := readMeta(filepath.Join(dir, "meta.json"))
		if err != nil {
			s.logger.Warn("episode meta ignored", "episode", name, "error", err)
		}
		for i := range records {
			applyMeta(&records[i].Source, meta)
		}
		out = append(out, records...)
	}
	return out, nil
}

func readRecordsFile(path string) ([]moment.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var records []moment.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		return records, nil
	}
	var doc struct {
		Moments []moment.Record `json:"moments"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return doc.Moments, nil
}

func readMeta(path string) (episodeMeta, error) {
	var meta episodeMeta
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return episodeMeta{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return meta, nil
}

// applyMeta prefers episode metadata over what the extraction wrote into
// each moment, except for placeholder guests.
func applyMeta(src *moment.RecordSource, meta episodeMeta) {
	if meta.Podcast != "" {
		src.Podcast = meta.Podcast
	}
	if meta.Episode != "" {
		src.Episode = meta.Episode
	}
	if meta.Date != "" {
		src.Date = meta.Date
	}
	if meta.URL != "" {
		src.URL = meta.URL
	}
	if meta.Guest != "" && !strings.Contains(meta.Guest, "TODO") {
		src.Guest = meta.Guest
	}
}
