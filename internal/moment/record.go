package moment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/echomindr/echomindr/internal/indexer/tokenizer"
	apperrors "github.com/echomindr/echomindr/pkg/errors"
)

const youtubeWatchPrefix = "https://www.youtube.com/watch?v="

// idNamespace seeds deterministic ids for records that arrive without one,
// so a reload of the same corpus keeps ids stable.
var idNamespace = uuid.MustParse("6f1c63a4-3b1e-4c55-9a56-3f0d7d4b9e21")

// Record is a moment as produced by the upstream extraction pipeline. Two
// layouts exist: the flat sample layout with stage and situation at the
// top level, and the episode layout that nests them under context.
type Record struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Stage     string         `json:"stage"`
	Timestamp string         `json:"timestamp"`
	Summary   string         `json:"summary"`
	Quote     string         `json:"quote"`
	Decision  string         `json:"decision"`
	Outcome   string         `json:"outcome"`
	Lesson    string         `json:"lesson"`
	Situation string         `json:"situation"`
	Tags      []string       `json:"tags"`
	Context   *RecordContext `json:"context,omitempty"`
	Source    RecordSource   `json:"source"`
}

type RecordContext struct {
	Stage     string `json:"stage"`
	Situation string `json:"situation"`
}

type RecordSource struct {
	Podcast     string `json:"podcast"`
	Episode     string `json:"episode"`
	Guest       string `json:"guest"`
	Date        string `json:"date"`
	URL         string `json:"url"`
	URLAtMoment string `json:"url_at_moment"`
}

// Normalize validates a raw record and converts it into a Moment. Records
// with an unknown type or stage, or without a summary, are rejected with an
// ErrInvalidInput-wrapped error so the loader can skip them.
func Normalize(r Record) (Moment, error) {
	stageRaw, situation := r.Stage, r.Situation
	if r.Context != nil {
		if stageRaw == "" {
			stageRaw = r.Context.Stage
		}
		if situation == "" {
			situation = r.Context.Situation
		}
	}

	label := r.ID
	if label == "" {
		label = truncate(r.Summary, 40)
	}

	typ, err := ParseType(r.Type)
	if err != nil {
		return Moment{}, apperrors.InvalidInput("record %q: unknown type %q", label, r.Type)
	}
	stage, err := ParseStage(stageRaw)
	if err != nil {
		return Moment{}, apperrors.InvalidInput("record %q: unknown stage %q", label, stageRaw)
	}
	summary := strings.TrimSpace(r.Summary)
	if summary == "" {
		return Moment{}, apperrors.InvalidInput("record %q: empty summary", label)
	}

	src := Source{
		Podcast: strings.TrimSpace(r.Source.Podcast),
		Episode: strings.TrimSpace(r.Source.Episode),
		Founder: cleanGuest(r.Source.Guest),
		Date:    strings.TrimSpace(r.Source.Date),
		URL:     cleanURL(r.Source.URL),
	}
	src.TimestampURL = strings.TrimSpace(r.Source.URLAtMoment)
	if src.TimestampURL == "" {
		src.TimestampURL = TimestampURL(src.URL, r.Timestamp)
	}

	m := Moment{
		ID:        strings.TrimSpace(r.ID),
		Type:      typ,
		Stage:     stage,
		Timestamp: strings.TrimSpace(r.Timestamp),
		Summary:   summary,
		Quote:     strings.TrimSpace(r.Quote),
		Decision:  strings.TrimSpace(r.Decision),
		Outcome:   strings.TrimSpace(r.Outcome),
		Lesson:    strings.TrimSpace(r.Lesson),
		Situation: strings.TrimSpace(situation),
		Tags:      NormalizeTags(r.Tags),
		Source:    src,
	}
	if m.ID == "" {
		m.ID = deriveID(m)
	}
	return m, nil
}

// NormalizeTags case-folds, trims and deduplicates tags, dropping empty
// ones. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		n := tokenizer.NormalizeTag(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// TimestampURL appends a t=<seconds>s parameter to a YouTube watch URL. It
// returns "" for non-YouTube URLs and the bare URL when the timestamp
// cannot be parsed.
func TimestampURL(base, timestamp string) string {
	if !strings.HasPrefix(base, youtubeWatchPrefix) {
		return ""
	}
	secs, ok := ParseTimestamp(timestamp)
	if !ok {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%st=%ds", base, sep, secs)
}

// ParseTimestamp converts "m:ss" or "h:mm:ss" to seconds.
func ParseTimestamp(ts string) (int, bool) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return 0, false
	}
	parts := strings.Split(ts, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

func deriveID(m Moment) string {
	key := strings.Join([]string{m.Source.Podcast, m.Source.Episode, m.Timestamp, m.Summary}, "\x1f")
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// cleanURL drops search placeholders left by the downloader when no video
// was resolved.
func cleanURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "ytsearch1:") {
		return ""
	}
	return u
}

func cleanGuest(g string) string {
	g = strings.TrimSpace(g)
	if strings.Contains(g, "TODO") {
		return ""
	}
	return g
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
