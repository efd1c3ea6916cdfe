package moment

import (
	"fmt"
	"iter"
	"sort"

	apperrors "github.com/echomindr/echomindr/pkg/errors"
)

// Store is an immutable, insertion-ordered collection of moments indexed
// by id. It is safe for concurrent readers.
type Store struct {
	moments []Moment
	byID    map[string]int
}

// NewStore copies moments into a new Store. Duplicate ids are rejected.
func NewStore(moments []Moment) (*Store, error) {
	s := &Store{
		moments: make([]Moment, 0, len(moments)),
		byID:    make(map[string]int, len(moments)),
	}
	for _, m := range moments {
		if m.ID == "" {
			return nil, apperrors.InvalidInput("moment with empty id")
		}
		if _, dup := s.byID[m.ID]; dup {
			return nil, apperrors.InvalidInput("duplicate moment id %q", m.ID)
		}
		s.byID[m.ID] = len(s.moments)
		s.moments = append(s.moments, m)
	}
	return s, nil
}

// Get returns the moment with the given id or an ErrMomentNotFound error.
func (s *Store) Get(id string) (Moment, error) {
	i, ok := s.byID[id]
	if !ok {
		return Moment{}, apperrors.NotFound(id)
	}
	return s.moments[i], nil
}

// At returns the moment at insertion position ordinal.
func (s *Store) At(ordinal int) Moment {
	return s.moments[ordinal]
}

// Ordinal returns the insertion position of id.
func (s *Store) Ordinal(id string) (int, bool) {
	i, ok := s.byID[id]
	return i, ok
}

// All yields every moment in insertion order. The sequence can be ranged
// over any number of times.
func (s *Store) All() iter.Seq[Moment] {
	return func(yield func(Moment) bool) {
		for _, m := range s.moments {
			if !yield(m) {
				return
			}
		}
	}
}

func (s *Store) Len() int {
	return len(s.moments)
}

// Stats is an aggregate summary of a Store.
type Stats struct {
	TotalMoments int            `json:"total_moments"`
	ByType       map[string]int `json:"by_type"`
	ByStage      map[string]int `json:"by_stage"`
	ByPodcast    map[string]int `json:"by_podcast"`
	Podcasts     int            `json:"podcasts"`
	Founders     int            `json:"guests"`
	UniqueTags   int            `json:"unique_tags"`
}

// ComputeStats scans the store once and counts moments per type, stage and
// podcast.
func ComputeStats(s *Store) Stats {
	st := Stats{
		ByType:    make(map[string]int),
		ByStage:   make(map[string]int),
		ByPodcast: make(map[string]int),
	}
	founders := make(map[string]struct{})
	tags := make(map[string]struct{})
	for m := range s.All() {
		st.TotalMoments++
		st.ByType[string(m.Type)]++
		st.ByStage[string(m.Stage)]++
		podcast := m.Source.Podcast
		if podcast == "" {
			podcast = "unknown"
		}
		st.ByPodcast[podcast]++
		if m.Source.Founder != "" {
			founders[m.Source.Founder] = struct{}{}
		}
		for _, t := range m.Tags {
			tags[t] = struct{}{}
		}
	}
	st.Podcasts = len(st.ByPodcast)
	st.Founders = len(founders)
	st.UniqueTags = len(tags)
	return st
}

// Lines renders stats as sorted "key=value" lines for terminal output.
func (st Stats) Lines() []string {
	lines := []string{fmt.Sprintf("Total moments: %d", st.TotalMoments)}
	lines = append(lines, "By type: "+joinCounts(st.ByType, false))
	lines = append(lines, "By stage: "+joinCounts(st.ByStage, false))
	lines = append(lines, "By podcast: "+joinCounts(st.ByPodcast, true))
	lines = append(lines,
		fmt.Sprintf("Unique tags: %d", st.UniqueTags),
		fmt.Sprintf("Unique guests: %d", st.Founders),
	)
	return lines
}

func joinCounts(counts map[string]int, byCount bool) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if byCount && counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%d", k, counts[k])
	}
	return out
}
