package moment_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/internal/moment/momenttest"
	apperrors "github.com/echomindr/echomindr/pkg/errors"
)

func TestParseStage(t *testing.T) {
	tests := []struct {
		in   string
		want moment.Stage
	}{
		{"mvp", moment.StageMVP},
		{"  Traction ", moment.StageTraction},
		{"growth", moment.StageScale},
		{"Product-Market  Fit", moment.StageTraction},
		{"pre-seed", moment.StageIdea},
	}
	for _, tt := range tests {
		got, err := moment.ParseStage(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}

	_, err := moment.ParseStage("unicorn")
	require.ErrorIs(t, err, apperrors.ErrInvalidFilter)
}

func TestParseType(t *testing.T) {
	got, err := moment.ParseType("ADVICE")
	require.NoError(t, err)
	require.Equal(t, moment.TypeAdvice, got)

	_, err = moment.ParseType("rumour")
	require.ErrorIs(t, err, apperrors.ErrInvalidFilter)
	_, err = moment.ParseType("")
	require.ErrorIs(t, err, apperrors.ErrInvalidFilter)
}

func TestNormalizeEpisodeLayout(t *testing.T) {
	r := moment.Record{
		Type:      "Decision",
		Timestamp: "3:26",
		Summary:   "  Raised prices after the first churn wave.  ",
		Tags:      []string{"Pricing", " pricing ", "", "Go  To   Market"},
		Context:   &moment.RecordContext{Stage: "traction", Situation: "B2B tool with churn"},
		Source: moment.RecordSource{
			Podcast: "Acquired",
			Guest:   "TODO: find guest",
			URL:     "https://www.youtube.com/watch?v=xyz",
		},
	}
	m, err := moment.Normalize(r)
	require.NoError(t, err)
	require.Equal(t, moment.TypeDecision, m.Type)
	require.Equal(t, moment.StageTraction, m.Stage)
	require.Equal(t, "B2B tool with churn", m.Situation)
	require.Equal(t, "Raised prices after the first churn wave.", m.Summary)
	require.Equal(t, []string{"pricing", "go to market"}, m.Tags)
	require.Empty(t, m.Source.Founder)
	require.Equal(t, "https://www.youtube.com/watch?v=xyz&t=206s", m.Source.TimestampURL)
	require.NotEmpty(t, m.ID)

	again, err := moment.Normalize(r)
	require.NoError(t, err)
	require.Equal(t, m.ID, again.ID, "derived ids must be stable")
}

func TestNormalizeRejectsUnknownEnums(t *testing.T) {
	_, err := moment.Normalize(moment.Record{Type: "rumour", Stage: "mvp", Summary: "x"})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = moment.Normalize(moment.Record{Type: "lesson", Stage: "", Summary: "x"})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = moment.Normalize(moment.Record{Type: "lesson", Stage: "mvp", Summary: "   "})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestNormalizeDropsSearchPlaceholderURL(t *testing.T) {
	m, err := moment.Normalize(moment.Record{
		ID: "a", Type: "signal", Stage: "idea", Summary: "s", Timestamp: "1:00",
		Source: moment.RecordSource{URL: "ytsearch1:some episode"},
	})
	require.NoError(t, err)
	require.Empty(t, m.Source.URL)
	require.Empty(t, m.Source.TimestampURL)
}

func TestTimestampURL(t *testing.T) {
	base := "https://www.youtube.com/watch?v=abc"
	require.Equal(t, base+"&t=3723s", moment.TimestampURL(base, "1:02:03"))
	require.Equal(t, base, moment.TimestampURL(base, "soon"))
	require.Empty(t, moment.TimestampURL("https://vimeo.com/1", "1:00"))
}

func TestStore(t *testing.T) {
	s := momenttest.Store(t)
	require.Equal(t, 7, s.Len())

	m, err := s.Get("m2")
	require.NoError(t, err)
	require.Equal(t, moment.StageTraction, m.Stage)

	_, err = s.Get("missing")
	require.True(t, errors.Is(err, apperrors.ErrMomentNotFound))

	var ids []string
	for m := range s.All() {
		ids = append(ids, m.ID)
	}
	var again []string
	for m := range s.All() {
		again = append(again, m.ID)
	}
	require.Equal(t, []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7"}, ids)
	require.Equal(t, ids, again)
}

func TestNewStoreRejectsDuplicates(t *testing.T) {
	corpus := momenttest.Corpus()
	corpus = append(corpus, corpus[0])
	_, err := moment.NewStore(corpus)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestComputeStats(t *testing.T) {
	st := moment.ComputeStats(momenttest.Store(t))
	require.Equal(t, 7, st.TotalMoments)
	require.Equal(t, 2, st.ByType["decision"])
	require.Equal(t, 2, st.ByStage["mvp"])
	require.Equal(t, 2, st.ByPodcast["Acquired"])
	require.Equal(t, 5, st.Podcasts)
	require.Equal(t, 7, st.Founders)
	require.Equal(t, 10, st.UniqueTags)
}
