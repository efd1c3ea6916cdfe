package query

import (
	"errors"
	"fmt"

	"github.com/echomindr/echomindr/internal/searcher/ranker"
	"github.com/echomindr/echomindr/internal/situation"
	"github.com/echomindr/echomindr/pkg/config"
)

// Limits bounds the page size of one operation. A request limit of zero
// takes Default; larger than Max is clamped.
type Limits struct {
	Default int
	Max     int
}

func (l Limits) validate(op string) error {
	if l.Default <= 0 {
		return fmt.Errorf("%s default limit must be positive", op)
	}
	if l.Max < l.Default {
		return fmt.Errorf("%s max limit %d is below default %d", op, l.Max, l.Default)
	}
	return nil
}

type Config struct {
	SearchLimits    Limits
	MaxOffset       int
	SituationLimits Limits
	SimilarLimits   Limits
	Weights         ranker.Weights
	Matcher         situation.Config
}

func DefaultConfig() Config {
	return Config{
		SearchLimits:    Limits{Default: 5, Max: 100},
		MaxOffset:       10000,
		SituationLimits: Limits{Default: 5, Max: 20},
		SimilarLimits:   Limits{Default: 5, Max: 20},
		Weights:         ranker.DefaultWeights(),
		Matcher:         situation.DefaultConfig(),
	}
}

// FromConfig maps the application configuration onto the facade. Configured
// synonyms are merged over situation.DefaultSynonyms.
func FromConfig(cfg *config.Config) Config {
	return Config{
		SearchLimits:    Limits{Default: cfg.Search.DefaultLimit, Max: cfg.Search.MaxLimit},
		MaxOffset:       cfg.Search.MaxOffset,
		SituationLimits: Limits{Default: cfg.Situation.DefaultLimit, Max: cfg.Situation.MaxLimit},
		SimilarLimits:   Limits{Default: cfg.Similar.DefaultLimit, Max: cfg.Similar.MaxLimit},
		Weights:         ranker.Weights(cfg.Search.Weights),
		Matcher: situation.Config{
			LexicalWeight: cfg.Situation.LexicalWeight,
			TagWeight:     cfg.Situation.TagWeight,
			MinScore:      cfg.Situation.MinScore,
			Synonyms:      situation.MergeSynonyms(situation.DefaultSynonyms(), cfg.Situation.Synonyms),
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	errs = append(errs,
		c.SearchLimits.validate("search"),
		c.SituationLimits.validate("situation"),
		c.SimilarLimits.validate("similar"),
		c.Weights.Validate(),
		c.Matcher.Validate(),
	)
	if c.MaxOffset < 0 {
		errs = append(errs, fmt.Errorf("max offset must not be negative"))
	}
	return errors.Join(errs...)
}
