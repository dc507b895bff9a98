package llm

import (
	"context"
	"errors"
)

// ErrExtractionFailed marks a completion response that did not match the
// expected JSON shape. Callers treat it as "no candidates", never as a
// reason to abort the run.
var ErrExtractionFailed = errors.New("completion response did not match expected shape")

type ScoreInput struct {
	Title       string
	Description string
}

type ScoreResult struct {
	Score              int
	Keywords           []string
	AffectedCountries  []string
	AffectedIndustries []string
	Reasoning          string
	ModelUsed          string
}

// CandidateChange is one extracted rate delta. Category is the raw
// tariff-category string from the response; the detector validates it
// against the closed category set.
type CandidateChange struct {
	Category      string
	HSCode        string
	NewRate       float64
	PreviousRate  float64
	EffectiveDate string
}

type ExtractResult struct {
	HasTariffChanges bool
	Changes          []CandidateChange
	Confidence       float64
	Summary          string
	ModelUsed        string
}

type Scorer interface {
	ScoreItem(ctx context.Context, input ScoreInput) (*ScoreResult, error)
}

type Extractor interface {
	ExtractChanges(ctx context.Context, text string) (*ExtractResult, error)
}
