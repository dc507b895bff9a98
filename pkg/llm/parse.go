package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Some model responses include extra prose around JSON.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

func parseScoreResponse(content string) (*ScoreResult, error) {
	content = cleanJSONResponse(content)

	var parsed struct {
		Score              int      `json:"score"`
		Keywords           []string `json:"keywords"`
		AffectedCountries  []string `json:"affected_countries"`
		AffectedIndustries []string `json:"affected_industries"`
		Reasoning          string   `json:"reasoning"`
	}

	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v, content: %s", ErrExtractionFailed, err, content)
	}

	if parsed.Score < 1 || parsed.Score > 10 {
		return nil, fmt.Errorf("%w: score %d out of range", ErrExtractionFailed, parsed.Score)
	}

	return &ScoreResult{
		Score:              parsed.Score,
		Keywords:           parsed.Keywords,
		AffectedCountries:  parsed.AffectedCountries,
		AffectedIndustries: parsed.AffectedIndustries,
		Reasoning:          parsed.Reasoning,
	}, nil
}

type rawChange struct {
	HSCode        string  `json:"hs_code"`
	NewRate       float64 `json:"new_rate"`
	PreviousRate  float64 `json:"previous_rate"`
	EffectiveDate string  `json:"effective_date"`
}

func parseExtractResponse(content string) (*ExtractResult, error) {
	content = cleanJSONResponse(content)

	var parsed struct {
		HasTariffChanges  bool        `json:"has_tariff_changes"`
		Section301Changes []rawChange `json:"section_301_changes"`
		Section232Changes []rawChange `json:"section_232_changes"`
		ReciprocalChanges []rawChange `json:"reciprocal_changes"`
		Confidence        float64     `json:"confidence"`
		Summary           string      `json:"summary"`
	}

	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v, content: %s", ErrExtractionFailed, err, content)
	}

	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v out of range", ErrExtractionFailed, parsed.Confidence)
	}

	result := &ExtractResult{
		HasTariffChanges: parsed.HasTariffChanges,
		Confidence:       parsed.Confidence,
		Summary:          parsed.Summary,
	}

	if !parsed.HasTariffChanges {
		return result, nil
	}

	appendChanges := func(category string, changes []rawChange) {
		for _, c := range changes {
			if c.HSCode == "" {
				continue
			}
			result.Changes = append(result.Changes, CandidateChange{
				Category:      category,
				HSCode:        c.HSCode,
				NewRate:       c.NewRate,
				PreviousRate:  c.PreviousRate,
				EffectiveDate: c.EffectiveDate,
			})
		}
	}
	appendChanges("section_301", parsed.Section301Changes)
	appendChanges("section_232", parsed.Section232Changes)
	appendChanges("reciprocal", parsed.ReciprocalChanges)

	return result, nil
}
