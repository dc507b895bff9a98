package model

import "time"

// TariffCategory is a closed set. Every component that branches on a
// category does so through CategoryRules, never on raw strings.
type TariffCategory string

const (
	Section301 TariffCategory = "section_301"
	Section232 TariffCategory = "section_232"
	Reciprocal TariffCategory = "reciprocal"
)

func (c TariffCategory) Valid() bool {
	_, ok := CategoryRules[c]
	return ok
}

// CategoryRule maps a tariff category to the heuristics the subscriber
// matcher applies for it. OriginCountry matches subscribers sourcing from
// that country; MaterialIndustries matches subscribers in those industries
// regardless of country.
type CategoryRule struct {
	Label              string
	OriginCountry      string
	MaterialIndustries []string
}

var CategoryRules = map[TariffCategory]CategoryRule{
	Section301: {
		Label:         "Section 301",
		OriginCountry: "CN",
	},
	Section232: {
		Label:              "Section 232",
		MaterialIndustries: []string{"steel", "aluminum", "metals", "construction"},
	},
	Reciprocal: {
		Label: "Reciprocal",
	},
}

// IndustryPrefixes maps HS chapter/heading prefixes to industry tags.
// Longest prefix wins.
var IndustryPrefixes = map[string]string{
	"84": "machinery",
	"85": "electronics",
	"8703": "automotive",
	"8708": "automotive",
	"8711": "automotive",
	"61": "textiles",
	"62": "textiles",
	"52": "textiles",
	"02": "agriculture",
	"04": "agriculture",
	"10": "agriculture",
	"17": "agriculture",
	"44": "wood_products",
	"27": "energy",
	"29": "chemicals",
	"39": "chemicals",
	"72": "steel",
	"73": "steel",
	"76": "aluminum",
}

// IndustryForCode resolves the industry tag for an HS code, longest
// matching prefix first. Empty string when no prefix matches.
func IndustryForCode(hsCode string) string {
	code := NormalizeHSCode(hsCode)
	for l := 4; l >= 2; l -= 2 {
		if len(code) < l {
			continue
		}
		if industry, ok := IndustryPrefixes[code[:l]]; ok {
			return industry
		}
	}
	return ""
}

// NormalizeHSCode strips dots so "8542.31.00" and "85423100" compare equal.
func NormalizeHSCode(hsCode string) string {
	out := make([]byte, 0, len(hsCode))
	for i := 0; i < len(hsCode); i++ {
		if hsCode[i] != '.' && hsCode[i] != ' ' {
			out = append(out, hsCode[i])
		}
	}
	return string(out)
}

type PendingChangeRecord struct {
	ID              int64
	HSCode          string
	Category        TariffCategory
	OldRate         float64
	NewRate         float64
	EffectiveDate   time.Time
	Confidence      float64
	AffectedCount   int
	SourceItemID    int64
	Summary         string
	Processed       bool
	CreatedAt       time.Time
}

type RateCacheEntry struct {
	ID          int64
	HSCode      string
	Category    TariffCategory
	Rate        float64
	Source      string
	Verified    bool
	LastUpdated time.Time
}
