package match

import (
	"strings"

	"tariffwatch/internal/model"
)

// ResolveAffectedSubscribers returns the ids of every subscriber whose
// profile matches the change, deduplicated, in profile order. The same
// matcher backs the crisis fast path, the detector's affected count and
// the digest fan-out; the three call sites must never diverge.
//
// A subscriber matches when any tier holds:
//  1. exact: the profile lists the product code, or lists a code the
//     announced code is a sub-component of;
//  2. category: the code's HS prefix maps to the profile's industry;
//  3. per-category heuristic: origin country or material industry from
//     the shared CategoryRules table.
func ResolveAffectedSubscribers(category model.TariffCategory, productCode string, profiles []model.Subscriber) []int64 {
	rule := model.CategoryRules[category]
	industry := model.IndustryForCode(productCode)
	code := model.NormalizeHSCode(productCode)

	var ids []int64
	seen := make(map[int64]bool)

	for _, sub := range profiles {
		if seen[sub.ID] {
			continue
		}
		if matchesExact(code, sub) || matchesIndustry(industry, sub) || matchesHeuristic(rule, sub) {
			seen[sub.ID] = true
			ids = append(ids, sub.ID)
		}
	}

	return ids
}

func matchesExact(code string, sub model.Subscriber) bool {
	for _, tracked := range sub.ProductCodes {
		t := model.NormalizeHSCode(tracked)
		if t == "" {
			continue
		}
		if t == code || strings.HasPrefix(code, t) {
			return true
		}
	}
	return false
}

func matchesIndustry(industry string, sub model.Subscriber) bool {
	return industry != "" && strings.EqualFold(sub.Industry, industry)
}

func matchesHeuristic(rule model.CategoryRule, sub model.Subscriber) bool {
	if rule.OriginCountry != "" {
		for _, country := range sub.SourcingCountries {
			if strings.EqualFold(country, rule.OriginCountry) {
				return true
			}
		}
	}
	for _, industry := range rule.MaterialIndustries {
		if strings.EqualFold(sub.Industry, industry) {
			return true
		}
	}
	return false
}
