package match

import (
	"testing"

	"tariffwatch/internal/model"

	"github.com/go-playground/assert/v2"
)

func TestExactProductCodeMatch(t *testing.T) {
	profiles := []model.Subscriber{
		{ID: 1, ProductCodes: []string{"8542.31.00"}},
		{ID: 2, ProductCodes: []string{"0406.10"}, Industry: "agriculture"},
	}

	ids := ResolveAffectedSubscribers(model.Reciprocal, "8542.31.00", profiles)

	assert.Equal(t, []int64{1}, ids)
}

func TestSubComponentPrefixMatch(t *testing.T) {
	// Subscriber tracks the 4-digit heading; the announced code is a
	// sub-component of it.
	profiles := []model.Subscriber{
		{ID: 7, ProductCodes: []string{"8542"}},
	}

	ids := ResolveAffectedSubscribers(model.Reciprocal, "8542.31.00", profiles)

	assert.Equal(t, []int64{7}, ids)
}

func TestIndustryCategoryMatch(t *testing.T) {
	profiles := []model.Subscriber{
		{ID: 3, Industry: "electronics"},
		{ID: 4, Industry: "textiles"},
	}

	ids := ResolveAffectedSubscribers(model.Reciprocal, "8542.31.00", profiles)

	assert.Equal(t, []int64{3}, ids)
}

func TestSection301OriginHeuristic(t *testing.T) {
	profiles := []model.Subscriber{
		{ID: 5, Industry: "furniture", SourcingCountries: []string{"CN", "VN"}},
		{ID: 6, Industry: "furniture", SourcingCountries: []string{"MX"}},
	}

	ids := ResolveAffectedSubscribers(model.Section301, "9403.20.00", profiles)

	assert.Equal(t, []int64{5}, ids)
}

func TestSection232MaterialIndustryHeuristic(t *testing.T) {
	// Section 232 reaches material industries regardless of origin country.
	profiles := []model.Subscriber{
		{ID: 8, Industry: "aluminum", SourcingCountries: []string{"CA"}},
		{ID: 9, Industry: "textiles", SourcingCountries: []string{"CA"}},
	}

	ids := ResolveAffectedSubscribers(model.Section232, "9403.20.00", profiles)

	assert.Equal(t, []int64{8}, ids)
}

func TestUnionDeduplicates(t *testing.T) {
	// Matches tier 1, 2 and 3 all at once; must appear exactly once.
	profiles := []model.Subscriber{
		{ID: 10, ProductCodes: []string{"8542.31.00"}, Industry: "electronics", SourcingCountries: []string{"CN"}},
	}

	ids := ResolveAffectedSubscribers(model.Section301, "8542.31.00", profiles)

	assert.Equal(t, []int64{10}, ids)
}

func TestNoMatch(t *testing.T) {
	profiles := []model.Subscriber{
		{ID: 11, ProductCodes: []string{"0406.10"}, Industry: "agriculture", SourcingCountries: []string{"MX"}},
	}

	ids := ResolveAffectedSubscribers(model.Section301, "9403.20.00", profiles)

	assert.Equal(t, 0, len(ids))
}

func TestDottedAndBareCodesCompareEqual(t *testing.T) {
	profiles := []model.Subscriber{
		{ID: 12, ProductCodes: []string{"85423100"}},
	}

	ids := ResolveAffectedSubscribers(model.Reciprocal, "8542.31.00", profiles)

	assert.Equal(t, []int64{12}, ids)
}
