package export

import (
	"strconv"

	"github.com/mbolis/merchant-survey/model"
)

// Filter selects responses by exact category and/or merchant name.
// Zero fields match everything.
type Filter struct {
	Category     string
	MerchantName string
}

func (f Filter) Match(r model.SurveyResponse) bool {
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.MerchantName != "" && r.MerchantName != f.MerchantName {
		return false
	}
	return true
}

func (f Filter) Apply(responses []model.SurveyResponse) []model.SurveyResponse {
	if f == (Filter{}) {
		return responses
	}
	out := []model.SurveyResponse{}
	for _, r := range responses {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Scope names the filtered set for file names: all, category_<x>,
// merchant_<x>, or both joined.
func (f Filter) Scope() string {
	switch {
	case f.Category != "" && f.MerchantName != "":
		return "category_" + Slug(f.Category) + "_merchant_" + Slug(f.MerchantName)
	case f.Category != "":
		return "category_" + Slug(f.Category)
	case f.MerchantName != "":
		return "merchant_" + Slug(f.MerchantName)
	}
	return "all"
}

// ResponseScope names a single response export.
func ResponseScope(id int64) string {
	return "response_" + strconv.FormatInt(id, 10)
}
