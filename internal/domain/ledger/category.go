package ledger

import "strings"

// Category labels derived from the item description
const (
	CategoryTransportation = "Transportation"
	CategorySurvey         = "Survey"
	CategorySiteEngineer   = "Site Engineer"
	CategoryService        = "Service"
	CategoryTBD            = "TBD"
)

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryTransportation, []string{"transport", "logistic", "freight", "delivery"}},
	{CategorySurvey, []string{"survey", "tssr"}},
	{CategorySiteEngineer, []string{"site engineer", "site eng", "field engineer"}},
	{CategoryService, []string{"service", "install", "zone"}},
}

// Classify derives the category label of an item description. Groups are
// checked in order and the first hit wins.
func Classify(description string) string {
	d := strings.ToLower(strings.TrimSpace(description))
	if d == "" {
		return CategoryTBD
	}
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(d, kw) {
				return group.category
			}
		}
	}
	return CategoryTBD
}
