// Package taxonomy defines the closed catalog of company facts the dialogue
// must gather, and the heuristic detector that decides which of them a
// free-text answer history already covers.
package taxonomy

// Category is one required fact about the company being profiled.
type Category struct {
	Name           string
	ExampleAnswers []string
}

// Canonical category names.
const (
	CompanySize   = "Company size/employee count"
	Industry      = "Industry/business type"
	AnnualRevenue = "Annual revenue"
	RiskProfile   = "Risk profile/concerns"
	Budget        = "Budget constraints"
	Country       = "Country of the company"
	CryptoNeeds   = "Crypto coverage needs"
	GracePeriod   = "Preferred grace period (days) for new subsidiary cover"
)

var categories = []Category{
	{
		Name:           CompanySize,
		ExampleAnswers: []string{"Small (1-50 employees)", "Medium (51-250 employees)", "Large (251-1000 employees)", "Enterprise (1001+ employees)"},
	},
	{
		Name:           Industry,
		ExampleAnswers: []string{"Technology", "Finance", "Manufacturing", "Retail", "Healthcare", "Other"},
	},
	{
		Name:           AnnualRevenue,
		ExampleAnswers: []string{"< $1M", "$1M - $5M", "$5M - $25M", "$25M - $100M", "> $100M"},
	},
	{
		Name:           RiskProfile,
		ExampleAnswers: []string{"Cyberattacks/Data Breaches", "Regulatory Investigations", "Employment Disputes", "Securities Claims", "Environmental Issues", "Other"},
	},
	{
		Name:           Budget,
		ExampleAnswers: []string{"< $10K", "$10K - $50K", "$50K - $100K", "$100K - $500K", "> $500K"},
	},
	{
		Name:           Country,
		ExampleAnswers: []string{"Hong Kong", "United States", "United Kingdom", "Canada", "Other Non-US", "Other US Territory"},
	},
	{
		Name:           CryptoNeeds,
		ExampleAnswers: []string{"Yes", "No", "Maybe"},
	},
	{
		Name:           GracePeriod,
		ExampleAnswers: []string{"30 days", "60 days", "90 days", "No preference"},
	},
}

// All returns the full catalog in canonical order. The returned slice is a
// copy; the catalog itself is immutable.
func All() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ExampleAnswers returns the suggested answers for the named category, or
// nil for an unknown name.
func ExampleAnswers(name string) []string {
	for _, c := range categories {
		if c.Name == name {
			out := make([]string, len(c.ExampleAnswers))
			copy(out, c.ExampleAnswers)
			return out
		}
	}
	return nil
}

// Names returns the canonical category names in order.
func Names() []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = c.Name
	}
	return out
}
