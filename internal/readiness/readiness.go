package readiness

import (
	"math"

	"github.com/offerdesk/console-be/internal/sections"
)

// Check is one entry of the derived readiness checklist. Never persisted,
// always recomputed from the current in-memory offer document.
type Check struct {
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
	Required  bool   `json:"required"`
}

// Report is the result of evaluating an offer document against the fixed
// checklist. PercentRequired at 100 is the hard gate for publishing.
type Report struct {
	Items             []Check `json:"items"`
	RequiredTotal     int     `json:"required_total"`
	RequiredCompleted int     `json:"required_completed"`
	PercentRequired   int     `json:"percent_required"`
	PercentOverall    int     `json:"percent_overall"`
}

// PublishReady reports whether every required check is satisfied.
func (r Report) PublishReady() bool {
	return r.RequiredTotal > 0 && r.RequiredCompleted == r.RequiredTotal
}

type rule struct {
	label    string
	required bool
	check    func(sections.Document) bool
}

func lenBetween(s string, min, max int) bool {
	return len(s) >= min && len(s) <= max
}

// checklist is the fixed, ordered set of readiness rules. Sixteen required,
// five optional.
var checklist = []rule{
	{"Alias is set", true, func(d sections.Document) bool {
		return d.OfferSetup.Alias != ""
	}},
	{"Listing name is set", true, func(d sections.Document) bool {
		return d.OfferListing.Name != ""
	}},
	{"Search summary is 50-160 characters", true, func(d sections.Document) bool {
		return lenBetween(d.OfferListing.SearchSummary, 50, 160)
	}},
	{"Short description is at least 100 characters", true, func(d sections.Document) bool {
		return len(d.OfferListing.ShortDescription) >= 100
	}},
	{"Long description is at least 200 characters", true, func(d sections.Document) bool {
		return len(d.OfferListing.LongDescription) >= 200
	}},
	{"Primary category is set", true, func(d sections.Document) bool {
		return d.Properties.PrimaryCategory != ""
	}},
	{"Support contact email is set", true, func(d sections.Document) bool {
		return d.OfferListing.SupportContact.Email != ""
	}},
	{"Engineering contact email is set", true, func(d sections.Document) bool {
		return d.OfferListing.EngineeringContact.Email != ""
	}},
	{"Privacy policy URL is set", true, func(d sections.Document) bool {
		return d.OfferListing.URLs.PrivacyPolicy != ""
	}},
	{"Terms of use URL is set", true, func(d sections.Document) bool {
		return d.OfferListing.URLs.TermsOfUse != ""
	}},
	{"Landing page URL is set", true, func(d sections.Document) bool {
		return d.TechnicalConfig.LandingPageURL != ""
	}},
	{"Connection webhook is set", true, func(d sections.Document) bool {
		return d.TechnicalConfig.ConnectionWebhook != ""
	}},
	{"Application ID is set", true, func(d sections.Document) bool {
		return d.TechnicalConfig.AppID != ""
	}},
	{"Tenant ID is set", true, func(d sections.Document) bool {
		return d.TechnicalConfig.TenantID != ""
	}},
	{"At least one pricing plan", true, func(d sections.Document) bool {
		return len(d.Plans.Items) >= 1
	}},
	{"At least three listing features", true, func(d sections.Document) bool {
		return len(d.OfferListing.Features) >= 3
	}},

	{"Secondary categories selected", false, func(d sections.Document) bool {
		return len(d.Properties.SecondaryCategories) > 0
	}},
	{"Industries selected", false, func(d sections.Document) bool {
		return len(d.Properties.Industries) > 0
	}},
	{"App version is set", false, func(d sections.Document) bool {
		return d.Properties.AppVersion != ""
	}},
	{"Preview audience has members", false, func(d sections.Document) bool {
		return len(d.PreviewAudience.Emails) > 0
	}},
	{"At least one screenshot", false, func(d sections.Document) bool {
		return len(d.OfferListing.Media.Screenshots) > 0
	}},
}

// Evaluate runs the fixed checklist against doc. Pure: it never mutates the
// document and has no I/O.
func Evaluate(doc sections.Document) Report {
	r := Report{Items: make([]Check, 0, len(checklist))}
	completedAll := 0
	for _, rule := range checklist {
		ok := rule.check(doc)
		r.Items = append(r.Items, Check{
			Label:     rule.label,
			Completed: ok,
			Required:  rule.required,
		})
		if rule.required {
			r.RequiredTotal++
			if ok {
				r.RequiredCompleted++
			}
		}
		if ok {
			completedAll++
		}
	}
	r.PercentRequired = percent(r.RequiredCompleted, r.RequiredTotal)
	r.PercentOverall = percent(completedAll, len(r.Items))
	return r
}

func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
