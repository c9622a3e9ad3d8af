package readiness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offerdesk/console-be/internal/sections"
)

// completeDoc has every required field present and valid: sixteen of
// sixteen required checks satisfied.
func completeDoc() sections.Document {
	var d sections.Document
	d.OfferSetup = sections.OfferSetup{Alias: "acme-saas"}
	d.Properties = sections.Properties{PrimaryCategory: "analytics"}
	d.OfferListing = sections.OfferListing{
		Name:             "Acme SaaS",
		SearchSummary:    strings.Repeat("s", 80),
		ShortDescription: strings.Repeat("d", 150),
		LongDescription:  strings.Repeat("l", 250),
		Features:         []string{"dashboards", "alerts", "exports"},
		SupportContact:   sections.Contact{Email: "support@acme.test"},
		EngineeringContact: sections.Contact{
			Email: "eng@acme.test",
		},
		URLs: sections.ListingURLs{
			PrivacyPolicy: "https://acme.test/privacy",
			TermsOfUse:    "https://acme.test/terms",
		},
	}
	d.Plans = sections.Plans{Items: []sections.Plan{
		{Name: "Standard", Price: 49, BillingPeriod: sections.BillingMonthly},
	}}
	d.TechnicalConfig = sections.TechnicalConfig{
		LandingPageURL:    "https://acme.test/landing",
		ConnectionWebhook: "https://acme.test/hook",
		AppID:             "app-123",
		TenantID:          "tenant-456",
	}
	return d
}

func TestEmptyOfferScoresZero(t *testing.T) {
	r := Evaluate(sections.Document{})

	assert.Equal(t, 16, r.RequiredTotal)
	assert.Equal(t, 0, r.RequiredCompleted)
	assert.Equal(t, 0, r.PercentRequired)
	assert.False(t, r.PublishReady())
}

func TestCompleteOfferScoresHundred(t *testing.T) {
	r := Evaluate(completeDoc())

	assert.Equal(t, 16, r.RequiredTotal)
	assert.Equal(t, 16, r.RequiredCompleted)
	assert.Equal(t, 100, r.PercentRequired)
	assert.True(t, r.PublishReady())
}

func TestAnyMissingRequiredFieldBlocksPublish(t *testing.T) {
	mutations := map[string]func(*sections.Document){
		"alias":              func(d *sections.Document) { d.OfferSetup.Alias = "" },
		"listing name":       func(d *sections.Document) { d.OfferListing.Name = "" },
		"search summary":     func(d *sections.Document) { d.OfferListing.SearchSummary = strings.Repeat("s", 49) },
		"short description":  func(d *sections.Document) { d.OfferListing.ShortDescription = strings.Repeat("d", 99) },
		"long description":   func(d *sections.Document) { d.OfferListing.LongDescription = strings.Repeat("l", 199) },
		"primary category":   func(d *sections.Document) { d.Properties.PrimaryCategory = "" },
		"support email":      func(d *sections.Document) { d.OfferListing.SupportContact.Email = "" },
		"engineering email":  func(d *sections.Document) { d.OfferListing.EngineeringContact.Email = "" },
		"privacy policy url": func(d *sections.Document) { d.OfferListing.URLs.PrivacyPolicy = "" },
		"terms of use url":   func(d *sections.Document) { d.OfferListing.URLs.TermsOfUse = "" },
		"landing page url":   func(d *sections.Document) { d.TechnicalConfig.LandingPageURL = "" },
		"connection webhook": func(d *sections.Document) { d.TechnicalConfig.ConnectionWebhook = "" },
		"app id":             func(d *sections.Document) { d.TechnicalConfig.AppID = "" },
		"tenant id":          func(d *sections.Document) { d.TechnicalConfig.TenantID = "" },
		"plans":              func(d *sections.Document) { d.Plans.Items = nil },
		"features":           func(d *sections.Document) { d.OfferListing.Features = []string{"a", "b"} },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			d := completeDoc()
			mutate(&d)
			r := Evaluate(d)
			assert.Equal(t, 15, r.RequiredCompleted)
			assert.Less(t, r.PercentRequired, 100)
			assert.False(t, r.PublishReady())
		})
	}
}

func TestOptionalChecksDoNotGatePublish(t *testing.T) {
	d := completeDoc()
	r := Evaluate(d)
	require.True(t, r.PublishReady())

	// optional checks all unsatisfied yet publish stays enabled
	optionalIncomplete := 0
	for _, item := range r.Items {
		if !item.Required && !item.Completed {
			optionalIncomplete++
		}
	}
	assert.Equal(t, 5, optionalIncomplete)
	assert.Less(t, r.PercentOverall, 100)

	d.Properties.SecondaryCategories = []string{"crm"}
	d.Properties.Industries = []string{"retail"}
	d.Properties.AppVersion = "1.2.0"
	d.PreviewAudience.Emails = []string{"qa@acme.test"}
	d.OfferListing.Media.Screenshots = []string{"https://acme.test/shot.png"}

	r = Evaluate(d)
	assert.Equal(t, 100, r.PercentOverall)
}

func TestInvariants(t *testing.T) {
	docs := []sections.Document{
		{},
		completeDoc(),
	}
	half := completeDoc()
	half.TechnicalConfig = sections.TechnicalConfig{}
	docs = append(docs, half)

	for _, d := range docs {
		r := Evaluate(d)
		assert.LessOrEqual(t, r.RequiredCompleted, r.RequiredTotal)
		assert.GreaterOrEqual(t, r.PercentRequired, 0)
		assert.LessOrEqual(t, r.PercentRequired, 100)
		assert.GreaterOrEqual(t, r.PercentOverall, 0)
		assert.LessOrEqual(t, r.PercentOverall, 100)
	}
}

func TestSearchSummaryBounds(t *testing.T) {
	d := completeDoc()

	d.OfferListing.SearchSummary = strings.Repeat("s", 50)
	assert.True(t, Evaluate(d).PublishReady())

	d.OfferListing.SearchSummary = strings.Repeat("s", 160)
	assert.True(t, Evaluate(d).PublishReady())

	d.OfferListing.SearchSummary = strings.Repeat("s", 161)
	assert.False(t, Evaluate(d).PublishReady())
}
