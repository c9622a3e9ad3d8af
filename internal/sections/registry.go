package sections

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// NotSet is the placeholder rendered for any absent field. Absence of a field
// is a valid, expected state, not an error.
const NotSet = "Not set"

type entry struct {
	label        string
	empty        func() Payload
	decode       func([]byte) (Payload, bool)
	decodeStrict func([]byte) (Payload, error)
	view         func(Payload) map[string]any
}

func decodeAs[T Payload](raw []byte) (Payload, bool) {
	var v T
	if len(raw) == 0 {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		// malformed stored payload degrades to the empty value
		var zero T
		return zero, false
	}
	return v, true
}

func decodeStrictAs[T Payload](raw []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var registry = map[Key]entry{
	KeyOfferSetup: {
		label:        "Offer setup",
		empty:        func() Payload { return OfferSetup{} },
		decode:       decodeAs[OfferSetup],
		decodeStrict: decodeStrictAs[OfferSetup],
		view:         viewOfferSetup,
	},
	KeyProperties: {
		label:        "Properties",
		empty:        func() Payload { return Properties{} },
		decode:       decodeAs[Properties],
		decodeStrict: decodeStrictAs[Properties],
		view:         viewProperties,
	},
	KeyOfferListing: {
		label:        "Offer listing",
		empty:        func() Payload { return OfferListing{} },
		decode:       decodeAs[OfferListing],
		decodeStrict: decodeStrictAs[OfferListing],
		view:         viewOfferListing,
	},
	KeyPlans: {
		label:        "Plans and pricing",
		empty:        func() Payload { return Plans{} },
		decode:       decodeAs[Plans],
		decodeStrict: decodeStrictAs[Plans],
		view:         viewPlans,
	},
	KeyTechnicalConfig: {
		label:        "Technical configuration",
		empty:        func() Payload { return TechnicalConfig{} },
		decode:       decodeAs[TechnicalConfig],
		decodeStrict: decodeStrictAs[TechnicalConfig],
		view:         viewTechnicalConfig,
	},
	KeyPreviewAudience: {
		label:        "Preview audience",
		empty:        func() Payload { return PreviewAudience{} },
		decode:       decodeAs[PreviewAudience],
		decodeStrict: decodeStrictAs[PreviewAudience],
		view:         viewPreviewAudience,
	},
	KeyResellCSP: {
		label:        "Resell through CSPs",
		empty:        func() Payload { return ResellCSP{} },
		decode:       decodeAs[ResellCSP],
		decodeStrict: decodeStrictAs[ResellCSP],
		view:         viewResellCSP,
	},
	KeySupplementalContent: {
		label:        "Supplemental content",
		empty:        func() Payload { return SupplementalContent{} },
		decode:       decodeAs[SupplementalContent],
		decodeStrict: decodeStrictAs[SupplementalContent],
		view:         viewSupplementalContent,
	},
}

// orderedKeys is the fixed display and persistence order of sections.
var orderedKeys = []Key{
	KeyOfferSetup,
	KeyProperties,
	KeyOfferListing,
	KeyPlans,
	KeyTechnicalConfig,
	KeyPreviewAudience,
	KeyResellCSP,
	KeySupplementalContent,
}

// Keys returns the section keys in their fixed order.
func Keys() []Key {
	out := make([]Key, len(orderedKeys))
	copy(out, orderedKeys)
	return out
}

// Valid reports whether k names a registered section.
func Valid(k Key) bool {
	_, ok := registry[k]
	return ok
}

// Label returns the human-readable section title.
func Label(k Key) string {
	if e, ok := registry[k]; ok {
		return e.label
	}
	return string(k)
}

// Empty returns the constructible empty payload for k.
func Empty(k Key) Payload {
	if e, ok := registry[k]; ok {
		return e.empty()
	}
	return OfferSetup{}
}

// Decode parses a stored raw payload for k. Nil, empty and malformed input
// all yield the empty value with ok=false; Decode never returns an error.
func Decode(k Key, raw datatypes.JSON) (Payload, bool) {
	e, ok := registry[k]
	if !ok {
		return OfferSetup{}, false
	}
	return e.decode(raw)
}

// DecodeRequest parses a client-submitted payload for k. Unlike Decode this
// is strict: a request body that does not match the section schema is a
// client error, not an empty section.
func DecodeRequest(k Key, raw []byte) (Payload, error) {
	e, ok := registry[k]
	if !ok {
		return nil, fmt.Errorf("unknown section %q", k)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty payload for section %q", k)
	}
	p, err := e.decodeStrict(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid payload for section %q: %w", k, err)
	}
	return p, nil
}

// Encode serializes a payload for storage under its own key.
func Encode(p Payload) (datatypes.JSON, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode section %s: %w", p.Key(), err)
	}
	return datatypes.JSON(b), nil
}

// View renders a read-only view model for the payload stored under k.
// Pure function of its input: no side effects, no I/O.
func View(k Key, p Payload) map[string]any {
	e, ok := registry[k]
	if !ok || p == nil {
		return map[string]any{}
	}
	return e.view(p)
}

func orNotSet(s string) string {
	if s == "" {
		return NotSet
	}
	return s
}

func listOrEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func viewOfferSetup(p Payload) map[string]any {
	v, _ := p.(OfferSetup)
	return map[string]any{
		"alias":          orNotSet(v.Alias),
		"selling_option": orNotSet(v.SellingOption),
		"trial_enabled":  v.TrialEnabled,
	}
}

func viewProperties(p Payload) map[string]any {
	v, _ := p.(Properties)
	return map[string]any{
		"primary_category":     orNotSet(v.PrimaryCategory),
		"secondary_categories": listOrEmpty(v.SecondaryCategories),
		"industries":           listOrEmpty(v.Industries),
		"app_version":          orNotSet(v.AppVersion),
	}
}

func viewContact(c Contact) map[string]any {
	return map[string]any{
		"name":  orNotSet(c.Name),
		"email": orNotSet(c.Email),
		"phone": orNotSet(c.Phone),
	}
}

func viewOfferListing(p Payload) map[string]any {
	v, _ := p.(OfferListing)
	return map[string]any{
		"name":                orNotSet(v.Name),
		"search_summary":      orNotSet(v.SearchSummary),
		"short_description":   orNotSet(v.ShortDescription),
		"long_description":    orNotSet(v.LongDescription),
		"features":            listOrEmpty(v.Features),
		"support_contact":     viewContact(v.SupportContact),
		"engineering_contact": viewContact(v.EngineeringContact),
		"privacy_policy_url":  orNotSet(v.URLs.PrivacyPolicy),
		"terms_of_use_url":    orNotSet(v.URLs.TermsOfUse),
		"logo_url":            orNotSet(v.Media.LogoURL),
		"screenshots":         listOrEmpty(v.Media.Screenshots),
		"video_url":           orNotSet(v.Media.VideoURL),
	}
}

func viewPlans(p Payload) map[string]any {
	v, _ := p.(Plans)
	items := make([]map[string]any, 0, len(v.Items))
	for _, pl := range v.Items {
		items = append(items, map[string]any{
			"name":           orNotSet(pl.Name),
			"description":    orNotSet(pl.Description),
			"price":          pl.Price,
			"billing_period": orNotSet(string(pl.BillingPeriod)),
			"features":       listOrEmpty(pl.Features),
			"markets":        listOrEmpty(pl.Markets),
		})
	}
	return map[string]any{"items": items}
}

func viewTechnicalConfig(p Payload) map[string]any {
	v, _ := p.(TechnicalConfig)
	return map[string]any{
		"landing_page_url":   orNotSet(v.LandingPageURL),
		"connection_webhook": orNotSet(v.ConnectionWebhook),
		"app_id":             orNotSet(v.AppID),
		"tenant_id":          orNotSet(v.TenantID),
	}
}

func viewPreviewAudience(p Payload) map[string]any {
	v, _ := p.(PreviewAudience)
	return map[string]any{"emails": listOrEmpty(v.Emails)}
}

func viewResellCSP(p Payload) map[string]any {
	v, _ := p.(ResellCSP)
	return map[string]any{
		"channel":  orNotSet(v.Channel),
		"partners": listOrEmpty(v.Partners),
	}
}

func viewSupplementalContent(p Payload) map[string]any {
	v, _ := p.(SupplementalContent)
	docs := make([]map[string]any, 0, len(v.Documents))
	for _, d := range v.Documents {
		docs = append(docs, map[string]any{
			"name": orNotSet(d.Name),
			"url":  orNotSet(d.URL),
		})
	}
	return map[string]any{
		"documents":  docs,
		"video_urls": listOrEmpty(v.VideoURLs),
	}
}
