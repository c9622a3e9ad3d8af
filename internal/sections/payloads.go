package sections

// Key identifies one independently editable and persistable fragment of an
// offer. Keys are stable: they are used as persistence column mapping and as
// edit-state tracking keys, so they must never be renamed once offers exist.
type Key string

const (
	KeyOfferSetup          Key = "offerSetup"
	KeyProperties          Key = "properties"
	KeyOfferListing        Key = "offerListing"
	KeyPlans               Key = "plans"
	KeyTechnicalConfig     Key = "technicalConfig"
	KeyPreviewAudience     Key = "previewAudience"
	KeyResellCSP           Key = "resellCSP"
	KeySupplementalContent Key = "supplementalContent"
)

// Payload is one section's schema-specific content. Every variant has a
// constructible empty value, so a missing or malformed stored payload is
// always representable without nil checks downstream.
type Payload interface {
	Key() Key
}

type OfferSetup struct {
	Alias         string `json:"alias"`
	SellingOption string `json:"selling_option"` // sell_through_marketplace | listing_only
	TrialEnabled  bool   `json:"trial_enabled"`
}

func (OfferSetup) Key() Key { return KeyOfferSetup }

type Properties struct {
	PrimaryCategory     string   `json:"primary_category"`
	SecondaryCategories []string `json:"secondary_categories"`
	Industries          []string `json:"industries"`
	AppVersion          string   `json:"app_version"`
}

func (Properties) Key() Key { return KeyProperties }

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type ListingURLs struct {
	PrivacyPolicy string `json:"privacy_policy"`
	TermsOfUse    string `json:"terms_of_use"`
}

type ListingMedia struct {
	LogoURL     string   `json:"logo_url"`
	Screenshots []string `json:"screenshots"`
	VideoURL    string   `json:"video_url"`
}

type OfferListing struct {
	Name               string       `json:"name"`
	SearchSummary      string       `json:"search_summary"`
	ShortDescription   string       `json:"short_description"`
	LongDescription    string       `json:"long_description"`
	Features           []string     `json:"features"`
	SupportContact     Contact      `json:"support_contact"`
	EngineeringContact Contact      `json:"engineering_contact"`
	URLs               ListingURLs  `json:"urls"`
	Media              ListingMedia `json:"media"`
}

func (OfferListing) Key() Key { return KeyOfferListing }

type BillingPeriod string

const (
	BillingMonthly BillingPeriod = "month"
	BillingYearly  BillingPeriod = "year"
	BillingOneTime BillingPeriod = "one-time"
)

type Plan struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Price         float64       `json:"price"`
	BillingPeriod BillingPeriod `json:"billing_period"`
	Features      []string      `json:"features"`
	Markets       []string      `json:"markets,omitempty"`
}

// Complete reports whether the plan counts toward readiness: a plan needs a
// name and a non-negative price before it is considered usable.
func (p Plan) Complete() bool {
	return p.Name != "" && p.Price >= 0
}

type Plans struct {
	Items []Plan `json:"items"`
}

func (Plans) Key() Key { return KeyPlans }

type TechnicalConfig struct {
	LandingPageURL    string `json:"landing_page_url"`
	ConnectionWebhook string `json:"connection_webhook"`
	AppID             string `json:"app_id"`
	TenantID          string `json:"tenant_id"`
}

func (TechnicalConfig) Key() Key { return KeyTechnicalConfig }

type PreviewAudience struct {
	Emails []string `json:"emails"`
}

func (PreviewAudience) Key() Key { return KeyPreviewAudience }

type ResellCSP struct {
	Channel  string   `json:"channel"` // no-partners | all-partners | specific-partners
	Partners []string `json:"partners,omitempty"`
}

func (ResellCSP) Key() Key { return KeyResellCSP }

type SupplementalDocument struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type SupplementalContent struct {
	Documents []SupplementalDocument `json:"documents"`
	VideoURLs []string               `json:"video_urls"`
}

func (SupplementalContent) Key() Key { return KeySupplementalContent }

// Document is the full in-memory offer content: all eight sections, always
// present (possibly as empty values). Renderers and the readiness evaluator
// read it; only the review session and the generation callback write it.
type Document struct {
	OfferSetup          OfferSetup
	Properties          Properties
	OfferListing        OfferListing
	Plans               Plans
	TechnicalConfig     TechnicalConfig
	PreviewAudience     PreviewAudience
	ResellCSP           ResellCSP
	SupplementalContent SupplementalContent
}

// Payload returns the section payload stored under key. Unknown keys return
// an empty OfferSetup so callers never receive nil; route-level validation
// is expected to reject unknown keys before this point.
func (d Document) Payload(k Key) Payload {
	switch k {
	case KeyOfferSetup:
		return d.OfferSetup
	case KeyProperties:
		return d.Properties
	case KeyOfferListing:
		return d.OfferListing
	case KeyPlans:
		return d.Plans
	case KeyTechnicalConfig:
		return d.TechnicalConfig
	case KeyPreviewAudience:
		return d.PreviewAudience
	case KeyResellCSP:
		return d.ResellCSP
	case KeySupplementalContent:
		return d.SupplementalContent
	}
	return OfferSetup{}
}

// Apply replaces the section under p.Key() with p. Full replacement, never a
// partial merge.
func (d *Document) Apply(p Payload) {
	switch v := p.(type) {
	case OfferSetup:
		d.OfferSetup = v
	case Properties:
		d.Properties = v
	case OfferListing:
		d.OfferListing = v
	case Plans:
		d.Plans = v
	case TechnicalConfig:
		d.TechnicalConfig = v
	case PreviewAudience:
		d.PreviewAudience = v
	case ResellCSP:
		d.ResellCSP = v
	case SupplementalContent:
		d.SupplementalContent = v
	}
}
