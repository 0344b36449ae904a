package leadintel

import "time"

const (
	DefaultSearchTimeout   = 30 * time.Second
	DefaultAnalysisTimeout = 60 * time.Second
)

// Topic identifiers for the evidence-gathering fan-out. Order here is the
// order sections appear in the merged evidence context.
const (
	TopicListings        = "listings"
	TopicMarketData      = "market_data"
	TopicNeighborhood    = "neighborhood"
	TopicComparableSales = "comparable_sales"
)

var evidenceTopics = []string{TopicListings, TopicMarketData, TopicNeighborhood, TopicComparableSales}

// RequiredScoreDimensions must all be present in a model response for it to
// be accepted. Additional dimensions are allowed and range-checked the same way.
var RequiredScoreDimensions = []string{"lead_quality", "property_condition", "market_activity", "owner_motivation"}

type ParsedAddress struct {
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code,omitempty"`
	FullAddress string `json:"full_address"`
}

type EvidenceDocument struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	ContentSnippet string  `json:"content_snippet"`
	RelevanceScore float64 `json:"relevance_score"`
	SourceDomain   string  `json:"source_domain"`
	Topic          string  `json:"topic,omitempty"`
}

type Confidence string

const (
	ConfidenceLow      Confidence = "low"
	ConfidenceModerate Confidence = "moderate"
	ConfidenceHigh     Confidence = "high"
)

type DataQuality struct {
	Score         float64    `json:"score"`
	Confidence    Confidence `json:"confidence"`
	SourceCount   int        `json:"source_count"`
	FailedTopics  []string   `json:"failed_topics,omitempty"`
	MissingFields []string   `json:"missing_fields,omitempty"`
}

// PropertyDetails holds the facts the model could extract from evidence.
// Every field is optional: absence means the evidence did not support a
// value, never that a default was substituted.
type PropertyDetails struct {
	EstimatedValue *float64 `json:"estimated_value,omitempty"`
	YearBuilt      *int     `json:"year_built,omitempty"`
	SquareFootage  *int     `json:"square_footage,omitempty"`
	Bedrooms       *int     `json:"bedrooms,omitempty"`
	Bathrooms      *float64 `json:"bathrooms,omitempty"`
	LastSalePrice  *float64 `json:"last_sale_price,omitempty"`
	LastSaleDate   *string  `json:"last_sale_date,omitempty"`
	OwnerName      *string  `json:"owner_name,omitempty"`
	OwnershipType  *string  `json:"ownership_type,omitempty"`
	LienStatus     *string  `json:"lien_status,omitempty"`
	PermitActivity *string  `json:"permit_activity,omitempty"`
}

type GroundingMetadata struct {
	TotalSources     int `json:"total_sources"`
	VerifiedClaims   int `json:"verified_claims"`
	UnverifiedClaims int `json:"unverified_claims"`
}

type AnalysisResult struct {
	ID              string             `json:"id"`
	Address         ParsedAddress      `json:"address"`
	Scores          map[string]float64 `json:"scores"`
	Details         PropertyDetails    `json:"details"`
	Pros            []string           `json:"pros"`
	Cons            []string           `json:"cons"`
	Recommendations []string           `json:"recommendations"`
	Summary         string             `json:"summary"`
	Sources         []EvidenceDocument `json:"sources"`
	DataQuality     DataQuality        `json:"data_quality"`
	Grounding       *GroundingMetadata `json:"grounding,omitempty"`
	AnalyzedAt      time.Time          `json:"analyzed_at"`
	ServedFromCache bool               `json:"served_from_cache"`
}

// Options adjusts a single analysis run. City/State/ZipCode override whatever
// the address parser extracts; SkipCache forces a fresh run without consulting
// or bypassing the write side of the cache.
type Options struct {
	City      string
	State     string
	ZipCode   string
	SkipCache bool
}

// analysisPayload is the shape the model is asked to produce. The orchestrator
// validates the untyped document first, then decodes into this.
type analysisPayload struct {
	Scores          map[string]float64 `json:"scores"`
	Details         PropertyDetails    `json:"details"`
	Pros            []string           `json:"pros"`
	Cons            []string           `json:"cons"`
	Recommendations []string           `json:"recommendations"`
	Summary         string             `json:"summary"`
	Sources         []groundedSource   `json:"sources,omitempty"`
	Grounding       *GroundingMetadata `json:"grounding_metadata,omitempty"`
}

type groundedSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
}
