package leadintel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joelkehle/leadscout/internal/cache"
)

// EvidenceSearcher is what the orchestrator needs from the search adapter.
type EvidenceSearcher interface {
	ComprehensiveSearch(ctx context.Context, addr ParsedAddress) (ComprehensiveResult, error)
}

// Analyzer is what the orchestrator needs from the AI adapter: one untyped
// JSON document per run, or an error.
type Analyzer interface {
	Analyze(ctx context.Context, addr ParsedAddress, evidence string) (map[string]any, error)
	Grounded() bool
}

type Pipeline struct {
	searcher EvidenceSearcher
	analyzer Analyzer
	cache    *cache.Cache[*AnalysisResult]
	logger   *log.Logger
	clock    func() time.Time
}

func NewPipeline(searcher EvidenceSearcher, analyzer Analyzer, c *cache.Cache[*AnalysisResult]) *Pipeline {
	return &Pipeline{
		searcher: searcher,
		analyzer: analyzer,
		cache:    c,
		logger:   log.New(os.Stdout, "leadscout ", log.LstdFlags),
		clock:    time.Now,
	}
}

// Analyze runs the full pipeline for one address: cache lookup, concurrent
// evidence gathering, a single model turn, validation, and assembly of the
// typed result. Topic-level search failures degrade data quality but do not
// stop the run; the run fails hard only when all evidence is missing, the
// model response cannot be parsed or validated, or a provider is down.
// Failed runs are never cached.
func (p *Pipeline) Analyze(ctx context.Context, address string, opts Options) (*AnalysisResult, error) {
	addr := ParseAddress(address, opts)
	key := CacheKey(addr.FullAddress)

	if !opts.SkipCache {
		if cached, ok := p.cache.Get(key); ok {
			p.logger.Printf("analysis cache hit address=%q", addr.FullAddress)
			cp := *cached
			cp.ServedFromCache = true
			return &cp, nil
		}
	}

	p.logger.Printf("analysis start address=%q", addr.FullAddress)
	comp, err := p.searcher.ComprehensiveSearch(ctx, addr)
	if err != nil {
		return nil, newAnalysisError(KindProviderUnavailable, "evidence search failed", err)
	}
	for _, tr := range comp.Topics {
		if tr.Err != nil {
			p.logger.Printf("analysis topic degraded topic=%s err=%v", tr.Topic, tr.Err)
		}
	}
	if len(comp.Documents) == 0 {
		return nil, newAnalysisError(KindNoEvidence, "no usable evidence from any topic search", nil)
	}

	doc, err := p.analyzer.Analyze(ctx, addr, BuildEvidenceContext(comp))
	if err != nil {
		if errors.Is(err, ErrMalformedAIResponse) {
			return nil, newAnalysisError(KindMalformedAIResponse, "model response rejected", err)
		}
		return nil, newAnalysisError(KindProviderUnavailable, "model call failed", err)
	}

	rep := ValidateAnalysisDoc(doc)
	for _, w := range rep.Warnings {
		p.logger.Printf("analysis warning address=%q %s", addr.FullAddress, w)
	}
	if !rep.IsValid {
		detail := describeValidationFailure(rep)
		return nil, newAnalysisError(KindValidationFailed, detail, nil)
	}

	payload, err := decodeAnalysisPayload(doc)
	if err != nil {
		return nil, newAnalysisError(KindMalformedAIResponse, "model response did not decode", err)
	}

	result := p.assembleResult(addr, payload, comp)
	p.cache.Set(key, result, 0)
	p.logger.Printf("analysis complete address=%q id=%s sources=%d", addr.FullAddress, result.ID, len(result.Sources))

	cp := *result
	return &cp, nil
}

// CacheStats exposes the result cache counters for the stats endpoint.
func (p *Pipeline) CacheStats() cache.Stats {
	return p.cache.Stats()
}

func (p *Pipeline) SetLogger(l *log.Logger) {
	if l != nil {
		p.logger = l
	}
}

// decodeAnalysisPayload round-trips the already-validated document through
// encoding/json into the typed payload.
func decodeAnalysisPayload(doc map[string]any) (analysisPayload, error) {
	var payload analysisPayload
	blob, err := json.Marshal(doc)
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal(blob, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func (p *Pipeline) assembleResult(addr ParsedAddress, payload analysisPayload, comp ComprehensiveResult) *AnalysisResult {
	now := p.clock().UTC()
	res := &AnalysisResult{
		ID:              uuid.NewString(),
		Address:         addr,
		Scores:          payload.Scores,
		Details:         payload.Details,
		Pros:            emptyIfNil(payload.Pros),
		Cons:            emptyIfNil(payload.Cons),
		Recommendations: emptyIfNil(payload.Recommendations),
		Summary:         payload.Summary,
		Sources:         append([]EvidenceDocument{}, comp.Documents...),
		Grounding:       payload.Grounding,
		AnalyzedAt:      now,
	}
	res.DataQuality = buildDataQuality(payload, comp, p.analyzer.Grounded())
	return res
}

func buildDataQuality(payload analysisPayload, comp ComprehensiveResult, grounded bool) DataQuality {
	failed := comp.FailedTopics()
	missing := missingDetailFields(payload.Details)

	score := 100.0
	score -= 15 * float64(len(failed))
	score -= 4 * float64(len(missing))
	if score < 0 {
		score = 0
	}

	dq := DataQuality{
		Score:         score,
		SourceCount:   len(comp.Documents),
		FailedTopics:  failed,
		MissingFields: missing,
	}
	switch {
	case grounded && payload.Grounding != nil:
		dq.Confidence = ConfidenceFromGrounding(*payload.Grounding)
	case score >= 80:
		dq.Confidence = ConfidenceHigh
	case score >= 50:
		dq.Confidence = ConfidenceModerate
	default:
		dq.Confidence = ConfidenceLow
	}
	return dq
}

func missingDetailFields(d PropertyDetails) []string {
	var out []string
	if d.EstimatedValue == nil {
		out = append(out, "estimated_value")
	}
	if d.YearBuilt == nil {
		out = append(out, "year_built")
	}
	if d.SquareFootage == nil {
		out = append(out, "square_footage")
	}
	if d.Bedrooms == nil {
		out = append(out, "bedrooms")
	}
	if d.Bathrooms == nil {
		out = append(out, "bathrooms")
	}
	if d.LastSalePrice == nil {
		out = append(out, "last_sale_price")
	}
	if d.LastSaleDate == nil {
		out = append(out, "last_sale_date")
	}
	if d.OwnerName == nil {
		out = append(out, "owner_name")
	}
	if d.OwnershipType == nil {
		out = append(out, "ownership_type")
	}
	if d.LienStatus == nil {
		out = append(out, "lien_status")
	}
	if d.PermitActivity == nil {
		out = append(out, "permit_activity")
	}
	return out
}

func describeValidationFailure(rep ValidationReport) string {
	parts := []string{}
	if len(rep.MissingFields) > 0 {
		parts = append(parts, "missing "+strings.Join(rep.MissingFields, ", "))
	}
	if len(rep.InvalidFields) > 0 {
		parts = append(parts, "invalid "+strings.Join(rep.InvalidFields, ", "))
	}
	if len(parts) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
