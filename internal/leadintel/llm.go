package leadintel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const systemPrompt = "You are a real estate lead intelligence analyst. You assess residential properties as acquisition leads using only the evidence provided. Never invent facts: omit any field the evidence does not support. Respond with strict JSON only."

const defaultGeminiModel = "gemini-2.5-pro"

type LLMCaller interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// --- Gemini (default provider) ---

type GeminiGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type GeminiCaller struct {
	model GeminiGenerator
}

type GeminiModelCreator func(ctx context.Context, apiKey, model string) (GeminiGenerator, error)

func defaultGeminiCreator(ctx context.Context, apiKey, modelName string) (GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	m := client.GenerativeModel(modelName)
	// Pinned decoding: identical evidence should produce identical analyses.
	m.SetTemperature(0)
	m.SetTopP(0)
	m.SetTopK(1)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	return m, nil
}

var newGeminiModel GeminiModelCreator = defaultGeminiCreator

func NewGeminiCallerFromEnv(ctx context.Context) (*GeminiCaller, error) {
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY not configured")
	}
	modelName := strings.TrimSpace(os.Getenv("LEADSCOUT_GEMINI_MODEL"))
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	model, err := newGeminiModel(ctx, apiKey, modelName)
	if err != nil {
		return nil, err
	}
	return &GeminiCaller{model: model}, nil
}

func (g *GeminiCaller) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return sb.String(), nil
}

// --- Anthropic (env-selectable alternative) ---

type AnthropicCaller struct {
	messages AnthropicMessager
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...anthropicoption.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(anthropicoption.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

func NewAnthropicCallerFromEnv() (*AnthropicCaller, error) {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	return &AnthropicCaller{messages: newAnthropicClient(apiKey)}, nil
}

func (a *AnthropicCaller) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		MaxTokens:   4096,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// NewCallerFromEnv picks the provider from LEADSCOUT_LLM_PROVIDER
// (gemini by default, anthropic as the alternative).
func NewCallerFromEnv(ctx context.Context) (LLMCaller, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LEADSCOUT_LLM_PROVIDER")))
	switch provider {
	case "", "gemini":
		return NewGeminiCallerFromEnv(ctx)
	case "anthropic":
		return NewAnthropicCallerFromEnv()
	default:
		return nil, fmt.Errorf("unknown LEADSCOUT_LLM_PROVIDER %q", provider)
	}
}

// --- Analysis adapter ---

type PropertyAnalyzer struct {
	caller   LLMCaller
	grounded bool
	timeout  time.Duration
}

func NewPropertyAnalyzer(caller LLMCaller, grounded bool) *PropertyAnalyzer {
	return &PropertyAnalyzer{caller: caller, grounded: grounded, timeout: DefaultAnalysisTimeout}
}

// Analyze runs a single model turn over the evidence context and returns the
// untyped JSON document. The document is structurally checked only for a
// top-level scores object here (and grounding fields when grounded mode is
// on); full validation is the orchestrator's job.
func (a *PropertyAnalyzer) Analyze(ctx context.Context, addr ParsedAddress, evidence string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.caller.GenerateJSON(ctx, buildAnalysisPrompt(addr, evidence, a.grounded))
	if err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedAIResponse)
	}

	clean, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(clean), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAIResponse, err)
	}
	if _, ok := doc["scores"].(map[string]any); !ok {
		return nil, fmt.Errorf("%w: missing top-level scores object", ErrMalformedAIResponse)
	}
	if a.grounded {
		if err := checkGroundedFields(doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (a *PropertyAnalyzer) Grounded() bool {
	return a.grounded
}

func buildAnalysisPrompt(addr ParsedAddress, evidence string, grounded bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess the residential property at %s as an acquisition lead.\n\n", addr.FullAddress)
	b.WriteString("Evidence gathered from web searches:\n\n")
	b.WriteString(evidence)
	b.WriteString("\nRespond with a single JSON object with these fields:\n")
	b.WriteString(`- "scores": object with numeric values 0-100 for "lead_quality", "property_condition", "market_activity", "owner_motivation"` + "\n")
	b.WriteString(`- "details": object with any of "estimated_value", "year_built", "square_footage", "bedrooms", "bathrooms", "last_sale_price", "last_sale_date", "owner_name", "ownership_type", "lien_status", "permit_activity" that the evidence supports; omit the rest` + "\n")
	b.WriteString(`- "pros": array of strings` + "\n")
	b.WriteString(`- "cons": array of strings` + "\n")
	b.WriteString(`- "recommendations": array of strings` + "\n")
	b.WriteString(`- "summary": one-paragraph narrative` + "\n")
	if grounded {
		b.WriteString(`- "sources": array of {"title", "url", "excerpt"} for every source you relied on` + "\n")
		b.WriteString(`- "grounding_metadata": {"total_sources", "verified_claims", "unverified_claims"}` + "\n")
	}
	b.WriteString("\nUse only the evidence above. Do not guess values the evidence does not support.")
	return b.String()
}

// extractJSONObject strips markdown code fences when present; otherwise it
// takes the slice from the first '{' to the last '}'.
func extractJSONObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object found", ErrMalformedAIResponse)
	}
	return s[start : end+1], nil
}

func checkGroundedFields(doc map[string]any) error {
	sources, ok := doc["sources"].([]any)
	if !ok || len(sources) == 0 {
		return fmt.Errorf("%w: grounded response missing sources", ErrMalformedAIResponse)
	}
	for i, item := range sources {
		m, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: sources[%d] is not an object", ErrMalformedAIResponse, i)
		}
		for _, field := range []string{"title", "url", "excerpt"} {
			if s, _ := m[field].(string); strings.TrimSpace(s) == "" {
				return fmt.Errorf("%w: sources[%d] missing %s", ErrMalformedAIResponse, i, field)
			}
		}
	}
	meta, ok := doc["grounding_metadata"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: grounded response missing grounding_metadata", ErrMalformedAIResponse)
	}
	for _, field := range []string{"total_sources", "verified_claims", "unverified_claims"} {
		if _, ok := meta[field].(float64); !ok {
			return fmt.Errorf("%w: grounding_metadata missing numeric %s", ErrMalformedAIResponse, field)
		}
	}
	return nil
}

// ConfidenceFromGrounding derives confidence from the verified-claim ratio.
// The model never reports its own confidence.
func ConfidenceFromGrounding(meta GroundingMetadata) Confidence {
	total := meta.VerifiedClaims + meta.UnverifiedClaims
	if total <= 0 || meta.TotalSources <= 0 {
		return ConfidenceLow
	}
	ratio := float64(meta.VerifiedClaims) / float64(total)
	switch {
	case ratio >= 0.8 && meta.TotalSources >= 3:
		return ConfidenceHigh
	case ratio >= 0.5 || meta.TotalSources >= 2:
		return ConfidenceModerate
	default:
		return ConfidenceLow
	}
}
