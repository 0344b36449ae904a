package leadintel

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeCaller struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCaller) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

const validModelJSON = `{
	"scores": {"lead_quality": 72, "property_condition": 64, "market_activity": 81, "owner_motivation": 55},
	"details": {"estimated_value": 310000, "year_built": 1987},
	"pros": ["strong market"],
	"cons": ["older roof"],
	"recommendations": ["order inspection"],
	"summary": "Solid lead."
}`

func TestExtractJSONObjectFenced(t *testing.T) {
	out, err := extractJSONObject("```json\n{\"scores\":{}}\n```")
	if err != nil {
		t.Fatal(err)
	}
	if out != `{"scores":{}}` {
		t.Fatalf("unexpected extraction %q", out)
	}
}

func TestExtractJSONObjectBraceSlice(t *testing.T) {
	out, err := extractJSONObject("Here is the analysis: {\"scores\":{}} hope that helps")
	if err != nil {
		t.Fatal(err)
	}
	if out != `{"scores":{}}` {
		t.Fatalf("unexpected extraction %q", out)
	}
}

func TestExtractJSONObjectProseFails(t *testing.T) {
	_, err := extractJSONObject("I could not find anything about this property.")
	if !errors.Is(err, ErrMalformedAIResponse) {
		t.Fatalf("expected ErrMalformedAIResponse, got %v", err)
	}
}

func TestAnalyzeParsesFencedResponse(t *testing.T) {
	caller := &fakeCaller{response: "```json\n" + validModelJSON + "\n```"}
	a := NewPropertyAnalyzer(caller, false)
	doc, err := a.Analyze(context.Background(), testAddress(), "## Property Listings\n- x\n")
	if err != nil {
		t.Fatal(err)
	}
	scores, ok := doc["scores"].(map[string]any)
	if !ok {
		t.Fatal("expected scores object")
	}
	if scores["lead_quality"] != 72.0 {
		t.Fatalf("expected lead_quality 72, got %v", scores["lead_quality"])
	}
	if len(caller.prompts) != 1 || !strings.Contains(caller.prompts[0], "123 Main St, Springfield, IL 62704") {
		t.Fatal("expected address in prompt")
	}
}

func TestAnalyzeRejectsMissingScores(t *testing.T) {
	caller := &fakeCaller{response: `{"summary":"hello"}`}
	a := NewPropertyAnalyzer(caller, false)
	_, err := a.Analyze(context.Background(), testAddress(), "evidence")
	if !errors.Is(err, ErrMalformedAIResponse) {
		t.Fatalf("expected ErrMalformedAIResponse, got %v", err)
	}
}

func TestAnalyzeRejectsEmptyResponse(t *testing.T) {
	caller := &fakeCaller{response: "   "}
	a := NewPropertyAnalyzer(caller, false)
	_, err := a.Analyze(context.Background(), testAddress(), "evidence")
	if !errors.Is(err, ErrMalformedAIResponse) {
		t.Fatalf("expected ErrMalformedAIResponse, got %v", err)
	}
}

func TestAnalyzePassesTransportErrorThrough(t *testing.T) {
	transport := errors.New("status code: 503")
	caller := &fakeCaller{err: transport}
	a := NewPropertyAnalyzer(caller, false)
	_, err := a.Analyze(context.Background(), testAddress(), "evidence")
	if !errors.Is(err, transport) {
		t.Fatalf("expected transport error passthrough, got %v", err)
	}
	if errors.Is(err, ErrMalformedAIResponse) {
		t.Fatal("transport failure must not classify as malformed")
	}
}

func TestAnalyzeGroundedRequiresSources(t *testing.T) {
	caller := &fakeCaller{response: validModelJSON}
	a := NewPropertyAnalyzer(caller, true)
	_, err := a.Analyze(context.Background(), testAddress(), "evidence")
	if !errors.Is(err, ErrMalformedAIResponse) {
		t.Fatalf("expected grounded rejection, got %v", err)
	}
}

func TestAnalyzeGroundedAcceptsCompleteResponse(t *testing.T) {
	grounded := strings.TrimSuffix(strings.TrimSpace(validModelJSON), "}") + `,
	"sources": [{"title": "Listing", "url": "https://example.com", "excerpt": "3 bed"}],
	"grounding_metadata": {"total_sources": 3, "verified_claims": 5, "unverified_claims": 1}
}`
	caller := &fakeCaller{response: grounded}
	a := NewPropertyAnalyzer(caller, true)
	doc, err := a.Analyze(context.Background(), testAddress(), "evidence")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc["grounding_metadata"].(map[string]any); !ok {
		t.Fatal("expected grounding_metadata preserved")
	}
	if !strings.Contains(caller.prompts[0], "grounding_metadata") {
		t.Fatal("expected grounded instructions in prompt")
	}
}

func TestAnalyzeGroundedRejectsSourceMissingURL(t *testing.T) {
	grounded := strings.TrimSuffix(strings.TrimSpace(validModelJSON), "}") + `,
	"sources": [{"title": "Listing", "excerpt": "3 bed"}],
	"grounding_metadata": {"total_sources": 1, "verified_claims": 1, "unverified_claims": 0}
}`
	caller := &fakeCaller{response: grounded}
	a := NewPropertyAnalyzer(caller, true)
	_, err := a.Analyze(context.Background(), testAddress(), "evidence")
	if !errors.Is(err, ErrMalformedAIResponse) {
		t.Fatalf("expected rejection for incomplete source, got %v", err)
	}
}

func TestConfidenceFromGrounding(t *testing.T) {
	cases := []struct {
		meta GroundingMetadata
		want Confidence
	}{
		{GroundingMetadata{TotalSources: 4, VerifiedClaims: 9, UnverifiedClaims: 1}, ConfidenceHigh},
		{GroundingMetadata{TotalSources: 2, VerifiedClaims: 3, UnverifiedClaims: 3}, ConfidenceModerate},
		{GroundingMetadata{TotalSources: 1, VerifiedClaims: 1, UnverifiedClaims: 4}, ConfidenceLow},
		{GroundingMetadata{}, ConfidenceLow},
	}
	for i, tc := range cases {
		if got := ConfidenceFromGrounding(tc.meta); got != tc.want {
			t.Fatalf("case %d: expected %s, got %s", i, tc.want, got)
		}
	}
}
