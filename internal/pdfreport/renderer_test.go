package pdfreport

import (
	"strings"
	"testing"
	"time"

	"github.com/joelkehle/leadscout/internal/leadintel"
)

func reportFixture() *leadintel.AnalysisResult {
	value := 310000.0
	return &leadintel.AnalysisResult{
		ID: "a1b2c3",
		Address: leadintel.ParsedAddress{
			Street:      "123 Main St",
			City:        "Springfield",
			State:       "IL",
			ZipCode:     "62704",
			FullAddress: "123 Main St, Springfield, IL 62704",
		},
		Scores: map[string]float64{
			"lead_quality":       72,
			"property_condition": 64,
			"market_activity":    81,
			"owner_motivation":   55,
		},
		Details: leadintel.PropertyDetails{EstimatedValue: &value},
		Pros:    []string{"Corner <lot>"},
		Cons:    []string{"Dated roof"},
		Summary: "Solid lead.",
		DataQuality: leadintel.DataQuality{
			Score:       85,
			Confidence:  leadintel.ConfidenceModerate,
			SourceCount: 6,
		},
		AnalyzedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuildHTMLRendersReportSections(t *testing.T) {
	doc, err := buildHTML(reportFixture())
	if err != nil {
		t.Fatalf("buildHTML: %v", err)
	}
	for _, want := range []string{
		"<h1",
		"Property Lead Intelligence Report",
		"<h2",
		"Scores",
		"<table>",
		"Lead Quality",
		"Solid lead.",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("expected %q in rendered HTML", want)
		}
	}
}

func TestBuildHTMLMetaAndBadges(t *testing.T) {
	doc, err := buildHTML(reportFixture())
	if err != nil {
		t.Fatalf("buildHTML: %v", err)
	}
	if !strings.Contains(doc, "123 Main St, Springfield, IL 62704") {
		t.Fatal("expected full address in meta block")
	}
	if !strings.Contains(doc, "Analysis ID:</strong> a1b2c3") {
		t.Fatal("expected analysis id in meta block")
	}
	if !strings.Contains(doc, "Confidence: moderate") {
		t.Fatal("expected confidence badge")
	}
	if strings.Contains(doc, ">Grounded<") {
		t.Fatal("grounded badge must only appear for grounded runs")
	}
}

func TestBuildHTMLGroundedBadge(t *testing.T) {
	res := reportFixture()
	res.Grounding = &leadintel.GroundingMetadata{TotalSources: 4, VerifiedClaims: 9, UnverifiedClaims: 1}
	doc, err := buildHTML(res)
	if err != nil {
		t.Fatalf("buildHTML: %v", err)
	}
	if !strings.Contains(doc, ">Grounded<") {
		t.Fatal("expected grounded badge")
	}
}
