package leadintel

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// BuildReport renders an analysis result as a markdown report suitable for
// terminal display or PDF rendering.
func BuildReport(res *AnalysisResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Property Lead Intelligence Report\n\n")
	fmt.Fprintf(&b, "**Address:** %s\n\n", res.Address.FullAddress)
	fmt.Fprintf(&b, "**Analyzed:** %s\n\n", res.AnalyzedAt.Format("2006-01-02 15:04 MST"))
	if res.ServedFromCache {
		b.WriteString("*Served from cache.*\n\n")
	}

	b.WriteString("## Scores\n\n")
	b.WriteString("| Dimension | Score |\n|---|---|\n")
	for _, dim := range sortedScoreDims(res.Scores) {
		fmt.Fprintf(&b, "| %s | %.0f |\n", labelize(dim), res.Scores[dim])
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Data Quality\n\n")
	fmt.Fprintf(&b, "- Quality score: %.0f\n", res.DataQuality.Score)
	fmt.Fprintf(&b, "- Confidence: %s\n", res.DataQuality.Confidence)
	fmt.Fprintf(&b, "- Sources consulted: %d\n", res.DataQuality.SourceCount)
	if len(res.DataQuality.FailedTopics) > 0 {
		fmt.Fprintf(&b, "- Degraded topics: %s\n", strings.Join(res.DataQuality.FailedTopics, ", "))
	}
	b.WriteString("\n")

	if details := detailLines(res.Details); len(details) > 0 {
		b.WriteString("## Property Details\n\n")
		for _, line := range details {
			fmt.Fprintf(&b, "- %s\n", line)
		}
		b.WriteString("\n")
	}

	writeList(&b, "Pros", res.Pros)
	writeList(&b, "Cons", res.Cons)
	writeList(&b, "Recommendations", res.Recommendations)

	if res.Summary != "" {
		fmt.Fprintf(&b, "## Summary\n\n%s\n\n", res.Summary)
	}

	if res.Grounding != nil {
		b.WriteString("## Grounding\n\n")
		fmt.Fprintf(&b, "- Total sources: %d\n", res.Grounding.TotalSources)
		fmt.Fprintf(&b, "- Verified claims: %d\n", res.Grounding.VerifiedClaims)
		fmt.Fprintf(&b, "- Unverified claims: %d\n\n", res.Grounding.UnverifiedClaims)
	}

	if len(res.Sources) > 0 {
		b.WriteString("## Sources\n\n")
		for _, doc := range res.Sources {
			fmt.Fprintf(&b, "- [%s](%s)\n", doc.Title, doc.URL)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// DecodeResult restores a saved analysis envelope.
func DecodeResult(data []byte) (*AnalysisResult, error) {
	var res AnalysisResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode analysis envelope: %w", err)
	}
	if res.ID == "" {
		return nil, fmt.Errorf("decode analysis envelope: missing id")
	}
	return &res, nil
}

func sortedScoreDims(scores map[string]float64) []string {
	out := make([]string, 0, len(scores))
	seen := map[string]struct{}{}
	for _, dim := range RequiredScoreDimensions {
		if _, ok := scores[dim]; ok {
			out = append(out, dim)
			seen[dim] = struct{}{}
		}
	}
	extras := []string{}
	for dim := range scores {
		if _, ok := seen[dim]; !ok {
			extras = append(extras, dim)
		}
	}
	sort.Strings(extras)
	return append(out, extras...)
}

func labelize(dim string) string {
	words := strings.Split(dim, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func detailLines(d PropertyDetails) []string {
	var out []string
	if d.EstimatedValue != nil {
		out = append(out, fmt.Sprintf("Estimated value: $%.0f", *d.EstimatedValue))
	}
	if d.YearBuilt != nil {
		out = append(out, fmt.Sprintf("Year built: %d", *d.YearBuilt))
	}
	if d.SquareFootage != nil {
		out = append(out, fmt.Sprintf("Square footage: %d", *d.SquareFootage))
	}
	if d.Bedrooms != nil {
		out = append(out, fmt.Sprintf("Bedrooms: %d", *d.Bedrooms))
	}
	if d.Bathrooms != nil {
		out = append(out, fmt.Sprintf("Bathrooms: %.1f", *d.Bathrooms))
	}
	if d.LastSalePrice != nil {
		out = append(out, fmt.Sprintf("Last sale price: $%.0f", *d.LastSalePrice))
	}
	if d.LastSaleDate != nil {
		out = append(out, "Last sale date: "+*d.LastSaleDate)
	}
	if d.OwnerName != nil {
		out = append(out, "Owner: "+*d.OwnerName)
	}
	if d.OwnershipType != nil {
		out = append(out, "Ownership type: "+*d.OwnershipType)
	}
	if d.LienStatus != nil {
		out = append(out, "Lien status: "+*d.LienStatus)
	}
	if d.PermitActivity != nil {
		out = append(out, "Permit activity: "+*d.PermitActivity)
	}
	return out
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}
