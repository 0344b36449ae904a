package leadintel

import (
	"fmt"
	"strings"
)

var topicLabels = map[string]string{
	TopicListings:        "Property Listings",
	TopicMarketData:      "Market Data",
	TopicNeighborhood:    "Neighborhood Profile",
	TopicComparableSales: "Comparable Sales",
}

// BuildEvidenceContext renders the merged search results as one labeled
// document for the model: a section per topic in fixed order, every entry
// carrying its title and URL so the model can cite provenance.
func BuildEvidenceContext(comp ComprehensiveResult) string {
	byTopic := map[string]TopicResult{}
	for _, tr := range comp.Topics {
		byTopic[tr.Topic] = tr
	}

	var b strings.Builder
	for _, topic := range evidenceTopics {
		label := topicLabels[topic]
		if label == "" {
			label = topic
		}
		fmt.Fprintf(&b, "## %s\n", label)

		tr, ok := byTopic[topic]
		switch {
		case !ok || (tr.Err == nil && len(tr.Documents) == 0):
			b.WriteString("No results found for this topic.\n")
		case tr.Err != nil:
			b.WriteString("Search for this topic was unavailable.\n")
		default:
			for _, doc := range tr.Documents {
				fmt.Fprintf(&b, "- %s (%s)\n", doc.Title, doc.URL)
				if doc.ContentSnippet != "" {
					fmt.Fprintf(&b, "  %s\n", doc.ContentSnippet)
				}
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
