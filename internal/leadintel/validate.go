package leadintel

import (
	"fmt"
	"strings"
)

type ValidationReport struct {
	IsValid       bool     `json:"is_valid"`
	MissingFields []string `json:"missing_fields,omitempty"`
	InvalidFields []string `json:"invalid_fields,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

var requiredTopLevelFields = []string{"scores", "summary", "pros", "cons", "recommendations"}

// ValidateAnalysisDoc structurally checks the untyped model document before
// it is decoded into the typed result. Missing required fields and malformed
// or out-of-range values invalidate the document. Suspicious-but-legal
// patterns (a score of exactly 50, all scores identical) only warn: they are
// the signature of a model hedging, not of a broken response.
func ValidateAnalysisDoc(doc map[string]any) ValidationReport {
	rep := ValidationReport{}

	for _, field := range requiredTopLevelFields {
		if _, ok := doc[field]; !ok {
			rep.MissingFields = append(rep.MissingFields, field)
		}
	}

	if raw, ok := doc["scores"]; ok {
		validateScores(raw, &rep)
	}
	if raw, ok := doc["summary"]; ok {
		if s, isStr := raw.(string); !isStr || strings.TrimSpace(s) == "" {
			rep.InvalidFields = append(rep.InvalidFields, "summary")
		}
	}
	for _, field := range []string{"pros", "cons", "recommendations"} {
		raw, ok := doc[field]
		if !ok {
			continue
		}
		arr, isArr := raw.([]any)
		if !isArr {
			rep.InvalidFields = append(rep.InvalidFields, field)
			continue
		}
		for i, item := range arr {
			if _, isStr := item.(string); !isStr {
				rep.InvalidFields = append(rep.InvalidFields, fmt.Sprintf("%s[%d]", field, i))
			}
		}
	}
	if raw, ok := doc["details"]; ok {
		if _, isObj := raw.(map[string]any); !isObj {
			rep.InvalidFields = append(rep.InvalidFields, "details")
		}
	}
	if raw, ok := doc["address"]; ok {
		validateAddressDoc(raw, &rep)
	}

	rep.IsValid = len(rep.MissingFields) == 0 && len(rep.InvalidFields) == 0
	return rep
}

func validateScores(raw any, rep *ValidationReport) {
	scores, ok := raw.(map[string]any)
	if !ok {
		rep.InvalidFields = append(rep.InvalidFields, "scores")
		return
	}

	for _, dim := range RequiredScoreDimensions {
		if _, ok := scores[dim]; !ok {
			rep.MissingFields = append(rep.MissingFields, "scores."+dim)
		}
	}

	values := []float64{}
	for dim, v := range scores {
		f, isNum := v.(float64)
		if !isNum {
			rep.InvalidFields = append(rep.InvalidFields, "scores."+dim)
			continue
		}
		if f < 0 || f > 100 {
			rep.InvalidFields = append(rep.InvalidFields, "scores."+dim)
			continue
		}
		if f == 50 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("scores.%s is exactly 50, possible hedged response", dim))
		}
		values = append(values, f)
	}

	if len(values) > 1 {
		identical := true
		for _, f := range values[1:] {
			if f != values[0] {
				identical = false
				break
			}
		}
		if identical {
			rep.Warnings = append(rep.Warnings, "all score dimensions are identical, possible hedged response")
		}
	}
}

func validateAddressDoc(raw any, rep *ValidationReport) {
	addr, ok := raw.(map[string]any)
	if !ok {
		rep.InvalidFields = append(rep.InvalidFields, "address")
		return
	}
	for _, field := range []string{"street", "full_address"} {
		if s, _ := addr[field].(string); strings.TrimSpace(s) == "" {
			rep.MissingFields = append(rep.MissingFields, "address."+field)
		}
	}
}
