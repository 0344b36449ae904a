package leadintel

import (
	"errors"
	"fmt"
)

// Failure kinds for a whole analysis run. Search-topic failures are soft and
// never surface here; these cover the hard stops.
const (
	KindNoEvidence          = "no_evidence"
	KindMalformedAIResponse = "malformed_ai_response"
	KindProviderUnavailable = "provider_unavailable"
	KindValidationFailed    = "validation_failed"
)

// Search provider sentinel errors. Callers branch on these with errors.Is;
// anything else from the provider arrives as a *ProviderError.
var (
	ErrProviderTimeout     = errors.New("search provider timed out")
	ErrProviderRateLimited = errors.New("search provider rate limited")
)

// ErrMalformedAIResponse marks model output that could not be turned into the
// expected JSON document. It is wrapped with detail at each failure site.
var ErrMalformedAIResponse = errors.New("malformed model response")

type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("search provider status %d: %s", e.Status, e.Body)
}

// AnalysisError is the terminal error of a pipeline run. Kind is stable and
// machine-readable; Err carries the underlying cause when one exists.
type AnalysisError struct {
	Kind   string
	Detail string
	Err    error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func newAnalysisError(kind, detail string, err error) *AnalysisError {
	return &AnalysisError{Kind: kind, Detail: detail, Err: err}
}

// KindFromError extracts the failure kind, defaulting to provider_unavailable
// for errors that did not come out of the pipeline.
func KindFromError(err error) string {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindProviderUnavailable
}
