package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joelkehle/leadscout/internal/cache"
	"github.com/joelkehle/leadscout/internal/leadintel"
	"github.com/joelkehle/leadscout/internal/store"
)

type stubAnalyzer struct {
	res   *leadintel.AnalysisResult
	err   error
	stats cache.Stats
	last  leadintel.Options
}

func (s *stubAnalyzer) Analyze(ctx context.Context, address string, opts leadintel.Options) (*leadintel.AnalysisResult, error) {
	s.last = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

func (s *stubAnalyzer) CacheStats() cache.Stats { return s.stats }

type memStore struct {
	analyses map[string]*leadintel.AnalysisResult
	failures []store.FailureRecord
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{analyses: map[string]*leadintel.AnalysisResult{}}
}

func (m *memStore) SaveAnalysis(res *leadintel.AnalysisResult) error {
	m.analyses[res.ID] = res
	return nil
}

func (m *memStore) GetAnalysis(id string) (*leadintel.AnalysisResult, error) {
	res, ok := m.analyses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return res, nil
}

func (m *memStore) ListAnalyses(limit int) ([]store.AnalysisSummary, error) {
	out := []store.AnalysisSummary{}
	for id, res := range m.analyses {
		out = append(out, store.AnalysisSummary{ID: id, Address: res.Address.FullAddress})
	}
	return out, nil
}

func (m *memStore) RecordFailure(address, kind, detail string) error {
	m.nextID++
	m.failures = append(m.failures, store.FailureRecord{ID: m.nextID, Address: address, Kind: kind, Detail: detail})
	return nil
}

func (m *memStore) ListPendingFailures(limit int) ([]store.FailureRecord, error) {
	out := []store.FailureRecord{}
	for _, f := range m.failures {
		if !f.Retried {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memStore) MarkRetried(id int64) error {
	for i := range m.failures {
		if m.failures[i].ID == id {
			m.failures[i].Retried = true
			return nil
		}
	}
	return store.ErrNotFound
}

func analysisFixture() *leadintel.AnalysisResult {
	return &leadintel.AnalysisResult{
		ID: "fixture-1",
		Address: leadintel.ParsedAddress{
			Street:      "123 Main St",
			City:        "Springfield",
			State:       "IL",
			FullAddress: "123 Main St, Springfield, IL 62704",
		},
		Scores:  map[string]float64{"lead_quality": 72},
		Summary: "Solid lead.",
	}
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateAnalysisSuccess(t *testing.T) {
	analyzer := &stubAnalyzer{res: analysisFixture()}
	st := newMemStore()
	h := NewServer(analyzer, st)

	rec := postJSON(t, h, "/v1/analyses", `{"address":"123 Main St, Springfield, IL 62704","skip_cache":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !analyzer.last.SkipCache {
		t.Fatal("expected skip_cache passed through")
	}
	var resp struct {
		OK       bool `json:"ok"`
		Analysis struct {
			ID string `json:"id"`
		} `json:"analysis"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK || resp.Analysis.ID != "fixture-1" {
		t.Fatalf("unexpected response %s", rec.Body.String())
	}
	if _, err := st.GetAnalysis("fixture-1"); err != nil {
		t.Fatal("expected analysis persisted")
	}
}

func TestCreateAnalysisCachedResultNotResaved(t *testing.T) {
	res := analysisFixture()
	res.ServedFromCache = true
	analyzer := &stubAnalyzer{res: res}
	st := newMemStore()
	h := NewServer(analyzer, st)

	rec := postJSON(t, h, "/v1/analyses", `{"address":"123 Main St"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(st.analyses) != 0 {
		t.Fatal("cache hits must not be re-persisted")
	}
}

func TestCreateAnalysisMissingAddress(t *testing.T) {
	h := NewServer(&stubAnalyzer{res: analysisFixture()}, nil)
	rec := postJSON(t, h, "/v1/analyses", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateAnalysisInvalidJSON(t *testing.T) {
	h := NewServer(&stubAnalyzer{res: analysisFixture()}, nil)
	rec := postJSON(t, h, "/v1/analyses", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateAnalysisErrorMapping(t *testing.T) {
	cases := []struct {
		kind   string
		status int
	}{
		{leadintel.KindNoEvidence, http.StatusUnprocessableEntity},
		{leadintel.KindMalformedAIResponse, http.StatusBadGateway},
		{leadintel.KindValidationFailed, http.StatusBadGateway},
		{leadintel.KindProviderUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		analyzer := &stubAnalyzer{err: &leadintel.AnalysisError{Kind: tc.kind, Detail: "boom"}}
		st := newMemStore()
		h := NewServer(analyzer, st)

		rec := postJSON(t, h, "/v1/analyses", `{"address":"123 Main St"}`)
		if rec.Code != tc.status {
			t.Fatalf("kind %s: expected %d, got %d", tc.kind, tc.status, rec.Code)
		}
		var resp struct {
			Error struct {
				Kind string `json:"kind"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Error.Kind != tc.kind {
			t.Fatalf("expected kind %s in body, got %s", tc.kind, rec.Body.String())
		}
		if len(st.failures) != 1 || st.failures[0].Kind != tc.kind {
			t.Fatalf("expected failure recorded for %s, got %+v", tc.kind, st.failures)
		}
	}
}

func TestGetAnalysisByID(t *testing.T) {
	st := newMemStore()
	if err := st.SaveAnalysis(analysisFixture()); err != nil {
		t.Fatal(err)
	}
	h := NewServer(&stubAnalyzer{}, st)

	rec := getPath(t, h, "/v1/analyses/fixture-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = getPath(t, h, "/v1/analyses/missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetAnalysisWithoutStore(t *testing.T) {
	h := NewServer(&stubAnalyzer{}, nil)
	rec := getPath(t, h, "/v1/analyses/fixture-1")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestRetryFailure(t *testing.T) {
	st := newMemStore()
	if err := st.RecordFailure("123 Main St", leadintel.KindProviderUnavailable, "down"); err != nil {
		t.Fatal(err)
	}
	analyzer := &stubAnalyzer{res: analysisFixture()}
	h := NewServer(analyzer, st)

	rec := postJSON(t, h, "/v1/failures/1/retry", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !analyzer.last.SkipCache {
		t.Fatal("retry must bypass the cache")
	}
	if !st.failures[0].Retried {
		t.Fatal("expected failure marked retried")
	}
	if len(st.analyses) != 1 {
		t.Fatal("expected retried analysis persisted")
	}

	rec = postJSON(t, h, "/v1/failures/1/retry", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second retry, got %d", rec.Code)
	}
}

func TestRetryFailureStillFailingStaysPending(t *testing.T) {
	st := newMemStore()
	if err := st.RecordFailure("123 Main St", leadintel.KindProviderUnavailable, "down"); err != nil {
		t.Fatal(err)
	}
	analyzer := &stubAnalyzer{err: &leadintel.AnalysisError{Kind: leadintel.KindProviderUnavailable, Detail: "still down"}}
	h := NewServer(analyzer, st)

	rec := postJSON(t, h, "/v1/failures/1/retry", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if st.failures[0].Retried {
		t.Fatal("failed retry must not mark the record retried")
	}
}

func TestListFailures(t *testing.T) {
	st := newMemStore()
	if err := st.RecordFailure("123 Main St", leadintel.KindNoEvidence, "nothing found"); err != nil {
		t.Fatal(err)
	}
	h := NewServer(&stubAnalyzer{}, st)

	rec := getPath(t, h, "/v1/failures")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), leadintel.KindNoEvidence) {
		t.Fatalf("expected failure kind in body: %s", rec.Body.String())
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	analyzer := &stubAnalyzer{stats: cache.Stats{Hits: 3, Misses: 1, Size: 2, HitRate: 0.75}}
	h := NewServer(analyzer, nil)

	rec := getPath(t, h, "/v1/cache/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Cache cache.Stats `json:"cache"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Cache.Hits != 3 || resp.Cache.HitRate != 0.75 {
		t.Fatalf("unexpected stats %+v", resp.Cache)
	}
}

func TestHealth(t *testing.T) {
	h := NewServer(&stubAnalyzer{}, nil)
	rec := getPath(t, h, "/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewServer(&stubAnalyzer{}, nil)
	req := httptest.NewRequest(http.MethodDelete, "/v1/analyses", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
