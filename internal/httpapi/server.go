package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/joelkehle/leadscout/internal/cache"
	"github.com/joelkehle/leadscout/internal/leadintel"
	"github.com/joelkehle/leadscout/internal/store"
)

// Analyzer runs one full analysis; in production this is *leadintel.Pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, address string, opts leadintel.Options) (*leadintel.AnalysisResult, error)
	CacheStats() cache.Stats
}

// ResultStore is the persistence surface the API needs. May be nil when the
// server runs without a database.
type ResultStore interface {
	SaveAnalysis(res *leadintel.AnalysisResult) error
	GetAnalysis(id string) (*leadintel.AnalysisResult, error)
	ListAnalyses(limit int) ([]store.AnalysisSummary, error)
	RecordFailure(address, kind, detail string) error
	ListPendingFailures(limit int) ([]store.FailureRecord, error)
	MarkRetried(id int64) error
}

type Server struct {
	analyzer Analyzer
	store    ResultStore
}

func NewServer(analyzer Analyzer, st ResultStore) http.Handler {
	s := &Server{analyzer: analyzer, store: st}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/analyses", s.handleAnalyses)
	mux.HandleFunc("/v1/analyses/", s.handleGetAnalysis)
	mux.HandleFunc("/v1/failures", s.handleFailures)
	mux.HandleFunc("/v1/failures/", s.handleRetryFailure)
	mux.HandleFunc("/v1/cache/stats", s.handleCacheStats)
	mux.HandleFunc("/v1/health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func statusForKind(kind string) int {
	switch kind {
	case leadintel.KindNoEvidence:
		return http.StatusUnprocessableEntity
	case leadintel.KindMalformedAIResponse, leadintel.KindValidationFailed:
		return http.StatusBadGateway
	case leadintel.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeAnalysisError(w http.ResponseWriter, err error) {
	kind := leadintel.KindFromError(err)
	var ae *leadintel.AnalysisError
	detail := err.Error()
	if errors.As(err, &ae) {
		detail = ae.Detail
	}
	writeJSON(w, statusForKind(kind), map[string]any{
		"ok": false,
		"error": map[string]any{
			"kind":    kind,
			"message": detail,
		},
	})
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func parseInt(value string, def int) int {
	if strings.TrimSpace(value) == "" {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return v
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateAnalysis(w, r)
	case http.MethodGet:
		s.handleListAnalyses(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	blob, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": map[string]any{"kind": "bad_request", "message": err.Error()}})
		return
	}
	var req struct {
		Address   string `json:"address"`
		City      string `json:"city"`
		State     string `json:"state"`
		ZipCode   string `json:"zip_code"`
		SkipCache bool   `json:"skip_cache"`
	}
	if err := json.Unmarshal(blob, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": map[string]any{"kind": "bad_request", "message": "invalid json: " + err.Error()}})
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": map[string]any{"kind": "bad_request", "message": "address is required"}})
		return
	}

	res, err := s.analyzer.Analyze(r.Context(), req.Address, leadintel.Options{
		City:      req.City,
		State:     req.State,
		ZipCode:   req.ZipCode,
		SkipCache: req.SkipCache,
	})
	if err != nil {
		// The failure is recorded for later retry; the caller's own record
		// keeping proceeds regardless of the analysis outcome.
		if s.store != nil {
			_ = s.store.RecordFailure(req.Address, leadintel.KindFromError(err), err.Error())
		}
		writeAnalysisError(w, err)
		return
	}

	if s.store != nil && !res.ServedFromCache {
		if err := s.store.SaveAnalysis(res); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": map[string]any{"kind": "internal", "message": err.Error()}})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "analysis": res})
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"ok": false, "error": map[string]any{"kind": "no_store", "message": "persistence not configured"}})
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	summaries, err := s.store.ListAnalyses(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": map[string]any{"kind": "internal", "message": err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "analyses": summaries})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"ok": false, "error": map[string]any{"kind": "no_store", "message": "persistence not configured"}})
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/analyses/"), "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	res, err := s.store.GetAnalysis(id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": map[string]any{"kind": "not_found", "message": "analysis not found"}})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": map[string]any{"kind": "internal", "message": err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "analysis": res})
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"ok": false, "error": map[string]any{"kind": "no_store", "message": "persistence not configured"}})
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	failures, err := s.store.ListPendingFailures(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": map[string]any{"kind": "internal", "message": err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "failures": failures})
}

// handleRetryFailure re-runs the analysis behind a recorded failure. The
// failure row is marked retried only when the re-run succeeds.
func (s *Server) handleRetryFailure(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"ok": false, "error": map[string]any{"kind": "no_store", "message": "persistence not configured"}})
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/failures/")
	if !strings.HasSuffix(path, "/retry") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	idRaw := strings.Trim(strings.TrimSuffix(path, "/retry"), "/")
	id, err := strconv.ParseInt(idRaw, 10, 64)
	if err != nil || id <= 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	failures, err := s.store.ListPendingFailures(0)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": map[string]any{"kind": "internal", "message": err.Error()}})
		return
	}
	var target *store.FailureRecord
	for i := range failures {
		if failures[i].ID == id {
			target = &failures[i]
			break
		}
	}
	if target == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": map[string]any{"kind": "not_found", "message": "failure not found or already retried"}})
		return
	}

	res, err := s.analyzer.Analyze(r.Context(), target.Address, leadintel.Options{SkipCache: true})
	if err != nil {
		writeAnalysisError(w, err)
		return
	}
	if err := s.store.SaveAnalysis(res); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": map[string]any{"kind": "internal", "message": err.Error()}})
		return
	}
	_ = s.store.MarkRetried(id)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "analysis": res})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "cache": s.analyzer.CacheStats()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "healthy"})
}
