package leadintel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	TavilyBaseURL    = "https://api.tavily.com"
	tavilySearchPath = "/search"

	DefaultMaxResults = 5
	maxSnippetLen     = 600
)

type SearchConfig struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

type Searcher struct {
	cfg SearchConfig
}

func NewSearcher(cfg SearchConfig) (*Searcher, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("TAVILY_API_KEY not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = TavilyBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSearchTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "leadscout ", log.LstdFlags)
	}
	return &Searcher{cfg: cfg}, nil
}

func NewSearcherFromEnv() (*Searcher, error) {
	return NewSearcher(SearchConfig{APIKey: os.Getenv("TAVILY_API_KEY")})
}

type SearchOptions struct {
	Depth          string
	MaxResults     int
	IncludeDomains []string
	ExcludeDomains []string
}

type searchAPIResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs one provider query under the configured timeout. Timeouts and
// 429s map to the sentinel errors; any other non-2xx status becomes a
// *ProviderError carrying the status and a body excerpt.
func (s *Searcher) Search(ctx context.Context, query string, opts SearchOptions) ([]EvidenceDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	depth := opts.Depth
	if depth == "" {
		depth = "basic"
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.cfg.MaxResults
	}

	body := map[string]any{
		"query":          query,
		"search_depth":   depth,
		"include_answer": false,
		"max_results":    maxResults,
	}
	if len(opts.IncludeDomains) > 0 {
		body["include_domains"] = opts.IncludeDomains
	}
	if len(opts.ExcludeDomains) > 0 {
		body["exclude_domains"] = opts.ExcludeDomains
	}
	payload, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.BaseURL, "/")+tavilySearchPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	res, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		if isTimeoutError(err) {
			return nil, fmt.Errorf("%w: %v", ErrProviderTimeout, err)
		}
		return nil, err
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))

	if res.StatusCode == http.StatusTooManyRequests {
		return nil, ErrProviderRateLimited
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &ProviderError{Status: res.StatusCode, Body: truncate(string(b), 512)}
	}

	var parsed searchAPIResponse
	if err := json.Unmarshal(b, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	docs := make([]EvidenceDocument, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		title := strings.TrimSpace(r.Title)
		u := strings.TrimSpace(r.URL)
		if title == "" && u == "" {
			continue
		}
		docs = append(docs, EvidenceDocument{
			Title:          title,
			URL:            u,
			ContentSnippet: truncate(strings.TrimSpace(r.Content), maxSnippetLen),
			RelevanceScore: r.Score,
			SourceDomain:   domainOf(u),
		})
	}
	return docs, nil
}

type TopicQuery struct {
	Topic string
	Query string
}

type TopicResult struct {
	Topic     string             `json:"topic"`
	Query     string             `json:"query"`
	Documents []EvidenceDocument `json:"documents"`
	Err       error              `json:"-"`
}

type ComprehensiveResult struct {
	Topics     []TopicResult      `json:"topics"`
	Documents  []EvidenceDocument `json:"documents"`
	SearchedAt time.Time          `json:"searched_at"`
}

func (c ComprehensiveResult) FailedTopics() []string {
	var out []string
	for _, t := range c.Topics {
		if t.Err != nil {
			out = append(out, t.Topic)
		}
	}
	return out
}

func topicQueries(addr ParsedAddress) []TopicQuery {
	area := strings.TrimSpace(addr.City + " " + addr.State)
	return []TopicQuery{
		{Topic: TopicListings, Query: fmt.Sprintf("%q %s property listing for sale estimated value", addr.Street, area)},
		{Topic: TopicMarketData, Query: fmt.Sprintf("%s real estate market trends median home price inventory", area)},
		{Topic: TopicNeighborhood, Query: fmt.Sprintf("%s neighborhood profile schools crime rate walkability", area)},
		{Topic: TopicComparableSales, Query: fmt.Sprintf("%q %s comparable homes recently sold prices", addr.Street, area)},
	}
}

// ComprehensiveSearch fans out one query per topic concurrently and merges
// the results. A failed topic contributes no documents but never fails the
// merge; per-topic errors are preserved for the caller to log and for data
// quality scoring. Duplicate URLs keep the first occurrence in topic order.
func (s *Searcher) ComprehensiveSearch(ctx context.Context, addr ParsedAddress) (ComprehensiveResult, error) {
	queries := topicQueries(addr)
	results := make([]TopicResult, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q TopicQuery) {
			defer wg.Done()
			docs, err := s.Search(ctx, q.Query, SearchOptions{})
			if err != nil {
				s.cfg.Logger.Printf("topic search failed topic=%s err=%v", q.Topic, err)
			}
			for j := range docs {
				docs[j].Topic = q.Topic
			}
			results[i] = TopicResult{Topic: q.Topic, Query: q.Query, Documents: docs, Err: err}
		}(i, q)
	}
	wg.Wait()

	out := ComprehensiveResult{Topics: results, SearchedAt: time.Now().UTC()}
	seen := map[string]struct{}{}
	for _, tr := range results {
		for _, doc := range tr.Documents {
			if doc.URL != "" {
				if _, ok := seen[doc.URL]; ok {
					continue
				}
				seen[doc.URL] = struct{}{}
			}
			out.Documents = append(out.Documents, doc)
		}
	}
	return out, nil
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
