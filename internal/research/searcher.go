package research

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nithiin7/deep-research-app/config"
	"github.com/nithiin7/deep-research-app/internal/telemetry"
	"github.com/nithiin7/deep-research-app/provider"
	"github.com/nithiin7/deep-research-app/tools/web_search"
)

// WebSearchAgent implements Searcher: it runs one web search and has the
// LLM condense the hits into a short summary. It upholds the never-throw
// contract — every failure comes back inside the SearchResult.
type WebSearchAgent struct {
	cfg       *config.Config
	llm       provider.LLMProvider
	searcher  web_search.WebSearcher
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewWebSearchAgent creates a new search executor
func NewWebSearchAgent(cfg *config.Config, llm provider.LLMProvider, searcher web_search.WebSearcher, tele *telemetry.Telemetry) *WebSearchAgent {
	return &WebSearchAgent{
		cfg:       cfg,
		llm:       llm,
		searcher:  searcher,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[SEARCH] ", log.LstdFlags),
	}
}

// Search executes one planned search item.
func (s *WebSearchAgent) Search(ctx context.Context, item SearchItem) SearchResult {
	startTime := time.Now()
	if timeout := s.cfg.Search.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	summary, err := s.search(ctx, item)
	s.telemetry.RecordSearchEvent(ctx, telemetry.SearchEvent{
		RunID:    RunIDFromContext(ctx),
		Query:    item.Query,
		Duration: time.Since(startTime),
		Success:  err == nil,
		Error:    errString(err),
	})
	if err != nil {
		s.logger.Printf("[run %s] search failed for %q: %v", RunIDFromContext(ctx), item.Query, err)
		return SearchResult{Item: item, Err: SearchError{Item: item, Err: err}}
	}
	return SearchResult{Item: item, Summary: summary}
}

func (s *WebSearchAgent) search(ctx context.Context, item SearchItem) (string, error) {
	hits, err := s.searcher.Discover(ctx, item.Query, s.cfg.Search.MaxResults)
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}
	if len(hits) == 0 {
		return "", fmt.Errorf("no results for %q", item.Query)
	}

	var sb strings.Builder
	for _, hit := range hits {
		fmt.Fprintf(&sb, "Title: %s\nURL: %s\nSnippet: %s\n\n", hit.Title, hit.URL, hit.Snippet)
	}

	model := s.cfg.LLM.Routing.Model("search")
	summary, err := s.llm.Generate(ctx, s.createSummaryPrompt(item, sb.String()), model, nil)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("empty summary for %q", item.Query)
	}
	return summary, nil
}

func (s *WebSearchAgent) createSummaryPrompt(item SearchItem, hits string) string {
	return fmt.Sprintf(`You are a research assistant. Given a search term and raw web results, produce a concise summary of the results.

The summary must be 2-3 paragraphs and less than 300 words. Capture the main points and key insights; write succinctly. This will be consumed by someone synthesizing a report, so capture the essence and ignore fluff. Do not include any commentary other than the summary itself.

Search term: %s
Reason for searching: %s

Results:
%s`, item.Query, item.Reason, hits)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
