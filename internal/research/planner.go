package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nithiin7/deep-research-app/config"
	"github.com/nithiin7/deep-research-app/internal/telemetry"
	"github.com/nithiin7/deep-research-app/provider"
)

// LLMPlanner implements Planner using an LLM call
type LLMPlanner struct {
	cfg       *config.Config
	llm       provider.LLMProvider
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewLLMPlanner creates a new planner instance
func NewLLMPlanner(cfg *config.Config, llm provider.LLMProvider, tele *telemetry.Telemetry) *LLMPlanner {
	return &LLMPlanner{
		cfg:       cfg,
		llm:       llm,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// Plan creates a search plan for a research query. Any upstream or parse
// failure surfaces as a PlanningError; the plan never exceeds the
// configured maximum search count.
func (p *LLMPlanner) Plan(ctx context.Context, query string) (SearchPlan, error) {
	if strings.TrimSpace(query) == "" {
		return SearchPlan{}, PlanningError{Err: fmt.Errorf("empty query")}
	}

	startTime := time.Now()
	model := p.cfg.LLM.Routing.Model("planning")

	response, inTok, outTok, err := p.llm.GenerateWithTokens(ctx, p.createPlanningPrompt(query), model, map[string]interface{}{
		"temperature": 0.3, // Lower temperature for more consistent planning
	})
	if err != nil {
		p.recordStage(ctx, model, time.Since(startTime), false, 0, 0)
		return SearchPlan{}, PlanningError{Err: err}
	}

	plan, err := p.parsePlanningResponse(response)
	if err != nil {
		p.recordStage(ctx, model, time.Since(startTime), false, inTok, outTok)
		return SearchPlan{}, PlanningError{Err: err}
	}

	if max := p.cfg.Search.MaxSearches; len(plan.Searches) > max {
		p.logger.Printf("[run %s] plan truncated from %d to %d searches", RunIDFromContext(ctx), len(plan.Searches), max)
		plan.Searches = plan.Searches[:max]
	}

	p.recordStage(ctx, model, time.Since(startTime), true, inTok, outTok)
	p.logger.Printf("[run %s] planned %d searches in %v", RunIDFromContext(ctx), len(plan.Searches), time.Since(startTime))
	return plan, nil
}

func (p *LLMPlanner) createPlanningPrompt(query string) string {
	return fmt.Sprintf(`You are a helpful research assistant. Given a query, come up with a set of web searches to perform to best answer the query. Output at most %d search terms.

Your searches should be comprehensive (cover different aspects), specific (precise terms), diverse (different perspectives), and relevant to the query. For each search, provide a clear reason explaining why it matters.

QUERY: %s

OUTPUT FORMAT (JSON):
{
  "searches": [
    {
      "query": "search term",
      "reason": "why this search is important to the query"
    }
  ]
}

Respond ONLY with the JSON object. Do not include any other text or explanation.`, p.cfg.Search.MaxSearches, query)
}

// parsePlanningResponse parses the LLM response into a SearchPlan
func (p *LLMPlanner) parsePlanningResponse(response string) (SearchPlan, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return SearchPlan{}, fmt.Errorf("no JSON found in response")
	}

	var plan SearchPlan
	if err := json.Unmarshal([]byte(jsonStr), &plan); err != nil {
		return SearchPlan{}, fmt.Errorf("failed to parse plan: %w", err)
	}

	var searches []SearchItem
	for _, item := range plan.Searches {
		if strings.TrimSpace(item.Query) == "" {
			continue
		}
		searches = append(searches, item)
	}
	if len(searches) == 0 {
		return SearchPlan{}, fmt.Errorf("plan contains no searches")
	}
	plan.Searches = searches

	return plan, nil
}

func (p *LLMPlanner) recordStage(ctx context.Context, model string, d time.Duration, ok bool, inTok, outTok int64) {
	p.telemetry.RecordStageEvent(ctx, telemetry.StageEvent{
		RunID:      RunIDFromContext(ctx),
		Stage:      "planning",
		Duration:   d,
		Success:    ok,
		Cost:       p.llm.CalculateCost(inTok, outTok, model),
		TokensUsed: inTok + outTok,
		ModelUsed:  model,
	})
}

// extractJSON pulls the first balanced JSON object out of an LLM reply.
func extractJSON(response string) string {
	start := -1
	depth := 0
	for i, ch := range response {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
