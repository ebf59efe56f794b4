package research

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestPlanParsesSearches(t *testing.T) {
	llm := &stubLLM{response: `Here is the plan:
{
  "searches": [
    {"query": "golang concurrency patterns", "reason": "core topic"},
    {"query": "goroutine scheduling internals", "reason": "depth"}
  ]
}`}
	planner := NewLLMPlanner(testConfig(), llm, testTelemetry())

	plan, err := planner.Plan(context.Background(), "how does Go schedule goroutines")
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(plan.Searches) != 2 {
		t.Fatalf("expected 2 searches, got %d", len(plan.Searches))
	}
	if plan.Searches[0].Query != "golang concurrency patterns" {
		t.Fatalf("unexpected first search %q", plan.Searches[0].Query)
	}
	if plan.Searches[1].Reason != "depth" {
		t.Fatalf("unexpected reason %q", plan.Searches[1].Reason)
	}
	if !strings.Contains(llm.lastPrompt, "how does Go schedule goroutines") {
		t.Fatalf("planning prompt missing query: %q", llm.lastPrompt)
	}
}

func TestPlanTruncatesToMaxSearches(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`{"searches": [`)
	for i := 0; i < 9; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"query": "q", "reason": "r"}`)
	}
	sb.WriteString(`]}`)

	cfg := testConfig()
	cfg.Search.MaxSearches = 5
	planner := NewLLMPlanner(cfg, &stubLLM{response: sb.String()}, testTelemetry())

	plan, err := planner.Plan(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(plan.Searches) != 5 {
		t.Fatalf("expected plan truncated to 5, got %d", len(plan.Searches))
	}
}

func TestPlanDropsBlankQueries(t *testing.T) {
	llm := &stubLLM{response: `{"searches": [{"query": "  ", "reason": "r"}, {"query": "real", "reason": "r"}]}`}
	planner := NewLLMPlanner(testConfig(), llm, testTelemetry())

	plan, err := planner.Plan(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(plan.Searches) != 1 || plan.Searches[0].Query != "real" {
		t.Fatalf("blank queries should be dropped, got %+v", plan.Searches)
	}
}

func TestPlanEmptyQueryFails(t *testing.T) {
	planner := NewLLMPlanner(testConfig(), &stubLLM{response: "{}"}, testTelemetry())

	_, err := planner.Plan(context.Background(), "   ")
	var perr PlanningError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PlanningError, got %v", err)
	}
}

func TestPlanUpstreamFailureWrapped(t *testing.T) {
	cause := errors.New("rate limited")
	planner := NewLLMPlanner(testConfig(), &stubLLM{err: cause}, testTelemetry())

	_, err := planner.Plan(context.Background(), "anything")
	var perr PlanningError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PlanningError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("PlanningError should wrap the cause, got %v", err)
	}
}

func TestPlanRejectsEmptyPlan(t *testing.T) {
	planner := NewLLMPlanner(testConfig(), &stubLLM{response: `{"searches": []}`}, testTelemetry())

	_, err := planner.Plan(context.Background(), "anything")
	var perr PlanningError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PlanningError for empty plan, got %v", err)
	}
}

func TestPlanRejectsNonJSONResponse(t *testing.T) {
	planner := NewLLMPlanner(testConfig(), &stubLLM{response: "I could not come up with a plan."}, testTelemetry())

	_, err := planner.Plan(context.Background(), "anything")
	var perr PlanningError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PlanningError for non-JSON reply, got %v", err)
	}
}

func TestExtractJSONBalancedBraces(t *testing.T) {
	in := "preamble {\"a\": {\"b\": 1}} trailing"
	if got := extractJSON(in); got != `{"a": {"b": 1}}` {
		t.Fatalf("unexpected extraction %q", got)
	}
	if got := extractJSON("no json here"); got != "" {
		t.Fatalf("expected empty extraction, got %q", got)
	}
}
