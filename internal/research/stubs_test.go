package research

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/nithiin7/deep-research-app/config"
	"github.com/nithiin7/deep-research-app/internal/telemetry"
)

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			APIKey:  "test-key",
			Timeout: time.Second,
			Routing: config.LLMRoutingConfig{Fallback: "test-model"},
		},
		Search: config.SearchConfig{
			Provider:    "serper",
			APIKey:      "test-key",
			MaxResults:  3,
			MaxSearches: 5,
		},
		Email: config.EmailConfig{
			SendGridAPIKey: "test-key",
			FromEmail:      "from@example.com",
			ToEmail:        "to@example.com",
		},
	}
}

func testTelemetry() *telemetry.Telemetry {
	return telemetry.NewTelemetry(config.TelemetryConfig{})
}

// stubLLM implements provider.LLMProvider with a fixed response.
type stubLLM struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubLLM) Generate(ctx context.Context, prompt, model string, options map[string]interface{}) (string, error) {
	resp, _, _, err := s.GenerateWithTokens(ctx, prompt, model, options)
	return resp, err
}

func (s *stubLLM) GenerateWithTokens(ctx context.Context, prompt, model string, options map[string]interface{}) (string, int64, int64, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", 0, 0, s.err
	}
	return s.response, 10, 20, nil
}

func (s *stubLLM) CalculateCost(inputTokens, outputTokens int64, model string) float64 {
	return 0
}

// stubPlanner implements Planner with a fixed plan.
type stubPlanner struct {
	plan  SearchPlan
	err   error
	calls atomic.Int64
}

func (s *stubPlanner) Plan(ctx context.Context, query string) (SearchPlan, error) {
	s.calls.Add(1)
	if s.err != nil {
		return SearchPlan{}, s.err
	}
	return s.plan, nil
}

// searcherFunc adapts a function to the Searcher interface.
type searcherFunc func(ctx context.Context, item SearchItem) SearchResult

func (f searcherFunc) Search(ctx context.Context, item SearchItem) SearchResult {
	return f(ctx, item)
}

// stubWriter implements Writer with a fixed report.
type stubWriter struct {
	report ReportData
	err    error
	calls  atomic.Int64

	lastEvidence []string
}

func (s *stubWriter) Write(ctx context.Context, query string, evidence []string) (ReportData, error) {
	s.calls.Add(1)
	s.lastEvidence = evidence
	if s.err != nil {
		return ReportData{}, s.err
	}
	return s.report, nil
}

// stubMailer implements Mailer with a fixed outcome.
type stubMailer struct {
	err   error
	calls atomic.Int64
}

func (s *stubMailer) Send(ctx context.Context, report ReportData) (DeliveryReceipt, error) {
	s.calls.Add(1)
	if s.err != nil {
		return DeliveryReceipt{}, s.err
	}
	return DeliveryReceipt{StatusCode: 202, SentAt: time.Now()}, nil
}

func newTestManager(planner Planner, searcher Searcher, writer Writer, mailer Mailer) *Manager {
	return NewManager(testConfig(), log.New(log.Writer(), "[TEST] ", log.LstdFlags), testTelemetry(), planner, searcher, writer, mailer)
}
