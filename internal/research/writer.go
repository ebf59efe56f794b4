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

// LLMWriter implements Writer: it synthesizes the evidence into the final
// structured report.
type LLMWriter struct {
	cfg       *config.Config
	llm       provider.LLMProvider
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewLLMWriter creates a new report writer
func NewLLMWriter(cfg *config.Config, llm provider.LLMProvider, tele *telemetry.Telemetry) *LLMWriter {
	return &LLMWriter{
		cfg:       cfg,
		llm:       llm,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[WRITER] ", log.LstdFlags),
	}
}

// Write produces the report. An empty evidence slice is legal: the prompt
// directs the model to state that findings were insufficient instead of
// fabricating claims. Upstream or parse failures surface as ReportingError.
func (w *LLMWriter) Write(ctx context.Context, query string, evidence []string) (ReportData, error) {
	startTime := time.Now()
	model := w.cfg.LLM.Routing.Model("writing")

	response, inTok, outTok, err := w.llm.GenerateWithTokens(ctx, w.createReportPrompt(query, evidence), model, nil)
	if err != nil {
		w.recordStage(ctx, model, time.Since(startTime), false, 0, 0)
		return ReportData{}, ReportingError{Err: err}
	}

	report, err := w.parseReportResponse(response)
	if err != nil {
		w.recordStage(ctx, model, time.Since(startTime), false, inTok, outTok)
		return ReportData{}, ReportingError{Err: err}
	}

	w.recordStage(ctx, model, time.Since(startTime), true, inTok, outTok)
	w.logger.Printf("[run %s] report written in %v (%d follow-ups)", RunIDFromContext(ctx), time.Since(startTime), len(report.FollowUpQuestions))
	return report, nil
}

func (w *LLMWriter) createReportPrompt(query string, evidence []string) string {
	findings := "No usable search results were collected. State clearly that the available findings were insufficient to answer the query; do not fabricate unsupported claims."
	if len(evidence) > 0 {
		findings = strings.Join(evidence, "\n\n---\n\n")
	}

	return fmt.Sprintf(`You are a senior researcher tasked with writing a cohesive report for a research query. You will be provided with the original query and summarized research done by a research assistant.

First analyze the findings and create an outline, then generate a comprehensive, detailed markdown report (aim for 5-10 pages, at least 1000 words) with introduction, main sections, conclusion, and recommendations. Suggest 3-5 relevant topics for further research.

ORIGINAL QUERY: %s

RESEARCH FINDINGS:
%s

OUTPUT FORMAT (JSON):
{
  "short_summary": "A short 2-3 sentence summary of the findings",
  "markdown_report": "The full report in markdown format",
  "follow_up_questions": ["suggested topic 1", "suggested topic 2"]
}

Respond ONLY with the JSON object. Do not include any other text or explanation.`, query, findings)
}

// parseReportResponse parses the LLM response into a ReportData
func (w *LLMWriter) parseReportResponse(response string) (ReportData, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return ReportData{}, fmt.Errorf("no JSON found in response")
	}

	var report ReportData
	if err := json.Unmarshal([]byte(jsonStr), &report); err != nil {
		return ReportData{}, fmt.Errorf("failed to parse report: %w", err)
	}
	if strings.TrimSpace(report.MarkdownReport) == "" {
		return ReportData{}, fmt.Errorf("report body is empty")
	}
	return report, nil
}

func (w *LLMWriter) recordStage(ctx context.Context, model string, d time.Duration, ok bool, inTok, outTok int64) {
	w.telemetry.RecordStageEvent(ctx, telemetry.StageEvent{
		RunID:      RunIDFromContext(ctx),
		Stage:      "writing",
		Duration:   d,
		Success:    ok,
		Cost:       w.llm.CalculateCost(inTok, outTok, model),
		TokensUsed: inTok + outTok,
		ModelUsed:  model,
	})
}
