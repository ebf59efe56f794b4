package research

import (
	"context"
	"time"
)

// SearchItem is a single planned web search
type SearchItem struct {
	Query  string `json:"query"`  // The search term to use for the web search
	Reason string `json:"reason"` // Why this search matters for the original query
}

// SearchPlan is the ordered set of searches produced by the planning stage
type SearchPlan struct {
	Searches []SearchItem `json:"searches"`
}

// SearchResult is the outcome of one search execution. Exactly one of
// Summary or Err is set; a failed result always carries the originating item.
type SearchResult struct {
	Item    SearchItem
	Summary string
	Err     error
}

// Failed reports whether the search produced no usable summary.
func (r SearchResult) Failed() bool { return r.Err != nil }

// ReportData is the final research report
type ReportData struct {
	ShortSummary      string   `json:"short_summary"`
	MarkdownReport    string   `json:"markdown_report"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

// DeliveryReceipt confirms a handed-off email
type DeliveryReceipt struct {
	StatusCode int
	SentAt     time.Time
}

// State is the orchestrator's position in the research pipeline
type State string

const (
	StateIdle       State = "idle"
	StatePlanning   State = "planning"
	StateSearching  State = "searching"
	StateWriting    State = "writing"
	StateDelivering State = "delivering"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Planner turns a raw query into a bounded search plan
type Planner interface {
	Plan(ctx context.Context, query string) (SearchPlan, error)
}

// Searcher executes one planned search. It never returns an error: any
// upstream failure is folded into the returned SearchResult so the
// aggregation stage can treat failures as data.
type Searcher interface {
	Search(ctx context.Context, item SearchItem) SearchResult
}

// Writer synthesizes the report from the query and the collected evidence
type Writer interface {
	Write(ctx context.Context, query string, evidence []string) (ReportData, error)
}

// Mailer delivers the finished report
type Mailer interface {
	Send(ctx context.Context, report ReportData) (DeliveryReceipt, error)
}

type runIDKey struct{}

// WithRunID attaches the run's correlation ID to the context so stage
// adapters can tag their logs.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run correlation ID, or "" outside a run.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
