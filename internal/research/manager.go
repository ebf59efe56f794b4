package research

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nithiin7/deep-research-app/config"
	"github.com/nithiin7/deep-research-app/internal/telemetry"
	"github.com/nithiin7/deep-research-app/provider"
	"github.com/nithiin7/deep-research-app/tools/web_search"
)

var managerTracer trace.Tracer = otel.Tracer("deepresearch/internal/research")

// Manager coordinates one research run through the
// Planning -> Searching -> Writing -> Delivering pipeline.
type Manager struct {
	cfg       *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry

	planner  Planner
	searcher Searcher
	writer   Writer
	mailer   Mailer
}

// run holds the state of a single research run. A new run always starts
// from a fresh Idle state; nothing here outlives the run or is shared
// across concurrent runs.
type run struct {
	id        string
	query     string
	state     State
	startTime time.Time
}

// NewManager wires a manager from explicit stage implementations.
func NewManager(cfg *config.Config, logger *log.Logger, tele *telemetry.Telemetry, planner Planner, searcher Searcher, writer Writer, mailer Mailer) *Manager {
	if logger == nil {
		logger = log.New(log.Writer(), "[MANAGER] ", log.LstdFlags)
	}
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		telemetry: tele,
		planner:   planner,
		searcher:  searcher,
		writer:    writer,
		mailer:    mailer,
	}
}

// New builds a manager with the default LLM-backed stages.
func New(cfg *config.Config, logger *log.Logger, tele *telemetry.Telemetry) (*Manager, error) {
	llm, err := provider.NewLLMProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create web searcher: %w", err)
	}
	return NewManager(cfg, logger, tele,
		NewLLMPlanner(cfg, llm, tele),
		NewWebSearchAgent(cfg, llm, searcher, tele),
		NewLLMWriter(cfg, llm, tele),
		NewSendGridMailer(cfg.Email, tele),
	), nil
}

// Run executes the research pipeline for a query. It returns a channel of
// human-readable status lines; the final element is the full report body
// (or a terminal error line), after which the channel is closed. The
// channel is single-consumption: a new call starts a fresh run.
func (m *Manager) Run(ctx context.Context, query string) <-chan string {
	updates := make(chan string)
	go m.execute(ctx, query, updates)
	return updates
}

func (m *Manager) execute(ctx context.Context, query string, updates chan<- string) {
	defer close(updates)

	r := &run{
		id:        uuid.New().String(),
		query:     query,
		state:     StateIdle,
		startTime: time.Now(),
	}
	ctx = WithRunID(ctx, r.id)
	ctx, span := managerTracer.Start(ctx, "research.run",
		trace.WithAttributes(attribute.String("run.id", r.id)))
	defer span.End()

	event := telemetry.RunEvent{RunID: r.id, Query: query, StartTime: r.startTime}
	defer func() {
		event.EndTime = time.Now()
		event.Duration = event.EndTime.Sub(event.StartTime)
		m.telemetry.RecordRunEvent(ctx, event)
	}()

	m.logger.Printf("[run %s] starting research for query: %.60q", r.id, query)
	m.transition(r, StatePlanning)
	if !m.emit(ctx, updates, "Starting research...") {
		m.fail(r, span, &event, ctx.Err())
		return
	}

	// Phase 1: Planning
	plan, err := m.planStage(ctx, query)
	if err != nil {
		m.fail(r, span, &event, err)
		m.emit(ctx, updates, fmt.Sprintf("Research failed: %v", err))
		return
	}
	span.AddEvent("plan.complete", trace.WithAttributes(attribute.Int("plan.search_count", len(plan.Searches))))

	m.transition(r, StateSearching)
	if !m.emit(ctx, updates, fmt.Sprintf("Searches planned (%d searches), starting to search...", len(plan.Searches))) {
		m.fail(r, span, &event, ctx.Err())
		return
	}

	// Phase 2: Concurrent search execution
	summaries, err := m.performSearches(ctx, plan)
	if err != nil {
		m.fail(r, span, &event, err)
		m.emit(ctx, updates, fmt.Sprintf("Research failed: %v", err))
		return
	}

	m.transition(r, StateWriting)
	if !m.emit(ctx, updates, fmt.Sprintf("Searches complete (%d results), writing report...", len(summaries))) {
		m.fail(r, span, &event, ctx.Err())
		return
	}

	// Phase 3: Report synthesis
	report, err := m.writeStage(ctx, query, summaries)
	if err != nil {
		m.fail(r, span, &event, err)
		m.emit(ctx, updates, fmt.Sprintf("Research failed: %v", err))
		return
	}

	m.transition(r, StateDelivering)
	if !m.emit(ctx, updates, "Report written, sending email...") {
		m.fail(r, span, &event, ctx.Err())
		return
	}

	// Phase 4: Delivery. Failure here is non-fatal: the report exists.
	_, deliverErr := m.mailer.Send(ctx, report)

	m.transition(r, StateDone)
	if deliverErr != nil {
		m.logger.Printf("[run %s] delivery failed: %v", r.id, deliverErr)
		span.AddEvent("delivery.failed", trace.WithAttributes(attribute.String("error", deliverErr.Error())))
		event.Outcome = "undelivered"
		if !m.emit(ctx, updates, fmt.Sprintf("Email delivery failed, report still available: %v", deliverErr)) {
			return
		}
	} else {
		event.Outcome = "delivered"
		if !m.emit(ctx, updates, "Email sent, research complete") {
			return
		}
	}

	m.emit(ctx, updates, report.MarkdownReport)
	span.SetStatus(codes.Ok, "completed")
	m.logger.Printf("[run %s] completed in %v", r.id, time.Since(r.startTime))
}

func (m *Manager) planStage(ctx context.Context, query string) (SearchPlan, error) {
	ctx, span := managerTracer.Start(ctx, "research.plan")
	defer span.End()
	plan, err := m.planner.Plan(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SearchPlan{}, err
	}
	span.SetStatus(codes.Ok, "completed")
	return plan, nil
}

func (m *Manager) writeStage(ctx context.Context, query string, evidence []string) (ReportData, error) {
	ctx, span := managerTracer.Start(ctx, "research.write")
	defer span.End()
	report, err := m.writer.Write(ctx, query, evidence)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ReportData{}, err
	}
	span.SetStatus(codes.Ok, "completed")
	return report, nil
}

// transition moves the run to the next pipeline state.
func (m *Manager) transition(r *run, next State) {
	m.logger.Printf("[run %s] %s -> %s", r.id, r.state, next)
	r.state = next
}

// fail moves the run to the Failed terminal state.
func (m *Manager) fail(r *run, span trace.Span, event *telemetry.RunEvent, err error) {
	r.state = StateFailed
	event.Outcome = "failed"
	if err != nil {
		event.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Printf("[run %s] failed: %v", r.id, err)
	}
}

// emit pushes one status line to the consumer, giving up when the run
// context is cancelled. Reports whether the message was delivered.
func (m *Manager) emit(ctx context.Context, updates chan<- string, msg string) bool {
	select {
	case updates <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
