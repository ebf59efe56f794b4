package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nithiin7/deep-research-app/config"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_runs_total",
		Help: "Research runs by terminal outcome.",
	}, []string{"outcome"})
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_searches_total",
		Help: "Individual search executions by status.",
	}, []string{"status"})
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "deepresearch_run_duration_seconds",
		Help:    "End-to-end research run duration.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// Telemetry provides monitoring and cost tracking for research runs
type Telemetry struct {
	config      config.TelemetryConfig
	logger      *log.Logger
	metrics     *Metrics
	costTracker *CostTracker
	mu          sync.RWMutex
}

// Metrics holds performance counters aggregated across runs
type Metrics struct {
	TotalRuns          int64
	SuccessfulRuns     int64
	FailedRuns         int64
	AverageRunDuration time.Duration

	SearchesLaunched  int64
	SearchesSucceeded int64
	SearchesFailed    int64

	StageDurations map[string]time.Duration
	StageCounts    map[string]int64
}

// CostTracker tracks LLM spend across models and stages
type CostTracker struct {
	ModelCosts  map[string]float64
	StageCosts  map[string]float64
	TotalCost   float64
	TotalTokens int64
}

// RunEvent captures one complete research run
type RunEvent struct {
	RunID     string
	Query     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Outcome   string // delivered, undelivered, failed
	Error     string
}

// StageEvent captures one stage execution within a run
type StageEvent struct {
	RunID      string
	Stage      string // planning, searching, writing, delivering
	Duration   time.Duration
	Success    bool
	Cost       float64
	TokensUsed int64
	ModelUsed  string
}

// SearchEvent captures a single search execution
type SearchEvent struct {
	RunID    string
	Query    string
	Duration time.Duration
	Success  bool
	Error    string
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			StageDurations: make(map[string]time.Duration),
			StageCounts:    make(map[string]int64),
		},
		costTracker: &CostTracker{
			ModelCosts: make(map[string]float64),
			StageCosts: make(map[string]float64),
		},
	}

	if cfg.Enabled && cfg.PeriodicLogs {
		go t.startPeriodicReporting()
	}

	return t
}

// RecordRunEvent records a complete research run
func (t *Telemetry) RecordRunEvent(ctx context.Context, event RunEvent) {
	if !t.config.Enabled {
		return
	}

	runsTotal.WithLabelValues(event.Outcome).Inc()
	runDuration.Observe(event.Duration.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalRuns++
	if event.Outcome == "failed" {
		t.metrics.FailedRuns++
	} else {
		t.metrics.SuccessfulRuns++
	}

	if t.metrics.TotalRuns == 1 {
		t.metrics.AverageRunDuration = event.Duration
	} else {
		total := t.metrics.AverageRunDuration * time.Duration(t.metrics.TotalRuns-1)
		t.metrics.AverageRunDuration = (total + event.Duration) / time.Duration(t.metrics.TotalRuns)
	}

	t.logger.Printf("Run Event: ID=%s, Outcome=%s, Duration=%v",
		event.RunID, event.Outcome, event.Duration)
}

// RecordStageEvent records a stage execution within a run
func (t *Telemetry) RecordStageEvent(ctx context.Context, event StageEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.StageCounts[event.Stage]++
	count := t.metrics.StageCounts[event.Stage]
	if count == 1 {
		t.metrics.StageDurations[event.Stage] = event.Duration
	} else {
		total := t.metrics.StageDurations[event.Stage] * time.Duration(count-1)
		t.metrics.StageDurations[event.Stage] = (total + event.Duration) / time.Duration(count)
	}

	t.costTracker.TotalCost += event.Cost
	t.costTracker.TotalTokens += event.TokensUsed
	if t.config.CostTracking {
		t.costTracker.StageCosts[event.Stage] += event.Cost
		if event.ModelUsed != "" {
			t.costTracker.ModelCosts[event.ModelUsed] += event.Cost
		}
	}

	t.logger.Printf("Stage Event: Run=%s, Stage=%s, Success=%t, Duration=%v, Cost=$%.4f",
		event.RunID, event.Stage, event.Success, event.Duration, event.Cost)
}

// RecordSearchEvent records a single search execution
func (t *Telemetry) RecordSearchEvent(ctx context.Context, event SearchEvent) {
	if !t.config.Enabled {
		return
	}

	status := "success"
	if !event.Success {
		status = "failure"
	}
	searchesTotal.WithLabelValues(status).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.SearchesLaunched++
	if event.Success {
		t.metrics.SearchesSucceeded++
	} else {
		t.metrics.SearchesFailed++
	}

	t.logger.Printf("Search Event: Run=%s, Query=%q, Success=%t, Duration=%v",
		event.RunID, event.Query, event.Success, event.Duration)
}

// GetMetrics returns a snapshot of current metrics
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	metrics := *t.metrics
	metrics.StageDurations = make(map[string]time.Duration, len(t.metrics.StageDurations))
	metrics.StageCounts = make(map[string]int64, len(t.metrics.StageCounts))
	for k, v := range t.metrics.StageDurations {
		metrics.StageDurations[k] = v
	}
	for k, v := range t.metrics.StageCounts {
		metrics.StageCounts[k] = v
	}
	return metrics
}

// GetCostSummary returns the current cost summary
func (t *Telemetry) GetCostSummary() CostSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	summary := CostSummary{
		TotalCost:   t.costTracker.TotalCost,
		TotalTokens: t.costTracker.TotalTokens,
		ModelCosts:  make(map[string]float64, len(t.costTracker.ModelCosts)),
		StageCosts:  make(map[string]float64, len(t.costTracker.StageCosts)),
	}
	for k, v := range t.costTracker.ModelCosts {
		summary.ModelCosts[k] = v
	}
	for k, v := range t.costTracker.StageCosts {
		summary.StageCosts[k] = v
	}
	return summary
}

// CostSummary provides a summary of LLM spend
type CostSummary struct {
	TotalCost   float64
	TotalTokens int64
	ModelCosts  map[string]float64
	StageCosts  map[string]float64
}

// startPeriodicReporting logs a metrics snapshot every minute
func (t *Telemetry) startPeriodicReporting() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		metrics := t.GetMetrics()
		costs := t.GetCostSummary()

		t.logger.Printf("Metrics Snapshot: Runs=%d/%d, Searches=%d/%d, AvgDuration=%v, TotalCost=$%.4f, TotalTokens=%d",
			metrics.SuccessfulRuns, metrics.TotalRuns,
			metrics.SearchesSucceeded, metrics.SearchesLaunched,
			metrics.AverageRunDuration, costs.TotalCost, costs.TotalTokens)
	}
}

// Shutdown logs the final report
func (t *Telemetry) Shutdown() {
	metrics := t.GetMetrics()
	costs := t.GetCostSummary()

	t.logger.Println("Shutting down telemetry...")
	t.logger.Printf("  Total Runs: %d", metrics.TotalRuns)
	if metrics.TotalRuns > 0 {
		t.logger.Printf("  Success Rate: %.2f%%", float64(metrics.SuccessfulRuns)/float64(metrics.TotalRuns)*100)
	}
	t.logger.Printf("  Average Run Duration: %v", metrics.AverageRunDuration)
	t.logger.Printf("  Total Cost: $%.4f", costs.TotalCost)
	t.logger.Printf("  Total Tokens: %d", costs.TotalTokens)
}
