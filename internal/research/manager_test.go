package research

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func collect(stream <-chan string) []string {
	var msgs []string
	for msg := range stream {
		msgs = append(msgs, msg)
	}
	return msgs
}

func fixedPlan(n int) SearchPlan {
	var plan SearchPlan
	for i := 0; i < n; i++ {
		plan.Searches = append(plan.Searches, SearchItem{
			Query:  fmt.Sprintf("query %d", i),
			Reason: fmt.Sprintf("reason %d", i),
		})
	}
	return plan
}

func succeedingSearcher() Searcher {
	return searcherFunc(func(ctx context.Context, item SearchItem) SearchResult {
		return SearchResult{Item: item, Summary: "summary for " + item.Query}
	})
}

func TestRunHappyPathStatusSequence(t *testing.T) {
	report := ReportData{
		ShortSummary:      "All good.",
		MarkdownReport:    "# Findings\n\nEverything checks out.",
		FollowUpQuestions: []string{"what next"},
	}
	planner := &stubPlanner{plan: fixedPlan(3)}
	writer := &stubWriter{report: report}
	mailer := &stubMailer{}
	mgr := newTestManager(planner, succeedingSearcher(), writer, mailer)

	msgs := collect(mgr.Run(context.Background(), "test query"))

	want := []string{
		"Starting research...",
		"Searches planned (3 searches), starting to search...",
		"Searches complete (3 results), writing report...",
		"Report written, sending email...",
		"Email sent, research complete",
		report.MarkdownReport,
	}
	if !reflect.DeepEqual(msgs, want) {
		t.Fatalf("status sequence mismatch:\n got %q\nwant %q", msgs, want)
	}
	if got := mailer.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one delivery attempt, got %d", got)
	}
}

func TestRunStatusSequenceIsDeterministic(t *testing.T) {
	build := func() *Manager {
		return newTestManager(
			&stubPlanner{plan: fixedPlan(4)},
			succeedingSearcher(),
			&stubWriter{report: ReportData{ShortSummary: "s", MarkdownReport: "# r"}},
			&stubMailer{},
		)
	}

	first := collect(build().Run(context.Background(), "test query"))
	for i := 0; i < 5; i++ {
		again := collect(build().Run(context.Background(), "test query"))
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d diverged:\n got %q\nwant %q", i, again, first)
		}
	}
}

func TestRunToleratesPartialSearchFailures(t *testing.T) {
	// 3 planned searches, one of which fails: the run continues and the
	// writer sees exactly the two successful summaries.
	searcher := searcherFunc(func(ctx context.Context, item SearchItem) SearchResult {
		if item.Query == "query 1" {
			return SearchResult{Item: item, Err: SearchError{Item: item, Err: errors.New("timeout")}}
		}
		return SearchResult{Item: item, Summary: "summary for " + item.Query}
	})
	writer := &stubWriter{report: ReportData{ShortSummary: "s", MarkdownReport: "# r"}}
	mgr := newTestManager(&stubPlanner{plan: fixedPlan(3)}, searcher, writer, &stubMailer{})

	msgs := collect(mgr.Run(context.Background(), "test query"))

	if msgs[len(msgs)-1] != "# r" {
		t.Fatalf("expected report body as final message, got %q", msgs[len(msgs)-1])
	}
	found := false
	for _, msg := range msgs {
		if msg == "Searches complete (2 results), writing report..." {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 2-result status line, got %q", msgs)
	}
	if len(writer.lastEvidence) != 2 {
		t.Fatalf("writer should receive 2 summaries, got %d", len(writer.lastEvidence))
	}
}

func TestRunPlanningFailureStopsPipeline(t *testing.T) {
	planner := &stubPlanner{err: PlanningError{Err: errors.New("model unavailable")}}
	writer := &stubWriter{report: ReportData{MarkdownReport: "# r"}}
	mailer := &stubMailer{}
	searchCalls := 0
	searcher := searcherFunc(func(ctx context.Context, item SearchItem) SearchResult {
		searchCalls++
		return SearchResult{Item: item, Summary: "unreachable"}
	})
	mgr := newTestManager(planner, searcher, writer, mailer)

	msgs := collect(mgr.Run(context.Background(), "test query"))

	want := []string{
		"Starting research...",
		"Research failed: planning: model unavailable",
	}
	if !reflect.DeepEqual(msgs, want) {
		t.Fatalf("status sequence mismatch:\n got %q\nwant %q", msgs, want)
	}
	if searchCalls != 0 || writer.calls.Load() != 0 || mailer.calls.Load() != 0 {
		t.Fatalf("downstream stages ran after planning failure: searches=%d writes=%d sends=%d",
			searchCalls, writer.calls.Load(), mailer.calls.Load())
	}
}

func TestRunWriterFailureStopsBeforeDelivery(t *testing.T) {
	writer := &stubWriter{err: ReportingError{Err: errors.New("bad JSON")}}
	mailer := &stubMailer{}
	mgr := newTestManager(&stubPlanner{plan: fixedPlan(1)}, succeedingSearcher(), writer, mailer)

	msgs := collect(mgr.Run(context.Background(), "test query"))

	last := msgs[len(msgs)-1]
	if last != "Research failed: reporting: bad JSON" {
		t.Fatalf("unexpected terminal message %q", last)
	}
	if mailer.calls.Load() != 0 {
		t.Fatalf("mailer must not be called when the writer fails")
	}
}

func TestRunDeliveryFailureIsNonFatal(t *testing.T) {
	report := ReportData{ShortSummary: "s", MarkdownReport: "# still here"}
	mailer := &stubMailer{err: DeliveryError{Err: errors.New("sendgrid status 401")}}
	mgr := newTestManager(&stubPlanner{plan: fixedPlan(2)}, succeedingSearcher(), &stubWriter{report: report}, mailer)

	msgs := collect(mgr.Run(context.Background(), "test query"))

	if msgs[len(msgs)-1] != report.MarkdownReport {
		t.Fatalf("report body must still be the final message, got %q", msgs[len(msgs)-1])
	}
	statusLine := msgs[len(msgs)-2]
	if !strings.HasPrefix(statusLine, "Email delivery failed, report still available:") {
		t.Fatalf("expected delivery failure status, got %q", statusLine)
	}
	if !strings.Contains(statusLine, "sendgrid status 401") {
		t.Fatalf("delivery status should carry the cause, got %q", statusLine)
	}
}

func TestRunCancellationClosesStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	searcher := searcherFunc(func(ctx context.Context, item SearchItem) SearchResult {
		<-ctx.Done()
		return SearchResult{Item: item, Err: SearchError{Item: item, Err: ctx.Err()}}
	})
	writer := &stubWriter{report: ReportData{MarkdownReport: "# r"}}
	mgr := newTestManager(&stubPlanner{plan: fixedPlan(2)}, searcher, writer, &stubMailer{})

	stream := mgr.Run(ctx, "test query")
	var msgs []string
	for msg := range stream {
		msgs = append(msgs, msg)
		if len(msgs) == 2 {
			cancel() // run is mid-search at this point
		}
	}

	// The stream must close without a report, and the writer never runs.
	for _, msg := range msgs {
		if msg == "# r" {
			t.Fatalf("cancelled run emitted the report body")
		}
	}
	if writer.calls.Load() != 0 {
		t.Fatalf("writer ran after cancellation")
	}
}

func TestRunEmptyEvidenceStillWrites(t *testing.T) {
	// Every search fails; the writer is still invoked with no evidence.
	searcher := searcherFunc(func(ctx context.Context, item SearchItem) SearchResult {
		return SearchResult{Item: item, Err: SearchError{Item: item, Err: errors.New("boom")}}
	})
	writer := &stubWriter{report: ReportData{ShortSummary: "insufficient", MarkdownReport: "# Insufficient findings"}}
	mgr := newTestManager(&stubPlanner{plan: fixedPlan(3)}, searcher, writer, &stubMailer{})

	msgs := collect(mgr.Run(context.Background(), "test query"))

	if writer.calls.Load() != 1 {
		t.Fatalf("writer should run exactly once, got %d", writer.calls.Load())
	}
	if len(writer.lastEvidence) != 0 {
		t.Fatalf("writer should receive no evidence, got %d summaries", len(writer.lastEvidence))
	}
	if msgs[len(msgs)-1] != "# Insufficient findings" {
		t.Fatalf("expected insufficient-findings report as final message, got %q", msgs[len(msgs)-1])
	}
}
