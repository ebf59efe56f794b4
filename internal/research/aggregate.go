package research

import (
	"context"
	"sync"
	"time"
)

// performSearches fans out one goroutine per planned item and joins on all
// of them. Successes are collected in completion order; failures are
// counted and logged but never cancel sibling searches, so a plan where
// every item fails simply yields an empty evidence slice. The only error
// returned is run cancellation, which stops awaiting further completions.
func (m *Manager) performSearches(ctx context.Context, plan SearchPlan) ([]string, error) {
	if len(plan.Searches) == 0 {
		m.logger.Printf("[run %s] no searches to perform", RunIDFromContext(ctx))
		return nil, nil
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		summaries []string
		failed    int
		completed int
	)

	startTime := time.Now()
	for _, item := range plan.Searches {
		wg.Add(1)
		go func(item SearchItem) {
			defer wg.Done()
			result := m.searcher.Search(ctx, item)

			mu.Lock()
			defer mu.Unlock()
			completed++
			if result.Failed() {
				failed++
			} else {
				summaries = append(summaries, result.Summary)
			}
			m.logger.Printf("[run %s] search progress: %d/%d completed", RunIDFromContext(ctx), completed, len(plan.Searches))
		}(item)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	m.logger.Printf("[run %s] searches complete in %v: %d succeeded, %d failed",
		RunIDFromContext(ctx), time.Since(startTime), len(summaries), failed)
	return summaries, nil
}
