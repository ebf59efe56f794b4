package research

import "fmt"

// PlanningError aborts the run: no plan means nothing to search.
type PlanningError struct {
	Err error
}

func (e PlanningError) Error() string { return fmt.Sprintf("planning: %v", e.Err) }
func (e PlanningError) Unwrap() error { return e.Err }

// SearchError marks a single failed search. It never propagates out of the
// aggregation stage; it travels inside a SearchResult.
type SearchError struct {
	Item SearchItem
	Err  error
}

func (e SearchError) Error() string {
	return fmt.Sprintf("search %q: %v", e.Item.Query, e.Err)
}
func (e SearchError) Unwrap() error { return e.Err }

// ReportingError aborts the run before delivery: there is no report to send.
type ReportingError struct {
	Err error
}

func (e ReportingError) Error() string { return fmt.Sprintf("reporting: %v", e.Err) }
func (e ReportingError) Unwrap() error { return e.Err }

// DeliveryError is non-fatal: the report was already produced.
type DeliveryError struct {
	Err error
}

func (e DeliveryError) Error() string { return fmt.Sprintf("delivery: %v", e.Err) }
func (e DeliveryError) Unwrap() error { return e.Err }
