// Package dispatch fans one Invocation out to the selected backends,
// strictly sequentially and in a fixed order, isolating failures so a
// broken backend never hides results from a working one.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slaffer-au/searchbot/internal/domain"
)

// Result is the outcome of querying one backend. Records and Err are
// mutually exclusive; an empty successful result keeps Err == nil so
// "no results" and "error" stay distinguishable downstream.
type Result struct {
	Backend domain.Backend
	Records []domain.Record
	Err     error
}

// Dispatcher routes invocations to backend connectors.
type Dispatcher struct {
	searchers map[domain.Backend]domain.Searcher
	logger    *slog.Logger
}

// New creates a Dispatcher. A nil searcher marks the backend as not
// configured; invoking it yields a backend-scoped error result.
func New(zendesk, jira, salesforce domain.Searcher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		searchers: map[domain.Backend]domain.Searcher{
			domain.BackendZendesk:    zendesk,
			domain.BackendJira:       jira,
			domain.BackendSalesforce: salesforce,
		},
		logger: logger,
	}
}

// Dispatch queries each selected backend in the fixed order
// Zendesk -> Jira -> Salesforce. A query-syntax rejection is recorded
// and the remaining backends still run; a hard transport failure is
// recorded and the remaining backends for this invocation are
// skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, inv domain.Invocation) []Result {
	if !inv.Invoked || inv.Help {
		return nil
	}

	var results []Result
	for _, b := range domain.DispatchOrder {
		if !inv.Wants(b) {
			continue
		}

		s := d.searchers[b]
		if s == nil {
			results = append(results, Result{Backend: b, Err: fmt.Errorf("%s backend not configured", b)})
			continue
		}

		req := domain.SearchRequest{Query: inv.Query}
		if b == domain.BackendZendesk || b == domain.BackendJira {
			req.TextOnly = inv.TextOnly
		}

		recs, err := s.Search(ctx, req)
		if err != nil {
			results = append(results, Result{Backend: b, Err: err})
			if domain.IsQueryError(err) {
				d.logger.Info("backend rejected query", "backend", b, "err", err)
				continue
			}
			d.logger.Warn("backend transport failure, skipping remaining backends",
				"backend", b, "err", err)
			break
		}

		d.logger.Debug("backend search completed", "backend", b, "records", len(recs))
		results = append(results, Result{Backend: b, Records: recs})
	}
	return results
}
