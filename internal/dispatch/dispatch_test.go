package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/slaffer-au/searchbot/internal/domain"
)

type fakeSearcher struct {
	records []domain.Record
	err     error
	calls   []domain.SearchRequest
}

func (f *fakeSearcher) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Record, error) {
	f.calls = append(f.calls, req)
	return f.records, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func invocation(backends ...domain.Backend) domain.Invocation {
	return domain.Invocation{
		Invoked:  true,
		Backends: backends,
		Query:    "test query",
		HasQuery: true,
		Limit:    10,
	}
}

func TestDispatch_NotInvoked_NoBackendQueried(t *testing.T) {
	zd := &fakeSearcher{}
	jr := &fakeSearcher{}
	d := New(zd, jr, nil, testLogger())

	results := d.Dispatch(context.Background(), domain.Invocation{})
	if results != nil {
		t.Fatalf("expected no results, got %v", results)
	}
	if len(zd.calls)+len(jr.calls) != 0 {
		t.Fatal("no backend may be queried when not invoked")
	}
}

func TestDispatch_HelpSkipsBackends(t *testing.T) {
	zd := &fakeSearcher{}
	d := New(zd, nil, nil, testLogger())

	inv := domain.Invocation{Invoked: true, Help: true}
	if results := d.Dispatch(context.Background(), inv); results != nil {
		t.Fatalf("expected no results for help, got %v", results)
	}
	if len(zd.calls) != 0 {
		t.Fatal("help invocations must not query backends")
	}
}

func TestDispatch_FixedOrder(t *testing.T) {
	zd := &fakeSearcher{records: []domain.Record{{"id": "1"}}}
	jr := &fakeSearcher{records: []domain.Record{{"key": "OPS-1"}}}
	sf := &fakeSearcher{records: []domain.Record{{"id": "a"}}}
	d := New(zd, jr, sf, testLogger())

	// Selection order in the invocation must not matter.
	inv := invocation(domain.BackendSalesforce, domain.BackendZendesk, domain.BackendJira)
	results := d.Dispatch(context.Background(), inv)

	want := []domain.Backend{domain.BackendZendesk, domain.BackendJira, domain.BackendSalesforce}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, b := range want {
		if results[i].Backend != b {
			t.Fatalf("results[%d].Backend = %s, want %s", i, results[i].Backend, b)
		}
	}
}

func TestDispatch_OnlySelectedBackends(t *testing.T) {
	zd := &fakeSearcher{}
	jr := &fakeSearcher{}
	sf := &fakeSearcher{}
	d := New(zd, jr, sf, testLogger())

	d.Dispatch(context.Background(), invocation(domain.BackendJira))

	if len(zd.calls) != 0 || len(sf.calls) != 0 {
		t.Fatal("unselected backends must not be queried")
	}
	if len(jr.calls) != 1 {
		t.Fatalf("jira calls = %d, want 1", len(jr.calls))
	}
}

func TestDispatch_QueryErrorContinuesToNextBackend(t *testing.T) {
	zd := &fakeSearcher{err: &domain.QueryError{Backend: domain.BackendZendesk, Detail: "unbalanced quotes"}}
	jr := &fakeSearcher{records: []domain.Record{{"key": "OPS-1"}}}
	d := New(zd, jr, nil, testLogger())

	results := d.Dispatch(context.Background(), invocation(domain.BackendZendesk, domain.BackendJira))

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Err == nil || !domain.IsQueryError(results[0].Err) {
		t.Fatalf("results[0].Err = %v, want query error", results[0].Err)
	}
	if results[1].Err != nil || len(results[1].Records) != 1 {
		t.Fatalf("jira should have run and succeeded, got %+v", results[1])
	}
}

func TestDispatch_TransportErrorSkipsRemaining(t *testing.T) {
	zd := &fakeSearcher{err: errors.New("context deadline exceeded")}
	jr := &fakeSearcher{records: []domain.Record{{"key": "OPS-1"}}}
	d := New(zd, jr, nil, testLogger())

	results := d.Dispatch(context.Background(), invocation(domain.BackendZendesk, domain.BackendJira))

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (remaining skipped)", len(results))
	}
	if results[0].Backend != domain.BackendZendesk || results[0].Err == nil {
		t.Fatalf("unexpected result: %+v", results[0])
	}
	if len(jr.calls) != 0 {
		t.Fatal("jira must be skipped after a transport failure")
	}
}

func TestDispatch_EmptySuccessIsNotAnError(t *testing.T) {
	zd := &fakeSearcher{records: nil}
	d := New(zd, nil, nil, testLogger())

	results := d.Dispatch(context.Background(), invocation(domain.BackendZendesk))
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("empty result must not be an error, got %v", results[0].Err)
	}
	if len(results[0].Records) != 0 {
		t.Fatalf("expected zero records, got %d", len(results[0].Records))
	}
}

func TestDispatch_TextOnlyOnlyForZendeskAndJira(t *testing.T) {
	zd := &fakeSearcher{}
	jr := &fakeSearcher{}
	sf := &fakeSearcher{}
	d := New(zd, jr, sf, testLogger())

	inv := invocation(domain.BackendZendesk, domain.BackendJira, domain.BackendSalesforce)
	inv.TextOnly = true
	d.Dispatch(context.Background(), inv)

	if !zd.calls[0].TextOnly || !jr.calls[0].TextOnly {
		t.Fatal("zendesk and jira requests should carry the text-only flag")
	}
	if sf.calls[0].TextOnly {
		t.Fatal("salesforce request must never carry the text-only flag")
	}
}

func TestDispatch_UnconfiguredBackend(t *testing.T) {
	zd := &fakeSearcher{records: []domain.Record{{"id": "1"}}}
	d := New(zd, nil, nil, testLogger())

	results := d.Dispatch(context.Background(), invocation(domain.BackendZendesk, domain.BackendJira))
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[1].Backend != domain.BackendJira || results[1].Err == nil {
		t.Fatalf("expected error result for unconfigured jira, got %+v", results[1])
	}
}
