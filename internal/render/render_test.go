package render

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/slaffer-au/searchbot/internal/directory"
	"github.com/slaffer-au/searchbot/internal/dispatch"
	"github.com/slaffer-au/searchbot/internal/domain"
)

type fakeDirectorySource struct {
	users []domain.DirectoryEntry
	orgs  []domain.DirectoryEntry
}

func (f *fakeDirectorySource) ListUsers(ctx context.Context) ([]domain.DirectoryEntry, error) {
	return f.users, nil
}

func (f *fakeDirectorySource) ListOrganizations(ctx context.Context) ([]domain.DirectoryEntry, error) {
	return f.orgs, nil
}

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := &fakeDirectorySource{
		users: []domain.DirectoryEntry{
			{ID: 7, Name: "Alice Nguyen", Email: "alice@example.com"},
			{ID: 8, Name: "Bob Tran"},
		},
		orgs: []domain.DirectoryEntry{
			{ID: 55, Name: "Acme Pty Ltd"},
		},
	}
	dir := directory.New(src, nil, logger)
	if err := dir.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return New(Config{
		Directory:      dir,
		ZendeskBaseURL: "https://acme.zendesk.com",
		JiraBaseURL:    "https://jira.example.com",
		SalesforceURL:  "https://acme.my.salesforce.com",
	})
}

func ticket(id string) domain.Record {
	return domain.Record{
		"id":           id,
		"subject":      "Printer on fire",
		"submitter_id": "7",
		"assignee_id":  "8",
		"status":       "open",
		"description":  "It is quite literally on fire",
	}
}

func TestRender_LimitApplied(t *testing.T) {
	r := testRenderer(t)
	records := []domain.Record{ticket("1"), ticket("2"), ticket("3"), ticket("4"), ticket("5")}

	out := r.Render(domain.BackendZendesk, records, 2)

	if got := strings.Count(out, "Id: "); got != 2 {
		t.Fatalf("rendered %d records, want 2\n%s", got, out)
	}
	// Order preserved: first two records, not reordered.
	if !strings.Contains(out, "tickets/1|1>") || !strings.Contains(out, "tickets/2|2>") {
		t.Fatalf("expected records 1 and 2:\n%s", out)
	}
	if strings.Contains(out, "tickets/3|3>") {
		t.Fatalf("record past the limit leaked:\n%s", out)
	}
}

func TestRender_Idempotent(t *testing.T) {
	r := testRenderer(t)
	records := []domain.Record{ticket("1"), ticket("2")}

	first := r.Render(domain.BackendZendesk, records, 5)
	second := r.Render(domain.BackendZendesk, records, 5)
	if first != second {
		t.Fatalf("rendering is not idempotent:\n%q\n%q", first, second)
	}
}

func TestRender_DirectoryHit(t *testing.T) {
	r := testRenderer(t)
	out := r.Render(domain.BackendZendesk, []domain.Record{ticket("1")}, 1)

	if !strings.Contains(out, "Submitter: Alice Nguyen (alice@example.com)") {
		t.Fatalf("submitter not resolved with email:\n%s", out)
	}
	if !strings.Contains(out, "Assignee: Bob Tran") {
		t.Fatalf("assignee not resolved:\n%s", out)
	}
}

func TestRender_DirectoryMissRendersRawID(t *testing.T) {
	r := testRenderer(t)
	rec := ticket("1")
	rec["submitter_id"] = "42" // no such user

	out := r.Render(domain.BackendZendesk, []domain.Record{rec}, 1)
	if !strings.Contains(out, "Submitter: 42") {
		t.Fatalf("miss must render the raw id:\n%s", out)
	}
}

func TestRender_OrganizationResolved(t *testing.T) {
	r := testRenderer(t)
	rec := ticket("1")
	rec["organization_id"] = "55"

	out := r.Render(domain.BackendZendesk, []domain.Record{rec}, 1)
	if !strings.Contains(out, "Organization: Acme Pty Ltd") {
		t.Fatalf("organization not resolved:\n%s", out)
	}
}

func TestRender_DescriptionNormalizedAndTruncated(t *testing.T) {
	r := testRenderer(t)
	rec := ticket("1")
	rec["description"] = "line one\r\nline two\nline three " + strings.Repeat("x", 200)

	out := r.Render(domain.BackendZendesk, []domain.Record{rec}, 1)
	if strings.Contains(out, "line one\r") || strings.Contains(out, "one\nline") {
		t.Fatalf("newlines not normalized:\n%q", out)
	}
	if !strings.Contains(out, "line one line two line three") {
		t.Fatalf("normalized description missing:\n%s", out)
	}

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Description: ") {
			desc := strings.TrimPrefix(line, "Description: ")
			if len([]rune(desc)) > 100 {
				t.Fatalf("description not truncated to 100: %d chars", len([]rune(desc)))
			}
			return
		}
	}
	t.Fatalf("no description line found:\n%s", out)
}

func TestRender_MissingFieldsOmitted(t *testing.T) {
	r := testRenderer(t)
	rec := domain.Record{"id": "9", "subject": "Half a ticket"}

	out := r.Render(domain.BackendZendesk, []domain.Record{rec}, 1)
	if !strings.Contains(out, "Subject: Half a ticket") {
		t.Fatalf("present field must render:\n%s", out)
	}
	if strings.Contains(out, "Status:") || strings.Contains(out, "Description:") {
		t.Fatalf("absent fields must be omitted:\n%s", out)
	}
}

func TestRender_JiraLink(t *testing.T) {
	r := testRenderer(t)
	rec := domain.Record{"key": "OPS-17", "summary": "Disk full", "status": "Open"}

	out := r.Render(domain.BackendJira, []domain.Record{rec}, 1)
	if !strings.Contains(out, "<https://jira.example.com/browse/OPS-17|OPS-17>") {
		t.Fatalf("jira deep link missing:\n%s", out)
	}
}

func TestRenderAll_ErrorAndSuccessSegments(t *testing.T) {
	r := testRenderer(t)
	results := []dispatch.Result{
		{Backend: domain.BackendZendesk, Err: &domain.QueryError{Backend: domain.BackendZendesk, Detail: "unbalanced quotes"}},
		{Backend: domain.BackendJira, Records: []domain.Record{{"key": "OPS-1", "summary": "It works"}}},
	}

	out := r.RenderAll(results, 10)
	blocks := strings.Split(out, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2:\n%s", len(blocks), out)
	}
	if !strings.Contains(blocks[0], "Zendesk search error") || !strings.Contains(blocks[0], "unbalanced quotes") {
		t.Fatalf("missing error segment:\n%s", out)
	}
	if !strings.Contains(blocks[1], "*Jira results*") || !strings.Contains(blocks[1], "OPS-1") {
		t.Fatalf("missing success segment:\n%s", out)
	}
}

func TestRenderAll_PerBackendNoResults(t *testing.T) {
	r := testRenderer(t)
	results := []dispatch.Result{
		{Backend: domain.BackendZendesk},
		{Backend: domain.BackendJira, Records: []domain.Record{{"key": "OPS-1", "summary": "hit"}}},
	}

	out := r.RenderAll(results, 10)
	if !strings.Contains(out, "Zendesk: no results found") {
		t.Fatalf("per-backend empty line missing:\n%s", out)
	}
	if !strings.Contains(out, "*Jira results*") {
		t.Fatalf("jira block missing:\n%s", out)
	}
}

func TestRenderAll_TransportErrorSegment(t *testing.T) {
	r := testRenderer(t)
	results := []dispatch.Result{
		{Backend: domain.BackendJira, Err: context.DeadlineExceeded},
	}

	out := r.RenderAll(results, 10)
	if !strings.Contains(out, "Jira is unavailable") {
		t.Fatalf("transport error segment missing:\n%s", out)
	}
}

func TestRender_SalesforceRecord(t *testing.T) {
	r := testRenderer(t)
	rec := domain.Record{"id": "003xx0000012345", "type": "Contact", "name": "Jane Doe"}

	out := r.Render(domain.BackendSalesforce, []domain.Record{rec}, 1)
	if !strings.Contains(out, "<https://acme.my.salesforce.com/003xx0000012345|003xx0000012345>") {
		t.Fatalf("salesforce deep link missing:\n%s", out)
	}
	if !strings.Contains(out, "Type: Contact") || !strings.Contains(out, "Name: Jane Doe") {
		t.Fatalf("fields missing:\n%s", out)
	}
}
