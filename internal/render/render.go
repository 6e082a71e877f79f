// Package render projects raw backend records into a fixed field set
// per backend and assembles the combined reply text. Rendering is
// pure string work over already-fetched records, so re-rendering the
// same input always produces identical output.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/slaffer-au/searchbot/internal/directory"
	"github.com/slaffer-au/searchbot/internal/dispatch"
	"github.com/slaffer-au/searchbot/internal/domain"
)

// descriptionMax bounds the description/summary field. Newlines are
// normalized to spaces before the cut so the truncation point never
// lands inside a link token.
const descriptionMax = 100

var fieldOrder = map[domain.Backend][]string{
	domain.BackendZendesk:    {"id", "subject", "submitter_id", "assignee_id", "organization_id", "status", "description"},
	domain.BackendJira:       {"key", "summary", "status", "reporter", "assignee", "description"},
	domain.BackendSalesforce: {"id", "type", "name"},
}

var fieldLabels = map[string]string{
	"id":              "Id",
	"key":             "Key",
	"subject":         "Subject",
	"summary":         "Summary",
	"submitter_id":    "Submitter",
	"assignee_id":     "Assignee",
	"organization_id": "Organization",
	"status":          "Status",
	"description":     "Description",
	"reporter":        "Reporter",
	"assignee":        "Assignee",
	"type":            "Type",
	"name":            "Name",
}

var backendTitles = map[domain.Backend]string{
	domain.BackendZendesk:    "Zendesk",
	domain.BackendJira:       "Jira",
	domain.BackendSalesforce: "Salesforce",
}

// Renderer formats backend records for the chat reply. Link URLs are
// built by templating the record id into each backend's canonical
// deep-link form.
type Renderer struct {
	dir           *directory.Cache
	zendeskBase   string // https://<subdomain>.zendesk.com
	jiraBase      string // https://jira.example.com
	salesforceURL string // https://<instance>.my.salesforce.com
}

type Config struct {
	Directory      *directory.Cache
	ZendeskBaseURL string
	JiraBaseURL    string
	SalesforceURL  string
}

func New(cfg Config) *Renderer {
	return &Renderer{
		dir:           cfg.Directory,
		zendeskBase:   strings.TrimRight(cfg.ZendeskBaseURL, "/"),
		jiraBase:      strings.TrimRight(cfg.JiraBaseURL, "/"),
		salesforceURL: strings.TrimRight(cfg.SalesforceURL, "/"),
	}
}

// RenderAll assembles the final reply: one block per dispatched
// backend, in dispatch order, separated by blank lines. Errors and
// empty results each get their own backend-labeled line; they are
// never collapsed into a single overall message.
func (r *Renderer) RenderAll(results []dispatch.Result, limit int) string {
	var blocks []string
	for _, res := range results {
		title := backendTitles[res.Backend]
		switch {
		case res.Err != nil && domain.IsQueryError(res.Err):
			blocks = append(blocks, fmt.Sprintf("%s search error: %v", title, res.Err))
		case res.Err != nil:
			blocks = append(blocks, fmt.Sprintf("%s is unavailable: %v", title, res.Err))
		case len(res.Records) == 0:
			blocks = append(blocks, fmt.Sprintf("%s: no results found", title))
		default:
			blocks = append(blocks, r.Render(res.Backend, res.Records, limit))
		}
	}
	return strings.Join(blocks, "\n\n")
}

// Render formats up to limit records for one backend. Records are
// taken in the order received; anything past the limit is dropped,
// never reordered.
func (r *Renderer) Render(b domain.Backend, records []domain.Record, limit int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*%s results*", backendTitles[b]))

	emitted := 0
	for _, rec := range records {
		if emitted >= limit {
			break
		}
		sb.WriteString("\n")
		sb.WriteString(r.renderRecord(b, rec))
		emitted++
	}
	return sb.String()
}

// renderRecord renders one record's fixed field list. A missing or
// empty field is omitted; it never aborts the rest of the record.
func (r *Renderer) renderRecord(b domain.Backend, rec domain.Record) string {
	var lines []string
	for _, name := range fieldOrder[b] {
		v, ok := rec.Field(name)
		if !ok {
			continue
		}

		switch name {
		case "id", "key":
			v = r.link(b, v)
		case "submitter_id", "assignee_id":
			v = r.resolveUser(v)
		case "organization_id":
			v = r.resolveOrganization(v)
		case "description", "summary":
			v = truncate(normalizeWhitespace(v), descriptionMax)
		}

		lines = append(lines, fmt.Sprintf("%s: %s", fieldLabels[name], v))
	}
	return strings.Join(lines, "\n") + "\n"
}

// link renders the record id as a deep link in Slack mrkdwn form.
func (r *Renderer) link(b domain.Backend, id string) string {
	var url string
	switch b {
	case domain.BackendZendesk:
		url = fmt.Sprintf("%s/agent/tickets/%s", r.zendeskBase, id)
	case domain.BackendJira:
		url = fmt.Sprintf("%s/browse/%s", r.jiraBase, id)
	case domain.BackendSalesforce:
		url = fmt.Sprintf("%s/%s", r.salesforceURL, id)
	default:
		return id
	}
	return fmt.Sprintf("<%s|%s>", url, id)
}

// resolveUser maps a numeric user id to "name (email)" or "name". On
// any miss the raw id is rendered unchanged; a miss is never an error.
func (r *Renderer) resolveUser(raw string) string {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return raw
	}
	e, ok := r.dir.LookupUser(id)
	if !ok {
		return raw
	}
	if e.Email != "" {
		return fmt.Sprintf("%s (%s)", e.Name, e.Email)
	}
	return e.Name
}

func (r *Renderer) resolveOrganization(raw string) string {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return raw
	}
	e, ok := r.dir.LookupOrganization(id)
	if !ok {
		return raw
	}
	return e.Name
}

var whitespaceReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func normalizeWhitespace(s string) string {
	return whitespaceReplacer.Replace(s)
}

func truncate(s string, max int) string {
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	return string(rs[:max])
}
