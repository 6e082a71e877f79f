// Package connector implements the HTTP clients for the three backend
// record systems. Each client translates its backend's wire format
// into backend-agnostic domain.Records and reports query rejections
// as domain.QueryError, distinct from transport failures.
package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/slaffer-au/searchbot/internal/domain"
)

// Zendesk queries the Zendesk Support REST API. It is both a
// domain.Searcher (ticket search) and a domain.DirectorySource (user
// and organization listings for the directory cache).
type Zendesk struct {
	baseURL  string
	email    string
	apiToken string
	client   *http.Client
	logger   *slog.Logger
}

type ZendeskConfig struct {
	Subdomain string
	Email     string
	APIToken  string
	Timeout   time.Duration
	Logger    *slog.Logger

	// BaseURL overrides the subdomain-derived URL, for tests.
	BaseURL string
}

func NewZendesk(cfg ZendeskConfig) *Zendesk {
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.zendesk.com", cfg.Subdomain)
	}
	return &Zendesk{
		baseURL:  base,
		email:    cfg.Email,
		apiToken: cfg.APIToken,
		client:   newHTTPClient(cfg.Timeout),
		logger:   cfg.Logger,
	}
}

// BaseURL is the canonical URL tickets are deep-linked against.
func (z *Zendesk) BaseURL() string { return z.baseURL }

type zendeskSearchResponse struct {
	Results []zendeskResult `json:"results"`
}

type zendeskResult struct {
	ResultType     string `json:"result_type"`
	ID             int64  `json:"id"`
	Subject        string `json:"subject"`
	SubmitterID    *int64 `json:"submitter_id"`
	AssigneeID     *int64 `json:"assignee_id"`
	OrganizationID *int64 `json:"organization_id"`
	Status         string `json:"status"`
	Description    string `json:"description"`
}

type zendeskAPIError struct {
	Error       string `json:"error"`
	Description string `json:"description"`
}

// Search runs the query against the non-field-specific search
// endpoint, newest tickets first. Non-ticket results (users,
// organizations) are filtered out of the hit list.
func (z *Zendesk) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Record, error) {
	params := url.Values{}
	params.Set("query", req.Query)
	params.Set("sort_by", "created_at")
	params.Set("sort_order", "desc")

	endpoint := fmt.Sprintf("%s/api/v2/search.json?%s", z.baseURL, params.Encode())
	body, err := z.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("zendesk search: %w", err)
	}

	var resp zendeskSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("zendesk search: parse response: %w", err)
	}

	var records []domain.Record
	for _, res := range resp.Results {
		if res.ResultType != "ticket" {
			continue
		}
		rec := domain.Record{
			"id":          strconv.FormatInt(res.ID, 10),
			"subject":     res.Subject,
			"status":      res.Status,
			"description": res.Description,
		}
		if res.SubmitterID != nil {
			rec["submitter_id"] = strconv.FormatInt(*res.SubmitterID, 10)
		}
		if res.AssigneeID != nil {
			rec["assignee_id"] = strconv.FormatInt(*res.AssigneeID, 10)
		}
		if res.OrganizationID != nil {
			rec["organization_id"] = strconv.FormatInt(*res.OrganizationID, 10)
		}
		records = append(records, rec)
	}
	return records, nil
}

type zendeskUserPage struct {
	Users    []zendeskDirectoryItem `json:"users"`
	NextPage string                 `json:"next_page"`
}

type zendeskOrgPage struct {
	Organizations []zendeskDirectoryItem `json:"organizations"`
	NextPage      string                 `json:"next_page"`
}

type zendeskDirectoryItem struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ListUsers walks the paginated users listing to the end. All pages
// are accumulated before the caller swaps its tables, so no partial
// view ever serves lookups.
func (z *Zendesk) ListUsers(ctx context.Context) ([]domain.DirectoryEntry, error) {
	var entries []domain.DirectoryEntry
	next := fmt.Sprintf("%s/api/v2/users.json", z.baseURL)
	for next != "" {
		body, err := z.get(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("zendesk list users: %w", err)
		}
		var page zendeskUserPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("zendesk list users: parse response: %w", err)
		}
		for _, u := range page.Users {
			entries = append(entries, domain.DirectoryEntry{ID: u.ID, Name: u.Name, Email: u.Email})
		}
		next = page.NextPage
	}
	return entries, nil
}

// ListOrganizations walks the paginated organizations listing.
func (z *Zendesk) ListOrganizations(ctx context.Context) ([]domain.DirectoryEntry, error) {
	var entries []domain.DirectoryEntry
	next := fmt.Sprintf("%s/api/v2/organizations.json", z.baseURL)
	for next != "" {
		body, err := z.get(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("zendesk list organizations: %w", err)
		}
		var page zendeskOrgPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("zendesk list organizations: parse response: %w", err)
		}
		for _, o := range page.Organizations {
			entries = append(entries, domain.DirectoryEntry{ID: o.ID, Name: o.Name})
		}
		next = page.NextPage
	}
	return entries, nil
}

func (z *Zendesk) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	// Token auth per the Zendesk API convention: "email/token" as the
	// basic-auth username.
	req.SetBasicAuth(z.email+"/token", z.apiToken)

	resp, err := z.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		var apiErr zendeskAPIError
		detail := string(body)
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Description != "" {
			detail = apiErr.Description
		}
		return nil, &domain.QueryError{Backend: domain.BackendZendesk, Detail: detail}
	default:
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
}
