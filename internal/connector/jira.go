package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slaffer-au/searchbot/internal/domain"
)

// jiraMaxResults caps the page the API returns; the renderer applies
// the user's limit afterwards.
const jiraMaxResults = 100

// Jira queries the Jira REST API (v2 search).
type Jira struct {
	baseURL  string
	username string
	password string
	client   *http.Client
	logger   *slog.Logger
}

type JiraConfig struct {
	ServerURL string
	Username  string
	Password  string
	Timeout   time.Duration
	Logger    *slog.Logger
}

func NewJira(cfg JiraConfig) *Jira {
	return &Jira{
		baseURL:  strings.TrimRight(cfg.ServerURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		client:   newHTTPClient(cfg.Timeout),
		logger:   cfg.Logger,
	}
}

// BaseURL is the server URL issues are deep-linked against.
func (j *Jira) BaseURL() string { return j.baseURL }

type jiraSearchResponse struct {
	Issues []jiraIssue `json:"issues"`
}

type jiraIssue struct {
	Key    string     `json:"key"`
	Fields jiraFields `json:"fields"`
}

type jiraFields struct {
	Summary     string    `json:"summary"`
	Status      *jiraName `json:"status"`
	Reporter    *jiraUser `json:"reporter"`
	Assignee    *jiraUser `json:"assignee"`
	Description string    `json:"description"`
}

type jiraName struct {
	Name string `json:"name"`
}

type jiraUser struct {
	DisplayName string `json:"displayName"`
}

type jiraErrorResponse struct {
	ErrorMessages []string `json:"errorMessages"`
}

// Search runs a JQL search. In text-only mode the raw query is
// wrapped in a full-text JQL predicate instead of being passed as
// JQL, so both backends of a combined text search accept the same
// plain string.
func (j *Jira) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Record, error) {
	jql := req.Query
	if req.TextOnly {
		jql = fmt.Sprintf("text ~ %q", req.Query)
	}

	params := url.Values{}
	params.Set("jql", jql)
	params.Set("maxResults", fmt.Sprintf("%d", jiraMaxResults))

	endpoint := fmt.Sprintf("%s/rest/api/2/search?%s", j.baseURL, params.Encode())
	body, err := j.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("jira search: %w", err)
	}

	var resp jiraSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("jira search: parse response: %w", err)
	}

	var records []domain.Record
	for _, issue := range resp.Issues {
		records = append(records, issueRecord(issue))
	}
	return records, nil
}

// Issue fetches a single issue by key.
func (j *Jira) Issue(ctx context.Context, key string) (domain.Record, error) {
	endpoint := fmt.Sprintf("%s/rest/api/2/issue/%s", j.baseURL, url.PathEscape(key))
	body, err := j.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("jira issue %s: %w", key, err)
	}

	var issue jiraIssue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("jira issue %s: parse response: %w", key, err)
	}
	return issueRecord(issue), nil
}

func issueRecord(issue jiraIssue) domain.Record {
	rec := domain.Record{
		"key":         issue.Key,
		"summary":     issue.Fields.Summary,
		"description": issue.Fields.Description,
	}
	if issue.Fields.Status != nil {
		rec["status"] = issue.Fields.Status.Name
	}
	if issue.Fields.Reporter != nil {
		rec["reporter"] = issue.Fields.Reporter.DisplayName
	}
	if issue.Fields.Assignee != nil {
		rec["assignee"] = issue.Fields.Assignee.DisplayName
	}
	return rec
}

func (j *Jira) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(j.username, j.password)

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusBadRequest:
		// Jira reports bad JQL as 400 with errorMessages.
		var apiErr jiraErrorResponse
		detail := string(body)
		if err := json.Unmarshal(body, &apiErr); err == nil && len(apiErr.ErrorMessages) > 0 {
			detail = strings.Join(apiErr.ErrorMessages, "; ")
		}
		return nil, &domain.QueryError{Backend: domain.BackendJira, Detail: detail}
	default:
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
}
