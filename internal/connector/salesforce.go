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

// Salesforce queries the Salesforce REST API parameterized search,
// covering the Contact, User, and Account objects.
type Salesforce struct {
	baseURL     string
	accessToken string
	apiVersion  string
	client      *http.Client
	logger      *slog.Logger
}

type SalesforceConfig struct {
	InstanceURL string
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
	Logger      *slog.Logger
}

func NewSalesforce(cfg SalesforceConfig) *Salesforce {
	version := cfg.APIVersion
	if version == "" {
		version = "58.0"
	}
	return &Salesforce{
		baseURL:     strings.TrimRight(cfg.InstanceURL, "/"),
		accessToken: cfg.AccessToken,
		apiVersion:  version,
		client:      newHTTPClient(cfg.Timeout),
		logger:      cfg.Logger,
	}
}

// BaseURL is the instance URL records are deep-linked against.
func (s *Salesforce) BaseURL() string { return s.baseURL }

type salesforceSearchResponse struct {
	SearchRecords []salesforceRecord `json:"searchRecords"`
}

type salesforceRecord struct {
	Attributes salesforceAttributes `json:"attributes"`
	ID         string               `json:"Id"`
	Name       string               `json:"Name"`
}

type salesforceAttributes struct {
	Type string `json:"type"`
}

type salesforceAPIError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// Search runs a quick search across Contact, User, and Account.
// Records come back tagged with their object type.
func (s *Salesforce) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Record, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	params.Add("sobject", "Contact")
	params.Add("sobject", "User")
	params.Add("sobject", "Account")

	endpoint := fmt.Sprintf("%s/services/data/v%s/parameterizedSearch/?%s",
		s.baseURL, s.apiVersion, params.Encode())
	body, err := s.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("salesforce search: %w", err)
	}

	var resp salesforceSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("salesforce search: parse response: %w", err)
	}

	var records []domain.Record
	for _, sr := range resp.SearchRecords {
		records = append(records, domain.Record{
			"id":   sr.ID,
			"type": sr.Attributes.Type,
			"name": sr.Name,
		})
	}
	return records, nil
}

// GetByID fetches one record of the given object type.
func (s *Salesforce) GetByID(ctx context.Context, sobjectType, id string) (domain.Record, error) {
	endpoint := fmt.Sprintf("%s/services/data/v%s/sobjects/%s/%s",
		s.baseURL, s.apiVersion, url.PathEscape(sobjectType), url.PathEscape(id))
	body, err := s.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("salesforce %s %s: %w", sobjectType, id, err)
	}

	var sr salesforceRecord
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("salesforce %s %s: parse response: %w", sobjectType, id, err)
	}
	return domain.Record{
		"id":   sr.ID,
		"type": sobjectType,
		"name": sr.Name,
	}, nil
}

func (s *Salesforce) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.client.Do(req)
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
		// Salesforce returns an array of error objects; MALFORMED_SEARCH
		// means the query itself was rejected.
		var apiErrs []salesforceAPIError
		detail := string(body)
		if err := json.Unmarshal(body, &apiErrs); err == nil && len(apiErrs) > 0 {
			detail = apiErrs[0].Message
		}
		return nil, &domain.QueryError{Backend: domain.BackendSalesforce, Detail: detail}
	default:
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
}
