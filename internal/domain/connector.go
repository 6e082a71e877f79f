package domain

import (
	"context"
	"errors"
	"fmt"
)

// SearchRequest is the backend-agnostic query built by the dispatcher.
type SearchRequest struct {
	Query    string
	TextOnly bool
}

// Searcher is the capability every backend connector must provide.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) ([]Record, error)
}

// DirectoryEntry humanizes a numeric id found in backend records.
type DirectoryEntry struct {
	ID    int64
	Name  string
	Email string
}

// DirectorySource lists the full user and organization directories,
// paginating internally until exhausted.
type DirectorySource interface {
	ListUsers(ctx context.Context) ([]DirectoryEntry, error)
	ListOrganizations(ctx context.Context) ([]DirectoryEntry, error)
}

// QueryError reports that a backend rejected the query itself, as
// opposed to a transport failure. The user can see and correct it, so
// the dispatcher keeps querying the remaining backends.
type QueryError struct {
	Backend Backend
	Detail  string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s rejected query: %s", e.Backend, e.Detail)
}

// IsQueryError reports whether err is (or wraps) a QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
