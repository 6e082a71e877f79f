package domain

// Backend identifies one of the searchable record systems.
type Backend string

const (
	BackendZendesk    Backend = "zendesk"
	BackendJira       Backend = "jira"
	BackendSalesforce Backend = "salesforce"
)

// DispatchOrder is the fixed order in which selected backends are
// queried and their result blocks concatenated.
var DispatchOrder = []Backend{BackendZendesk, BackendJira, BackendSalesforce}

// UnboundedLimit is the finite sentinel used for "limit=none". It is
// deliberately a large finite number so memory stays bounded.
const UnboundedLimit = 1_000_000

// Invocation is the structured intent derived from one chat message.
// When Invoked is false no other field is meaningful.
type Invocation struct {
	Invoked  bool
	Backends []Backend
	TextOnly bool
	Help     bool
	Query    string
	HasQuery bool
	Limit    int
}

// Wants reports whether the invocation selected the given backend.
func (inv Invocation) Wants(b Backend) bool {
	for _, sel := range inv.Backends {
		if sel == b {
			return true
		}
	}
	return false
}
