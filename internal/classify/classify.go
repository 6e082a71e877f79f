// Package classify turns one raw chat message into a structured
// Invocation: which backends to query, the quoted query string, and
// the result limit. Classification never fails; a message that is not
// directed at the bot simply yields Invoked == false.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/slaffer-au/searchbot/internal/domain"
)

// intent pairs a keyword pattern with the invocation it produces.
// The table is evaluated in order and the first match wins, so
// precedence is encoded by position, not by control flow.
type intent struct {
	pattern  *regexp.Regexp
	backends []domain.Backend
	textOnly bool
	help     bool
}

var intents = []intent{
	{pattern: regexp.MustCompile(`(?i)\bzendesk\b`), backends: []domain.Backend{domain.BackendZendesk}},
	{pattern: regexp.MustCompile(`(?i)\bjira\b`), backends: []domain.Backend{domain.BackendJira}},
	{pattern: regexp.MustCompile(`(?i)\b(?:salesforce|sf)\b`), backends: []domain.Backend{domain.BackendSalesforce}},
	{pattern: regexp.MustCompile(`(?i)\btext\b`), backends: []domain.Backend{domain.BackendZendesk, domain.BackendJira}, textOnly: true},
	{pattern: regexp.MustCompile(`(?i)\bhelp\b`), help: true},
}

// quotedPattern captures the first substring enclosed in straight or
// curly double quotes.
var quotedPattern = regexp.MustCompile(`["\x{201C}\x{201D}]([^"\x{201C}\x{201D}]*)["\x{201C}\x{201D}]`)

// limitPattern matches limit=<N> and limit=none, case-insensitively.
var limitPattern = regexp.MustCompile(`(?i)\blimit=(\d+|none)\b`)

// Classifier derives Invocations for one bot identity.
type Classifier struct {
	mention      *regexp.Regexp
	defaultLimit int
}

// New creates a Classifier for the bot identified by botID. In
// channels the message must start with a <@botID> mention to count as
// an invocation.
func New(botID string, defaultLimit int) *Classifier {
	return &Classifier{
		mention:      regexp.MustCompile(`^<@` + regexp.QuoteMeta(botID) + `>`),
		defaultLimit: defaultLimit,
	}
}

// Classify maps a message to an Invocation. Malformed input is never
// an error: anything that does not match yields Invoked == false.
func (c *Classifier) Classify(text string, cctx domain.ChannelContext) domain.Invocation {
	scope := text
	if cctx.Kind != domain.ChannelDM {
		loc := c.mention.FindStringIndex(text)
		if loc == nil {
			return domain.Invocation{}
		}
		// Keywords must appear near the start: only the remainder of
		// the mention's line selects the backend.
		scope = text[loc[1]:]
		if i := strings.IndexByte(scope, '\n'); i >= 0 {
			scope = scope[:i]
		}
	}

	var matched *intent
	for i := range intents {
		if intents[i].pattern.MatchString(scope) {
			matched = &intents[i]
			break
		}
	}
	if matched == nil {
		return domain.Invocation{}
	}

	inv := domain.Invocation{
		Invoked:  true,
		Backends: matched.backends,
		TextOnly: matched.textOnly,
		Help:     matched.help,
	}
	inv.Query, inv.HasQuery = ExtractQuery(text)
	inv.Limit = ExtractLimit(text, c.defaultLimit)
	return inv
}

// ExtractQuery returns the inner text of the first double-quoted
// substring, verbatim. Straight and curly quotes are interchangeable.
func ExtractQuery(text string) (string, bool) {
	m := quotedPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractLimit returns the requested result limit: limit=N as-is,
// limit=none as the unbounded sentinel, absent as def. The scan is
// independent of query extraction.
func ExtractLimit(text string, def int) int {
	m := limitPattern.FindStringSubmatch(text)
	if m == nil {
		return def
	}
	if strings.EqualFold(m[1], "none") {
		return domain.UnboundedLimit
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// \d+ can still overflow int on absurd input
		return def
	}
	return n
}
