// Package annotate attaches audit metadata to outgoing warehouse requests:
// machine-queryable labels and a human-readable SQL comment block. Both are
// populated from the same source values so they cannot diverge.
package annotate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"sitelens/internal/domain"
)

// Label values the warehouse accepts. Anything outside this set is coerced
// by replacement before attachment; the warehouse rejects labels otherwise.
var labelInvalidRe = regexp.MustCompile(`[^a-z0-9_-]+`)

// Fixed label keys and values.
const (
	labelRequestedBy = "requested_by"
	labelUserType    = "user_type"
	labelJobMode     = "job_mode"
	labelAnalysis    = "analysis"

	userTypeValue = "dashboard"

	jobModeDryRun    = "dry_run"
	jobModeExecution = "execution"
)

// Annotator stamps requests with caller identity and analysis category.
type Annotator struct {
	now func() time.Time
}

// New creates an Annotator using the wall clock.
func New() *Annotator {
	return &Annotator{now: time.Now}
}

// SetNow overrides the clock. Intended for tests.
func (a *Annotator) SetNow(now func() time.Time) { a.now = now }

// Annotate augments req with audit labels and, when the request carries a
// non-empty query body, a leading comment block recording the same values
// plus a generation timestamp. It has no side effects beyond mutating req.
func (a *Annotator) Annotate(req *domain.QueryRequest, identity, analysis string) {
	if req.Labels == nil {
		req.Labels = make(map[string]string)
	}

	req.Labels[labelRequestedBy] = Sanitize(identity)
	req.Labels[labelUserType] = userTypeValue
	mode := jobModeExecution
	if req.DryRun {
		mode = jobModeDryRun
	}
	req.Labels[labelJobMode] = mode
	if analysis != "" {
		req.Labels[labelAnalysis] = Sanitize(analysis)
	}

	if strings.TrimSpace(req.SQL) == "" {
		return
	}
	req.SQL = a.comment(identity, analysis, mode) + req.SQL
}

// comment renders the human-readable header visible to anyone inspecting
// query history directly.
func (a *Annotator) comment(identity, analysis, mode string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- requested by: %s\n", identity)
	if analysis != "" {
		fmt.Fprintf(&b, "-- analysis: %s\n", analysis)
	}
	fmt.Fprintf(&b, "-- mode: %s\n", mode)
	fmt.Fprintf(&b, "-- generated at: %s\n", a.now().UTC().Format(time.RFC3339))
	return b.String()
}

// Sanitize coerces v into the warehouse's label character set [a-z0-9_-].
// It is idempotent: sanitizing an already-sanitized string is a no-op.
func Sanitize(v string) string {
	return labelInvalidRe.ReplaceAllString(strings.ToLower(v), "-")
}
