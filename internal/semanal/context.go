// # internal/semanal/context.go
package semanal

import (
	"github.com/google/uuid"

	"pyrite/internal/core/errors"
	"pyrite/internal/syntax"
)

// Diagnostic is one user-visible finding, attributed to the analysis
// target that produced it.
type Diagnostic struct {
	Target  string
	Loc     syntax.Location
	Code    errors.ErrorCode
	Message string
}

// Context owns all mutable state for one SCC analysis run: the incomplete
// namespace set, forced-completion mode and collected diagnostics. It is
// passed explicitly into every analysis call so that repeated or
// incremental runs never share state.
type Context struct {
	RunID         string
	MaxIterations int

	incomplete map[string]bool
	forced     bool
	iterations int
	diags      []Diagnostic
}

func NewContext(maxIterations int) *Context {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Context{
		RunID:         uuid.NewString(),
		MaxIterations: maxIterations,
		incomplete:    make(map[string]bool),
	}
}

// MarkIncomplete records that a namespace may still gain bindings. Failed
// lookups against it must be classified as deferrals, not errors.
func (c *Context) MarkIncomplete(ns string) {
	if !c.forced {
		c.incomplete[ns] = true
	}
}

// MarkComplete is monotonic within a run: once complete, a namespace never
// becomes incomplete again.
func (c *Context) MarkComplete(ns string) {
	delete(c.incomplete, ns)
}

func (c *Context) IsIncomplete(ns string) bool {
	return !c.forced && c.incomplete[ns]
}

// ForceComplete clears all incompleteness so remaining unresolved names
// surface as genuine errors. Used on the final permitted iteration.
func (c *Context) ForceComplete() {
	c.forced = true
	c.incomplete = make(map[string]bool)
}

func (c *Context) Forced() bool {
	return c.forced
}

// Iterations reports how many top-level fixpoint rounds the run took.
func (c *Context) Iterations() int {
	return c.iterations
}

func (c *Context) report(d Diagnostic) {
	c.diags = append(c.diags, d)
}

func (c *Context) Diagnostics() []Diagnostic {
	return c.diags
}
