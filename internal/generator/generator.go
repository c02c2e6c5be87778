// # internal/generator/generator.go

// Package generator implements the runtime protocol that lowered
// generator functions follow: a state machine over an explicit resume
// label and an environment created once per generator instance. The
// emitted C follows the same layout; this model backs the interpreter
// path and the protocol tests.
package generator

import (
	"pyrite/internal/ir"
)

// StepKind closes the set of resume outcomes.
type StepKind int

const (
	// Suspended: the body reached a yield; Value is the yielded value.
	Suspended StepKind = iota
	// Completed: the body ran to the end; Value is the return value.
	Completed
	// Errored: an exception escaped the body.
	Errored
)

type Step struct {
	Kind  StepKind
	Value ir.Value
	Err   *ir.Exception
}

// Frame is the saved execution state: the resume label and the
// environment holding every live local. The environment is allocated
// once when the generator is created and mutated in place across
// suspensions.
type Frame struct {
	Label int
	Env   map[string]ir.Value
}

// Segment runs the body from one suspension point to the next. sent is
// the value delivered by send() (None for plain iteration) and is only
// meaningful after the first suspension.
type Segment struct {
	Run func(m *ir.Machine, env map[string]ir.Value, sent ir.Value) (ir.Value, *ir.Exception)

	// HandlesThrow marks a suspension point wrapped in a handler that
	// swallows exceptions thrown into it and continues executing. A
	// generator that swallows GeneratorExit this way violates the close
	// protocol.
	HandlesThrow bool
}

// Generator is one instantiated generator frame.
type Generator struct {
	m        *ir.Machine
	frame    *Frame
	segments []Segment
	final    func(m *ir.Machine, env map[string]ir.Value) ir.Value

	started  bool
	finished bool
}

// Next advances to the next yield. Equivalent to Send(None).
func (g *Generator) Next() Step {
	return g.Send(g.m.NewNone())
}

// Send resumes the generator delivering a value to the suspended yield
// expression. Sending a non-None value before the first suspension is a
// protocol error.
func (g *Generator) Send(v ir.Value) Step {
	if g.finished {
		return g.exhausted()
	}
	if !g.started && !isNone(v) {
		g.m.Raise("TypeError", "can't send non-None value to a just-started generator")
		return Step{Kind: Errored, Err: g.m.TakePending()}
	}
	return g.resume(v, nil)
}

// Throw raises an exception at the current suspension point. An
// exhausted generator re-raises the thrown exception.
func (g *Generator) Throw(e *ir.Exception) Step {
	if g.finished {
		return Step{Kind: Errored, Err: e}
	}
	return g.resume(g.m.NewNone(), e)
}

// Close throws GeneratorExit into the frame. The generator complies by
// letting it propagate or by returning; yielding again is an error, and
// GeneratorExit or StopIteration escaping counts as a clean close.
func (g *Generator) Close() *ir.Exception {
	if g.finished || !g.started {
		g.finished = true
		return nil
	}
	step := g.resume(g.m.NewNone(), &ir.Exception{Kind: "GeneratorExit"})
	switch step.Kind {
	case Suspended:
		g.finished = true
		return &ir.Exception{Kind: "RuntimeError", Message: "generator ignored GeneratorExit"}
	case Errored:
		if step.Err.Kind == "GeneratorExit" || step.Err.Kind == "StopIteration" {
			return nil
		}
		return step.Err
	}
	return nil
}

// Finished reports whether the frame reached a terminal state.
func (g *Generator) Finished() bool {
	return g.finished
}

func (g *Generator) resume(sent ir.Value, thrown *ir.Exception) Step {
	f := g.frame
	wasStarted := g.started
	g.started = true

	if thrown != nil {
		next := f.Label
		// A throw is delivered at the suspended yield. A generator that
		// has never run has no suspension point inside any handler, so
		// the exception propagates from the top of the body.
		if wasStarted && next < len(g.segments) && g.segments[next].HandlesThrow {
			// the body catches at this suspension point and continues
			thrown = nil
		} else {
			g.finished = true
			return Step{Kind: Errored, Err: thrown}
		}
	}

	if f.Label >= len(g.segments) {
		g.finished = true
		ret := g.m.NewNone()
		if g.final != nil {
			ret = g.final(g.m, f.Env)
		}
		return Step{Kind: Completed, Value: ret}
	}

	seg := g.segments[f.Label]
	v, exc := seg.Run(g.m, f.Env, sent)
	if exc != nil {
		g.finished = true
		return Step{Kind: Errored, Err: exc}
	}
	f.Label++
	return Step{Kind: Suspended, Value: v}
}

// exhausted reports StopIteration for every transition after the
// terminal state.
func (g *Generator) exhausted() Step {
	return Step{Kind: Errored, Err: &ir.Exception{Kind: "StopIteration"}}
}

func isNone(v ir.Value) bool {
	return v.Type == ir.None
}

// Builder assembles a generator from its suspension-point segments in
// source order.
type Builder struct {
	machine  *ir.Machine
	segments []Segment
	final    func(m *ir.Machine, env map[string]ir.Value) ir.Value
}

func NewBuilder(m *ir.Machine) *Builder {
	return &Builder{machine: m}
}

// Yield appends a segment ending in a suspension point.
func (b *Builder) Yield(run func(m *ir.Machine, env map[string]ir.Value, sent ir.Value) (ir.Value, *ir.Exception)) *Builder {
	b.segments = append(b.segments, Segment{Run: run})
	return b
}

// YieldHandling appends a suspension point whose enclosing handler
// swallows thrown exceptions.
func (b *Builder) YieldHandling(run func(m *ir.Machine, env map[string]ir.Value, sent ir.Value) (ir.Value, *ir.Exception)) *Builder {
	b.segments = append(b.segments, Segment{Run: run, HandlesThrow: true})
	return b
}

// Return sets the tail segment computing the generator's return value.
func (b *Builder) Return(final func(m *ir.Machine, env map[string]ir.Value) ir.Value) *Builder {
	b.final = final
	return b
}

// Build instantiates a fresh frame at label 0 with its own environment.
func (b *Builder) Build() *Generator {
	return &Generator{
		m:        b.machine,
		frame:    &Frame{Env: make(map[string]ir.Value)},
		segments: b.segments,
		final:    b.final,
	}
}
