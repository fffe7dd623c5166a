package graph

import (
	"context"
	"fmt"

	"github.com/dropbox/agentgraph/graph/emit"
	"github.com/dropbox/agentgraph/graph/store"
)

// ValidationError is returned by Builder.Compile when the accumulated graph
// topology fails a compile-time check (missing entry, dangling edge,
// duplicate node name, and the like). Kind is a machine-readable
// discriminator; Detail carries the offending name(s).
type ValidationError struct {
	Kind   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("graph validation: %s: %s", e.Kind, e.Detail)
}

type nodeSpec[S any] struct {
	id   string
	node Node[S]
}

type edgeSpec[S any] struct {
	from, to string
	when     Predicate[S]
}

type conditionalSpec[S any] struct {
	from   string
	router RouterFunc[S]
	labels map[string]string
}

type parallelSpec[S any] struct {
	from string
	to   []string
	join string
}

// Builder accumulates nodes and edges and produces an immutable Plan via
// Compile. Unlike Engine's lazy Add/StartAt/Connect (which only validate
// their own arguments), Builder defers every topology check to Compile so
// an invalid graph is rejected in one place, before any invocation.
type Builder[S any] struct {
	reducer Reducer[S]
	store   store.Store[S]
	emitter emit.Emitter
	options []interface{}

	nodes        []nodeSpec[S]
	edges        []edgeSpec[S]
	conditionals []conditionalSpec[S]
	parallels    []parallelSpec[S]
	entry        string
}

// NewBuilder creates an empty Builder. reducer, store, and emitter are
// forwarded to the Engine constructed by Compile; options accepts the same
// Options struct / functional Option values Engine.New does.
func NewBuilder[S any](reducer Reducer[S], st store.Store[S], emitter emit.Emitter, options ...interface{}) *Builder[S] {
	return &Builder[S]{
		reducer: reducer,
		store:   st,
		emitter: emitter,
		options: options,
	}
}

// AddNode registers a node under the given name. Duplicate names are
// rejected at Compile, not here, so callers can add nodes in any order.
func (b *Builder[S]) AddNode(id string, node Node[S]) *Builder[S] {
	b.nodes = append(b.nodes, nodeSpec[S]{id: id, node: node})
	return b
}

// SetEntry marks the graph's entry point.
func (b *Builder[S]) SetEntry(id string) *Builder[S] {
	b.entry = id
	return b
}

// AddEdge records an unconditional or predicate-conditional direct edge.
// A nil predicate is unconditional.
func (b *Builder[S]) AddEdge(from, to string, when Predicate[S]) *Builder[S] {
	b.edges = append(b.edges, edgeSpec[S]{from: from, to: to, when: when})
	return b
}

// AddConditional records a router-dispatched edge: router is called with
// the post-node state to obtain a label, and labels maps each label to a
// target node name. An unknown label is a fatal KindRouting error raised
// at dispatch time.
//
// from's own node must leave NodeResult.Route at its zero value (no Goto,
// Stop, or fan-out) for the router to be consulted: an explicit Route
// always takes precedence over edge-based routing, conditional or not.
func (b *Builder[S]) AddConditional(from string, router RouterFunc[S], labels map[string]string) *Builder[S] {
	b.conditionals = append(b.conditionals, conditionalSpec[S]{from: from, router: router, labels: labels})
	return b
}

// AddParallel records a fan-out declaration: from's branch targets in to,
// and join, the node all branches converge on (join may be "__end__").
// Compile validates these names, counts the targets and join as
// reachable, and rejects conflicting joins; the compiled Plan does not
// dispatch the declaration. At run time a node fans out only by
// returning a NodeResult whose Route has Many set.
func (b *Builder[S]) AddParallel(from string, to []string, join string) *Builder[S] {
	b.parallels = append(b.parallels, parallelSpec[S]{from: from, to: to, join: join})
	return b
}

// Compile validates the accumulated topology and produces an immutable
// Plan. It fails with *ValidationError on:
//   - a duplicate node name;
//   - an edge, conditional label, or parallel target referencing an
//     unregistered name (other than "__end__");
//   - a missing entry point;
//   - two parallel fan-outs from the same source node declaring
//     different joins.
//
// Unreachable nodes are not fatal: Compile records them on Plan.Warnings
// instead of failing.
func (b *Builder[S]) Compile() (*Plan[S], error) {
	names := make(map[string]bool, len(b.nodes))
	nodesByID := make(map[string]Node[S], len(b.nodes))
	for _, n := range b.nodes {
		if n.id == "" {
			return nil, &ValidationError{Kind: "empty_node_id", Detail: "node ID cannot be empty"}
		}
		if n.id == terminalSentinel {
			return nil, &ValidationError{Kind: "reserved_node_id", Detail: terminalSentinel + " is reserved for the terminal sentinel"}
		}
		if names[n.id] {
			return nil, &ValidationError{Kind: "duplicate_node", Detail: n.id}
		}
		names[n.id] = true
		nodesByID[n.id] = n.node
	}

	if b.entry == "" {
		return nil, &ValidationError{Kind: "missing_entry", Detail: "no entry point set"}
	}
	if !names[b.entry] {
		return nil, &ValidationError{Kind: "missing_entry", Detail: b.entry}
	}

	validTarget := func(id string) bool { return id == terminalSentinel || names[id] }

	for _, e := range b.edges {
		if !names[e.from] {
			return nil, &ValidationError{Kind: "unknown_source", Detail: e.from}
		}
		if !validTarget(e.to) {
			return nil, &ValidationError{Kind: "unknown_target", Detail: e.to}
		}
	}

	for _, c := range b.conditionals {
		if !names[c.from] {
			return nil, &ValidationError{Kind: "unknown_source", Detail: c.from}
		}
		for label, target := range c.labels {
			if !validTarget(target) {
				return nil, &ValidationError{Kind: "unknown_label_target", Detail: fmt.Sprintf("%s -> %s", label, target)}
			}
		}
	}

	joinByFrom := make(map[string]string)
	for _, p := range b.parallels {
		if !names[p.from] {
			return nil, &ValidationError{Kind: "unknown_source", Detail: p.from}
		}
		for _, t := range p.to {
			if !validTarget(t) {
				return nil, &ValidationError{Kind: "unknown_target", Detail: t}
			}
		}
		if !validTarget(p.join) {
			return nil, &ValidationError{Kind: "unknown_join", Detail: p.join}
		}
		if prior, ok := joinByFrom[p.from]; ok && prior != p.join {
			return nil, &ValidationError{Kind: "join_conflict", Detail: fmt.Sprintf("%s declares joins %s and %s", p.from, prior, p.join)}
		}
		joinByFrom[p.from] = p.join
	}

	reachable := map[string]bool{b.entry: true}
	changed := true
	for changed {
		changed = false
		mark := func(id string) {
			if id != terminalSentinel && names[id] && !reachable[id] {
				reachable[id] = true
				changed = true
			}
		}
		for _, e := range b.edges {
			if reachable[e.from] {
				mark(e.to)
			}
		}
		for _, c := range b.conditionals {
			if reachable[c.from] {
				for _, t := range c.labels {
					mark(t)
				}
			}
		}
		for _, p := range b.parallels {
			if reachable[p.from] {
				for _, t := range p.to {
					mark(t)
				}
				mark(p.join)
			}
		}
	}

	var warnings []string
	for id := range names {
		if !reachable[id] {
			warnings = append(warnings, fmt.Sprintf("unreachable node: %s", id))
		}
	}

	engine := New[S](b.reducer, b.store, b.emitter, b.options...)
	for _, n := range b.nodes {
		if err := engine.Add(n.id, n.node); err != nil {
			return nil, err
		}
	}
	if err := engine.StartAt(b.entry); err != nil {
		return nil, err
	}
	for _, e := range b.edges {
		if err := engine.Connect(e.from, e.to, e.when); err != nil {
			return nil, err
		}
	}
	for _, c := range b.conditionals {
		if err := engine.ConnectRouter(c.from, c.router, c.labels); err != nil {
			return nil, err
		}
	}

	return &Plan[S]{
		engine:   engine,
		entry:    b.entry,
		nodeIDs:  names,
		joins:    joinByFrom,
		Warnings: warnings,
	}, nil
}

const terminalSentinel = "__end__"

// Plan is the immutable artifact produced by Builder.Compile. It wraps a
// fully-wired Engine so Invoke/Run delegate to the existing
// dispatch machinery; Plan itself only adds the compile-time guarantees
// and read-only topology metadata Builder validated.
type Plan[S any] struct {
	engine   *Engine[S]
	entry    string
	nodeIDs  map[string]bool
	joins    map[string]string
	Warnings []string
}

// EntryPoint returns the plan's entry node name.
func (p *Plan[S]) EntryPoint() string { return p.entry }

// HasNode reports whether name was registered in this plan.
func (p *Plan[S]) HasNode(name string) bool { return p.nodeIDs[name] }

// Invoke runs the compiled plan to completion, returning the final state
// once no more nodes are runnable. Config (retry, timeouts, queue depth, …)
// is carried by the Engine the Plan wraps, configured via the
// Options/Option values passed to NewBuilder.
func (p *Plan[S]) Invoke(ctx context.Context, runID string, initial S) (S, error) {
	return p.engine.Run(ctx, runID, initial)
}

// Engine exposes the underlying Engine for callers that need checkpoint,
// replay, or metrics access beyond the Plan surface.
func (p *Plan[S]) Engine() *Engine[S] {
	return p.engine
}
