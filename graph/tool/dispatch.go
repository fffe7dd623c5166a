package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/dropbox/agentgraph/graph"
	"github.com/dropbox/agentgraph/graph/sandbox"
)

// ToolCall is a pending tool invocation attached to state by a reasoning
// node.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// ToolResult is the recorded outcome of one dispatched ToolCall. Output has
// already had the truncation policy applied before it is attached here.
type ToolResult struct {
	ToolCallID string
	ToolName   string
	Output     string
	Success    bool
	DurationUS int64
}

// Registration binds a Tool to its dispatch policy: a per-tool default
// timeout, whether it runs under the sandbox boundary, and whether its
// failure should abort the whole invocation rather than stay branch-local.
type Registration struct {
	Tool        Tool
	Timeout     time.Duration
	ShellClass  bool
	Critical    bool
	SandboxMode sandbox.Mode
}

// Registry resolves tool names to their Registration.
type Registry map[string]Registration

// DefaultToolTimeout is used when a Registration does not set Timeout.
const DefaultToolTimeout = 30 * time.Second

// Dispatcher executes a batch of ToolCall entries against a Registry,
// honoring per-tool timeouts, the sandbox boundary for shell-class tools,
// and the shared output truncation policy.
type Dispatcher struct {
	Registry Registry
	Sandbox  sandbox.Executor
}

// NewDispatcher creates a Dispatcher. sb may be nil if no registered tool
// is ShellClass.
func NewDispatcher(registry Registry, sb sandbox.Executor) *Dispatcher {
	return &Dispatcher{Registry: registry, Sandbox: sb}
}

// Dispatch runs every call in calls, in order, returning one ToolResult per
// call. A tool failure never returns an error from Dispatch itself — the
// failure is represented in the ToolResult's Success field.
// The caller (typically a graph.Node wrapping Dispatch) is responsible for
// checking CriticalFailure() and converting it into a branch-terminal
// *graph.ExecutionError when a critical tool fails.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, d.dispatchOne(ctx, call))
	}
	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, call ToolCall) ToolResult {
	reg, ok := d.Registry[call.Name]
	if !ok {
		return ToolResult{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Output:     fmt.Sprintf("Error: unknown tool %q", call.Name),
			Success:    false,
		}
	}

	timeout := reg.Timeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var output string
	var success bool

	if reg.ShellClass {
		if d.Sandbox == nil {
			output, success = fmt.Sprintf("Error: sandbox not available for shell-class tool %q", call.Name), false
		} else {
			cmd, _ := call.Args["command"].(string)
			out, err := d.Sandbox.Execute(callCtx, cmd)
			if err != nil {
				output, success = fmt.Sprintf("Error: %v", err), false
			} else {
				output, success = out, true
			}
		}
	} else {
		out, err := reg.Tool.Call(callCtx, call.Args)
		if err != nil {
			output, success = fmt.Sprintf("Error: %v", err), false
		} else {
			output, success = fmt.Sprintf("%v", out), true
		}
	}

	return ToolResult{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Output:     graph.TruncateToolOutput(output),
		Success:    success,
		DurationUS: time.Since(start).Microseconds(),
	}
}

// CriticalFailure reports the name of the first failed result whose
// Registration was marked Critical, if any. The caller uses this to decide
// whether to abort the invocation rather than continue the turn.
func (d *Dispatcher) CriticalFailure(results []ToolResult) (string, bool) {
	for _, r := range results {
		if r.Success {
			continue
		}
		if reg, ok := d.Registry[r.ToolName]; ok && reg.Critical {
			return r.ToolName, true
		}
	}
	return "", false
}

// DispatchNode builds a graph.Node[S] that extracts pending ToolCall
// entries from state via extractCalls, dispatches them, and folds the
// resulting ToolResult entries back into state via applyResults: a
// graph.Node adapter around Dispatcher so it can be wired into a Builder
// like any other node.
func DispatchNode[S any](d *Dispatcher, extractCalls func(S) []ToolCall, applyResults func(S, []ToolResult) S, next graph.Next) graph.NodeFunc[S] {
	return func(ctx context.Context, state S) graph.NodeResult[S] {
		calls := extractCalls(state)
		results := d.Dispatch(ctx, calls)

		var zero S
		delta := applyResults(zero, results)

		if name, critical := d.CriticalFailure(results); critical {
			return graph.NodeResult[S]{
				Delta: delta,
				Route: next,
				Err: &graph.ExecutionError{
					Kind:     graph.KindTool,
					ToolName: name,
					Message:  fmt.Sprintf("critical tool %q failed", name),
				},
			}
		}

		return graph.NodeResult[S]{Delta: delta, Route: next}
	}
}
