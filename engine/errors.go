package engine

import "errors"

// The error taxonomy of spec.md §7. Most of these are recovered internally
// (logged and degraded) rather than propagated to the host; they are named
// here, sentinel-style, the way the teacher reports failures with plain
// errors.New / fmt.Errorf wrapping rather than a typed error hierarchy.
var (
	// ErrUnresolvableReference marks a static live-ref that cannot be bound
	// in any scope. Recovered by treating the cell as pessimistically
	// waiting; never returned to the host.
	ErrUnresolvableReference = errors.New("dflow: unresolvable reference")

	// ErrTraceInconsistency marks a tracer stack imbalance (exit without a
	// matching enter). Recovered by resetting the frame stack.
	ErrTraceInconsistency = errors.New("dflow: trace stack imbalance")

	// ErrHandlerNotMatched marks an external call with no registered
	// handler. Recovered by applying the default mutate-all-positional
	// rule.
	ErrHandlerNotMatched = errors.New("dflow: no handler matched for call")

	// ErrCycleInScheduler marks a cycle discovered in the cell graph.
	// Recovered by emitting the lowest-execution-count member.
	ErrCycleInScheduler = errors.New("dflow: cycle detected in cell graph")

	// ErrCellExecutionError marks a host-surfaced execution failure.
	// Aborts the current reactive chain; already-recorded graph edges are
	// retained.
	ErrCellExecutionError = errors.New("dflow: cell execution failed")

	// ErrStaticAnalysisFailure marks a malformed AST from the host parser.
	// Recovered by reusing the cell's previously cached analysis, or, absent
	// one, by treating the cell as pessimistically waiting.
	ErrStaticAnalysisFailure = errors.New("dflow: static analysis failed")
)
