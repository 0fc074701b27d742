// Package invariant guards the boundary spec.md §7 draws between degraded
// precision (analysis errors: logged, never fatal) and programming bugs
// (internal invariant violations: fatal). Only the latter calls Check.
package invariant

import "fmt"

// Check panics if cond is false. It exists so a violated invariant reads as
// a deliberate abort rather than an ordinary error return, matching the
// teacher's "programming bugs abort the process" posture rather than
// threading a sentinel error through every caller for something that
// should never happen in a correctly wired engine.
func Check(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("dflow: invariant violated: "+format, args...))
	}
}
