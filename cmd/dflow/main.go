// Command dflow replays a recorded notebook session (a txtar archive of
// cells, the same format internal/testfixture loads for tests) through the
// dataflow engine outside of any live host runtime, for inspection and
// debugging: which cells are waiting, which are ready, and what the
// derived cell graph looks like.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
