// Command usearch builds, inspects, queries and serves vector indexes.
//
// Usage:
//
//	usearch [flags] <command> [args]
//
// Commands:
//
//	build     - Build an index from a .fbin or .jsonl file
//	info      - Print the header of a saved index
//	search    - Query one or more saved indexes
//	join      - Match the keys of two indexes one to one
//	cluster   - Group the keys of an index around graph nodes
//	serve     - Serve an index over HTTP
//	snapshot  - Push and pull snapshots to object storage
package main

import (
	"fmt"
	"os"

	"github.com/dluc/usearch/cmd/usearch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
