package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dluc/usearch"
	"github.com/dluc/usearch/scalar"
)

var searchCmd = &cobra.Command{
	Use:   "search <index>...",
	Short: "Query one or more saved indexes",
	Long: `Query saved indexes with --vector or a --queries file.

With several index files the results of all of them are merged by distance.
Indexes are memory-mapped unless --load is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		vector, _ := f.GetString("vector")
		queriesPath, _ := f.GetString("queries")
		count, _ := f.GetInt("count")
		exact, _ := f.GetBool("exact")
		expansion, _ := f.GetInt("expansion")
		load, _ := f.GetBool("load")

		var queries []scalar.Buffer
		switch {
		case vector != "":
			v, err := parseVector(vector)
			if err != nil {
				return err
			}
			queries = []scalar.Buffer{scalar.F32s(v)}
		case queriesPath != "":
			data, err := readDataset(queriesPath)
			if err != nil {
				return err
			}
			queries = data.vectors
		default:
			return fmt.Errorf("one of --vector or --queries is required")
		}

		out := cmd.OutOrStdout()
		if len(args) > 1 {
			group := usearch.NewIndexes(indexOptions()...)
			defer group.Close()
			for _, path := range args {
				if err := group.MergePath(path); err != nil {
					return fmt.Errorf("open %s: %w", path, err)
				}
			}
			for i, q := range queries {
				m, err := group.Search(cmd.Context(), q, count)
				if err != nil {
					return fmt.Errorf("query %d: %w", i, err)
				}
				printMatches(out, fmt.Sprintf("query %d", i), m)
			}
			return nil
		}

		r, ok, err := usearch.Restore(args[0], !load, indexOptions()...)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s is not a readable index", args[0])
		}
		if c, ok := r.(io.Closer); ok {
			defer c.Close()
		}

		opts := usearch.SearchOptions{Count: count, Exact: exact, Expansion: expansion}
		for i, q := range queries {
			m, err := r.SearchBuffer(q, opts)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			printMatches(out, fmt.Sprintf("query %d", i), m)
		}
		return nil
	},
}

func init() {
	f := searchCmd.Flags()
	f.String("vector", "", "comma-separated query vector")
	f.String("queries", "", "query file (.fbin or .jsonl)")
	f.IntP("count", "k", 10, "neighbors per query")
	f.Bool("exact", false, "scan every vector instead of walking the graph")
	f.Int("expansion", 0, "candidate list width (default: the index setting)")
	f.Bool("load", false, "load the index into memory instead of mapping it")
	rootCmd.AddCommand(searchCmd)
}
