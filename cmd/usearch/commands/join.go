package commands

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dluc/usearch"
)

var joinCmd = &cobra.Command{
	Use:   "join <left> <right>",
	Short: "Match the keys of two indexes one to one",
	Long: `Pair every key of the left index with at most one key of the right index
by stable marriage over nearest neighbor distances. Unmatched keys are
omitted from the output.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		maxProposals, _ := f.GetInt("max-proposals")
		exact, _ := f.GetBool("exact")
		threads, _ := f.GetInt("threads")

		left, err := usearch.OpenView(args[0], indexOptions()...)
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer left.Close()
		right, err := usearch.OpenView(args[1], indexOptions()...)
		if err != nil {
			return fmt.Errorf("open %s: %w", args[1], err)
		}
		defer right.Close()

		pairs, err := left.Join(cmd.Context(), right, usearch.JoinOptions{
			MaxProposals: maxProposals,
			Exact:        exact,
			Threads:      threads,
		})
		if err != nil {
			return err
		}

		keys := make([]usearch.Key, 0, len(pairs))
		for k := range pairs {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "matched %d of %d keys\n", len(pairs), left.Len())
		for _, k := range keys {
			fmt.Fprintf(out, "%d\t%d\n", k, pairs[k])
		}
		return nil
	},
}

func init() {
	f := joinCmd.Flags()
	f.Int("max-proposals", 0, "candidates per key (default: min(expansion_search, right size))")
	f.Bool("exact", false, "fetch candidates by exhaustive scan")
	f.Int("threads", 0, "candidate search workers")
	rootCmd.AddCommand(joinCmd)
}
