package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dluc/usearch"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster <index>",
	Short: "Group the keys of an index around graph nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		minCount, _ := f.GetInt("min")
		maxCount, _ := f.GetInt("max")
		threads, _ := f.GetInt("threads")
		members, _ := f.GetBool("members")

		v, err := usearch.OpenView(args[0], indexOptions()...)
		if err != nil {
			return err
		}
		defer v.Close()

		c, err := v.Cluster(cmd.Context(), usearch.ClusterOptions{
			MinCount: minCount,
			MaxCount: maxCount,
			Threads:  threads,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		popularity := c.CentroidsPopularity()
		fmt.Fprintf(out, "%d members in %d clusters at level %d\n", len(c.Members), len(popularity), c.Level)
		for _, p := range popularity {
			fmt.Fprintf(out, "%d\t%d\n", p.Centroid, p.Members)
			if members {
				for _, m := range c.MembersOf(p.Centroid) {
					fmt.Fprintf(out, "  %d\n", m)
				}
			}
		}
		return nil
	},
}

func init() {
	f := clusterCmd.Flags()
	f.Int("min", 0, "minimum number of clusters")
	f.Int("max", 0, "maximum number of clusters (default: unbounded)")
	f.Int("threads", 0, "worker threads")
	f.Bool("members", false, "list the members of each cluster")
	rootCmd.AddCommand(clusterCmd)
}
