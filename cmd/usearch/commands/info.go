package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dluc/usearch"
)

var infoCmd = &cobra.Command{
	Use:   "info <index>",
	Short: "Print the header of a saved index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		meta, ok := usearch.ReadMetadata(args[0])
		if !ok {
			return fmt.Errorf("%s is not a readable index", args[0])
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dimensions:        %d\n", meta.Dimensions)
		fmt.Fprintf(out, "metric:            %s\n", meta.Metric)
		fmt.Fprintf(out, "scalar:            %s\n", meta.Scalar)
		fmt.Fprintf(out, "connectivity:      %d\n", meta.Connectivity)
		fmt.Fprintf(out, "expansion_add:     %d\n", meta.ExpansionAdd)
		fmt.Fprintf(out, "expansion_search:  %d\n", meta.ExpansionSearch)
		fmt.Fprintf(out, "multi:             %t\n", meta.Multi)
		fmt.Fprintf(out, "compression:       %s\n", meta.Compression)
		fmt.Fprintf(out, "size:              %d\n", meta.Count)
		fmt.Fprintf(out, "removed:           %d\n", meta.Removed)
		fmt.Fprintf(out, "slots:             %d\n", meta.Slots)
		fmt.Fprintf(out, "max_level:         %d\n", meta.MaxLevel)
		fmt.Fprintf(out, "serialized_length: %d\n", meta.SerializedLength)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
