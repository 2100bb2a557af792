package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dluc/usearch"
)

var buildCmd = &cobra.Command{
	Use:   "build <input>",
	Short: "Build an index from a .fbin or .jsonl file",
	Long: `Build an index and save it.

.fbin files hold a uint32 row count, a uint32 dimension count and then the
rows as little-endian float32; row ordinals become keys. .jsonl files hold
one {"key": 1, "vector": [...]} object per line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		data, err := readDataset(args[0])
		if err != nil {
			return err
		}
		cfg, err := indexConfig(cmd, data.dims)
		if err != nil {
			return err
		}
		if output == "" {
			output = cfg.Path
		}
		if output == "" {
			return fmt.Errorf("no output path: use --output or set path in --config")
		}

		idx, err := usearch.New(cfg, indexOptions()...)
		if err != nil {
			return err
		}
		idx.Reserve(len(data.vectors))

		start := time.Now()
		res, err := idx.AddBatch(cmd.Context(), data.keys, data.vectors, usearch.AddOptions{NoCopy: true})
		if err != nil {
			return err
		}
		elapsed := time.Since(start)
		if err := idx.Save(output); err != nil {
			return fmt.Errorf("save %s: %w", output, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Indexed %d of %d vectors in %s\n", res.Added, len(data.vectors), elapsed.Round(time.Millisecond))
		if res.Failed() > 0 {
			fmt.Fprintf(out, "  failed: %d (first: %v)\n", res.Failed(), firstError(res.Errors))
		}
		fmt.Fprintf(out, "Saved %s (%d bytes)\n", output, idx.SerializedLength())
		return nil
	},
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func init() {
	addIndexFlags(buildCmd)
	buildCmd.Flags().StringP("output", "o", "", "index file to write")
	rootCmd.AddCommand(buildCmd)
}
