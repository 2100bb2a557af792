package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dluc/usearch"
	"github.com/dluc/usearch/distance"
	"github.com/dluc/usearch/persistence"
	"github.com/dluc/usearch/scalar"
)

var (
	// Global flags
	configPath string
	verbose    bool
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "usearch",
	Short: "Approximate nearest neighbor indexes on the command line",
	Long: `usearch - build, inspect, query and serve HNSW vector indexes.

Index parameters come from a YAML file given with --config and can be
overridden per command with flags such as --metric or --connectivity.

Examples:
  # Build an index from 128-dimensional vectors
  usearch build vectors.fbin -o vectors.usearch --metric l2sq

  # Inspect it without loading
  usearch info vectors.usearch

  # Query the ten nearest neighbors of a vector
  usearch search vectors.usearch --vector 0.1,0.2,... --count 10

  # Serve it over HTTP
  usearch serve vectors.usearch --addr :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML index configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every operation")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

// logger builds the operation logger from the global flags.
func logger() *usearch.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	if logFormat == "json" {
		return usearch.NewJSONLogger(level)
	}
	return usearch.NewTextLogger(level)
}

func indexOptions() []usearch.Option {
	return []usearch.Option{usearch.WithLogger(logger())}
}

// addIndexFlags registers the flags that override the configuration file.
func addIndexFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("dims", 0, "vector dimensions (default: taken from the input)")
	f.String("metric", "cos", "metric: ip, cos, l2sq, haversine, divergence, pearson, hamming, tanimoto, sorensen")
	f.String("scalar", "f32", "storage precision: f32, f64, f16, bf16, i8, b1")
	f.Int("connectivity", 0, "graph edges per node (default 16)")
	f.Int("expansion-add", 0, "candidate list width while inserting (default 128)")
	f.Int("expansion-search", 0, "candidate list width while searching (default 64)")
	f.Bool("multi", false, "allow several vectors per key")
	f.String("compression", "none", "snapshot compression: none, zstd, lz4")
	f.Int("threads", 0, "worker threads (default: all CPUs)")
}

// indexConfig merges --config with the flags the user set. dims is used when
// neither names the dimensions.
func indexConfig(cmd *cobra.Command, dims int) (usearch.Config, error) {
	cfg := usearch.DefaultConfig(dims)
	if configPath != "" {
		loaded, err := usearch.LoadConfig(configPath)
		if err != nil {
			return usearch.Config{}, err
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("dims") {
		cfg.Dimensions, _ = f.GetInt("dims")
	}
	if f.Changed("metric") || configPath == "" {
		name, _ := f.GetString("metric")
		kind, err := distance.ParseKind(name)
		if err != nil {
			return usearch.Config{}, err
		}
		cfg.Metric = kind
	}
	if f.Changed("scalar") {
		name, _ := f.GetString("scalar")
		kind, err := scalar.ParseKind(name)
		if err != nil {
			return usearch.Config{}, err
		}
		cfg.Scalar = kind
	}
	if f.Changed("connectivity") {
		cfg.Connectivity, _ = f.GetInt("connectivity")
	}
	if f.Changed("expansion-add") {
		cfg.ExpansionAdd, _ = f.GetInt("expansion-add")
	}
	if f.Changed("expansion-search") {
		cfg.ExpansionSearch, _ = f.GetInt("expansion-search")
	}
	if f.Changed("multi") {
		cfg.Multi, _ = f.GetBool("multi")
	}
	if f.Changed("compression") {
		name, _ := f.GetString("compression")
		c, err := persistence.ParseCompression(name)
		if err != nil {
			return usearch.Config{}, err
		}
		cfg.Compression = c
	}
	if f.Changed("threads") {
		n, _ := f.GetInt("threads")
		cfg.ThreadsAdd, cfg.ThreadsSearch = n, n
	}
	if err := cfg.Validate(); err != nil {
		return usearch.Config{}, err
	}
	return cfg, nil
}

func printMatches(w io.Writer, label string, m *usearch.Matches) {
	fmt.Fprintf(w, "%s: %d matches (visited %d, computed %d)\n", label, m.Len(), m.VisitedMembers, m.ComputedDistances)
	for i, key := range m.Keys {
		fmt.Fprintf(w, "  %d\t%g\n", key, m.Distances[i])
	}
}
