// Command quadtree exercises the quadtree index from the command line.
//
// Usage:
//
//	quadtree bench --points 1000000 --readers 8
//	quadtree bench --config bench.yaml --metrics-addr :9090
//	quadtree lines --points 200 --json > wireframe.json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quadtree",
		Short:         "Benchmark and inspect the adaptive quadtree index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "YAML config file")
	root.PersistentFlags().Int("points", 0, "number of random points to insert")
	root.PersistentFlags().Int("max-nodes", 0, "leaf capacity before splitting")
	root.PersistentFlags().Float64("min-size", 0, "smallest region edge that may still split")
	root.PersistentFlags().Int64("seed", 0, "random seed")
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error")

	root.AddCommand(newBenchCmd())
	root.AddCommand(newLinesCmd())
	return root
}

// loadConfig reads --config and applies any flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	if flags.Changed("points") {
		cfg.Points, _ = flags.GetInt("points")
	}
	if flags.Changed("max-nodes") {
		cfg.MaxNodes, _ = flags.GetInt("max-nodes")
	}
	if flags.Changed("min-size") {
		cfg.MinSize, _ = flags.GetFloat64("min-size")
	}
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Lookup("queries") != nil && flags.Changed("queries") {
		cfg.Queries, _ = flags.GetInt("queries")
	}
	if flags.Lookup("radius") != nil && flags.Changed("radius") {
		cfg.Radius, _ = flags.GetFloat64("radius")
	}
	if flags.Lookup("readers") != nil && flags.Changed("readers") {
		cfg.Readers, _ = flags.GetInt("readers")
	}
	if flags.Lookup("move-fraction") != nil && flags.Changed("move-fraction") {
		cfg.MoveFraction, _ = flags.GetFloat64("move-fraction")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
