package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"

	"github.com/spf13/cobra"

	quadtree "github.com/blakemr/quadindex"
)

func newLinesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "lines",
		Short: "Print the region wireframe of a randomly filled index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			qt, err := buildIndex(cfg)
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), qt.Lines(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit a JSON array of segments")
	return cmd
}

// buildIndex fills an index with cfg.Points uniformly random entities.
func buildIndex(cfg Config) (*quadtree.Quadtree[*entity], error) {
	box := cfg.Bounds.box()
	qt := quadtree.New[*entity](cfg.MaxNodes, cfg.MinSize, box.TopLeft, box.BotRight,
		quadtree.WithLogger(cfg.logger()))
	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := 0; i != cfg.Points; i++ {
		e := &entity{pos: quadtree.Point{
			X: box.TopLeft.X + rng.Float64()*box.Width(),
			Y: box.TopLeft.Y + rng.Float64()*box.Height(),
		}}
		if _, err := qt.Insert(e, e.pos); err != nil {
			return nil, fmt.Errorf("insert point %d: %w", i, err)
		}
	}
	return qt, nil
}

type jsonSegment struct {
	From [2]float64 `json:"from"`
	To   [2]float64 `json:"to"`
}

func writeLines(w io.Writer, lines []quadtree.Segment, asJSON bool) error {
	if asJSON {
		out := make([]jsonSegment, 0, len(lines))
		for _, l := range lines {
			out = append(out, jsonSegment{
				From: [2]float64{l.A.X, l.A.Y},
				To:   [2]float64{l.B.X, l.B.Y},
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%s %s\n", l.A, l.B); err != nil {
			return err
		}
	}
	return nil
}
