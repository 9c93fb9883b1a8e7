package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	quadtree "github.com/blakemr/quadindex"
	"github.com/blakemr/quadindex/prommetrics"
)

func newBenchCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Insert random entities, then query while a writer moves them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runBench(ctx, cmd.OutOrStdout(), cfg, metricsAddr)
		},
	}
	cmd.Flags().Int("queries", 0, "radius queries per reader")
	cmd.Flags().Float64("radius", 0, "query radius")
	cmd.Flags().Int("readers", 0, "concurrent reader goroutines")
	cmd.Flags().Float64("move-fraction", 0, "share of entities the writer moves")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics here and wait for a signal after the run")
	return cmd
}

// benchResult is what runBench measured.
type benchResult struct {
	Inserted int
	Rejected int
	Insert   time.Duration
	Queries  int
	Found    int
	Query    time.Duration
	Moved    int
	Stats    quadtree.Stats
	Metrics  quadtree.Snapshot
}

func runBench(ctx context.Context, out io.Writer, cfg Config, metricsAddr string) error {
	basic := &quadtree.BasicMetricsCollector{}
	collectors := teeCollector{basic}

	var reg *prometheus.Registry
	if metricsAddr != "" {
		reg = prometheus.NewRegistry()
		pc, err := prommetrics.New(reg, "quadtree")
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		collectors = append(collectors, pc)
	}

	res, err := bench(ctx, cfg, collectors, basic)
	if err != nil {
		return err
	}
	printBench(out, cfg, res)

	if reg == nil {
		return nil
	}
	return serveMetrics(ctx, out, metricsAddr, reg)
}

func bench(ctx context.Context, cfg Config, collector quadtree.MetricsCollector, basic *quadtree.BasicMetricsCollector) (benchResult, error) {
	var res benchResult
	box := cfg.Bounds.box()
	idx := newLockedIndex(quadtree.New[*entity](cfg.MaxNodes, cfg.MinSize, box.TopLeft, box.BotRight,
		quadtree.WithLogger(cfg.logger()),
		quadtree.WithMetricsCollector(collector),
	))

	rng := rand.New(rand.NewSource(cfg.Seed))
	randomPoint := func(rng *rand.Rand) quadtree.Point {
		return quadtree.Point{
			X: box.TopLeft.X + rng.Float64()*box.Width(),
			Y: box.TopLeft.Y + rng.Float64()*box.Height(),
		}
	}

	handles := make([]quadtree.Handle, 0, cfg.Points)
	start := time.Now()
	for i := 0; i != cfg.Points; i++ {
		h, err := idx.Insert(&entity{ID: uuid.New(), pos: randomPoint(rng)})
		if err != nil {
			if errors.Is(err, quadtree.ErrOutOfBounds) {
				res.Rejected++
				continue
			}
			return res, err
		}
		handles = append(handles, h)
	}
	res.Insert = time.Since(start)
	res.Inserted = idx.Len()

	moves := int(float64(len(handles)) * cfg.MoveFraction)
	found := make([]int, cfg.Readers)
	g, gctx := errgroup.WithContext(ctx)

	start = time.Now()
	for r := 0; r != cfg.Readers; r++ {
		r := r
		seed := cfg.Seed + int64(r) + 1
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i != cfg.Queries; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				found[r] += len(idx.Query(randomPoint(rng), cfg.Radius))
			}
			return nil
		})
	}
	g.Go(func() error {
		rng := rand.New(rand.NewSource(cfg.Seed - 1))
		for i := 0; i != moves; i++ {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := idx.Move(handles[rng.Intn(len(handles))], randomPoint(rng)); err != nil {
				return fmt.Errorf("move: %w", err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.Query = time.Since(start)
	res.Queries = cfg.Queries * cfg.Readers
	for _, n := range found {
		res.Found += n
	}
	res.Moved = moves

	if err := idx.CheckInvariants(); err != nil {
		return res, fmt.Errorf("index corrupted after bench: %w", err)
	}
	res.Stats = idx.Stats()
	res.Metrics = basic.Snapshot()
	return res, nil
}

func printBench(out io.Writer, cfg Config, res benchResult) {
	fmt.Fprintf(out, "inserted %d points in %s (%d rejected)\n", res.Inserted, res.Insert, res.Rejected)
	fmt.Fprintf(out, "queried %d points via %d queries on %d readers in %s, moved %d\n",
		res.Found, res.Queries, cfg.Readers, res.Query, res.Moved)
	fmt.Fprintf(out, "tree: %d nodes, %d leaves, depth %d, fullest leaf %d\n",
		res.Stats.Nodes, res.Stats.Leaves, res.Stats.MaxDepth, res.Stats.MaxLeafLoad)
	fmt.Fprintf(out, "splits %d (orphans %d), avg insert %s, avg search %s\n",
		res.Metrics.Splits, res.Metrics.SplitOrphans, res.Metrics.AvgInsert, res.Metrics.AvgSearch)
}

func serveMetrics(ctx context.Context, out io.Writer, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	fmt.Fprintf(out, "serving metrics on %s/metrics, interrupt to exit\n", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// teeCollector forwards every record to each collector in turn.
type teeCollector []quadtree.MetricsCollector

func (t teeCollector) RecordInsert(d time.Duration, err error) {
	for _, c := range t {
		c.RecordInsert(d, err)
	}
}

func (t teeCollector) RecordSplit(depth, orphans int) {
	for _, c := range t {
		c.RecordSplit(depth, orphans)
	}
}

func (t teeCollector) RecordSearch(candidates, matches int, d time.Duration) {
	for _, c := range t {
		c.RecordSearch(candidates, matches, d)
	}
}

func (t teeCollector) RecordRemove(d time.Duration, found bool) {
	for _, c := range t {
		c.RecordRemove(d, found)
	}
}

func (t teeCollector) RecordReinsert(d time.Duration, err error) {
	for _, c := range t {
		c.RecordReinsert(d, err)
	}
}
