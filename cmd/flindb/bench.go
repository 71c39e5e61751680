package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/skshohagmiah/flindb/internal/db"
)

func (a *app) benchCmd() *cobra.Command {
	var (
		docs     int
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure insert and query throughput in memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd.OutOrStdout(), docs, duration)
		},
	}
	cmd.Flags().IntVar(&docs, "docs", 100_000, "documents to insert")
	cmd.Flags().DurationVar(&duration, "duration", 3*time.Second, "time spent on each query benchmark")
	return cmd
}

func runBenchmark(out io.Writer, n int, duration time.Duration) error {
	if n <= 0 {
		return fmt.Errorf("--docs must be positive")
	}
	d := db.New("bench")
	c, err := d.AddCollection("items", db.CollectionOptions{
		Indices:       []string{"sku"},
		RangedIndexes: map[string]db.RangedIndexOptions{"price": {}},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Inserting %d documents...\n", n)
	start := time.Now()
	for i := range n {
		if _, err := c.Insert(db.Document{
			"sku":   fmt.Sprintf("sku-%07d", i),
			"price": rand.Float64() * 1000,
			"tags":  []any{"bench", i % 10},
		}); err != nil {
			return err
		}
	}
	took := time.Since(start)
	fmt.Fprintf(out, "   Throughput: %.2fK ops/sec\n\n", float64(n)/took.Seconds()/1000)

	fmt.Fprintf(out, "Point lookups on a binary index (%v)...\n", duration)
	ops := benchmarkOperation(duration, func(i int) error {
		_, err := c.FindOne(map[string]any{"sku": fmt.Sprintf("sku-%07d", i%n)})
		return err
	})
	fmt.Fprintf(out, "   Throughput: %.2fK ops/sec\n\n", float64(ops)/duration.Seconds()/1000)

	fmt.Fprintf(out, "Range scans on a ranged index (%v)...\n", duration)
	ops = benchmarkOperation(duration, func(int) error {
		lo := rand.Float64() * 990
		_, err := c.Chain().Find(map[string]any{"price": map[string]any{"$between": []any{lo, lo + 10}}}).Count()
		return err
	})
	fmt.Fprintf(out, "   Throughput: %.2fK ops/sec\n\n", float64(ops)/duration.Seconds()/1000)

	fmt.Fprintln(out, "Benchmark completed")
	return nil
}

func benchmarkOperation(duration time.Duration, op func(int) error) int {
	stop := time.Now().Add(duration)
	ops := 0
	for time.Now().Before(stop) {
		if err := op(ops); err != nil {
			continue
		}
		ops++
	}
	return ops
}
