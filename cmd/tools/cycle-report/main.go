// Command cycle-report summarises the cycle times of a recorded run and
// optionally renders them to a PNG chart.
//
// Usage:
//
//	go run ./cmd/tools/cycle-report [flags]
//
// Flags:
//
//	-db    Run database path (default: claymore.db)
//	-run   Run id to report on (default: most recent cycles across runs)
//	-plot  Output PNG path, empty to skip the chart
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/atelier-fab/claymore/internal/fabdb"
)

func main() {
	dbPath := flag.String("db", "claymore.db", "Run database path")
	runID := flag.String("run", "", "Run id (empty reports recent cycles across runs)")
	plotPath := flag.String("plot", "", "Output PNG path (empty skips the chart)")
	flag.Parse()

	if _, err := os.Stat(*dbPath); err != nil {
		log.Fatalf("Run database not found: %v", err)
	}
	db, err := fabdb.NewDB(*dbPath, *runID)
	if err != nil {
		log.Fatalf("Failed to open run database: %v", err)
	}
	defer db.Close()

	cycles, err := db.Cycles(*runID)
	if err != nil {
		log.Fatalf("Failed to read cycles: %v", err)
	}
	if len(cycles) == 0 {
		log.Fatal("No cycles recorded")
	}

	min, max, sum := cycles[0].CycleTime, cycles[0].CycleTime, 0.0
	for _, c := range cycles {
		if c.CycleTime < min {
			min = c.CycleTime
		}
		if c.CycleTime > max {
			max = c.CycleTime
		}
		sum += c.CycleTime
	}

	fmt.Printf("Cycles:  %d\n", len(cycles))
	fmt.Printf("Total:   %.1fs\n", sum)
	fmt.Printf("Mean:    %.2fs\n", sum/float64(len(cycles)))
	fmt.Printf("Min/Max: %.2fs / %.2fs\n", min, max)

	if *plotPath == "" {
		return
	}
	if err := renderChart(cycles, *plotPath); err != nil {
		log.Fatalf("Failed to render chart: %v", err)
	}
	log.Printf("Chart written to %s", *plotPath)
}

func renderChart(cycles []fabdb.Cycle, path string) error {
	p := plot.New()
	p.Title.Text = "Cycle times"
	p.X.Label.Text = "Unit"
	p.Y.Label.Text = "Seconds"

	pts := make(plotter.XYs, len(cycles))
	for i, c := range cycles {
		pts[i].X = float64(c.Sequence)
		pts[i].Y = c.CycleTime
	}

	if err := plotutil.AddLinePoints(p, "cycle", pts); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
