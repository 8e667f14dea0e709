// Command telemetry-watch polls a controller feedback port and prints
// decoded frames, for checking connectivity and calibration before a run.
//
// Usage:
//
//	go run ./cmd/tools/telemetry-watch [flags]
//
// Flags:
//
//	-robot     Controller id (default: 1)
//	-sim       Target a local simulator instead of hardware
//	-interval  Poll interval (default: 500ms)
//	-count     Frames to print before exiting, 0 for unlimited
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/atelier-fab/claymore/internal/robot"
	"github.com/atelier-fab/claymore/internal/telemetry"
)

func main() {
	robotID := flag.Int("robot", 1, "Controller id")
	sim := flag.Bool("sim", false, "Target a local simulator")
	interval := flag.Duration("interval", 500*time.Millisecond, "Poll interval")
	count := flag.Int("count", 0, "Frames to print before exiting (0 = unlimited)")
	flag.Parse()

	addr := robot.FeedbackAddr(*robotID, *sim)
	log.Printf("Watching %s every %v", addr, *interval)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	feedback := robot.NewFeedbackChannel(addr)
	monitor := telemetry.NewMonitor(feedback.Read, *interval, nil)

	go monitor.Run(ctx)

	printed := 0
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-monitor.Frames():
			fmt.Printf("t=%9.3f joints=%s pose=%s force=%s\n",
				f.ControllerTime,
				fmtVec(f.ActualJoints, "%7.2f"),
				fmtVec(f.Pose, "%7.3f"),
				fmtVec(f.Forces, "%7.2f"))
			printed++
			if *count > 0 && printed >= *count {
				return
			}
		}
	}
}

func fmtVec(v [6]float64, format string) string {
	out := "["
	for i, x := range v {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf(format, x)
	}
	return out + "]"
}
