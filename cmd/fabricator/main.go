// Command fabricator runs one pick-and-place production run against a
// robot controller, resuming from the run ledger when a prior run was
// interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atelier-fab/claymore/internal/config"
	"github.com/atelier-fab/claymore/internal/fab"
	"github.com/atelier-fab/claymore/internal/fabdb"
	"github.com/atelier-fab/claymore/internal/robot"
	"github.com/atelier-fab/claymore/internal/script"
	"github.com/atelier-fab/claymore/internal/telemetry"
	"github.com/atelier-fab/claymore/internal/timeutil"
)

var (
	configPath = flag.String("config", "run.yaml", "Run configuration file")
	unitsPath  = flag.String("units", "", "Fabrication data file (unit list / run ledger)")
	resumeMode = flag.String("resume", "skip", "Resume policy: skip, all, last:N, or subset:ID,ID,...")
	dbPath     = flag.String("db", "claymore.db", "Run database path (empty disables recording)")
	listen     = flag.String("listen", "", "Debug HTTP listen address (empty disables)")
	stop       = flag.Bool("stop", false, "Send a stop program to the controller and exit")
	robotID    = flag.Int("robot", 1, "Controller id for -stop (runs take it from the config)")
	sim        = flag.Bool("sim", false, "Target a local simulator for -stop")
	pollEvery  = flag.Duration("poll", 100*time.Millisecond, "Telemetry poll interval")
)

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// An operator abort must only need to reach the controller; it never
	// depends on a complete run configuration.
	if *stop {
		if err := sendStop(ctx, robot.CommandAddr(*robotID, *sim)); err != nil {
			log.Fatalf("Failed to send stop program: %v", err)
		}
		log.Print("Stop program sent")
		return
	}

	cfg, err := config.LoadRunConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load run config: %v", err)
	}

	channel := robot.NewCommandChannel(robot.CommandAddr(cfg.GetRobotID(), cfg.GetSimulation()))

	if *unitsPath == "" {
		log.Fatal("A fabrication data file is required (-units)")
	}

	ledger, err := openLedger(*unitsPath)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	log.Printf("Loaded run %s: %d units, %d remaining", ledger.RunID, len(ledger.Units), ledger.Remaining())

	policy, err := parseResumePolicy(*resumeMode)
	if err != nil {
		log.Fatalf("Bad resume policy: %v", err)
	}

	var recorder *fabdb.DB
	if *dbPath != "" {
		recorder, err = fabdb.NewDB(*dbPath, ledger.RunID)
		if err != nil {
			log.Fatalf("Failed to open run database: %v", err)
		}
		defer recorder.Close()
	}

	client := robot.NewSocketClient(channel, timeutil.RealClock{})
	station := fab.NewPickStation(cfg.StationFrames(), cfg.GetCompressAtPick())

	orch := fab.NewOrchestrator(client, ledger, station, cfg.Params(), timeutil.RealClock{}, cycleRecorder(recorder))
	if err := orch.Prepare(policy); err != nil {
		log.Fatalf("Failed to prepare run: %v", err)
	}

	feedback := robot.NewFeedbackChannel(robot.FeedbackAddr(cfg.GetRobotID(), cfg.GetSimulation()))
	monitor := telemetry.NewMonitor(feedback.Read, *pollEvery, frameRecorder(recorder))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := monitor.Run(ctx); err != nil && err != context.Canceled {
			return fmt.Errorf("telemetry monitor: %w", err)
		}
		return nil
	})

	if *listen != "" && recorder != nil {
		g.Go(func() error {
			return serveDebug(ctx, *listen, recorder)
		})
	}

	g.Go(func() error {
		defer cancel() // run finished, wind down the monitor and server
		return orch.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Run failed: %v", err)
	}
	log.Print("Run complete")
}

// sendStop pushes the halt program to the controller at addr.
func sendStop(ctx context.Context, addr string) error {
	return robot.NewCommandChannel(addr).Send(ctx, script.StopProgram())
}

// openLedger loads the in-progress ledger when a prior run left one,
// otherwise the plain fabrication data file.
func openLedger(path string) (*fab.Ledger, error) {
	probe := fab.NewLedger(nil, path)
	if inProgress := probe.InProgressPath(); inProgress != path {
		if _, err := os.Stat(inProgress); err == nil {
			log.Printf("Resuming from %s", inProgress)
			return fab.LoadLedger(inProgress)
		}
	}
	return fab.LoadLedger(path)
}

func parseResumePolicy(mode string) (fab.ResumePolicy, error) {
	switch {
	case mode == "skip":
		return fab.SkipPlaced{}, nil
	case mode == "all":
		return fab.ReplaceAll{}, nil
	case strings.HasPrefix(mode, "last:"):
		var n int
		if _, err := fmt.Sscanf(mode, "last:%d", &n); err != nil || n < 1 {
			return nil, fmt.Errorf("last:N needs a positive count, got %q", mode)
		}
		return fab.ReplayLastN{N: n}, nil
	case strings.HasPrefix(mode, "subset:"):
		ids := strings.Split(strings.TrimPrefix(mode, "subset:"), ",")
		if len(ids) == 0 || ids[0] == "" {
			return nil, fmt.Errorf("subset needs at least one unit id")
		}
		return fab.ReplaySubset{IDs: ids}, nil
	default:
		return nil, fmt.Errorf("unknown resume mode %q", mode)
	}
}

// cycleRecorder adapts the optional database to the orchestrator,
// keeping the nil check out of the run loop.
func cycleRecorder(db *fabdb.DB) fab.CycleRecorder {
	if db == nil {
		return nil
	}
	return db
}

func frameRecorder(db *fabdb.DB) telemetry.Recorder {
	if db == nil {
		return nil
	}
	return db
}

func serveDebug(ctx context.Context, addr string, db *fabdb.DB) error {
	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		return err
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("debug server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
