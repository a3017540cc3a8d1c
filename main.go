// Program seisattrib computes seismic attributes in batch: it loads a
// descriptor set, builds one provider graph over the requested targets and
// streams the computed traces into the cube store and/or JSON lines.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"seisattrib/attrib"
	_ "seisattrib/attribs"
	"seisattrib/config"
	"seisattrib/desc"
	"seisattrib/stats"
	"seisattrib/trace"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

const (
	defaultConfigPath = "data/config"
	envConfigPath     = "SEISATTRIB_CONFIG"
)

// Version is overridden at link time.
var Version = "dev"

// Purpose: Pick the console for log output and report whether it is a TTY.
// Key aspects: JSON lines on stdout push logging to stderr.
// Upstream: main.
// Downstream: term.IsTerminal.
func consoleFor(job config.JobConfig) (*os.File, bool) {
	console := os.Stdout
	if job.JSONLines == "-" {
		console = os.Stderr
	}
	return console, term.IsTerminal(int(console.Fd()))
}

// Purpose: Load configuration from flag/env/default locations.
// Key aspects: An explicit flag wins, then the env override, then the default dir.
// Upstream: main startup.
// Downstream: config.Load and os.IsNotExist.
func loadJobConfig(flagPath string) (*config.Config, error) {
	candidates := make([]string, 0, 3)
	if p := strings.TrimSpace(flagPath); p != "" {
		candidates = append(candidates, p)
	} else {
		if envPath := strings.TrimSpace(os.Getenv(envConfigPath)); envPath != "" {
			candidates = append(candidates, envPath)
		}
		candidates = append(candidates, defaultConfigPath)
	}

	var lastErr error
	for _, path := range candidates {
		cfg, err := config.Load(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("unable to load config; tried %s (last error: %v)", strings.Join(candidates, ", "), lastErr)
}

// Purpose: Program entrypoint; wires configuration, store, graph and outputs.
// Key aspects: Ctrl+C cancels the run; results written so far are flushed.
// Upstream: OS process start.
// Downstream: runJob.
func main() {
	configPath := flag.String("config", "", "configuration file or directory (default $"+envConfigPath+" or "+defaultConfigPath+")")
	listTypes := flag.Bool("list", false, "list the known attribute types and exit")
	flag.Parse()

	if *listTypes {
		for _, name := range desc.Templates() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := loadJobConfig(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	console, tty := consoleFor(cfg.Job)
	fanout, err := setupLogging(cfg.Logging, console, tty)
	log.SetFlags(0)
	log.SetOutput(fanout)
	if err != nil {
		log.Printf("Warning: file logging disabled: %v", err)
	}
	defer fanout.Close()

	log.Printf("seisattrib v%s starting (config %s)", Version, cfg.LoadedFrom)
	if console == os.Stdout {
		cfg.Print()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runJob(ctx, cfg, fanout); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("Run cancelled")
		} else {
			log.Printf("Run failed: %v", err)
		}
		_ = fanout.Close()
		os.Exit(1)
	}
}

// Purpose: Compute every target over the configured output volume.
// Key aspects: One graph serves all targets so shared inputs compute once.
// Upstream: main.
// Downstream: trace.Open, desc.LoadSet, attrib.NewGraph, attrib.Processor.Run.
func runJob(ctx context.Context, cfg *config.Config, fanout *logFanout) error {
	store, err := trace.Open(cfg.Store.Path, storeOptions(cfg.Store))
	if err != nil {
		return err
	}
	defer store.Close()
	log.Printf("Store: opened %s", cfg.Store.Path)

	set, err := desc.LoadSet(cfg.Job.Attributes)
	if err != nil {
		return err
	}
	roots, err := resolveTargets(set, cfg.Job.Targets)
	if err != nil {
		return err
	}

	tracker := stats.NewTracker()
	env := attrib.Env{
		Geometry:          cfg.SurveyGeometry(),
		Catalog:           store,
		Stats:             tracker,
		MinSamplesPerTask: cfg.Engine.MinSamplesPerTask,
	}
	if cfg.Engine.Threads > 1 {
		env.Pool = attrib.NewWorkerPool(cfg.Engine.Threads)
	}
	g, err := attrib.NewGraph(roots, env)
	if err != nil {
		return err
	}
	defer g.Release()
	log.Printf("Graph: %d providers for %d targets (reference step %g)", len(g.Providers()), len(roots), g.RefStep())

	vol := cfg.OutputVolume()
	proc, err := attrib.NewProcessor(g, vol)
	if err != nil {
		return err
	}

	out, err := newOutputs(cfg.Job, store, vol.Hor, cfg.Job.Targets, inputCubes(set))
	if err != nil {
		return err
	}
	progress := newProgressReporter(fanout, vol.TotalNrPos(cfg.Survey.TwoD)*len(roots))
	start := time.Now()
	runErr := proc.Run(ctx, func(o attrib.Output) error {
		progress.Update(proc.Stats())
		return out.Write(o)
	})
	progress.Done()
	if err := out.Close(); err != nil && runErr == nil {
		runErr = err
	}

	st := proc.Stats()
	log.Printf("Processor: %s positions, %s traces produced, %s skipped, %s failed in %s",
		humanize.Comma(int64(st.Positions)), humanize.Comma(int64(st.Produced)),
		humanize.Comma(int64(st.Skipped)), humanize.Comma(int64(st.Failed)),
		time.Since(start).Round(time.Millisecond))
	log.Printf("Runtime: %s", progress.mem.Summary())
	for _, line := range tracker.SnapshotLines() {
		log.Printf("Stats: %s", line)
	}
	for _, line := range out.Summary() {
		log.Printf("Output: %s", line)
	}
	return runErr
}

// Purpose: Map target user references onto descriptors.
// Key aspects: Unknown references list what the set offers.
// Upstream: runJob.
// Downstream: desc.Set.ByUserRef.
func resolveTargets(set *desc.Set, targets []string) ([]*desc.Desc, error) {
	roots := make([]*desc.Desc, 0, len(targets))
	for _, ref := range targets {
		d := set.ByUserRef(ref)
		if d == nil {
			var names []string
			for _, cand := range set.Descs() {
				if cand.UserRef != "" && !cand.Hidden {
					names = append(names, cand.UserRef)
				}
			}
			sort.Strings(names)
			return nil, fmt.Errorf("unknown target %q (available: %s)", ref, strings.Join(names, ", "))
		}
		if d.SelectedOutput < 0 || d.SelectedOutput >= d.NrOutputs() {
			return nil, fmt.Errorf("target %q selects output %d of %d", ref, d.SelectedOutput, d.NrOutputs())
		}
		roots = append(roots, d)
	}
	return roots, nil
}

// inputCubes returns the stored cubes a descriptor set reads.
func inputCubes(set *desc.Set) []string {
	var names []string
	for _, id := range set.StoredIDs() {
		names = append(names, set.Get(id).Text("id"))
	}
	return names
}

func storeOptions(c config.StoreConfig) trace.Options {
	return trace.Options{
		CacheSizeBytes:        int64(c.CacheSizeMB) << 20,
		BloomFilterBitsPerKey: c.BloomFilterBits,
		MemTableSizeBytes:     uint64(max(c.MemTableSizeMB, 0)) << 20,
		WriteQueueDepth:       c.WriteQueueDepth,
	}
}
