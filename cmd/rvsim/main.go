// Command rvsim runs an RV32 program on a lockstep multi-core machine.
//
// Usage:
//
//	rvsim [flags] <program>
//
// The program is an RV32 ELF executable, an assembly file (.s, .asm) or raw
// little-endian instruction words. Without -config, config.json is looked
// up in the rvsim configuration folders.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/chzyer/readline"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"

	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/machine"
	"github.com/sarchlab/rvsim/monitor"
	"github.com/sarchlab/rvsim/snapshot"
	"github.com/sarchlab/rvsim/timing/latency"
	"github.com/sarchlab/rvsim/timing/profiler"
	"github.com/sarchlab/rvsim/translate"
)

const (
	configFile = "config.json"
	timingFile = "timing.json"
)

var (
	configPath  = flag.String("config", "", "Path to machine configuration JSON file")
	cores       = flag.Int("cores", 0, "Number of cores (overrides config)")
	workers     = flag.Int("workers", -1, "Worker goroutines per tick, 0 for one per core (overrides config)")
	maxTicks    = flag.Uint64("ticks", 10_000_000, "Maximum number of ticks to run")
	timing      = flag.Bool("timing", false, "Attach the timing profiler")
	latencyPath = flag.String("latency", "", "Path to timing configuration JSON file (implies -timing)")
	savePath    = flag.String("save", "", "Write a snapshot after the run")
	restorePath = flag.String("restore", "", "Start from a snapshot instead of a program file")
	monitorMode = flag.Bool("monitor", false, "Start the interactive monitor")
	noColor     = flag.Bool("no-color", false, "Disable colored register dumps")
	lang        = flag.String("lang", "", "Report language (BCP 47 tag)")
	verbosity   = flag.Int("v", 0, "Log verbosity")
)

var f = translate.From

var configDirs = configdir.New("sarchlab", "rvsim")

func main() {
	flag.Parse()

	if *lang != "" {
		translate.SetLanguages(*lang)
	}

	if flag.NArg() < 1 && *restorePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: rvsim [options] <program>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger := newLogger(*verbosity)

	if err := run(logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(v int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
		} else {
			fmt.Fprintln(os.Stderr, args)
		}
	}, funcr.Options{Verbosity: v})
}

func run(logger logr.Logger) error {
	cfg, err := loadMachineConfig(logger)
	if err != nil {
		return err
	}
	if *cores > 0 {
		cfg.Cores = *cores
	}
	if *workers >= 0 {
		cfg.Workers = *workers
	}

	var (
		prog *loader.Program
		img  *snapshot.Image
	)
	if *restorePath != "" {
		img, err = snapshot.Load(*restorePath)
		if err != nil {
			return err
		}
		prog = img.Program()
		cfg = img.Config(cfg)
	} else {
		prog, err = loader.Load(flag.Arg(0))
		if err != nil {
			return err
		}
		logger.V(1).Info("program loaded", "path", flag.Arg(0), "entry", prog.Entry,
			"words", len(prog.Text), "segments", len(prog.Segments))
	}

	var p *profiler.Profiler
	if *timing || *latencyPath != "" {
		tc, err := loadTimingConfig(logger)
		if err != nil {
			return err
		}
		p = profiler.New(cfg.Cores, profiler.WithTimingConfig(tc))
	}

	opts := []machine.Option{machine.WithLogger(logger)}
	if p != nil {
		opts = append(opts, machine.WithObserver(p))
	}
	m, err := machine.New(cfg, prog, opts...)
	if err != nil {
		return err
	}

	if img != nil {
		if err := img.Apply(m); err != nil {
			return err
		}
		fmt.Println(f("snapshot restored from %s", *restorePath))
	}

	if *monitorMode {
		err = runMonitor(m, p, logger)
	} else {
		err = runBatch(m, p)
	}
	if err != nil {
		return err
	}

	if *savePath != "" {
		if err := snapshot.Save(*savePath, m); err != nil {
			return err
		}
		fmt.Println(f("snapshot written to %s", *savePath))
	}

	return nil
}

// loadMachineConfig reads -config, or the first config.json found in the
// configuration folders, or falls back to the defaults.
func loadMachineConfig(logger logr.Logger) (*machine.Config, error) {
	if *configPath != "" {
		return machine.LoadConfig(*configPath)
	}

	if path, ok := findConfigFile(configFile); ok {
		logger.V(1).Info("using machine config", "path", path)
		return machine.LoadConfig(path)
	}

	return machine.DefaultConfig(), nil
}

func loadTimingConfig(logger logr.Logger) (*latency.TimingConfig, error) {
	path := *latencyPath
	if path == "" {
		found, ok := findConfigFile(timingFile)
		if !ok {
			return latency.DefaultTimingConfig(), nil
		}
		logger.V(1).Info("using timing config", "path", found)
		path = found
	}

	tc, err := latency.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := tc.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid timing config")
	}
	return tc, nil
}

func findConfigFile(name string) (string, bool) {
	for _, folder := range configDirs.QueryFolders(configdir.All) {
		path := filepath.Join(folder.Path, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func runBatch(m *machine.Machine, p *profiler.Profiler) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	n, err := m.Run(ctx, *maxTicks)
	elapsed := time.Since(start)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Println(f("simulated %d ticks in %v", n, elapsed.Round(time.Microsecond)))
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Println(f("%d ticks per second", uint64(float64(n)/secs)))
	}
	if m.AllHalted() {
		fmt.Println(f("all cores halted"))
	}
	monitor.WriteStats(os.Stdout, m.Stats(), p)

	return nil
}

func runMonitor(m *machine.Machine, p *profiler.Profiler, logger logr.Logger) error {
	// get history path
	cacheDir := configDirs.QueryCacheFolder()
	historyPath := ""
	if err := cacheDir.MkdirAll(); err == nil {
		historyPath = filepath.Join(cacheDir.Path, "history")
	}

	color := !*noColor && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))

	var out io.Writer = os.Stdout
	if color {
		out = colorable.NewColorableStdout()
	}

	rl, err := readline.NewEx(&readline.Config{
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		HistoryFile:     historyPath,
		Stdout:          out,
	})
	if err != nil {
		return errors.Wrap(err, "failed to start readline")
	}
	defer rl.Close()

	mon := monitor.New(m, rl.Stdout(),
		monitor.WithColor(color),
		monitor.WithProfiler(p),
		monitor.WithLogger(logger))

	return mon.Serve(context.Background(), rl)
}
