package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mahdiidarabi/kangaroo/internal/gpu"
	"github.com/mahdiidarabi/kangaroo/pkg/kangaroo"
)

const version = "1.0"

func main() {
	var (
		showVersion = flag.Bool("v", false, "Print version")
		nbThread    = flag.Int("t", 1, "Number of CPU threads")
		dpBits      = flag.Int("d", -1, "Number of leading zeros for the DP method (default is auto)")
		useGpu      = flag.Bool("gpu", false, "Enable gpu calculation")
		gpuBackend  = flag.String("gpu-backend", "metal", "GPU backend implementation when -gpu is enabled")
		workFile    = flag.String("w", "", "File to save work into (current processed key only)")
		inputFile   = flag.String("i", "", "File to load work from (current processed key only)")
		workPeriod  = flag.Int("wi", 60, "Periodic interval (in seconds) for saving work")
		saveKang    = flag.Bool("ws", false, "Save kangaroos in the work file")
		workSplit   = flag.Bool("wsplit", false, "Split work file and reset hashtable on each save")
		workText    = flag.String("wtxt", "", "Mirror each save to a text work file")
		workMerge   = flag.Bool("wm", false, "Merge work files: -wm file1 file2 destfile")
		workInfo    = flag.String("winfo", "", "Print work file info")
		workCheck   = flag.String("wcheck", "", "Check work file integrity")
		maxStep     = flag.Float64("m", 0, "Give up the search after maxStep*expected operations")
		serverMode  = flag.Bool("s", false, "Start in server mode")
		serverIP    = flag.String("c", "", "Start in client mode and connect to server ip")
		serverPort  = flag.Int("sp", 17403, "Server port")
		outputFile  = flag.String("o", "", "Output result to file")
		runCheck    = flag.Bool("check", false, "Run the self test")
		symmetry    = flag.Bool("sym", false, "Use the (x,±y) symmetry to halve expected work")
		startHex    = flag.String("start-hex", "", "Range start in hex (with --end-hex and --pubkey)")
		endHex      = flag.String("end-hex", "", "Range end in hex")
		startDec    = flag.String("start-dec", "", "Range start in decimal (with --end-dec and --pubkey)")
		endDec      = flag.String("end-dec", "", "Range end in decimal")
		pubKey      = flag.String("pubkey", "", "Public key in hex (compressed or uncompressed)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Kangaroo v%s\n", version)
		return
	}

	if *runCheck {
		if err := kangaroo.RunCheck(); err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *workCheck != "" {
		if err := kangaroo.CheckWorkFile(*workCheck); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *workInfo != "" {
		if err := kangaroo.WorkFileInfo(*workInfo); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *workMerge {
		args := flag.Args()
		if len(args) != 3 {
			fmt.Fprintf(os.Stderr, "Error: -wm needs file1 file2 destfile\n")
			os.Exit(1)
		}
		if err := kangaroo.MergeWorkFiles(args[0], args[1], args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *useGpu {
		if _, err := gpu.Create(*gpuBackend); err != nil {
			fmt.Printf("Requested GPU backend %q is not available in this build\n", *gpuBackend)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	solver := kangaroo.New().
		WithThreads(*nbThread).
		WithDPBits(*dpBits).
		WithMaxStep(*maxStep).
		WithOutputFile(*outputFile).
		WithSymmetry(*symmetry).
		WithSaveKangaroo(*saveKang).
		WithSplitWorkfile(*workSplit)
	if *workFile != "" {
		solver = solver.WithWorkFile(*workFile, time.Duration(*workPeriod)*time.Second)
	}
	if *workText != "" {
		solver = solver.WithTextWorkFile(*workText)
	}
	if *inputFile != "" {
		solver = solver.WithInputFile(*inputFile)
	}

	if *serverIP != "" {
		// Client mode: config comes from the server, no local file needed.
		solver = solver.WithServer(fmt.Sprintf("%s:%d", *serverIP, *serverPort))
		run(ctx, solver)
		return
	}

	configFile, cleanup, err := resolveConfig(flag.Args(), *startHex, *endHex, *startDec, *endDec, *pubKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	cfg, err := kangaroo.LoadConfigFile(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	solver = solver.WithConfig(cfg)

	if *serverMode {
		if err := solver.RunServer(ctx, fmt.Sprintf(":%d", *serverPort)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	run(ctx, solver)
}

// run executes the search and maps input problems to a non-zero exit.
func run(ctx context.Context, solver *kangaroo.Solver) {
	_, err := solver.Solve(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfig picks the positional config file, or materialises an
// ephemeral one from the CLI range/pubkey flags.
func resolveConfig(args []string, startHex, endHex, startDec, endDec, pubKey string) (string, func(), error) {
	cliStart, cliEnd := startHex, endHex
	if startDec != "" || endDec != "" {
		var err error
		if cliStart, err = kangaroo.DecToHex(startDec); err != nil {
			return "", nil, err
		}
		if cliEnd, err = kangaroo.DecToHex(endDec); err != nil {
			return "", nil, err
		}
	}

	if cliStart != "" || cliEnd != "" || pubKey != "" {
		if cliStart == "" || cliEnd == "" || pubKey == "" {
			return "", nil, fmt.Errorf("CLI range needs start, end and --pubkey together")
		}
		path, err := kangaroo.WriteEphemeralConfig(cliStart, cliEnd, pubKey)
		if err != nil {
			return "", nil, err
		}
		return path, func() { os.Remove(path) }, nil
	}

	if len(args) < 1 {
		return "", nil, fmt.Errorf("missing configuration file (or --start-hex/--end-hex/--pubkey)")
	}
	return args[0], nil, nil
}
