package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/definition"
	"github.com/randalmurphal/stategraph/pkg/stategraph/history"
)

// snapshotLine is one --stream output record.
type snapshotLine struct {
	Step  int              `json:"step"`
	Node  string           `json:"node"`
	Next  string           `json:"next"`
	State stategraph.State `json:"state"`
}

func runCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		lf loadFlags
		mf modelFlags
	)
	lf.register(fs)
	mf.register(fs)
	input := fs.String("input", "", "Initial state as a JSON object")
	inputFile := fs.String("input-file", "", "JSON file containing the initial state")
	stream := fs.Bool("stream", false, "Print a JSON line per completed node")
	runID := fs.String("run-id", "", "Execution id (default: random)")
	maxIter := fs.Int("max-iterations", 0, "Override the graph's iteration cap")
	timeout := fs.Duration("timeout", 10*time.Minute, "Maximum execution time")
	historyPath := fs.String("history", "", "SQLite file to journal node completions to")
	logFormat := fs.String("log-format", "text", "Log format: text or json")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error")

	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: stategraph run [options] <graph.yaml>\n\nExecute a graph definition.\n\nOptions:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	logger, err := newLogger(stderr, *logFormat, *logLevel)
	if err != nil {
		return err
	}
	state, err := readInput(*input, *inputFile)
	if err != nil {
		return err
	}
	model, err := mf.build()
	if err != nil {
		return err
	}
	g, err := load(fs.Arg(0), definition.Env{Model: model}, lf.graphs, logger)
	if err != nil {
		return err
	}

	opts := []stategraph.RunOption{stategraph.WithLogger(logger)}
	if *runID != "" {
		opts = append(opts, stategraph.WithRunID(*runID))
	}
	if *maxIter > 0 {
		opts = append(opts, stategraph.WithMaxIterations(*maxIter))
	}
	if *historyPath != "" {
		store, err := history.NewSQLiteStore(*historyPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
		opts = append(opts, stategraph.WithHistory(store))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	enc := json.NewEncoder(stdout)
	if !*stream {
		final, err := g.Invoke(ctx, state, opts...)
		if err != nil {
			return err
		}
		enc.SetIndent("", "  ")
		return enc.Encode(final)
	}

	for snap, err := range g.Stream(ctx, state, opts...) {
		if err != nil {
			return err
		}
		if err := enc.Encode(snapshotLine{Step: snap.Step, Node: snap.NodeID, Next: snap.Next, State: snap.State}); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	return nil
}

// readInput decodes the initial state from an inline JSON object or a file.
func readInput(inline, path string) (stategraph.State, error) {
	if inline != "" && path != "" {
		return nil, errors.New("use either --input or --input-file, not both")
	}
	data := []byte(inline)
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
	}
	if len(data) == 0 {
		return stategraph.State{}, nil
	}

	var state stategraph.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	return state, nil
}
