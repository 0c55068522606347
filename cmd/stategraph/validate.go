package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/definition"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
)

// offlineLoad builds a graph without network collaborators. Model-backed
// nodes get a mock so their structure can be checked without credentials.
func offlineLoad(path string, graphs []string) (*stategraph.CompiledGraph, error) {
	logger := slog.New(slog.DiscardHandler)
	return load(path, definition.Env{Model: llm.NewMockModel()}, graphs, logger)
}

func validateCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var lf loadFlags
	lf.register(fs)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: stategraph validate [options] <graph.yaml>...\n\nCheck that graph definitions compile.\n\nOptions:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	var failed int
	for _, path := range fs.Args() {
		g, err := offlineLoad(path, lf.graphs)
		if err != nil {
			fmt.Fprintf(stdout, "FAIL %s\n  %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(stdout, "ok   %s (%s: %d nodes, max %d iterations)\n",
			path, g.Name(), len(g.NodeIDs()), g.MaxIterations())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d definitions invalid", failed, fs.NArg())
	}
	return nil
}
