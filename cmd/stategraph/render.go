package main

import (
	"flag"
	"fmt"
	"io"
)

func renderCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var lf loadFlags
	lf.register(fs)
	format := fs.String("format", "mermaid", "Diagram format: mermaid or plantuml")
	title := fs.String("title", "", "PlantUML title (default: the graph name)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: stategraph render [options] <graph.yaml>\n\nPrint a graph diagram.\n\nOptions:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	g, err := offlineLoad(fs.Arg(0), lf.graphs)
	if err != nil {
		return err
	}
	switch *format {
	case "mermaid":
		_, err = io.WriteString(stdout, g.Mermaid())
	case "plantuml":
		t := *title
		if t == "" {
			t = g.Name()
		}
		_, err = io.WriteString(stdout, g.PlantUML(t))
	default:
		return fmt.Errorf("unknown format %q: want mermaid or plantuml", *format)
	}
	return err
}
