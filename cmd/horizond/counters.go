package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/starquake/horizon/internal/counters"
)

// writeCountersReport prints every allocated slot followed by a summary.
func writeCountersReport(w io.Writer, registry counters.Registry) error {
	entries := counters.NewSnapshotReader(registry).Report()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tVALUE\tLABEL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\n", e.CounterID, e.TypeID, e.Value, e.Label)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d allocated, %d recording positions, %d active replays\n",
		len(entries),
		counters.CountByType(entries, counters.TypeRecordingPosition),
		counters.CountByType(entries, counters.TypeReplayPosition))
	return err
}

func runCounters(args []string) {
	fs := flag.NewFlagSet("counters", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	path := fs.String("path", "", "Counters file (default: counters.path)")

	fs.Usage = func() {
		fmt.Println(`Usage: horizond counters [options]

Print every allocated counter in a counters file.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	file := *path
	if file == "" {
		file = loadConfig(*configPath).Counters.Path
	}
	if file == "" {
		fmt.Fprintln(os.Stderr, "no counters file: set -path or counters.path")
		os.Exit(1)
	}

	registry, err := counters.OpenFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open counters: %v\n", err)
		os.Exit(1)
	}
	defer registry.Close()

	if err := writeCountersReport(os.Stdout, registry); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
		registry.Close()
		os.Exit(1)
	}
}
