package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/FlavioCFOliveira/HSUnmix/internal/matfile"
	flags "github.com/jessevdk/go-flags"
)

// Options are the inspector flags; the positional arguments are MAT-files.
type Options struct {
	Args struct {
		Files []string `positional-arg-name:"FILE" required:"1"`
	} `positional-args:"yes"`
}

func main() {
	var options Options
	parser := flags.NewParser(&options, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	failed := false
	for _, path := range options.Args.Files {
		if err := describe(os.Stdout, path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// describe prints one line per array: name, dimensions, minimum and maximum.
func describe(w io.Writer, path string) error {
	f, err := matfile.Open(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s\n", path)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tDIMS\tMIN\tMAX")
	for _, a := range f.Arrays() {
		fmt.Fprintf(tw, "  %s\t%s\t%.6g\t%.6g\n", a.Name, a.DimString(), a.Min(), a.Max())
	}
	for _, name := range f.Skipped() {
		fmt.Fprintf(tw, "  %s\t(not numeric, skipped)\t\t\n", name)
	}
	return tw.Flush()
}
