package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"vk-comments-exporter/internal/comments"
	"vk-comments-exporter/internal/export"
	"vk-comments-exporter/internal/logger"
	"vk-comments-exporter/internal/store"
)

// comments-csv converts an exported JSON document into the flattened CSV.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var in, out, delimiter string
	fs := flag.NewFlagSet("comments-csv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&in, "in", "comments.json", "input JSON document")
	fs.StringVar(&in, "input", "comments.json", "alias of -in")
	fs.StringVar(&out, "out", "comments.csv", "output CSV file")
	fs.StringVar(&out, "output", "comments.csv", "alias of -out")
	fs.StringVar(&delimiter, "delimiter", export.DefaultDelimiter, "field delimiter")
	fs.StringVar(&delimiter, "d", export.DefaultDelimiter, "alias of -delimiter")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	logger.Init(stderr, "info", "text")

	rows, err := convert(in, out, delimiter)
	if err != nil {
		logger.Error("export failed", "in", in, "err", err)
		fmt.Fprintf(stderr, "Export error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Exported %d rows to %s\n", rows, out)
	return 0
}

func convert(in, out, delimiter string) (int, error) {
	f, err := os.Open(in)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	forest, err := export.ReadJSON(f)
	if err != nil {
		return 0, err
	}
	err = store.WriteFile(out, func(w io.Writer) error {
		return export.WriteCSV(w, forest, delimiter)
	})
	if err != nil {
		return 0, err
	}
	return comments.Count(forest), nil
}
