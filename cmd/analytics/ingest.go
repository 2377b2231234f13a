package main

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"absence-analytics/internal/config"
	"absence-analytics/internal/ingest"

	"github.com/spf13/cobra"
)

type ingestOptions struct {
	file       string
	sheet      string
	table      string
	delimiter  string
	bestEffort bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest one export (CSV, XLSX or database table) as a new batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Export file: .csv/.txt or .xlsx")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "Sheet name for .xlsx (default: first sheet)")
	cmd.Flags().StringVar(&opts.table, "table", "", "Read rows from a table of the configured database")
	cmd.Flags().StringVar(&opts.delimiter, "delimiter", "", "CSV delimiter (default: detected from header)")
	cmd.Flags().BoolVar(&opts.bestEffort, "best-effort", false, "Keep rows read before a mid-stream source failure or an interrupt")
	cmd.MarkFlagsMutuallyExclusive("file", "table")
	cmd.MarkFlagsOneRequired("file", "table")

	return cmd
}

func runIngest(cmd *cobra.Command, opts ingestOptions) error {
	var adapterOpts []ingest.Option
	if opts.bestEffort {
		adapterOpts = append(adapterOpts, ingest.WithBestEffort())
	}

	a, err := newApp(config.GetConfig(), adapterOpts...)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := sourceFor(a, opts)
	if err != nil {
		return err
	}

	res, err := a.analytics.IngestAndClean(cmd.Context(), src)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func sourceFor(a *app, opts ingestOptions) (ingest.RowSource, error) {
	if opts.table != "" {
		return ingest.NewTableSource(a.db, opts.table), nil
	}

	switch strings.ToLower(filepath.Ext(opts.file)) {
	case ".xlsx", ".xlsm":
		cols := a.cfg.Columns
		return ingest.NewSpreadsheetFile(opts.file, opts.sheet, cols.StartDate, cols.EndDate), nil
	default:
		comma, err := parseDelimiter(opts.delimiter)
		if err != nil {
			return nil, err
		}
		return ingest.NewCSVFile(opts.file, comma), nil
	}
}

// parseDelimiter пустая строка - автоопределение, "\t" - табуляция
func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, errors.New("delimiter must be a single character")
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
