package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"absence-analytics/internal/config"
	"absence-analytics/internal/models"

	"github.com/spf13/cobra"
)

func newBatchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batches [id]",
		Short: "List ingested batches or show the rejected records of one batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(config.GetConfig())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				batches, err := a.analytics.Batches()
				if err != nil {
					return err
				}
				return writeBatches(out, batches)
			}

			details, err := a.analytics.Batch(args[0])
			if err != nil {
				return err
			}
			if details == nil {
				return fmt.Errorf("batch %s not found", args[0])
			}
			if err := writeBatches(out, []models.Batch{details.Batch}); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return writeRejected(out, details.Rejected())
		},
	}
}

func newRecleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reclean",
		Short: "Re-apply the configured cleaning rules to every stored batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(config.GetConfig())
			if err != nil {
				return err
			}
			defer a.Close()

			batches, err := a.analytics.Reclean(cmd.Context())
			if err != nil {
				return err
			}
			return writeBatches(cmd.OutOrStdout(), batches)
		},
	}
}

func writeBatches(out io.Writer, batches []models.Batch) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tID\tSOURCE\tROWS\tACCEPTED\tCLEAN\tREJECTED\tOVERLAPS\tFLAGS")
	for _, b := range batches {
		flags := "-"
		switch {
		case b.Stopped && b.Partial:
			flags = "stopped,partial"
		case b.Stopped:
			flags = "stopped"
		case b.Partial:
			flags = "partial"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			b.Sequence, b.ID, b.Source, b.RowsSeen, b.RowsAccepted, b.CleanCount, b.RejectedCount, b.OverlapCount, flags)
	}
	return w.Flush()
}

func writeRejected(out io.Writer, records []models.AbsenceRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tEMPLOYEE\tDEPARTMENT\tSTART\tEND\tREASON\tREJECTION")
	for _, rec := range records {
		reason := rec.RawReason
		if reason == "" {
			reason = string(rec.Reason)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.RowIndex, rec.EmployeeID, rec.DepartmentID,
			rec.StartDate.Format(models.DateLayout), rec.EndDate.Format(models.DateLayout), reason, rec.Rejection)
	}
	return w.Flush()
}
