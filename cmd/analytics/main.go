package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "absence-analytics",
		Short:         "Absence analytics: ingest HR exports, clean them and build reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newIngestCmd(),
		newReportCmd(),
		newCalendarCmd(),
		newBatchesCmd(),
		newRecleanCmd(),
		newBotCmd(),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("Command failed")
		stop()
		os.Exit(1)
	}
}
