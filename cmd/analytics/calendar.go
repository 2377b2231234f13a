package main

import (
	"fmt"

	"absence-analytics/internal/config"

	"github.com/spf13/cobra"
)

func newCalendarCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Load a production calendar JSON into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			// календарь из флага, а не из CALENDAR_FILE
			cfg := *config.GetConfig()
			cfg.CalendarFile = ""

			a, err := newApp(&cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.calendar.LoadFromJSON(file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d non working days from %s\n", n, file)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Calendar JSON file (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
