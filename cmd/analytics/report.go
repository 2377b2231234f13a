package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"absence-analytics/internal/config"
	"absence-analytics/internal/models"

	"github.com/spf13/cobra"
)

type reportOptions struct {
	from        string
	to          string
	group       string
	bucket      string
	departments []string
	employees   []string
	reasons     []string
	dashboard   bool
	json        bool
}

func newReportCmd() *cobra.Command {
	var opts reportOptions

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate the current snapshot of clean absence records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "Period start date (requires --to)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Period end date (requires --from)")
	cmd.Flags().StringVar(&opts.group, "group", string(models.DimensionDepartment), "Dimension: employee, department, period, reason, weekday")
	cmd.Flags().StringVar(&opts.bucket, "bucket", "", "Period bucket: day, week, month (default from config)")
	cmd.Flags().StringSliceVar(&opts.departments, "departments", nil, "Restrict to department IDs")
	cmd.Flags().StringSliceVar(&opts.employees, "employees", nil, "Restrict to employee IDs")
	cmd.Flags().StringSliceVar(&opts.reasons, "reasons", nil, "Restrict to reasons")
	cmd.Flags().BoolVar(&opts.dashboard, "dashboard", false, "Print every report section as JSON")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the aggregation as JSON")
	cmd.MarkFlagsRequiredTogether("from", "to")

	return cmd
}

func (o reportOptions) criteria(cmd *cobra.Command) (models.FilterCriteria, error) {
	var c models.FilterCriteria
	if cmd.Flags().Changed("departments") {
		c.DepartmentIDs = o.departments
	}
	if cmd.Flags().Changed("employees") {
		c.EmployeeIDs = o.employees
	}
	if cmd.Flags().Changed("reasons") {
		c.Reasons = make([]models.Reason, 0, len(o.reasons))
		for _, raw := range o.reasons {
			r, err := models.ParseReason(raw)
			if err != nil {
				return c, err
			}
			c.Reasons = append(c.Reasons, r)
		}
	}
	if o.from != "" {
		start, err := models.ParseDate(o.from)
		if err != nil {
			return c, &models.ConfigurationError{Field: "from", Reason: err.Error()}
		}
		end, err := models.ParseDate(o.to)
		if err != nil {
			return c, &models.ConfigurationError{Field: "to", Reason: err.Error()}
		}
		c.DateRange = &models.DateRange{Start: start, End: end}
	}
	return c, c.Validate()
}

func runReport(cmd *cobra.Command, opts reportOptions) error {
	cfg := config.GetConfig()

	criteria, err := opts.criteria(cmd)
	if err != nil {
		return err
	}

	dim, err := models.ParseDimension(opts.group)
	if err != nil {
		return err
	}
	grouping := models.Grouping{Dimension: dim}
	if dim == models.DimensionPeriod {
		grouping.Bucket = cfg.GroupingBucket
		if opts.bucket != "" {
			if grouping.Bucket, err = models.ParseBucket(opts.bucket); err != nil {
				return err
			}
		}
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.analytics.Snapshot()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if opts.dashboard {
		d, err := a.analytics.Dashboard(cmd.Context(), snap, criteria)
		if err != nil {
			return err
		}
		return enc.Encode(d)
	}

	if dim == models.DimensionDepartment && criteria.DepartmentIDs == nil {
		if grouping.Universe, err = a.analytics.Departments(snap); err != nil {
			return err
		}
	}

	res, err := a.analytics.Query(snap, grouping, criteria)
	if err != nil {
		return err
	}

	if opts.json {
		return enc.Encode(res)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := []string{strings.ToUpper(string(dim)), "ABSENCE_DAYS", "WORKING_DAYS", "RECORDS"}
	for _, r := range models.Reasons() {
		header = append(header, strings.ToUpper(string(r)))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, g := range res.Groups {
		fmt.Fprintln(w, row(g.Key, g.MetricBundle))
	}
	fmt.Fprintln(w, row("TOTAL", res.Total()))
	return w.Flush()
}

func row(key string, m models.MetricBundle) string {
	cells := []string{key, fmt.Sprint(m.AbsenceDays), fmt.Sprint(m.WorkingDays), fmt.Sprint(m.RecordCount)}
	for _, r := range models.Reasons() {
		cells = append(cells, fmt.Sprint(m.ByReason[r]))
	}
	return strings.Join(cells, "\t")
}
