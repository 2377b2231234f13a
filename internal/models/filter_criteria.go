package models

import (
	"fmt"
	"sort"
)

// FilterCriteria предикаты выборки записей.
// nil-поле означает отсутствие ограничения, пустое (не nil) множество не пропускает ничего.
type FilterCriteria struct {
	DepartmentIDs []string   `json:"department_ids,omitempty"`
	EmployeeIDs   []string   `json:"employee_ids,omitempty"`
	DateRange     *DateRange `json:"date_range,omitempty"`
	Reasons       []Reason   `json:"reasons,omitempty"`
}

// IsEmpty критерии без ограничений
func (c FilterCriteria) IsEmpty() bool {
	return c.DepartmentIDs == nil && c.EmployeeIDs == nil && c.DateRange == nil && c.Reasons == nil
}

// Validate проверяет критерии до выполнения запроса
func (c FilterCriteria) Validate() error {
	if c.DateRange != nil {
		if c.DateRange.Start.IsZero() || c.DateRange.End.IsZero() {
			return &ConfigurationError{Field: "date_range", Reason: "both bounds are required"}
		}
		if c.DateRange.Start.After(c.DateRange.End) {
			return &ConfigurationError{
				Field:  "date_range",
				Reason: fmt.Sprintf("start %s is after end %s", c.DateRange.Start.Format(DateLayout), c.DateRange.End.Format(DateLayout)),
			}
		}
	}
	for _, r := range c.Reasons {
		if !r.Valid() {
			return &ConfigurationError{Field: "reasons", Reason: fmt.Sprintf("unknown reason %q", r)}
		}
	}
	return nil
}

// Normalized копия с отсортированными множествами, для стабильных ключей
func (c FilterCriteria) Normalized() FilterCriteria {
	out := FilterCriteria{
		DepartmentIDs: sortedUnique(c.DepartmentIDs),
		EmployeeIDs:   sortedUnique(c.EmployeeIDs),
	}
	if c.DateRange != nil {
		dr := DateRange{Start: TruncateDate(c.DateRange.Start), End: TruncateDate(c.DateRange.End)}
		out.DateRange = &dr
	}
	if c.Reasons != nil {
		seen := make(map[Reason]bool, len(c.Reasons))
		out.Reasons = []Reason{}
		for _, r := range Reasons() {
			for _, want := range c.Reasons {
				if want == r && !seen[r] {
					seen[r] = true
					out.Reasons = append(out.Reasons, r)
				}
			}
		}
	}
	return out
}

func sortedUnique(in []string) []string {
	if in == nil {
		return nil
	}
	set := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
