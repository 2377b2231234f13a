package service

import (
	"context"

	"absence-analytics/internal/metrics"
	"absence-analytics/internal/models"
	"absence-analytics/internal/query"

	"golang.org/x/sync/errgroup"
)

// Dashboard все разделы отчета по одному снимку и одним критериям
type Dashboard struct {
	SnapshotID   string
	Criteria     models.FilterCriteria
	Records      int
	ByDepartment models.AggregationResult
	ByPeriod     models.AggregationResult
	ByReason     models.AggregationResult
	ByWeekday    models.AggregationResult
	Sickness     []metrics.SicknessRating
	Daily        []metrics.MonthDailyStats
	Durations    metrics.DurationDistribution
}

// Dashboard считает разделы параллельно. Снимок только читается,
// поэтому блокировки не нужны.
func (s *AnalyticsService) Dashboard(ctx context.Context, snap *query.Snapshot, criteria models.FilterCriteria) (*Dashboard, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	records, err := snap.Query(criteria)
	if err != nil {
		return nil, err
	}
	departments, err := s.Departments(snap)
	if err != nil {
		return nil, err
	}
	if criteria.DepartmentIDs != nil {
		departments = criteria.Normalized().DepartmentIDs
	}

	reasons := make([]string, 0, len(models.Reasons()))
	for _, r := range models.Reasons() {
		reasons = append(reasons, string(r))
	}

	d := &Dashboard{SnapshotID: snap.ID(), Criteria: criteria, Records: len(records)}
	g, ctx := errgroup.WithContext(ctx)

	aggregate := func(dst *models.AggregationResult, grouping models.Grouping) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.Query(snap, grouping, criteria)
			if err != nil {
				return err
			}
			*dst = res
			return nil
		})
	}

	aggregate(&d.ByDepartment, models.Grouping{Dimension: models.DimensionDepartment, Universe: departments})
	aggregate(&d.ByPeriod, models.Grouping{Dimension: models.DimensionPeriod, Bucket: s.pipeline.Bucket})
	aggregate(&d.ByReason, models.Grouping{Dimension: models.DimensionReason, Universe: reasons})
	aggregate(&d.ByWeekday, models.Grouping{Dimension: models.DimensionWeekday})

	g.Go(func() error {
		sickness, err := s.pipeline.Engine.SicknessOverview(records)
		if err != nil {
			return err
		}
		d.Sickness = sickness
		return nil
	})
	g.Go(func() error {
		d.Daily = s.pipeline.Engine.DailyStatistics(records)
		return nil
	})
	g.Go(func() error {
		d.Durations = metrics.Durations(records)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.WithField("snapshot", snap.ID()).WithField("records", d.Records).Debug("Dashboard computed")
	return d, nil
}
