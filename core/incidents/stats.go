package incidents

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"nearmiss-dashboard/core/store"

	"golang.org/x/sync/errgroup"
)

type LabelValue struct {
	Label      string `json:"label"`
	Value      int    `json:"value"`
	Percentage int    `json:"percentage"`
}

type MonthCount struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Count int `json:"count"`
}

type Summary struct {
	TotalIncidents int          `json:"totalIncidents"`
	BySeverity     []LabelValue `json:"bySeverity"`
	ByBehaviorType []LabelValue `json:"byBehaviorType"`
	LcvCount       int          `json:"lcvCount"`
	NonLcvCount    int          `json:"nonLcvCount"`
}

type FilterOptions struct {
	Regions        []string `json:"regions"`
	Years          []int    `json:"years"`
	SeverityLevels []int    `json:"severityLevels"`
}

// Report names a grouped label/value report.
type Report string

const (
	ReportSeverity        Report = "by-severity"
	ReportRegion          Report = "by-region"
	ReportGBU             Report = "by-gbu"
	ReportBehaviorType    Report = "by-behavior-type"
	ReportActionCause     Report = "by-action-cause"
	ReportPrimaryCategory Report = "by-primary-category"
	ReportLocation        Report = "by-location"
	ReportJob             Report = "by-job"
)

type reportSpec struct {
	field store.Field
	// ordinal reports sort by key and are never truncated
	ordinal bool
	limit   func(s *Service) int
}

func noLimit(*Service) int { return 0 }

var reports = map[Report]reportSpec{
	ReportSeverity:        {field: store.FieldSeverityLevel, ordinal: true, limit: noLimit},
	ReportRegion:          {field: store.FieldRegion, limit: noLimit},
	ReportGBU:             {field: store.FieldGBU, limit: noLimit},
	ReportBehaviorType:    {field: store.FieldBehaviorType, limit: noLimit},
	ReportActionCause:     {field: store.FieldActionCause, limit: func(s *Service) int { return s.cfg.TopActionCauses }},
	ReportPrimaryCategory: {field: store.FieldPrimaryCategory, limit: func(s *Service) int { return s.cfg.TopCategories }},
	ReportLocation:        {field: store.FieldLocation, limit: func(s *Service) int { return s.cfg.TopCategories }},
	ReportJob:             {field: store.FieldJob, limit: func(s *Service) int { return s.cfg.TopCategories }},
}

// Breakdown runs one grouped label/value report under f.
func (s *Service) Breakdown(ctx context.Context, report Report, f Filter) ([]LabelValue, error) {
	spec, ok := reports[report]
	if !ok {
		return nil, fmt.Errorf("unknown report %q", report)
	}
	where := f.Predicate()
	var (
		total  int
		groups []store.GroupCount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.store.CountIncidents(gctx, where)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = s.store.GroupCount(gctx, s.groupQuery(spec, where))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("report %s: %w", report, err)
	}
	return s.labelValues(spec, groups, total), nil
}

func (s *Service) groupQuery(spec reportSpec, where store.Predicate) store.GroupQuery {
	return store.GroupQuery{
		Field:     spec.field,
		Where:     where,
		NullLabel: s.cfg.UnspecifiedLabel,
		ByCount:   !spec.ordinal,
		Limit:     spec.limit(s),
	}
}

func (s *Service) labelValues(spec reportSpec, groups []store.GroupCount, total int) []LabelValue {
	out := make([]LabelValue, 0, len(groups))
	for _, grp := range groups {
		label := grp.Key
		if spec.field == store.FieldSeverityLevel {
			label = "Level " + grp.Key
		} else if label == "" {
			label = s.cfg.UnspecifiedLabel
		}
		out = append(out, LabelValue{Label: label, Value: grp.Count, Percentage: percentage(grp.Count, total)})
	}
	return out
}

// percentage rounds half away from zero; an empty population yields 0.
func percentage(count, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}

func (s *Service) Summary(ctx context.Context, f Filter) (*Summary, error) {
	where := f.Predicate()
	sevSpec := reports[ReportSeverity]
	behaviorSpec := reports[ReportBehaviorType]
	var (
		total, lcv        int
		severity, behavior []store.GroupCount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.store.CountIncidents(gctx, where)
		return err
	})
	g.Go(func() error {
		var err error
		severity, err = s.store.GroupCount(gctx, s.groupQuery(sevSpec, where))
		return err
	})
	g.Go(func() error {
		var err error
		behavior, err = s.store.GroupCount(gctx, s.groupQuery(behaviorSpec, where))
		return err
	})
	g.Go(func() error {
		var err error
		lcv, err = s.store.CountIncidents(gctx, store.And{where, store.Equals{Field: store.FieldIsLCV, Value: true}})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return &Summary{
		TotalIncidents: total,
		BySeverity:     s.labelValues(sevSpec, severity, total),
		ByBehaviorType: s.labelValues(behaviorSpec, behavior, total),
		LcvCount:       lcv,
		NonLcvCount:    total - lcv,
	}, nil
}

func (s *Service) ByMonth(ctx context.Context, f Filter) ([]MonthCount, error) {
	rows, err := s.store.CountByYearMonth(ctx, f.Predicate())
	if err != nil {
		return nil, fmt.Errorf("report by-month: %w", err)
	}
	out := make([]MonthCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, MonthCount{Year: r.Year, Month: r.Month, Count: r.Count})
	}
	return out, nil
}

// FilterOptions lists the stored universe of region, year and severity values.
func (s *Service) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	var regions, years, severities []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		regions, err = s.store.DistinctValues(gctx, store.FieldRegion, false)
		return err
	})
	g.Go(func() error {
		var err error
		years, err = s.store.DistinctValues(gctx, store.FieldYear, true)
		return err
	})
	g.Go(func() error {
		var err error
		severities, err = s.store.DistinctValues(gctx, store.FieldSeverityLevel, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("filter options: %w", err)
	}
	yearVals, err := atoiAll(years)
	if err != nil {
		return nil, fmt.Errorf("filter options years: %w", err)
	}
	sevVals, err := atoiAll(severities)
	if err != nil {
		return nil, fmt.Errorf("filter options severities: %w", err)
	}
	return &FilterOptions{Regions: regions, Years: yearVals, SeverityLevels: sevVals}, nil
}

func atoiAll(vals []string) ([]int, error) {
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
