package incidents

import (
	"context"
	"testing"

	"nearmiss-dashboard/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakdownByRegion(t *testing.T) {
	svc := newTestService(t, config.IncidentsConfig{})
	createExample(t, svc)

	items, err := svc.Breakdown(context.Background(), ReportRegion, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []LabelValue{
		{Label: "North", Value: 2, Percentage: 67},
		{Label: "South", Value: 1, Percentage: 33},
	}, items)
}

func TestBreakdownUsesUnspecifiedLabel(t *testing.T) {
	svc := newTestService(t, config.IncidentsConfig{UnspecifiedLabel: "N/A"})
	createExample(t, svc)

	items, err := svc.Breakdown(context.Background(), ReportBehaviorType, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []LabelValue{
		{Label: "At-Risk", Value: 1, Percentage: 33},
		{Label: "N/A", Value: 1, Percentage: 33},
		{Label: "Safe", Value: 1, Percentage: 33},
	}, items)
}

func TestBreakdownSeverityIsOrdinal(t *testing.T) {
	svc := newTestService(t, config.IncidentsConfig{})
	createExample(t, svc)
	mustCreate(t, svc, CreateInput{IncidentNumber: "NM-4", IncidentDate: "2024-03-01", SeverityLevel: intPtr(0)})

	items, err := svc.Breakdown(context.Background(), ReportSeverity, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []LabelValue{
		{Label: "Level 0", Value: 1, Percentage: 25},
		{Label: "Level 1", Value: 1, Percentage: 25},
		{Label: "Level 3", Value: 2, Percentage: 50},
	}, items)
}

func TestBreakdownRespectsFilterAndLimit(t *testing.T) {
	svc := newTestService(t, config.IncidentsConfig{TopActionCauses: 1})
	createExample(t, svc)
	ctx := context.Background()

	items, err := svc.Breakdown(ctx, ReportActionCause, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []LabelValue{{Label: "Housekeeping", Value: 2, Percentage: 67}}, items)

	items, err = svc.Breakdown(ctx, ReportRegion, Filter{SeverityLevels: []int{3}})
	require.NoError(t, err)
	assert.Equal(t, []LabelValue{
		{Label: "North", Value: 1, Percentage: 50},
		{Label: "South", Value: 1, Percentage: 50},
	}, items)

	items, err = svc.Breakdown(ctx, ReportJob, Filter{Region: "east"})
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = svc.Breakdown(ctx, Report("by-weather"), Filter{})
	assert.Error(t, err)
}

func TestByMonth(t *testing.T) {
	svc := newTestService(t, config.IncidentsConfig{})
	createExample(t, svc)

	months, err := svc.ByMonth(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, []MonthCount{{Year: 2024, Month: 1, Count: 1}, {Year: 2024, Month: 2, Count: 2}}, months)

	year := 2023
	months, err = svc.ByMonth(context.Background(), Filter{Year: &year})
	require.NoError(t, err)
	assert.Equal(t, []MonthCount{}, months)
}

func TestSummary(t *testing.T) {
	svc := newTestService(t, config.IncidentsConfig{})
	createExample(t, svc)

	sum, err := svc.Summary(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalIncidents)
	assert.Equal(t, 1, sum.LcvCount)
	assert.Equal(t, 2, sum.NonLcvCount)
	assert.Equal(t, []LabelValue{
		{Label: "Level 1", Value: 1, Percentage: 33},
		{Label: "Level 3", Value: 2, Percentage: 67},
	}, sum.BySeverity)
	assert.Len(t, sum.ByBehaviorType, 3)

	sum, err = svc.Summary(context.Background(), Filter{IsLCV: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalIncidents)
	assert.Equal(t, 0, sum.NonLcvCount)
}

func TestSummaryOfEmptyStore(t *testing.T) {
	svc := newTestService(t, config.IncidentsConfig{})
	sum, err := svc.Summary(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.TotalIncidents)
	assert.Empty(t, sum.BySeverity)
}

func TestActionCauseDetails(t *testing.T) {
	svc := newTestService(t, config.IncidentsConfig{})
	createExample(t, svc)
	mustCreate(t, svc, CreateInput{IncidentNumber: "NM-4", IncidentDate: "2024-03-01", SeverityLevel: intPtr(2)})

	details, err := svc.ActionCauseDetails(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, []CauseBreakdown{
		{ActionCause: "Housekeeping", Breakdown: map[string]int{"Safe": 1, "At-Risk": 1}},
		{ActionCause: "Lifting", Breakdown: map[string]int{"Unspecified": 1}},
	}, details)

	details, err = svc.ActionCauseDetails(context.Background(), Filter{Region: "nowhere"})
	require.NoError(t, err)
	assert.Equal(t, []CauseBreakdown{}, details)
}

func TestFilterOptions(t *testing.T) {
	svc := newTestService(t, config.IncidentsConfig{})
	createExample(t, svc)
	mustCreate(t, svc, CreateInput{IncidentNumber: "NM-4", IncidentDate: "2023-06-01", SeverityLevel: intPtr(5)})

	opts, err := svc.FilterOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &FilterOptions{
		Regions:        []string{"North", "South"},
		Years:          []int{2024, 2023},
		SeverityLevels: []int{1, 3, 5},
	}, opts)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, percentage(5, 0))
	assert.Equal(t, 50, percentage(1, 2))
	assert.Equal(t, 17, percentage(1, 6))
	assert.Equal(t, 100, percentage(3, 3))
}
