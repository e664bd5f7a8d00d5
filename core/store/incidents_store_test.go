package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"nearmiss-dashboard/config"
	"nearmiss-dashboard/core/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.AppConfig{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "incidents.db")}
	logger := utils.NewDiscardLogger()
	db, err := NewDB(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, ApplyMigrations(context.Background(), db, logger))
	return db
}

func strPtr(v string) *string { return &v }

func testIncident(number string, date Date, severity int, region string) Incident {
	_, week := date.ISOWeek()
	inc := Incident{
		IncidentNumber: number,
		IncidentDate:   date,
		SeverityLevel:  severity,
		Year:           date.Year(),
		Month:          int(date.Month()),
		Week:           week,
		DayOfYear:      date.YearDay(),
	}
	if region != "" {
		inc.Region = strPtr(region)
	}
	return inc
}

// seedExample stores the three reference incidents used across the tests.
func seedExample(t *testing.T, st IncidentsStore) {
	t.Helper()
	a := testIncident("NM-1", NewDate(2024, time.January, 15), 1, "North")
	a.ActionCause = strPtr("Housekeeping")
	a.BehaviorType = strPtr("Safe")
	b := testIncident("NM-2", NewDate(2024, time.February, 10), 3, "South")
	b.ActionCause = strPtr("Housekeeping")
	b.BehaviorType = strPtr("At-Risk")
	b.Location = strPtr("Warehouse 7")
	b.IsLCV = true
	c := testIncident("NM-3", NewDate(2024, time.February, 20), 3, "North")
	c.ActionCause = strPtr("Lifting")
	require.NoError(t, st.InsertIncidents(context.Background(), []Incident{a, b, c}))
}

func TestCreateAndGetIncident(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	ctx := context.Background()
	inc := testIncident("NM-100", NewDate(2024, time.March, 5), 2, "East")
	inc.Job = strPtr("  Welder ")
	require.NoError(t, st.CreateIncident(ctx, &inc))
	require.NotEmpty(t, inc.ID)
	assert.False(t, inc.CreatedAt.IsZero())

	got, err := st.GetIncident(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, "NM-100", got.IncidentNumber)
	assert.Equal(t, "2024-03-05", got.IncidentDate.String())
	assert.Equal(t, 2, got.SeverityLevel)
	require.NotNil(t, got.Region)
	assert.Equal(t, "East", *got.Region)
	require.NotNil(t, got.Job)
	assert.Equal(t, "Welder", *got.Job)
	assert.Nil(t, got.ActionCause)
	assert.Equal(t, 2024, got.Year)
	assert.Equal(t, 3, got.Month)
	assert.False(t, got.IsLCV)
}

func TestGetIncidentNotFound(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	_, err := st.GetIncident(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAndDeleteMissingIncident(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	ctx := context.Background()
	inc := testIncident("NM-1", NewDate(2024, time.January, 1), 1, "")
	inc.ID = "missing"
	assert.ErrorIs(t, st.UpdateIncident(ctx, &inc), ErrNotFound)
	assert.ErrorIs(t, st.DeleteIncident(ctx, "missing"), ErrNotFound)
}

func TestUpdateIncident(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	ctx := context.Background()
	inc := testIncident("NM-1", NewDate(2024, time.January, 1), 1, "North")
	require.NoError(t, st.CreateIncident(ctx, &inc))
	created := inc.CreatedAt

	inc.SeverityLevel = 4
	inc.Region = nil
	require.NoError(t, st.UpdateIncident(ctx, &inc))

	got, err := st.GetIncident(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.SeverityLevel)
	assert.Nil(t, got.Region)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.False(t, got.UpdatedAt.Before(created))
}

func TestListIncidentsFilterAndSort(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	ctx := context.Background()
	seedExample(t, st)

	items, err := st.ListIncidents(ctx, ListQuery{Where: In{Field: FieldSeverityLevel, Values: []any{3}}})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "NM-3", items[0].IncidentNumber, "default sort is newest first")
	assert.Equal(t, "NM-2", items[1].IncidentNumber)

	items, err = st.ListIncidents(ctx, ListQuery{
		Where: Contains{Field: FieldRegion, Value: "nOR"},
		Sort:  Sort{Field: FieldIncidentDate},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "NM-1", items[0].IncidentNumber)

	from, to := NewDate(2024, time.February, 1), NewDate(2024, time.February, 15)
	items, err = st.ListIncidents(ctx, ListQuery{Where: Range{Field: FieldIncidentDate, From: from, To: to}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "NM-2", items[0].IncidentNumber)

	items, err = st.ListIncidents(ctx, ListQuery{Sort: Sort{Field: FieldIncidentDate}, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "NM-3", items[0].IncidentNumber)

	n, err := st.CountIncidents(ctx, Equals{Field: FieldIsLCV, Value: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListIncidentsSortsNullsLast(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	ctx := context.Background()
	seedExample(t, st)
	noLocation := testIncident("NM-4", NewDate(2024, time.April, 1), 0, "")
	require.NoError(t, st.CreateIncident(ctx, &noLocation))

	for _, desc := range []bool{false, true} {
		items, err := st.ListIncidents(ctx, ListQuery{Sort: Sort{Field: FieldLocation, Desc: desc}})
		require.NoError(t, err)
		require.Len(t, items, 4)
		assert.NotNil(t, items[0].Location)
		assert.Nil(t, items[3].Location)
	}
}

func TestContainsTreatsWildcardsLiterally(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	ctx := context.Background()
	a := testIncident("NM-1", NewDate(2024, time.January, 1), 1, "")
	a.Location = strPtr("Bay 50%")
	b := testIncident("NM-2", NewDate(2024, time.January, 2), 1, "")
	b.Location = strPtr("Bay 500")
	require.NoError(t, st.InsertIncidents(ctx, []Incident{a, b}))

	items, err := st.ListIncidents(ctx, ListQuery{Where: Contains{Field: FieldLocation, Value: "50%"}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "NM-1", items[0].IncidentNumber)

	n, err := st.CountIncidents(ctx, Contains{Field: FieldLocation, Value: "bay_5"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestContainsFoldsNonASCII(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	ctx := context.Background()
	a := testIncident("NM-1", NewDate(2024, time.January, 1), 1, "")
	a.Location = strPtr("ÉCLAIRAGE Nord")
	b := testIncident("NM-2", NewDate(2024, time.January, 2), 1, "")
	b.Location = strPtr("Straße 4")
	require.NoError(t, st.InsertIncidents(ctx, []Incident{a, b}))

	for value, want := range map[string]string{"éclairage": "NM-1", "Éclair": "NM-1", "STRAßE": "NM-2"} {
		items, err := st.ListIncidents(ctx, ListQuery{Where: Contains{Field: FieldLocation, Value: value}})
		require.NoError(t, err, value)
		require.Len(t, items, 1, value)
		assert.Equal(t, want, items[0].IncidentNumber, value)
	}
}

func TestGroupCountFoldsBlankValues(t *testing.T) {
	db := newTestDB(t)
	st := NewIncidentsStore(db)
	ctx := context.Background()
	seedExample(t, st)
	blank := testIncident("NM-4", NewDate(2024, time.March, 1), 2, "West")
	require.NoError(t, st.CreateIncident(ctx, &blank))
	_, err := db.ExecContext(ctx, `UPDATE incidents SET region='' WHERE id=?`, blank.ID)
	require.NoError(t, err)
	missing := testIncident("NM-5", NewDate(2024, time.March, 2), 2, "")
	require.NoError(t, st.CreateIncident(ctx, &missing))

	groups, err := st.GroupCount(ctx, GroupQuery{Field: FieldRegion, NullLabel: "Unspecified", ByCount: true})
	require.NoError(t, err)
	assert.Equal(t, []GroupCount{
		{Key: "North", Count: 2},
		{Key: "Unspecified", Count: 2},
		{Key: "South", Count: 1},
	}, groups)

	groups, err = st.GroupCount(ctx, GroupQuery{Field: FieldSeverityLevel})
	require.NoError(t, err)
	assert.Equal(t, []GroupCount{{Key: "1", Count: 1}, {Key: "2", Count: 2}, {Key: "3", Count: 2}}, groups)

	groups, err = st.GroupCount(ctx, GroupQuery{Field: FieldRegion, NullLabel: "Unspecified", ByCount: true, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestGroupCountPairs(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	ctx := context.Background()
	seedExample(t, st)

	pairs, err := st.GroupCountPairs(ctx, PairQuery{
		First:     FieldActionCause,
		Second:    FieldBehaviorType,
		NullLabel: "Unspecified",
	})
	require.NoError(t, err)
	assert.Equal(t, []PairCount{
		{First: "Housekeeping", Second: "At-Risk", Count: 1},
		{First: "Housekeeping", Second: "Safe", Count: 1},
		{First: "Lifting", Second: "Unspecified", Count: 1},
	}, pairs)
}

func TestCountByYearMonth(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	ctx := context.Background()
	seedExample(t, st)

	rows, err := st.CountByYearMonth(ctx, MatchAll())
	require.NoError(t, err)
	assert.Equal(t, []YearMonthCount{{Year: 2024, Month: 1, Count: 1}, {Year: 2024, Month: 2, Count: 2}}, rows)

	rows, err = st.CountByYearMonth(ctx, In{Field: FieldSeverityLevel, Values: []any{5}})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDistinctValues(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	ctx := context.Background()
	seedExample(t, st)
	noRegion := testIncident("NM-4", NewDate(2023, time.December, 31), 0, "")
	require.NoError(t, st.CreateIncident(ctx, &noRegion))

	regions, err := st.DistinctValues(ctx, FieldRegion, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"North", "South"}, regions)

	years, err := st.DistinctValues(ctx, FieldYear, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024", "2023"}, years)
}

func TestExistingIncidentNumbers(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	ctx := context.Background()
	seedExample(t, st)

	found, err := st.ExistingIncidentNumbers(ctx, []string{"NM-1", "NM-9", "NM-3"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Contains(t, found, "NM-1")
	assert.Contains(t, found, "NM-3")

	found, err = st.ExistingIncidentNumbers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestInsertIncidentsIsAtomic(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	ctx := context.Background()
	ok := testIncident("NM-1", NewDate(2024, time.January, 1), 1, "")
	bad := testIncident("NM-2", NewDate(2024, time.January, 2), 9, "")

	require.Error(t, st.InsertIncidents(ctx, []Incident{ok, bad}))
	n, err := st.CountIncidents(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteAllIncidents(t *testing.T) {
	st := NewIncidentsStore(newTestDB(t))
	ctx := context.Background()
	seedExample(t, st)

	n, err := st.DeleteAllIncidents(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	total, err := st.CountIncidents(ctx, MatchAll())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMigrationVersion(t *testing.T) {
	db := newTestDB(t)
	version, err := MigrationVersion(context.Background(), db)
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)
	assert.Equal(t, DialectSQLite, DialectOf(db))
}
