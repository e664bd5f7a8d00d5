package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

type Incident struct {
	ID                        string    `json:"id"`
	IncidentNumber            string    `json:"incidentNumber"`
	IncidentDate              Date      `json:"incidentDate"`
	SeverityLevel             int       `json:"severityLevel"`
	ActionCause               *string   `json:"actionCause"`
	BehaviorType              *string   `json:"behaviorType"`
	GBU                       *string   `json:"gbu"`
	Region                    *string   `json:"region"`
	PrimaryCategory           *string   `json:"primaryCategory"`
	NearMissSubCategory       *string   `json:"nearMissSubCategory"`
	UnsafeConditionOrBehavior *string   `json:"unsafeConditionOrBehavior"`
	CompanyType               *string   `json:"companyType"`
	Location                  *string   `json:"location"`
	Job                       *string   `json:"job"`
	CraftCode                 *string   `json:"craftCode"`
	Year                      int       `json:"year"`
	Month                     int       `json:"month"`
	Week                      int       `json:"week"`
	DayOfYear                 int       `json:"dayOfYear"`
	IsLCV                     bool      `json:"isLcv"`
	CreatedAt                 time.Time `json:"createdAt"`
	UpdatedAt                 time.Time `json:"updatedAt"`
}

type ListQuery struct {
	Where  Predicate
	Sort   Sort
	Limit  int
	Offset int
}

// GroupQuery describes a single-column GROUP BY count.
type GroupQuery struct {
	Field Field
	Where Predicate
	// NullLabel, when set, folds NULL and empty text values into one group with this key.
	NullLabel string
	// ByCount orders by count descending then key ascending; otherwise by key ascending.
	ByCount bool
	Limit   int
}

type GroupCount struct {
	Key   string
	Count int
}

type PairQuery struct {
	First     Field
	Second    Field
	Where     Predicate
	NullLabel string
}

type PairCount struct {
	First  string
	Second string
	Count  int
}

type YearMonthCount struct {
	Year  int
	Month int
	Count int
}

type IncidentsStore interface {
	CreateIncident(ctx context.Context, incident *Incident) error
	GetIncident(ctx context.Context, id string) (*Incident, error)
	UpdateIncident(ctx context.Context, incident *Incident) error
	DeleteIncident(ctx context.Context, id string) error
	ListIncidents(ctx context.Context, q ListQuery) ([]Incident, error)
	CountIncidents(ctx context.Context, where Predicate) (int, error)
	GroupCount(ctx context.Context, q GroupQuery) ([]GroupCount, error)
	GroupCountPairs(ctx context.Context, q PairQuery) ([]PairCount, error)
	CountByYearMonth(ctx context.Context, where Predicate) ([]YearMonthCount, error)
	DistinctValues(ctx context.Context, field Field, desc bool) ([]string, error)
	ExistingIncidentNumbers(ctx context.Context, numbers []string) (map[string]struct{}, error)
	InsertIncidents(ctx context.Context, items []Incident) error
	DeleteAllIncidents(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

type incidentsStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewIncidentsStore(db *sql.DB) IncidentsStore {
	return &incidentsStore{db: db, dialect: DialectOf(db)}
}

const incidentColumns = `id, incident_number, incident_date, severity_level, action_cause, behavior_type, gbu, region, primary_category, near_miss_sub_category, unsafe_condition_or_behavior, company_type, location, job, craft_code, year, month, week, day_of_year, is_lcv, created_at, updated_at`

const insertIncidentSQL = `INSERT INTO incidents(` + incidentColumns + `) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

func (s *incidentsStore) q(query string) string {
	return rebind(s.dialect, query)
}

func (s *incidentsStore) CreateIncident(ctx context.Context, incident *Incident) error {
	if err := prepareInsert(incident, time.Now()); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.q(insertIncidentSQL), insertArgs(incident)...)
	return err
}

func (s *incidentsStore) GetIncident(ctx context.Context, id string) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+incidentColumns+` FROM incidents WHERE id=?`), id)
	inc, err := scanIncident(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inc, nil
}

func (s *incidentsStore) UpdateIncident(ctx context.Context, incident *Incident) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE incidents SET incident_number=?, incident_date=?, severity_level=?, action_cause=?, behavior_type=?, gbu=?, region=?, primary_category=?, near_miss_sub_category=?, unsafe_condition_or_behavior=?, company_type=?, location=?, job=?, craft_code=?, year=?, month=?, week=?, day_of_year=?, is_lcv=?, updated_at=?
		WHERE id=?`),
		incident.IncidentNumber, incident.IncidentDate, incident.SeverityLevel,
		nullableText(incident.ActionCause), nullableText(incident.BehaviorType), nullableText(incident.GBU), nullableText(incident.Region),
		nullableText(incident.PrimaryCategory), nullableText(incident.NearMissSubCategory), nullableText(incident.UnsafeConditionOrBehavior),
		nullableText(incident.CompanyType), nullableText(incident.Location), nullableText(incident.Job), nullableText(incident.CraftCode),
		incident.Year, incident.Month, incident.Week, incident.DayOfYear, incident.IsLCV, now, incident.ID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	incident.UpdatedAt = now
	return nil
}

func (s *incidentsStore) DeleteIncident(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM incidents WHERE id=?`), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *incidentsStore) ListIncidents(ctx context.Context, q ListQuery) ([]Incident, error) {
	where, args := compileWhere(q.Where)
	query := `SELECT ` + incidentColumns + ` FROM incidents` + where + q.Sort.orderBy()
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
		if q.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", q.Offset)
		}
	}
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Incident{}
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, inc)
	}
	return res, rows.Err()
}

func (s *incidentsStore) CountIncidents(ctx context.Context, where Predicate) (int, error) {
	clause, args := compileWhere(where)
	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM incidents`+clause), args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *incidentsStore) GroupCount(ctx context.Context, q GroupQuery) ([]GroupCount, error) {
	if !q.Field.valid() {
		return nil, fmt.Errorf("group by: unknown field %d", q.Field)
	}
	expr, args := groupExpr(q.Field, q.NullLabel)
	clause, whereArgs := compileWhere(q.Where)
	args = append(args, whereArgs...)
	query := `SELECT ` + expr + ` AS group_key, COUNT(*) AS cnt FROM incidents` + clause + ` GROUP BY 1`
	if q.ByCount {
		query += " ORDER BY cnt DESC, group_key ASC"
	} else {
		query += " ORDER BY group_key ASC"
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []GroupCount{}
	for rows.Next() {
		var key sql.NullString
		var item GroupCount
		if err := rows.Scan(&key, &item.Count); err != nil {
			return nil, err
		}
		item.Key = key.String
		res = append(res, item)
	}
	return res, rows.Err()
}

func (s *incidentsStore) GroupCountPairs(ctx context.Context, q PairQuery) ([]PairCount, error) {
	if !q.First.valid() || !q.Second.valid() {
		return nil, errors.New("group by pair: unknown field")
	}
	firstExpr, args := groupExpr(q.First, q.NullLabel)
	secondExpr, secondArgs := groupExpr(q.Second, q.NullLabel)
	args = append(args, secondArgs...)
	clause, whereArgs := compileWhere(q.Where)
	args = append(args, whereArgs...)
	query := `SELECT ` + firstExpr + ` AS first_key, ` + secondExpr + ` AS second_key, COUNT(*) AS cnt FROM incidents` + clause +
		` GROUP BY 1, 2 ORDER BY first_key ASC, second_key ASC`
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []PairCount{}
	for rows.Next() {
		var first, second sql.NullString
		var item PairCount
		if err := rows.Scan(&first, &second, &item.Count); err != nil {
			return nil, err
		}
		item.First = first.String
		item.Second = second.String
		res = append(res, item)
	}
	return res, rows.Err()
}

func (s *incidentsStore) CountByYearMonth(ctx context.Context, where Predicate) ([]YearMonthCount, error) {
	clause, args := compileWhere(where)
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT year, month, COUNT(*) FROM incidents`+clause+` GROUP BY year, month ORDER BY year ASC, month ASC`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []YearMonthCount{}
	for rows.Next() {
		var item YearMonthCount
		if err := rows.Scan(&item.Year, &item.Month, &item.Count); err != nil {
			return nil, err
		}
		res = append(res, item)
	}
	return res, rows.Err()
}

func (s *incidentsStore) DistinctValues(ctx context.Context, field Field, desc bool) ([]string, error) {
	if !field.valid() {
		return nil, fmt.Errorf("distinct: unknown field %d", field)
	}
	col := field.Column()
	clause, args := compileWhere(NotBlank{Field: field})
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT DISTINCT `+col+` FROM incidents`+clause+` ORDER BY `+col+` `+dir), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var val sql.NullString
		if err := rows.Scan(&val); err != nil {
			return nil, err
		}
		if val.Valid {
			res = append(res, val.String)
		}
	}
	return res, rows.Err()
}

func (s *incidentsStore) ExistingIncidentNumbers(ctx context.Context, numbers []string) (map[string]struct{}, error) {
	const chunk = 500
	found := map[string]struct{}{}
	for start := 0; start < len(numbers); start += chunk {
		end := start + chunk
		if end > len(numbers) {
			end = len(numbers)
		}
		part := make([]any, 0, end-start)
		for _, n := range numbers[start:end] {
			part = append(part, n)
		}
		clause, args := compileWhere(In{Field: FieldIncidentNumber, Values: part})
		rows, err := s.db.QueryContext(ctx, s.q(`SELECT DISTINCT incident_number FROM incidents`+clause), args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var n string
			if err := rows.Scan(&n); err != nil {
				rows.Close()
				return nil, err
			}
			found[n] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return found, nil
}

// InsertIncidents writes items in a single transaction; either all rows land or none.
func (s *incidentsStore) InsertIncidents(ctx context.Context, items []Incident) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, s.q(insertIncidentSQL))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	now := time.Now()
	for i := range items {
		if err := prepareInsert(&items[i], now); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, insertArgs(&items[i])...); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", items[i].IncidentNumber, err)
		}
	}
	return tx.Commit()
}

func (s *incidentsStore) DeleteAllIncidents(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM incidents`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *incidentsStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func groupExpr(f Field, nullLabel string) (string, []any) {
	if f.Nullable() && nullLabel != "" {
		return "COALESCE(NULLIF(" + f.Column() + ", ''), ?)", []any{nullLabel}
	}
	return f.Column(), nil
}

func prepareInsert(incident *Incident, now time.Time) error {
	if incident == nil {
		return errors.New("nil incident")
	}
	if strings.TrimSpace(incident.ID) == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		incident.ID = id.String()
	}
	ts := now.UTC().Truncate(time.Microsecond)
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = ts
	}
	incident.UpdatedAt = ts
	return nil
}

func insertArgs(incident *Incident) []any {
	return []any{
		incident.ID, incident.IncidentNumber, incident.IncidentDate, incident.SeverityLevel,
		nullableText(incident.ActionCause), nullableText(incident.BehaviorType), nullableText(incident.GBU), nullableText(incident.Region),
		nullableText(incident.PrimaryCategory), nullableText(incident.NearMissSubCategory), nullableText(incident.UnsafeConditionOrBehavior),
		nullableText(incident.CompanyType), nullableText(incident.Location), nullableText(incident.Job), nullableText(incident.CraftCode),
		incident.Year, incident.Month, incident.Week, incident.DayOfYear, incident.IsLCV, incident.CreatedAt, incident.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (Incident, error) {
	var inc Incident
	var actionCause, behaviorType, gbu, region, primaryCategory, subCategory, unsafe, companyType, location, job, craftCode sql.NullString
	if err := row.Scan(&inc.ID, &inc.IncidentNumber, &inc.IncidentDate, &inc.SeverityLevel,
		&actionCause, &behaviorType, &gbu, &region, &primaryCategory, &subCategory, &unsafe, &companyType, &location, &job, &craftCode,
		&inc.Year, &inc.Month, &inc.Week, &inc.DayOfYear, &inc.IsLCV, &inc.CreatedAt, &inc.UpdatedAt); err != nil {
		return inc, err
	}
	inc.ActionCause = textPtr(actionCause)
	inc.BehaviorType = textPtr(behaviorType)
	inc.GBU = textPtr(gbu)
	inc.Region = textPtr(region)
	inc.PrimaryCategory = textPtr(primaryCategory)
	inc.NearMissSubCategory = textPtr(subCategory)
	inc.UnsafeConditionOrBehavior = textPtr(unsafe)
	inc.CompanyType = textPtr(companyType)
	inc.Location = textPtr(location)
	inc.Job = textPtr(job)
	inc.CraftCode = textPtr(craftCode)
	inc.CreatedAt = inc.CreatedAt.UTC()
	inc.UpdatedAt = inc.UpdatedAt.UTC()
	return inc, nil
}

func nullableText(v *string) any {
	if v == nil {
		return nil
	}
	val := strings.TrimSpace(*v)
	if val == "" {
		return nil
	}
	return val
}

func textPtr(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}
