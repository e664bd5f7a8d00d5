package store

import (
	"strings"
)

// Field enumerates the incident columns the query layer may touch. Names
// coming from the transport layer are resolved through the parse helpers so
// no caller-supplied string ever reaches SQL.
type Field int

const (
	FieldID Field = iota + 1
	FieldIncidentNumber
	FieldIncidentDate
	FieldSeverityLevel
	FieldActionCause
	FieldBehaviorType
	FieldGBU
	FieldRegion
	FieldPrimaryCategory
	FieldNearMissSubCategory
	FieldUnsafeConditionOrBehavior
	FieldCompanyType
	FieldLocation
	FieldJob
	FieldCraftCode
	FieldYear
	FieldMonth
	FieldWeek
	FieldDayOfYear
	FieldIsLCV
	FieldCreatedAt
	FieldUpdatedAt
)

type fieldSpec struct {
	name      string
	column    string
	nullable  bool
	sortable  bool
	attribute bool
}

var fieldSpecs = map[Field]fieldSpec{
	FieldID:                        {name: "id", column: "id"},
	FieldIncidentNumber:            {name: "incidentNumber", column: "incident_number", sortable: true},
	FieldIncidentDate:              {name: "incidentDate", column: "incident_date", sortable: true},
	FieldSeverityLevel:             {name: "severityLevel", column: "severity_level", sortable: true, attribute: true},
	FieldActionCause:               {name: "actionCause", column: "action_cause", nullable: true, sortable: true, attribute: true},
	FieldBehaviorType:              {name: "behaviorType", column: "behavior_type", nullable: true, sortable: true, attribute: true},
	FieldGBU:                       {name: "gbu", column: "gbu", nullable: true, sortable: true, attribute: true},
	FieldRegion:                    {name: "region", column: "region", nullable: true, sortable: true, attribute: true},
	FieldPrimaryCategory:           {name: "primaryCategory", column: "primary_category", nullable: true, sortable: true, attribute: true},
	FieldNearMissSubCategory:       {name: "nearMissSubCategory", column: "near_miss_sub_category", nullable: true, attribute: true},
	FieldUnsafeConditionOrBehavior: {name: "unsafeConditionOrBehavior", column: "unsafe_condition_or_behavior", nullable: true, attribute: true},
	FieldCompanyType:               {name: "companyType", column: "company_type", nullable: true, attribute: true},
	FieldLocation:                  {name: "location", column: "location", nullable: true, sortable: true, attribute: true},
	FieldJob:                       {name: "job", column: "job", nullable: true, sortable: true, attribute: true},
	FieldCraftCode:                 {name: "craftCode", column: "craft_code", nullable: true, attribute: true},
	FieldYear:                      {name: "year", column: "year", sortable: true, attribute: true},
	FieldMonth:                     {name: "month", column: "month", sortable: true, attribute: true},
	FieldWeek:                      {name: "week", column: "week", sortable: true},
	FieldDayOfYear:                 {name: "dayOfYear", column: "day_of_year", sortable: true},
	FieldIsLCV:                     {name: "isLcv", column: "is_lcv", sortable: true},
	FieldCreatedAt:                 {name: "createdAt", column: "created_at", sortable: true},
	FieldUpdatedAt:                 {name: "updatedAt", column: "updated_at", sortable: true},
}

var fieldsByName = func() map[string]Field {
	out := make(map[string]Field, len(fieldSpecs))
	for f, spec := range fieldSpecs {
		out[spec.name] = f
	}
	return out
}()

func (f Field) Name() string   { return fieldSpecs[f].name }
func (f Field) Column() string { return fieldSpecs[f].column }

// Nullable reports whether the column is free text that may be NULL.
func (f Field) Nullable() bool { return fieldSpecs[f].nullable }

func (f Field) valid() bool {
	_, ok := fieldSpecs[f]
	return ok
}

// ParseSortField resolves a public field name usable in ORDER BY.
func ParseSortField(name string) (Field, bool) {
	f, ok := fieldsByName[strings.TrimSpace(name)]
	if !ok || !fieldSpecs[f].sortable {
		return 0, false
	}
	return f, true
}

// ParseAttributeField resolves a public field name whose distinct values may be listed.
func ParseAttributeField(name string) (Field, bool) {
	f, ok := fieldsByName[strings.TrimSpace(name)]
	if !ok || !fieldSpecs[f].attribute {
		return 0, false
	}
	return f, true
}

// attributeFields lists the attribute allow-list in declaration order.
func attributeFields() []Field {
	var out []Field
	for f := FieldID; f <= FieldUpdatedAt; f++ {
		if fieldSpecs[f].attribute {
			out = append(out, f)
		}
	}
	return out
}

// Predicate is a node of the filter tree evaluated by the store.
type Predicate interface {
	appendSQL(b *strings.Builder, args []any) []any
}

// And matches when every child matches. An empty And matches everything.
type And []Predicate

// Or matches when any child matches. An empty Or matches everything.
type Or []Predicate

// Contains is a case-insensitive substring match.
type Contains struct {
	Field Field
	Value string
}

// In is set membership. An empty set matches nothing.
type In struct {
	Field  Field
	Values []any
}

type Equals struct {
	Field Field
	Value any
}

// Range is inclusive; a nil bound is open.
type Range struct {
	Field Field
	From  any
	To    any
}

// NotBlank excludes NULL and empty-string values.
type NotBlank struct {
	Field Field
}

// MatchAll is the unconditioned predicate.
func MatchAll() Predicate { return And{} }

func (p And) appendSQL(b *strings.Builder, args []any) []any {
	return appendJoined(b, args, []Predicate(p), " AND ")
}

func (p Or) appendSQL(b *strings.Builder, args []any) []any {
	return appendJoined(b, args, []Predicate(p), " OR ")
}

func appendJoined(b *strings.Builder, args []any, children []Predicate, sep string) []any {
	var parts []string
	for _, child := range children {
		if child == nil {
			continue
		}
		var sub strings.Builder
		args = child.appendSQL(&sub, args)
		if sub.Len() > 0 {
			parts = append(parts, sub.String())
		}
	}
	switch len(parts) {
	case 0:
	case 1:
		b.WriteString(parts[0])
	default:
		b.WriteString("(")
		b.WriteString(strings.Join(parts, ")"+sep+"("))
		b.WriteString(")")
	}
	return args
}

func (p Contains) appendSQL(b *strings.Builder, args []any) []any {
	if !p.Field.valid() || p.Value == "" {
		return args
	}
	b.WriteString("LOWER(")
	b.WriteString(p.Field.Column())
	b.WriteString(`) LIKE ? ESCAPE '\'`)
	return append(args, "%"+escapeLike(strings.ToLower(p.Value))+"%")
}

func (p In) appendSQL(b *strings.Builder, args []any) []any {
	if !p.Field.valid() {
		return args
	}
	if len(p.Values) == 0 {
		b.WriteString("1=0")
		return args
	}
	b.WriteString(p.Field.Column())
	b.WriteString(" IN (")
	b.WriteString(strings.TrimRight(strings.Repeat("?,", len(p.Values)), ","))
	b.WriteString(")")
	return append(args, p.Values...)
}

func (p Equals) appendSQL(b *strings.Builder, args []any) []any {
	if !p.Field.valid() {
		return args
	}
	b.WriteString(p.Field.Column())
	b.WriteString(" = ?")
	return append(args, p.Value)
}

func (p Range) appendSQL(b *strings.Builder, args []any) []any {
	if !p.Field.valid() || (p.From == nil && p.To == nil) {
		return args
	}
	col := p.Field.Column()
	switch {
	case p.From != nil && p.To != nil:
		b.WriteString(col + " >= ? AND " + col + " <= ?")
		return append(args, p.From, p.To)
	case p.From != nil:
		b.WriteString(col + " >= ?")
		return append(args, p.From)
	default:
		b.WriteString(col + " <= ?")
		return append(args, p.To)
	}
}

func (p NotBlank) appendSQL(b *strings.Builder, args []any) []any {
	if !p.Field.valid() {
		return args
	}
	col := p.Field.Column()
	b.WriteString(col + " IS NOT NULL")
	if p.Field.Nullable() {
		b.WriteString(" AND " + col + " <> ''")
	}
	return args
}

// compileWhere renders p as a WHERE clause (with leading space) and its arguments.
func compileWhere(p Predicate) (string, []any) {
	if p == nil {
		return "", nil
	}
	var b strings.Builder
	args := p.appendSQL(&b, nil)
	if b.Len() == 0 {
		return "", nil
	}
	return " WHERE " + b.String(), args
}

func escapeLike(val string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(val)
}

// Sort orders list results. The zero value sorts by incident date descending.
type Sort struct {
	Field Field
	Desc  bool
}

func (s Sort) orderBy() string {
	f := s.Field
	dir := "ASC"
	if !f.valid() || !fieldSpecs[f].sortable {
		f = FieldIncidentDate
		dir = "DESC"
	} else if s.Desc {
		dir = "DESC"
	}
	col := f.Column()
	var b strings.Builder
	b.WriteString(" ORDER BY ")
	if f.Nullable() {
		// NULLs last on every dialect.
		b.WriteString("(" + col + " IS NULL) ASC, ")
	}
	b.WriteString(col + " " + dir + ", id ASC")
	return b.String()
}
