package incidents

import (
	"strings"

	"nearmiss-dashboard/core/store"
)

// Filter is the flat set of optional list/report conditions. Zero values
// contribute nothing.
type Filter struct {
	Search                    string
	ActionCause               string
	BehaviorType              string
	GBU                       string
	Region                    string
	PrimaryCategory           string
	NearMissSubCategory       string
	UnsafeConditionOrBehavior string
	CompanyType               string
	Location                  string
	Job                       string
	CraftCode                 string
	SeverityLevels            []int
	Months                    []int
	Year                      *int
	IsLCV                     *bool
	DateFrom                  *store.Date
	DateTo                    *store.Date
}

var searchFields = []store.Field{
	store.FieldActionCause,
	store.FieldLocation,
	store.FieldJob,
	store.FieldIncidentNumber,
}

// Predicate compiles the filter into a conjunction evaluated by the store.
func (f Filter) Predicate() store.Predicate {
	return f.conditions()
}

func (f Filter) conditions() store.And {
	all := store.And{}
	if search := strings.TrimSpace(f.Search); search != "" {
		var anyOf store.Or
		for _, field := range searchFields {
			anyOf = append(anyOf, store.Contains{Field: field, Value: search})
		}
		all = append(all, anyOf)
	}
	texts := []struct {
		field store.Field
		value string
	}{
		{store.FieldRegion, f.Region},
		{store.FieldGBU, f.GBU},
		{store.FieldBehaviorType, f.BehaviorType},
		{store.FieldActionCause, f.ActionCause},
		{store.FieldPrimaryCategory, f.PrimaryCategory},
		{store.FieldNearMissSubCategory, f.NearMissSubCategory},
		{store.FieldUnsafeConditionOrBehavior, f.UnsafeConditionOrBehavior},
		{store.FieldCompanyType, f.CompanyType},
		{store.FieldLocation, f.Location},
		{store.FieldJob, f.Job},
		{store.FieldCraftCode, f.CraftCode},
	}
	for _, t := range texts {
		if val := strings.TrimSpace(t.value); val != "" {
			all = append(all, store.Contains{Field: t.field, Value: val})
		}
	}
	if len(f.SeverityLevels) > 0 {
		all = append(all, store.In{Field: store.FieldSeverityLevel, Values: intValues(f.SeverityLevels)})
	}
	if len(f.Months) > 0 {
		all = append(all, store.In{Field: store.FieldMonth, Values: intValues(f.Months)})
	}
	if f.Year != nil {
		all = append(all, store.Equals{Field: store.FieldYear, Value: *f.Year})
	}
	if f.IsLCV != nil {
		all = append(all, store.Equals{Field: store.FieldIsLCV, Value: *f.IsLCV})
	}
	if f.DateFrom != nil || f.DateTo != nil {
		r := store.Range{Field: store.FieldIncidentDate}
		if f.DateFrom != nil {
			r.From = *f.DateFrom
		}
		if f.DateTo != nil {
			r.To = *f.DateTo
		}
		all = append(all, r)
	}
	return all
}

func intValues(vals []int) []any {
	seen := make(map[int]struct{}, len(vals))
	out := make([]any, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
