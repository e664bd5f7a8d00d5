package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"nearmiss-dashboard/core/incidents"
	"nearmiss-dashboard/core/store"
)

// parseFilter reads the shared filter parameters of list and stats endpoints.
func parseFilter(q url.Values) (incidents.Filter, error) {
	verr := &incidents.ValidationError{}
	f := incidents.Filter{
		Search:                    q.Get("search"),
		ActionCause:               q.Get("actionCause"),
		BehaviorType:              q.Get("behaviorType"),
		GBU:                       q.Get("gbu"),
		Region:                    q.Get("region"),
		PrimaryCategory:           q.Get("primaryCategory"),
		NearMissSubCategory:       q.Get("nearMissSubCategory"),
		UnsafeConditionOrBehavior: q.Get("unsafeConditionOrBehavior"),
		CompanyType:               q.Get("companyType"),
		Location:                  q.Get("location"),
		Job:                       q.Get("job"),
		CraftCode:                 q.Get("craftCode"),
	}
	f.SeverityLevels = parseIntList(verr, q, "severityLevel", incidents.MinSeverity, incidents.MaxSeverity)
	f.Months = parseIntList(verr, q, "month", 1, 12)
	if raw := strings.TrimSpace(q.Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			verr.Add("year", "must be an integer")
		} else {
			f.Year = &year
		}
	}
	if raw := strings.TrimSpace(q.Get("isLcv")); raw != "" {
		switch strings.ToLower(raw) {
		case "true":
			v := true
			f.IsLCV = &v
		case "false":
			v := false
			f.IsLCV = &v
		default:
			verr.Add("isLcv", "must be true or false")
		}
	}
	f.DateFrom = parseDateParam(verr, q, "dateFrom")
	f.DateTo = parseDateParam(verr, q, "dateTo")
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(f.DateFrom.Time) {
		verr.Add("dateTo", "must not be before dateFrom")
	}
	return f, verr.Err()
}

// parseIntList accepts comma-separated values and repeated keys.
func parseIntList(verr *incidents.ValidationError, q url.Values, key string, min, max int) []int {
	var out []int
	for _, raw := range q[key] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				verr.Add(key, "must be a comma-separated list of integers")
				return nil
			}
			if n < min || n > max {
				verr.Add(key, "must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
				return nil
			}
			out = append(out, n)
		}
	}
	return out
}

func parseDateParam(verr *incidents.ValidationError, q url.Values, key string) *store.Date {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil
	}
	d, err := store.ParseDate(raw)
	if err != nil {
		verr.Add(key, "must be an ISO-8601 date")
		return nil
	}
	return &d
}

func parseListParams(q url.Values) (incidents.ListParams, error) {
	verr := &incidents.ValidationError{}
	filter, err := parseFilter(q)
	if err != nil {
		if fe, ok := err.(*incidents.ValidationError); ok {
			verr.Fields = append(verr.Fields, fe.Fields...)
		}
	}
	p := incidents.ListParams{
		Filter:    filter,
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}
	p.Page = parsePositive(verr, q, "page")
	p.Limit = parsePositive(verr, q, "limit")
	return p, verr.Err()
}

// parsePositive returns 0 when key is absent.
func parsePositive(verr *incidents.ValidationError, q url.Values, key string) int {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		verr.Add(key, "must be a positive integer")
		return 0
	}
	return n
}
