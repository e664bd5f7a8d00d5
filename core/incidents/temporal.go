package incidents

import (
	"nearmiss-dashboard/core/store"
)

// Temporal holds the denormalized calendar fields kept next to incident_date.
type Temporal struct {
	Year      int
	Month     int
	Week      int
	DayOfYear int
}

// DeriveTemporal computes the grouping fields from the canonical date. Week is
// the ISO-8601 week; Year stays the calendar year even when the ISO week
// belongs to the neighbouring year.
func DeriveTemporal(d store.Date) Temporal {
	_, week := d.ISOWeek()
	return Temporal{
		Year:      d.Year(),
		Month:     int(d.Month()),
		Week:      week,
		DayOfYear: d.YearDay(),
	}
}

func applyTemporal(inc *store.Incident) {
	t := DeriveTemporal(inc.IncidentDate)
	inc.Year = t.Year
	inc.Month = t.Month
	inc.Week = t.Week
	inc.DayOfYear = t.DayOfYear
}
