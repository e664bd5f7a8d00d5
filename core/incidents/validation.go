package incidents

import (
	"strings"

	"nearmiss-dashboard/core/store"
)

const (
	MinSeverity      = 0
	MaxSeverity      = 5
	maxNumberLength  = 64
	maxTextLength    = 512
	minYear, maxYear = 1900, 9999
)

// CreateInput is the payload of a create call. Temporal fields are optional
// and only range-checked; the stored values are always derived from the date.
type CreateInput struct {
	IncidentNumber            string  `json:"incidentNumber"`
	IncidentDate              string  `json:"incidentDate"`
	SeverityLevel             *int    `json:"severityLevel"`
	ActionCause               *string `json:"actionCause"`
	BehaviorType              *string `json:"behaviorType"`
	GBU                       *string `json:"gbu"`
	Region                    *string `json:"region"`
	PrimaryCategory           *string `json:"primaryCategory"`
	NearMissSubCategory       *string `json:"nearMissSubCategory"`
	UnsafeConditionOrBehavior *string `json:"unsafeConditionOrBehavior"`
	CompanyType               *string `json:"companyType"`
	Location                  *string `json:"location"`
	Job                       *string `json:"job"`
	CraftCode                 *string `json:"craftCode"`
	Year                      *int    `json:"year"`
	Month                     *int    `json:"month"`
	Week                      *int    `json:"week"`
	DayOfYear                 *int    `json:"dayOfYear"`
	IsLCV                     *bool   `json:"isLcv"`
}

// UpdateInput is a partial update: nil fields keep their stored value and an
// empty string clears a nullable text field.
type UpdateInput struct {
	IncidentNumber            *string `json:"incidentNumber"`
	IncidentDate              *string `json:"incidentDate"`
	SeverityLevel             *int    `json:"severityLevel"`
	ActionCause               *string `json:"actionCause"`
	BehaviorType              *string `json:"behaviorType"`
	GBU                       *string `json:"gbu"`
	Region                    *string `json:"region"`
	PrimaryCategory           *string `json:"primaryCategory"`
	NearMissSubCategory       *string `json:"nearMissSubCategory"`
	UnsafeConditionOrBehavior *string `json:"unsafeConditionOrBehavior"`
	CompanyType               *string `json:"companyType"`
	Location                  *string `json:"location"`
	Job                       *string `json:"job"`
	CraftCode                 *string `json:"craftCode"`
	Year                      *int    `json:"year"`
	Month                     *int    `json:"month"`
	Week                      *int    `json:"week"`
	DayOfYear                 *int    `json:"dayOfYear"`
	IsLCV                     *bool   `json:"isLcv"`
}

func (in CreateInput) toIncident() (*store.Incident, error) {
	verr := &ValidationError{}
	number := strings.TrimSpace(in.IncidentNumber)
	switch {
	case number == "":
		verr.Add("incidentNumber", "is required")
	case len(number) > maxNumberLength:
		verr.Add("incidentNumber", "is too long")
	}
	var date store.Date
	if strings.TrimSpace(in.IncidentDate) == "" {
		verr.Add("incidentDate", "is required")
	} else if d, err := store.ParseDate(in.IncidentDate); err != nil {
		verr.Add("incidentDate", "must be an ISO-8601 date")
	} else {
		date = d
	}
	if in.SeverityLevel == nil {
		verr.Add("severityLevel", "is required")
	} else {
		checkSeverity(verr, *in.SeverityLevel)
	}
	checkTemporal(verr, in.Year, in.Month, in.Week, in.DayOfYear)
	texts := textFields(in.ActionCause, in.BehaviorType, in.GBU, in.Region, in.PrimaryCategory, in.NearMissSubCategory,
		in.UnsafeConditionOrBehavior, in.CompanyType, in.Location, in.Job, in.CraftCode)
	checkTexts(verr, texts)
	if err := verr.Err(); err != nil {
		return nil, err
	}
	inc := &store.Incident{
		IncidentNumber: number,
		IncidentDate:   date,
		SeverityLevel:  *in.SeverityLevel,
	}
	for _, t := range texts {
		t.set(inc, t.value)
	}
	if in.IsLCV != nil {
		inc.IsLCV = *in.IsLCV
	}
	applyTemporal(inc)
	return inc, nil
}

// applyTo validates the supplied fields and merges them into inc.
func (in UpdateInput) applyTo(inc *store.Incident) error {
	verr := &ValidationError{}
	if in.IncidentNumber != nil {
		number := strings.TrimSpace(*in.IncidentNumber)
		switch {
		case number == "":
			verr.Add("incidentNumber", "must not be blank")
		case len(number) > maxNumberLength:
			verr.Add("incidentNumber", "is too long")
		}
	}
	var date store.Date
	if in.IncidentDate != nil {
		d, err := store.ParseDate(*in.IncidentDate)
		if err != nil {
			verr.Add("incidentDate", "must be an ISO-8601 date")
		}
		date = d
	}
	if in.SeverityLevel != nil {
		checkSeverity(verr, *in.SeverityLevel)
	}
	checkTemporal(verr, in.Year, in.Month, in.Week, in.DayOfYear)
	texts := textFields(in.ActionCause, in.BehaviorType, in.GBU, in.Region, in.PrimaryCategory, in.NearMissSubCategory,
		in.UnsafeConditionOrBehavior, in.CompanyType, in.Location, in.Job, in.CraftCode)
	checkTexts(verr, texts)
	if err := verr.Err(); err != nil {
		return err
	}
	if in.IncidentNumber != nil {
		inc.IncidentNumber = strings.TrimSpace(*in.IncidentNumber)
	}
	if in.IncidentDate != nil {
		inc.IncidentDate = date
	}
	if in.SeverityLevel != nil {
		inc.SeverityLevel = *in.SeverityLevel
	}
	for _, t := range texts {
		if t.value != nil {
			t.set(inc, t.value)
		}
	}
	if in.IsLCV != nil {
		inc.IsLCV = *in.IsLCV
	}
	applyTemporal(inc)
	return nil
}

type textField struct {
	name  string
	value *string
	set   func(inc *store.Incident, v *string)
}

func textFields(actionCause, behaviorType, gbu, region, primaryCategory, subCategory, unsafe, companyType, location, job, craftCode *string) []textField {
	return []textField{
		{"actionCause", actionCause, func(inc *store.Incident, v *string) { inc.ActionCause = cleanText(v) }},
		{"behaviorType", behaviorType, func(inc *store.Incident, v *string) { inc.BehaviorType = cleanText(v) }},
		{"gbu", gbu, func(inc *store.Incident, v *string) { inc.GBU = cleanText(v) }},
		{"region", region, func(inc *store.Incident, v *string) { inc.Region = cleanText(v) }},
		{"primaryCategory", primaryCategory, func(inc *store.Incident, v *string) { inc.PrimaryCategory = cleanText(v) }},
		{"nearMissSubCategory", subCategory, func(inc *store.Incident, v *string) { inc.NearMissSubCategory = cleanText(v) }},
		{"unsafeConditionOrBehavior", unsafe, func(inc *store.Incident, v *string) { inc.UnsafeConditionOrBehavior = cleanText(v) }},
		{"companyType", companyType, func(inc *store.Incident, v *string) { inc.CompanyType = cleanText(v) }},
		{"location", location, func(inc *store.Incident, v *string) { inc.Location = cleanText(v) }},
		{"job", job, func(inc *store.Incident, v *string) { inc.Job = cleanText(v) }},
		{"craftCode", craftCode, func(inc *store.Incident, v *string) { inc.CraftCode = cleanText(v) }},
	}
}

func checkTexts(verr *ValidationError, texts []textField) {
	for _, t := range texts {
		if t.value != nil && len(*t.value) > maxTextLength {
			verr.Add(t.name, "is too long")
		}
	}
}

func checkSeverity(verr *ValidationError, v int) {
	if v < MinSeverity || v > MaxSeverity {
		verr.Add("severityLevel", "must be between 0 and 5")
	}
}

func checkTemporal(verr *ValidationError, year, month, week, dayOfYear *int) {
	if year != nil && (*year < minYear || *year > maxYear) {
		verr.Add("year", "is out of range")
	}
	if month != nil && (*month < 1 || *month > 12) {
		verr.Add("month", "must be between 1 and 12")
	}
	if week != nil && (*week < 1 || *week > 53) {
		verr.Add("week", "must be between 1 and 53")
	}
	if dayOfYear != nil && (*dayOfYear < 1 || *dayOfYear > 366) {
		verr.Add("dayOfYear", "must be between 1 and 366")
	}
}

// cleanText trims v; blank values become nil.
func cleanText(v *string) *string {
	if v == nil {
		return nil
	}
	val := strings.TrimSpace(*v)
	if val == "" {
		return nil
	}
	return &val
}
