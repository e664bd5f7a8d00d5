package incidents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"nearmiss-dashboard/core/store"
)

// RawIncident is one record of the dashboard export file.
type RawIncident struct {
	IncidentNumber            string    `json:"incident_number"`
	IncidentDate              epochDate `json:"incident_date"`
	SeverityLevel             int       `json:"severity_level"`
	ActionCause               string    `json:"action_cause"`
	BehaviorType              string    `json:"behavior_type"`
	GBU                       string    `json:"gbu"`
	Region                    string    `json:"region"`
	PrimaryCategory           string    `json:"primary_category"`
	NearMissSubCategory       string    `json:"near_miss_sub_category"`
	UnsafeConditionOrBehavior string    `json:"unsafe_condition_or_behavior"`
	CompanyType               string    `json:"company_type"`
	Location                  string    `json:"location"`
	Job                       string    `json:"job"`
	CraftCode                 string    `json:"craft_code"`
	IsLCV                     bool      `json:"is_lcv"`
}

// epochDate accepts epoch milliseconds or an ISO date string.
type epochDate struct {
	store.Date
}

func (d *epochDate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		d.Date = store.Date{}
		return nil
	}
	if b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			d.Date = store.DateOf(time.UnixMilli(ms))
			return nil
		}
		parsed, err := store.ParseDate(raw)
		if err != nil {
			return err
		}
		d.Date = parsed
		return nil
	}
	var ms float64
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	d.Date = store.DateOf(time.UnixMilli(int64(ms)))
	return nil
}

type SeedOptions struct {
	Truncate  bool
	BatchSize int
}

type SeedResult struct {
	Read     int `json:"read"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Seed streams a JSON array of raw records into the store in batches, one
// transaction per batch. Incident numbers already stored or repeated earlier
// in the input are skipped, as are records that fail validation.
func (s *Service) Seed(ctx context.Context, r io.Reader, opts SeedOptions) (*SeedResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, Invalid("body", "expected a JSON array")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, Invalid("body", "expected a JSON array")
	}
	if opts.Truncate {
		n, err := s.store.DeleteAllIncidents(ctx)
		if err != nil {
			return nil, fmt.Errorf("seed truncate: %w", err)
		}
		s.logger.Printf("seed: removed %d existing incidents", n)
	}
	res := &SeedResult{}
	seen := map[string]struct{}{}
	batch := make([]store.Incident, 0, opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := s.insertSeedBatch(ctx, batch, seen)
		if err != nil {
			return err
		}
		res.Inserted += inserted
		res.Skipped += len(batch) - inserted
		s.logger.Printf("seed: %d/%d inserted (%d skipped)", res.Inserted, res.Read, res.Skipped)
		batch = batch[:0]
		return nil
	}
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var msg json.RawMessage
		if err := dec.Decode(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
				return res, Invalid("body", fmt.Sprintf("record %d: malformed JSON", res.Read+1))
			}
			return res, fmt.Errorf("seed record %d: %w", res.Read+1, err)
		}
		res.Read++
		inc, err := decodeRaw(msg)
		if err != nil {
			s.logger.WithField("record", res.Read).WithError(err).Warnf("seed: record skipped")
			res.Skipped++
			continue
		}
		batch = append(batch, *inc)
		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}
	s.logger.Printf("seed: done, read=%d inserted=%d skipped=%d", res.Read, res.Inserted, res.Skipped)
	return res, nil
}

func (s *Service) insertSeedBatch(ctx context.Context, batch []store.Incident, seen map[string]struct{}) (int, error) {
	numbers := make([]string, 0, len(batch))
	for _, inc := range batch {
		numbers = append(numbers, inc.IncidentNumber)
	}
	existing, err := s.store.ExistingIncidentNumbers(ctx, numbers)
	if err != nil {
		return 0, fmt.Errorf("seed lookup: %w", err)
	}
	fresh := make([]store.Incident, 0, len(batch))
	for _, inc := range batch {
		if _, ok := existing[inc.IncidentNumber]; ok {
			continue
		}
		if _, ok := seen[inc.IncidentNumber]; ok {
			continue
		}
		seen[inc.IncidentNumber] = struct{}{}
		fresh = append(fresh, inc)
	}
	if err := s.store.InsertIncidents(ctx, fresh); err != nil {
		return 0, fmt.Errorf("seed insert: %w", err)
	}
	return len(fresh), nil
}

func decodeRaw(msg json.RawMessage) (*store.Incident, error) {
	var raw RawIncident
	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, err
	}
	return raw.toIncident()
}

func (raw RawIncident) toIncident() (*store.Incident, error) {
	number := strings.TrimSpace(raw.IncidentNumber)
	if number == "" {
		return nil, errors.New("missing incident_number")
	}
	if raw.IncidentDate.IsZero() {
		return nil, errors.New("missing incident_date")
	}
	if raw.SeverityLevel < MinSeverity || raw.SeverityLevel > MaxSeverity {
		return nil, fmt.Errorf("severity_level %d out of range", raw.SeverityLevel)
	}
	inc := &store.Incident{
		IncidentNumber:            number,
		IncidentDate:              raw.IncidentDate.Date,
		SeverityLevel:             raw.SeverityLevel,
		ActionCause:               cleanText(&raw.ActionCause),
		BehaviorType:              cleanText(&raw.BehaviorType),
		GBU:                       cleanText(&raw.GBU),
		Region:                    cleanText(&raw.Region),
		PrimaryCategory:           cleanText(&raw.PrimaryCategory),
		NearMissSubCategory:       cleanText(&raw.NearMissSubCategory),
		UnsafeConditionOrBehavior: cleanText(&raw.UnsafeConditionOrBehavior),
		CompanyType:               cleanText(&raw.CompanyType),
		Location:                  cleanText(&raw.Location),
		Job:                       cleanText(&raw.Job),
		CraftCode:                 cleanText(&raw.CraftCode),
		IsLCV:                     raw.IsLCV,
	}
	applyTemporal(inc)
	return inc, nil
}
