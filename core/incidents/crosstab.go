package incidents

import (
	"context"
	"fmt"

	"nearmiss-dashboard/core/store"
)

type CauseBreakdown struct {
	ActionCause string         `json:"actionCause"`
	Breakdown   map[string]int `json:"breakdown"`
}

// ActionCauseDetails breaks the top action causes down by behavior type.
// The second query depends on the first, so both run sequentially.
func (s *Service) ActionCauseDetails(ctx context.Context, f Filter) ([]CauseBreakdown, error) {
	where := f.Predicate()
	top, err := s.store.GroupCount(ctx, store.GroupQuery{
		Field:   store.FieldActionCause,
		Where:   store.And{where, store.NotBlank{Field: store.FieldActionCause}},
		ByCount: true,
		Limit:   s.cfg.CrossTabCauses,
	})
	if err != nil {
		return nil, fmt.Errorf("cause details top causes: %w", err)
	}
	out := make([]CauseBreakdown, 0, len(top))
	if len(top) == 0 {
		return out, nil
	}
	causes := make([]any, 0, len(top))
	index := make(map[string]int, len(top))
	for _, grp := range top {
		index[grp.Key] = len(out)
		causes = append(causes, grp.Key)
		out = append(out, CauseBreakdown{ActionCause: grp.Key, Breakdown: map[string]int{}})
	}
	pairs, err := s.store.GroupCountPairs(ctx, store.PairQuery{
		First:     store.FieldActionCause,
		Second:    store.FieldBehaviorType,
		Where:     store.And{where, store.In{Field: store.FieldActionCause, Values: causes}},
		NullLabel: s.cfg.UnspecifiedLabel,
	})
	if err != nil {
		return nil, fmt.Errorf("cause details breakdown: %w", err)
	}
	for _, p := range pairs {
		i, ok := index[p.First]
		if !ok {
			continue
		}
		out[i].Breakdown[p.Second] += p.Count
	}
	return out, nil
}
