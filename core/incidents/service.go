package incidents

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"nearmiss-dashboard/config"
	"nearmiss-dashboard/core/store"
	"nearmiss-dashboard/core/utils"

	"golang.org/x/sync/errgroup"
)

// Service is the query and mutation layer over the incidents store.
type Service struct {
	store  store.IncidentsStore
	cfg    config.IncidentsConfig
	logger *utils.Logger
}

func NewService(st store.IncidentsStore, cfg config.IncidentsConfig, logger *utils.Logger) *Service {
	cfg.DefaultPageSize, cfg.MaxPageSize = cfg.PageLimits()
	if cfg.TopActionCauses <= 0 {
		cfg.TopActionCauses = 15
	}
	if cfg.TopCategories <= 0 {
		cfg.TopCategories = 10
	}
	if cfg.CrossTabCauses <= 0 {
		cfg.CrossTabCauses = 10
	}
	if strings.TrimSpace(cfg.UnspecifiedLabel) == "" {
		cfg.UnspecifiedLabel = "Unspecified"
	}
	return &Service{store: st, cfg: cfg, logger: logger}
}

// ListParams carries a list request. Zero Page/Limit select the defaults,
// empty SortBy/SortOrder sort by incident date descending.
type ListParams struct {
	Filter    Filter
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

type PageMeta struct {
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

type Page struct {
	Data []store.Incident `json:"data"`
	Meta PageMeta         `json:"meta"`
}

func (s *Service) List(ctx context.Context, p ListParams) (*Page, error) {
	page, limit, sort, err := s.normalizeList(p)
	if err != nil {
		return nil, err
	}
	where := p.Filter.Predicate()
	var (
		items []store.Incident
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	// A page whose offset overflows int is necessarily past the end.
	if page-1 <= math.MaxInt/limit {
		g.Go(func() error {
			var err error
			items, err = s.store.ListIncidents(gctx, store.ListQuery{
				Where:  where,
				Sort:   sort,
				Limit:  limit,
				Offset: (page - 1) * limit,
			})
			return err
		})
	}
	g.Go(func() error {
		var err error
		total, err = s.store.CountIncidents(gctx, where)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	if items == nil {
		items = []store.Incident{}
	}
	return &Page{Data: items, Meta: pageMeta(total, page, limit)}, nil
}

func (s *Service) normalizeList(p ListParams) (int, int, store.Sort, error) {
	verr := &ValidationError{}
	page := p.Page
	if page == 0 {
		page = 1
	} else if page < 0 {
		verr.Add("page", "must be at least 1")
	}
	limit := p.Limit
	if limit == 0 {
		limit = s.cfg.DefaultPageSize
	} else if limit < 1 || limit > s.cfg.MaxPageSize {
		verr.Add("limit", fmt.Sprintf("must be between 1 and %d", s.cfg.MaxPageSize))
	}
	sort := store.Sort{Field: store.FieldIncidentDate, Desc: true}
	if name := strings.TrimSpace(p.SortBy); name != "" {
		field, ok := store.ParseSortField(name)
		if !ok {
			verr.Add("sortBy", "unsupported sort field")
		}
		sort.Field = field
	}
	switch strings.ToLower(strings.TrimSpace(p.SortOrder)) {
	case "", "desc":
		sort.Desc = true
	case "asc":
		sort.Desc = false
	default:
		verr.Add("sortOrder", "must be asc or desc")
	}
	return page, limit, sort, verr.Err()
}

func pageMeta(total, page, limit int) PageMeta {
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return PageMeta{
		Total:       total,
		Page:        page,
		Limit:       limit,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*store.Incident, error) {
	inc, err := s.store.GetIncident(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*store.Incident, error) {
	inc, err := in.toIncident()
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}
	s.logger.Printf("incident %s created (%s)", inc.ID, inc.IncidentNumber)
	return inc, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*store.Incident, error) {
	inc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.applyTo(inc); err != nil {
		return nil, err
	}
	if err := s.store.UpdateIncident(ctx, inc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("update incident: %w", err)
	}
	return inc, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteIncident(ctx, strings.TrimSpace(id)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id)
		}
		return fmt.Errorf("delete incident: %w", err)
	}
	s.logger.Printf("incident %s deleted", id)
	return nil
}

// AttributeValues lists distinct stored values of an allow-listed field.
// Unknown field names yield an empty list.
func (s *Service) AttributeValues(ctx context.Context, name string) ([]string, error) {
	field, ok := store.ParseAttributeField(name)
	if !ok {
		return []string{}, nil
	}
	vals, err := s.store.DistinctValues(ctx, field, false)
	if err != nil {
		return nil, fmt.Errorf("attribute values %s: %w", field.Name(), err)
	}
	return vals, nil
}

// Ping checks the storage connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
