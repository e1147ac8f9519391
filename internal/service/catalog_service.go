package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/reggaepotato22/krugerr-brendt/internal/currency"
	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
	"github.com/reggaepotato22/krugerr-brendt/internal/reconcile"
)

// viewCounter is the subset of analytics.Tracker that CatalogService requires.
type viewCounter interface {
	RecordView(ctx context.Context, propertyID string) (int, error)
	Views(ctx context.Context) (map[string]int, error)
}

// rateSource is the subset of currency.RateCache that CatalogService requires.
type rateSource interface {
	Get(ctx context.Context) currency.RateTable
}

// inquiryCounter reports how many inquiries reference each property.
type inquiryCounter interface {
	CountByProperty() map[string]int
}

type CatalogService struct {
	properties collection[domain.Property]
	projects   collection[domain.Project]
	views      viewCounter
	inquiries  inquiryCounter
	rates      rateSource
	logger     *slog.Logger
	now        func() time.Time
}

func NewCatalogService(
	properties collection[domain.Property],
	projects collection[domain.Project],
	views viewCounter,
	inquiries inquiryCounter,
	rates rateSource,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		properties: properties,
		projects:   projects,
		views:      views,
		inquiries:  inquiries,
		rates:      rates,
		logger:     logger,
		now:        time.Now,
	}
}

// PropertyView is a property annotated for display.
type PropertyView struct {
	domain.Property
	Views        int    `json:"views"`
	Inquiries    int    `json:"inquiries"`
	DisplayPrice string `json:"displayPrice"`
}

type ProjectView struct {
	domain.Project
	DisplayPrice string `json:"displayPrice"`
}

// PropertyFilter narrows ListProperties. Zero values match everything.
type PropertyFilter struct {
	Type     domain.ListingType
	Status   domain.PropertyStatus
	Featured bool
	Query    string
}

func (f PropertyFilter) match(p domain.Property) bool {
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Featured && !p.Featured {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		haystack := strings.ToLower(p.Title + " " + p.Location + " " + p.Description)
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

// ListProperties returns matching properties with prices shown in target.
func (s *CatalogService) ListProperties(ctx context.Context, filter PropertyFilter, target currency.Code) ([]PropertyView, error) {
	views, err := s.views.Views(ctx)
	if err != nil {
		s.logger.Warn("failed to load view counts", "error", err)
		views = map[string]int{}
	}
	counts := s.inquiries.CountByProperty()
	table := s.rates.Get(ctx)

	out := make([]PropertyView, 0)
	for _, p := range s.properties.Items() {
		if !filter.match(p) {
			continue
		}
		out = append(out, PropertyView{
			Property:     p,
			Views:        views[p.ID],
			Inquiries:    counts[p.ID],
			DisplayPrice: currency.Format(p.Price, target, table),
		})
	}
	return out, nil
}

// GetProperty returns one property and counts the view when countView is set.
func (s *CatalogService) GetProperty(ctx context.Context, id string, target currency.Code, countView bool) (PropertyView, error) {
	p, ok := s.properties.Get(id)
	if !ok {
		return PropertyView{}, fmt.Errorf("property %s: %w", id, ErrNotFound)
	}

	var viewCount int
	if countView {
		n, err := s.views.RecordView(ctx, id)
		if err != nil {
			s.logger.Warn("failed to record property view", "property_id", id, "error", err)
		} else {
			viewCount = n
		}
	}
	if viewCount == 0 {
		if views, err := s.views.Views(ctx); err == nil {
			viewCount = views[id]
		}
	}

	return PropertyView{
		Property:     p,
		Views:        viewCount,
		Inquiries:    s.inquiries.CountByProperty()[id],
		DisplayPrice: currency.Format(p.Price, target, s.rates.Get(ctx)),
	}, nil
}

func (s *CatalogService) CreateProperty(ctx context.Context, p domain.Property) (domain.Property, reconcile.Written, error) {
	if err := normalizeProperty(&p); err != nil {
		return domain.Property{}, reconcile.Written{}, err
	}
	now := s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	created, w, err := s.properties.Create(ctx, p)
	if err != nil {
		return domain.Property{}, reconcile.Written{}, fmt.Errorf("failed to create property: %w", err)
	}
	s.logger.Info("property created", "property_id", created.ID, "destination", w.Destination)
	return created, w, nil
}

func (s *CatalogService) UpdateProperty(ctx context.Context, id string, p domain.Property) (domain.Property, reconcile.Written, error) {
	existing, ok := s.properties.Get(id)
	if !ok {
		return domain.Property{}, reconcile.Written{}, fmt.Errorf("property %s: %w", id, ErrNotFound)
	}
	if err := normalizeProperty(&p); err != nil {
		return domain.Property{}, reconcile.Written{}, err
	}
	p.Meta = existing.Meta
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()

	w, err := s.properties.Update(ctx, p)
	if err != nil {
		return domain.Property{}, reconcile.Written{}, err
	}
	updated, _ := s.properties.Get(id)
	return updated, w, nil
}

func (s *CatalogService) DeleteProperty(ctx context.Context, id string) error {
	if err := s.properties.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("property deleted", "property_id", id)
	return nil
}

func (s *CatalogService) ListProjects(ctx context.Context, status domain.ProjectStatus, target currency.Code) []ProjectView {
	table := s.rates.Get(ctx)
	out := make([]ProjectView, 0)
	for _, p := range s.projects.Items() {
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, ProjectView{Project: p, DisplayPrice: currency.Format(p.Price, target, table)})
	}
	return out
}

func (s *CatalogService) GetProject(ctx context.Context, id string, target currency.Code) (ProjectView, error) {
	p, ok := s.projects.Get(id)
	if !ok {
		return ProjectView{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return ProjectView{Project: p, DisplayPrice: currency.Format(p.Price, target, s.rates.Get(ctx))}, nil
}

func (s *CatalogService) CreateProject(ctx context.Context, p domain.Project) (domain.Project, reconcile.Written, error) {
	if err := normalizeProject(&p); err != nil {
		return domain.Project{}, reconcile.Written{}, err
	}
	now := s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	created, w, err := s.projects.Create(ctx, p)
	if err != nil {
		return domain.Project{}, reconcile.Written{}, fmt.Errorf("failed to create project: %w", err)
	}
	return created, w, nil
}

func (s *CatalogService) UpdateProject(ctx context.Context, id string, p domain.Project) (domain.Project, reconcile.Written, error) {
	existing, ok := s.projects.Get(id)
	if !ok {
		return domain.Project{}, reconcile.Written{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err := normalizeProject(&p); err != nil {
		return domain.Project{}, reconcile.Written{}, err
	}
	p.Meta = existing.Meta
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()

	w, err := s.projects.Update(ctx, p)
	if err != nil {
		return domain.Project{}, reconcile.Written{}, err
	}
	updated, _ := s.projects.Get(id)
	return updated, w, nil
}

func (s *CatalogService) DeleteProject(ctx context.Context, id string) error {
	return s.projects.Delete(ctx, id)
}

func normalizeProperty(p *domain.Property) error {
	p.Title = strings.TrimSpace(p.Title)
	p.Location = strings.TrimSpace(p.Location)
	p.Price = strings.TrimSpace(p.Price)

	switch {
	case p.Title == "":
		return invalid("title is required")
	case p.Location == "":
		return invalid("location is required")
	case p.Price == "":
		return invalid("price is required")
	case p.Beds < 0 || p.Baths < 0 || p.Area < 0:
		return invalid("beds, baths and area must not be negative")
	}

	if p.Type == "" {
		p.Type = domain.ListingSale
	}
	if p.Type != domain.ListingSale && p.Type != domain.ListingRent {
		return invalid("type must be sale or rent")
	}
	if p.Status == "" {
		p.Status = domain.PropertyAvailable
	}
	if !p.Status.Valid() {
		return invalid("unknown status %q", p.Status)
	}
	return nil
}

func normalizeProject(p *domain.Project) error {
	p.Title = strings.TrimSpace(p.Title)
	p.Location = strings.TrimSpace(p.Location)

	switch {
	case p.Title == "":
		return invalid("title is required")
	case p.Location == "":
		return invalid("location is required")
	case p.Units < 0:
		return invalid("units must not be negative")
	}

	if p.Status == "" {
		p.Status = domain.ProjectPlanning
	}
	if !p.Status.Valid() {
		return invalid("unknown status %q", p.Status)
	}
	return nil
}
