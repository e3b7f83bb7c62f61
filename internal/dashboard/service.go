package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/p-n-ai/pai-progress/internal/apperr"
	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
)

// Catalog is the part of the module catalog the dashboard reads.
type Catalog interface {
	catalog.ModuleStore
	Years() []catalog.YearInfo
	YearTitle(year int) string
}

// YearAccess tells whether a student may open a year.
type YearAccess struct {
	Year     int    `json:"year"`
	Title    string `json:"title"`
	Unlocked bool   `json:"unlocked"`
	Complete bool   `json:"complete"`
}

// Service reads the catalog and progress store to build dashboard views.
type Service struct {
	catalog  Catalog
	store    progress.Store
	resolver *progress.Resolver
}

// NewService creates a dashboard service.
func NewService(c Catalog, store progress.Store, r *progress.Resolver) *Service {
	if r == nil {
		r = progress.NewResolver(progress.ResolverConfig{})
	}
	return &Service{catalog: c, store: store, resolver: r}
}

// Dashboard returns the view for a student's year. A student without a record
// gets an empty one; store failures are returned as is.
func (s *Service) Dashboard(ctx context.Context, studentID string, year int) (View, error) {
	modules, err := s.catalog.GetModulesByYear(ctx, year)
	if err != nil {
		return View{}, fmt.Errorf("dashboard: %w", err)
	}

	yp, err := s.store.GetYearProgress(ctx, studentID, year)
	if errors.Is(err, apperr.ErrNotFound) {
		yp = progress.NewYearProgress(studentID, year)
	} else if err != nil {
		return View{}, fmt.Errorf("dashboard: %w", err)
	}

	info := catalog.YearInfo{Year: year, Title: s.catalog.YearTitle(year)}
	return Assemble(info, modules, yp, s.resolver), nil
}

// Years lists the catalog years with their access state. The first year is
// always open; every later year opens once the previous one is complete.
func (s *Service) Years(ctx context.Context, studentID string) ([]YearAccess, error) {
	years := s.catalog.Years()
	out := make([]YearAccess, 0, len(years))

	prevComplete := true
	for i, y := range years {
		ps, err := s.store.GetProfileSummary(ctx, studentID, y.Year)
		complete := false
		switch {
		case err == nil:
			complete = ps.Summary.IsYearComplete
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, fmt.Errorf("years: %w", err)
		}

		out = append(out, YearAccess{
			Year:     y.Year,
			Title:    y.Title,
			Unlocked: i == 0 || prevComplete,
			Complete: complete,
		})
		prevComplete = complete
	}
	return out, nil
}
