// Package catalog loads the module catalog (modules, question banks, year titles) from YAML content.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-progress/internal/apperr"
)

// ModuleStore is the read-only view of the catalog the progress engine depends on.
type ModuleStore interface {
	GetModulesByYear(ctx context.Context, year int) ([]Module, error)
	GetModule(ctx context.Context, id string) (Module, error)
}

// Loader loads and caches catalog content from the filesystem.
type Loader struct {
	rootDir string
	modules map[string]Module
	years   map[int]YearInfo
	mu      sync.RWMutex
}

// NewLoader creates a new catalog loader and loads all content under rootDir.
// Any invalid module file aborts loading.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir: rootDir,
		modules: make(map[string]Module),
		years:   make(map[int]YearInfo),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	if err := l.check(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	slog.Info("catalog loaded", "modules", len(l.modules), "years", len(l.Years()))
	return l, nil
}

// FromModules builds a catalog from in-memory modules, applying the same checks as NewLoader.
func FromModules(modules []Module, years ...YearInfo) (*Loader, error) {
	l := &Loader{
		modules: make(map[string]Module, len(modules)),
		years:   make(map[int]YearInfo, len(years)),
	}
	for _, m := range modules {
		if _, dup := l.modules[m.ID]; dup {
			return nil, apperr.NewValidationError("duplicate module id", apperr.FieldError{Field: "id", Error: m.ID})
		}
		l.modules[m.ID] = m
	}
	for _, y := range years {
		l.years[y.Year] = y
	}
	if err := l.check(); err != nil {
		return nil, err
	}
	return l, nil
}

// GetModulesByYear returns the modules of a year sorted by order.
func (l *Loader) GetModulesByYear(_ context.Context, year int) ([]Module, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var modules []Module
	for _, m := range l.modules {
		if m.Year == year {
			modules = append(modules, m)
		}
	}
	if len(modules) == 0 {
		return nil, apperr.NotFound("year", strconv.Itoa(year))
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Order < modules[j].Order })
	return modules, nil
}

// GetModule returns a module by ID.
func (l *Loader) GetModule(_ context.Context, id string) (Module, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.modules[id]
	if !ok {
		return Module{}, apperr.NotFound("module", id)
	}
	return m, nil
}

// AllModules returns all loaded modules ordered by year, then order.
func (l *Loader) AllModules() []Module {
	l.mu.RLock()
	defer l.mu.RUnlock()
	modules := make([]Module, 0, len(l.modules))
	for _, m := range l.modules {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Year != modules[j].Year {
			return modules[i].Year < modules[j].Year
		}
		return modules[i].Order < modules[j].Order
	})
	return modules
}

// Years returns every year that has modules, in ascending order.
// Years without a descriptor file get a generated title.
func (l *Loader) Years() []YearInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[int]bool)
	var years []YearInfo
	for _, m := range l.modules {
		if seen[m.Year] {
			continue
		}
		seen[m.Year] = true
		info, ok := l.years[m.Year]
		if !ok || info.Title == "" {
			info = YearInfo{Year: m.Year, Title: fmt.Sprintf("Year %d", m.Year)}
		}
		years = append(years, info)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].Year < years[j].Year })
	return years
}

// YearTitle returns the display title of a year.
func (l *Loader) YearTitle(year int) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if info, ok := l.years[year]; ok && info.Title != "" {
		return info.Title
	}
	return fmt.Sprintf("Year %d", year)
}

func (l *Loader) loadAll() error {
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		switch {
		case strings.HasSuffix(path, ".year.yaml"):
			return l.loadYear(path)
		case strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml"):
			return l.loadModule(path)
		}
		return nil
	})
}

func (l *Loader) loadModule(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return apperr.NewValidationError("invalid module YAML", apperr.FieldError{Field: path, Error: err.Error()})
	}
	if doc == nil {
		return nil // Empty file
	}

	problems, err := validateDocument(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if len(problems) > 0 {
		fields := make([]apperr.FieldError, 0, len(problems))
		for _, p := range problems {
			fields = append(fields, apperr.FieldError{Field: path, Error: p})
		}
		return apperr.NewValidationError("module does not match schema", fields...)
	}

	var m Module
	if err := yaml.Unmarshal(data, &m); err != nil {
		return apperr.NewValidationError("invalid module YAML", apperr.FieldError{Field: path, Error: err.Error()})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, dup := l.modules[m.ID]; dup {
		return apperr.NewValidationError("duplicate module id",
			apperr.FieldError{Field: path, Error: fmt.Sprintf("id %q already used by %q", m.ID, prev.Title)})
	}
	l.modules[m.ID] = m
	return nil
}

func (l *Loader) loadYear(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var info YearInfo
	if err := yaml.Unmarshal(data, &info); err != nil || info.Year < 1 {
		slog.Warn("skipping invalid year descriptor", "path", path, "error", err)
		return nil
	}

	l.mu.Lock()
	l.years[info.Year] = info
	l.mu.Unlock()
	return nil
}

// check enforces the rules the schema cannot express.
func (l *Loader) check() error {
	var fields []apperr.FieldError
	orders := make(map[[2]int]string)

	for _, m := range l.AllModules() {
		if m.Year < 1 || m.Order < 1 {
			fields = append(fields, apperr.FieldError{Field: m.ID, Error: "year and order must be positive"})
		}
		key := [2]int{m.Year, m.Order}
		if other, dup := orders[key]; dup {
			fields = append(fields, apperr.FieldError{
				Field: m.ID,
				Error: fmt.Sprintf("order %d in year %d already used by %s", m.Order, m.Year, other),
			})
		}
		orders[key] = m.ID

		if len(m.Questions) == 0 {
			fields = append(fields, apperr.FieldError{Field: m.ID, Error: "no questions"})
		}
		qids := make(map[int]bool)
		for _, q := range m.Questions {
			if qids[q.ID] {
				fields = append(fields, apperr.FieldError{Field: fmt.Sprintf("%s.questions.%d", m.ID, q.ID), Error: "duplicate question id"})
			}
			qids[q.ID] = true

			correct := 0
			oids := make(map[int]bool)
			for _, o := range q.Options {
				if oids[o.ID] {
					fields = append(fields, apperr.FieldError{Field: fmt.Sprintf("%s.questions.%d", m.ID, q.ID), Error: fmt.Sprintf("duplicate option id %d", o.ID)})
				}
				oids[o.ID] = true
				if o.Correct {
					correct++
				}
			}
			if correct != 1 {
				fields = append(fields, apperr.FieldError{
					Field: fmt.Sprintf("%s.questions.%d", m.ID, q.ID),
					Error: fmt.Sprintf("want exactly one correct option, got %d", correct),
				})
			}
		}
	}

	if len(fields) > 0 {
		return apperr.NewValidationError("invalid catalog", fields...)
	}
	return nil
}
