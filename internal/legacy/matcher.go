package legacy

import (
	"regexp"
	"strconv"

	"github.com/p-n-ai/pai-progress/internal/catalog"
)

// MatchKind records which reference identified a legacy test's module.
type MatchKind string

const (
	MatchNone     MatchKind = ""
	MatchModuleID MatchKind = "module_id"
	MatchOrder    MatchKind = "order"
	MatchSlug     MatchKind = "slug"
	MatchKeyToken MatchKind = "key_token"
)

var (
	moduloRef = regexp.MustCompile(`(?i)^modulo[_-]?(\d+)$`)
	testRef   = regexp.MustCompile(`(?i)^test[_-]?(\d+)$`)
)

// Matcher maps legacy tests of one year to catalog modules.
type Matcher struct {
	byID    map[string]catalog.Module
	byOrder map[int]catalog.Module
	bySlug  map[string]catalog.Module
	aliases []alias
}

type alias struct {
	tokens []string
	module catalog.Module
}

// NewMatcher indexes the modules of one year.
func NewMatcher(modules []catalog.Module) *Matcher {
	m := &Matcher{
		byID:    make(map[string]catalog.Module, len(modules)),
		byOrder: make(map[int]catalog.Module, len(modules)),
		bySlug:  make(map[string]catalog.Module),
	}
	for _, mod := range modules {
		m.byID[mod.ID] = mod
		m.byOrder[mod.Order] = mod
		m.bySlug[slug(mod.Title)] = mod
		for _, key := range mod.LegacyKeys {
			m.bySlug[slug(key)] = mod
			m.aliases = append(m.aliases, alias{tokens: tokens(key), module: mod})
		}
	}
	return m
}

// Match finds the module a legacy test belongs to. References are tried in
// order of reliability: explicit module id, module number, module slug, then
// words of the test key.
func (m *Matcher) Match(key string, t Test) (catalog.Module, MatchKind, bool) {
	if mod, ok := m.byID[t.ModuleID]; ok {
		return mod, MatchModuleID, true
	}

	if sm := moduloRef.FindStringSubmatch(t.ModuloID); sm != nil {
		if mod, ok := m.order(sm[1]); ok {
			return mod, MatchOrder, true
		}
	}
	if t.TestID > 0 {
		if mod, ok := m.byOrder[int(t.TestID)]; ok {
			return mod, MatchOrder, true
		}
	}
	if sm := testRef.FindStringSubmatch(key); sm != nil {
		if mod, ok := m.order(sm[1]); ok {
			return mod, MatchOrder, true
		}
	}

	if t.ModuloNombre != "" {
		if mod, ok := m.bySlug[slug(t.ModuloNombre)]; ok {
			return mod, MatchSlug, true
		}
	}

	if mod, ok := m.matchTokens(tokens(key)); ok {
		return mod, MatchKeyToken, true
	}
	return catalog.Module{}, MatchNone, false
}

func (m *Matcher) order(s string) (catalog.Module, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return catalog.Module{}, false
	}
	mod, ok := m.byOrder[n]
	return mod, ok
}

// matchTokens picks the module whose alias covers the most consecutive key
// words. Equally good aliases of different modules are ambiguous.
func (m *Matcher) matchTokens(words []string) (catalog.Module, bool) {
	var (
		best      catalog.Module
		bestLen   int
		ambiguous bool
	)
	for _, a := range m.aliases {
		if len(a.tokens) == 0 || !containsRun(words, a.tokens) {
			continue
		}
		switch {
		case len(a.tokens) > bestLen:
			best, bestLen, ambiguous = a.module, len(a.tokens), false
		case len(a.tokens) == bestLen && a.module.ID != best.ID:
			ambiguous = true
		}
	}
	if bestLen == 0 || ambiguous {
		return catalog.Module{}, false
	}
	return best, true
}

func containsRun(words, run []string) bool {
	for i := 0; i+len(run) <= len(words); i++ {
		match := true
		for j := range run {
			if words[i+j] != run[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
