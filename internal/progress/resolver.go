package progress

import (
	"sort"

	"github.com/p-n-ai/pai-progress/internal/catalog"
)

// UnlockPolicy decides which module becomes in progress after the highest attempted one.
type UnlockPolicy string

const (
	// UnlockOnCompletion opens the next module once the previous one has any attempt.
	UnlockOnCompletion UnlockPolicy = "completion"
	// UnlockOnApproval opens the next module only when the previous attempt was approved.
	UnlockOnApproval UnlockPolicy = "approval"
)

// DefaultStartedPercent is the progress shown for the module currently in progress.
const DefaultStartedPercent = 50

// ResolverConfig holds resolver settings. Zero values use defaults.
type ResolverConfig struct {
	StartedPercent int
	UnlockPolicy   UnlockPolicy
}

// Resolver derives module statuses from a year's attempts.
type Resolver struct {
	startedPercent int
	policy         UnlockPolicy
}

// NewResolver creates a resolver with the given config.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.StartedPercent <= 0 || cfg.StartedPercent > 100 {
		cfg.StartedPercent = DefaultStartedPercent
	}
	if cfg.UnlockPolicy == "" {
		cfg.UnlockPolicy = UnlockOnCompletion
	}
	return &Resolver{startedPercent: cfg.StartedPercent, policy: cfg.UnlockPolicy}
}

// Resolve returns one status per module, ordered by module order.
// Only the attempt map is consulted; attempts for modules not in modules are ignored.
func (r *Resolver) Resolve(modules []catalog.Module, yp YearProgress) []ModuleStatus {
	ordered := make([]catalog.Module, len(modules))
	copy(ordered, modules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	highest := 0
	var highestApproved bool
	for _, m := range ordered {
		if a, ok := yp.Attempts[m.ID]; ok && m.Order > highest {
			highest = m.Order
			highestApproved = a.Approved
		}
	}
	unlockNext := highest == 0 || r.policy != UnlockOnApproval || highestApproved

	statuses := make([]ModuleStatus, 0, len(ordered))
	for _, m := range ordered {
		st := ModuleStatus{
			ModuleID:                 m.ID,
			Order:                    m.Order,
			Title:                    m.Title,
			Icon:                     m.Icon,
			Difficulty:               m.Difficulty,
			EstimatedDurationMinutes: m.EstimatedDurationMinutes,
			State:                    StatePending,
		}

		if a, ok := yp.Attempts[m.ID]; ok {
			a = a.clone()
			st.Attempt = &a
			st.ProgressPercent = 100
			st.State = StateFailed
			if a.Approved {
				st.State = StateApproved
			}
		} else if m.Order == highest+1 && unlockNext {
			st.State = StateInProgress
			st.ProgressPercent = r.startedPercent
		}

		statuses = append(statuses, st)
	}
	return statuses
}
