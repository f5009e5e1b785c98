// Package island groups major events per island, resolves year dependencies
// between events across islands, and runs each island's history preflight.
package island

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/talgya/tausaga/internal/config"
	"github.com/talgya/tausaga/internal/entropy"
	"github.com/talgya/tausaga/internal/history"
	"github.com/talgya/tausaga/internal/major"
)

var (
	ErrUnknownDependency = errors.New("island: unknown dependency")
	ErrDependencyCycle   = errors.New("island: dependency cycle")
	ErrUnresolved        = major.ErrUnresolved
	ErrUnknownIsland     = errors.New("island: unknown island")
)

// Island is one simulated island and its scheduled events.
type Island struct {
	ID      uuid.UUID
	Name    string
	Events  []*major.Event // configuration order
	History *history.History

	byName map[string]*major.Event
}

// Event returns the named event, or nil.
func (is *Island) Event(name string) *major.Event {
	return is.byName[name]
}

func (is *Island) String() string { return is.Name }

// Registry holds every island of a run in configuration order.
type Registry struct {
	islands []*Island
	byName  map[string]*Island
}

// NewRegistry samples every event of the configuration. Dependencies are
// left unresolved; call ResolveDependencies before building timelines.
func NewRegistry(f *config.File, src *entropy.Source) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Island, len(f.Islands))}
	for _, spec := range f.Islands {
		if _, dup := r.byName[spec.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate island %q", config.ErrInvalidConfig, spec.Name)
		}
		is := &Island{
			ID:     src.UUID(),
			Name:   spec.Name,
			byName: make(map[string]*major.Event, len(spec.Events)),
		}
		for _, es := range spec.Events {
			specs, err := es.Specs()
			if err != nil {
				return nil, fmt.Errorf("%s::%s: %w", spec.Name, es.Name, err)
			}
			curve, err := major.ParseCurve(es.Curve)
			if err != nil {
				return nil, fmt.Errorf("%s::%s: %w", spec.Name, es.Name, err)
			}
			ev, err := major.New(es.Name, es.Type, specs, curve, src)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", spec.Name, err)
			}
			is.Events = append(is.Events, ev)
			is.byName[ev.Name] = ev
		}
		r.islands = append(r.islands, is)
		r.byName[is.Name] = is
		slog.Debug("island loaded", "island", is.Name, "events", len(is.Events))
	}
	return r, nil
}

// Islands returns the islands in configuration order.
func (r *Registry) Islands() []*Island { return r.islands }

// Island returns the named island.
func (r *Registry) Island(name string) (*Island, error) {
	is, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIsland, name)
	}
	return is, nil
}

// ResolveDependencies folds every followed Year into its follower. The
// follower's Year is converted to the followed event's unit and combined
// with it, so "12 generations ago" after an event "50 generations ago"
// becomes "38 generations ago". Chains resolve recursively; a cycle fails.
func (r *Registry) ResolveDependencies() error {
	for _, is := range r.islands {
		for _, ev := range is.Events {
			if !ev.HasUnresolvedDependency {
				continue
			}
			if err := r.resolve(is.Name, ev, make(map[*major.Event]bool)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) resolve(islandName string, ev *major.Event, visiting map[*major.Event]bool) error {
	where := islandName + "::" + ev.Name
	if visiting[ev] {
		return fmt.Errorf("%w: through %s", ErrDependencyCycle, where)
	}
	visiting[ev] = true
	defer delete(visiting, ev)

	follow := ev.Year().Follow
	depIsland, depName, ok := strings.Cut(follow, "::")
	if !ok || depIsland == "" || depName == "" {
		return fmt.Errorf("%w: %s follows malformed %q", ErrUnknownDependency, where, follow)
	}
	target, ok := r.byName[depIsland]
	if !ok {
		return fmt.Errorf("%w: %s follows unknown island %q", ErrUnknownDependency, where, depIsland)
	}
	dep := target.Event(depName)
	if dep == nil {
		return fmt.Errorf("%w: %s follows unknown event %q", ErrUnknownDependency, where, follow)
	}
	if dep.HasUnresolvedDependency {
		if err := r.resolve(depIsland, dep, visiting); err != nil {
			return err
		}
	}

	year := ev.Year()
	if err := year.Convert(dep.Year().Unit); err != nil {
		return fmt.Errorf("resolve %s against %s: %w", where, follow, err)
	}
	if err := year.Combine(dep.Year()); err != nil {
		return fmt.Errorf("resolve %s against %s: %w", where, follow, err)
	}
	ev.HasUnresolvedDependency = false
	slog.Debug("dependency resolved", "event", where, "follows", follow, "year", year.String())
	return nil
}

// Reroll re-samples every year and growth rate and resolves dependencies again.
func (r *Registry) Reroll(src *entropy.Source) error {
	for _, is := range r.islands {
		for _, ev := range is.Events {
			if err := ev.RerollYear(src); err != nil {
				return fmt.Errorf("%s::%s: %w", is.Name, ev.Name, err)
			}
			if err := ev.RerollGrowthRate(src); err != nil {
				return fmt.Errorf("%s::%s: %w", is.Name, ev.Name, err)
			}
			ev.ResetDependencyCheck()
		}
	}
	return r.ResolveDependencies()
}
