// Package lifecycle brings long-running components up in dependency order
// and tears them down in reverse, reporting phase transitions on a channel.
package lifecycle

import (
	"context"
	"fmt"
)

// Phase is a component state transition.
type Phase string

const (
	PhaseStarted Phase = "started"
	PhaseFailed  Phase = "failed"
	PhaseStopped Phase = "stopped"
)

// Event reports one component transition.
type Event struct {
	Component string
	Phase     Phase
	Err       error
}

// Component is one startable unit. Start must return promptly; long-running
// work belongs in goroutines tied to the passed context. Stop is optional.
type Component struct {
	Name  string
	Needs []string
	Start func(ctx context.Context) error
	Stop  func(ctx context.Context) error
}

// Runner starts components so that every component's Needs are already
// running before it starts.
type Runner struct {
	components []Component
	events     chan Event
	started    []Component
}

// NewRunner creates a runner over the given components. Order of
// declaration breaks ties between components with no dependency relation.
func NewRunner(components ...Component) *Runner {
	return &Runner{
		components: components,
		events:     make(chan Event, len(components)*3+1),
	}
}

// Events exposes the transition stream. The channel is buffered; a slow or
// absent reader never blocks startup.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Start brings every component up in dependency order. On the first
// failure, components already started are stopped in reverse and the error
// is returned.
func (r *Runner) Start(ctx context.Context) error {
	order, err := sortComponents(r.components)
	if err != nil {
		return err
	}

	for _, c := range order {
		if err := c.Start(ctx); err != nil {
			r.emit(Event{Component: c.Name, Phase: PhaseFailed, Err: err})
			r.stopStarted(ctx)
			return fmt.Errorf("lifecycle: start %s: %w", c.Name, err)
		}
		r.started = append(r.started, c)
		r.emit(Event{Component: c.Name, Phase: PhaseStarted})
	}
	return nil
}

// Stop tears down every started component in reverse start order. Stop
// errors are reported on the event stream and in the returned error, but
// teardown continues past them.
func (r *Runner) Stop(ctx context.Context) error {
	return r.stopStarted(ctx)
}

func (r *Runner) stopStarted(ctx context.Context) error {
	var firstErr error
	for i := len(r.started) - 1; i >= 0; i-- {
		c := r.started[i]
		var err error
		if c.Stop != nil {
			err = c.Stop(ctx)
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("lifecycle: stop %s: %w", c.Name, err)
		}
		r.emit(Event{Component: c.Name, Phase: PhaseStopped, Err: err})
	}
	r.started = nil
	return firstErr
}

func (r *Runner) emit(e Event) {
	select {
	case r.events <- e:
	default:
	}
}

// sortComponents orders components so dependencies come first. Declaration
// order is preserved among components whose dependencies are satisfied, so
// the order is deterministic.
func sortComponents(components []Component) ([]Component, error) {
	byName := make(map[string]bool, len(components))
	for _, c := range components {
		if c.Name == "" {
			return nil, fmt.Errorf("lifecycle: component has no name")
		}
		if c.Start == nil {
			return nil, fmt.Errorf("lifecycle: component %s has no start func", c.Name)
		}
		if byName[c.Name] {
			return nil, fmt.Errorf("lifecycle: duplicate component %s", c.Name)
		}
		byName[c.Name] = true
	}
	for _, c := range components {
		for _, need := range c.Needs {
			if !byName[need] {
				return nil, fmt.Errorf("lifecycle: component %s needs unknown component %s", c.Name, need)
			}
		}
	}

	var order []Component
	placed := make(map[string]bool, len(components))
	remaining := append([]Component(nil), components...)

	for len(remaining) > 0 {
		progressed := false
		var next []Component
		for _, c := range remaining {
			ready := true
			for _, need := range c.Needs {
				if !placed[need] {
					ready = false
					break
				}
			}
			if ready {
				order = append(order, c)
				placed[c.Name] = true
				progressed = true
			} else {
				next = append(next, c)
			}
		}
		if !progressed {
			names := make([]string, 0, len(next))
			for _, c := range next {
				names = append(names, c.Name)
			}
			return nil, fmt.Errorf("lifecycle: dependency cycle among %v", names)
		}
		remaining = next
	}
	return order, nil
}
