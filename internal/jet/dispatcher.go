package jet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/basecamp/storefront/internal/intent"
)

// ErrNoController is returned when no controller handles an intent kind.
var ErrNoController = errors.New("no controller for intent")

// Controller resolves one kind of intent.
type Controller func(ctx context.Context, i intent.Intent) (any, error)

// Dispatcher routes intents to controllers keyed by kind.
type Dispatcher struct {
	mu          sync.RWMutex
	controllers map[intent.Kind]Controller
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{controllers: make(map[intent.Kind]Controller)}
}

// Register installs c for kind. Registering a kind twice panics.
func (d *Dispatcher) Register(kind intent.Kind, c Controller) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.controllers[kind]; exists {
		panic(fmt.Sprintf("jet: controller for %s already registered", kind))
	}
	d.controllers[kind] = c
}

// Dispatch resolves i with its registered controller.
func (d *Dispatcher) Dispatch(ctx context.Context, i intent.Intent) (any, error) {
	if i == nil {
		return nil, fmt.Errorf("%w: nil", ErrNoController)
	}
	d.mu.RLock()
	c, ok := d.controllers[i.Kind()]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoController, i.Kind())
	}
	return c(ctx, i)
}

// Kinds returns the registered intent kinds, sorted.
func (d *Dispatcher) Kinds() []intent.Kind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	kinds := make([]intent.Kind, 0, len(d.controllers))
	for k := range d.controllers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// MetricsBehavior tells an action handler how to attribute metrics.
// Processed is false when no page was active to derive fields from.
type MetricsBehavior struct {
	Processed bool
	PageID    string
	PageType  string
	Fields    map[string]string
}

// NotProcessed is the behavior used when no page is active.
var NotProcessed = MetricsBehavior{}

// ActionHandler performs one kind of action.
type ActionHandler func(ctx context.Context, a intent.Action, metrics MetricsBehavior) intent.Outcome

// ActionDispatcher routes actions to handlers keyed by action kind.
type ActionDispatcher struct {
	mu       sync.RWMutex
	handlers map[intent.ActionKind]ActionHandler
}

// NewActionDispatcher creates an empty ActionDispatcher.
func NewActionDispatcher() *ActionDispatcher {
	return &ActionDispatcher{handlers: make(map[intent.ActionKind]ActionHandler)}
}

// Register installs h for kind. Registering a kind twice panics.
func (d *ActionDispatcher) Register(kind intent.ActionKind, h ActionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[kind]; exists {
		panic(fmt.Sprintf("jet: action handler for %s already registered", kind))
	}
	d.handlers[kind] = h
}

// Perform runs the handler for a, or reports it unsupported.
func (d *ActionDispatcher) Perform(ctx context.Context, a intent.Action, metrics MetricsBehavior) intent.Outcome {
	if a == nil {
		return intent.OutcomeUnsupported
	}
	d.mu.RLock()
	h, ok := d.handlers[a.ActionKind()]
	d.mu.RUnlock()
	if !ok {
		return intent.OutcomeUnsupported
	}
	return h(ctx, a, metrics)
}
