// Package autosave implements the remix auto-publish state machine.
//
// A session derived from an existing published document ("remix") must
// transparently become an independent published document on its first edit.
// The machine has three states rather than a pair of booleans, which rules
// out the "armed but already fired" inconsistency outright.
package autosave

import (
	"context"
	"log/slog"
	"sync"
)

// State of the coordinator.
type State int

// Coordinator states.
const (
	Inactive State = iota // session is not a remix; no transitions possible
	Armed                 // remix session awaiting its first mutation
	Fired                 // the one automatic publish has happened; terminal
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Fired:
		return "fired"
	default:
		return "inactive"
	}
}

// Publisher persists a stack remotely and returns its permanent id.
type Publisher interface {
	Publish(ctx context.Context, name, flattened string) (string, error)
}

// Coordinator triggers exactly one automatic publish for a remix session.
type Coordinator struct {
	mu       sync.Mutex
	state    State
	inflight bool
	pub      Publisher
	logger   *slog.Logger
}

// New creates a coordinator. remix arms it; otherwise it stays inactive for
// the whole session.
func New(pub Publisher, remix bool, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	state := Inactive
	if remix {
		state = Armed
	}
	return &Coordinator{state: state, pub: pub, logger: logger}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnMutation evaluates the machine after a structural mutation. While armed
// it starts the publish in a new goroutine and reports true; at most one
// publish is in flight, and triggers while one is pending are no-ops. The
// mutation itself is never rolled back: on publish failure the coordinator
// simply stays armed so the next mutation retries.
//
// done, if non-nil, receives the permanent id after a successful publish.
func (c *Coordinator) OnMutation(ctx context.Context, name, flattened string, done func(id string)) bool {
	c.mu.Lock()
	if c.state != Armed || c.inflight {
		c.mu.Unlock()
		return false
	}
	c.inflight = true
	c.mu.Unlock()

	go func() {
		id, err := c.pub.Publish(ctx, name, flattened)

		c.mu.Lock()
		c.inflight = false
		if err != nil {
			// Transition does not commit; stay armed for retry.
			c.mu.Unlock()
			c.logger.Warn("auto publish failed, will retry on next mutation",
				slog.String("error", err.Error()))
			return
		}
		c.state = Fired
		c.mu.Unlock()

		c.logger.Info("remix auto-published", slog.String("id", id))
		if done != nil {
			done(id)
		}
	}()
	return true
}
