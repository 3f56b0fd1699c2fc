package settings

import (
	"fmt"

	"github.com/modelw/preset/internal/env"
)

// Context is the mapping of configuration keys to values being assembled.
// It is created empty, populated by the two pipeline phases, then handed to
// the host and never mutated again.
type Context map[string]any

// StringSlice returns the list stored under key, or nil when the key is
// absent or holds another type.
func (c Context) StringSlice(key string) []string {
	value, ok := c[key]
	if !ok {
		return nil
	}
	list, ok := value.([]string)
	if !ok {
		return nil
	}
	return list
}

// Pair is one contributed setting.
type Pair struct {
	Key   string
	Value any
}

// Provider contributes settings to the context. Write-phase providers run
// before any review-phase provider; within a phase providers run in slice
// order and each sees the context accumulated so far. For a given key, a
// later pair overwrites an earlier one; providers that want to extend a list
// read the current value and yield the reassembled list.
type Provider struct {
	Name string
	Run  func(m *env.Manager, ctx Context) ([]Pair, error)
}

// State tracks pipeline progress.
type State int

const (
	StateUnstarted State = iota
	StatePhaseOne
	StatePhaseTwo
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StatePhaseOne:
		return "phase-one"
	case StatePhaseTwo:
		return "phase-two"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pipeline runs write-phase providers followed by review-phase providers
// over a single Context. A pipeline instance runs exactly once.
type Pipeline struct {
	pre   []Provider
	post  []Provider
	state State
}

// NewPipeline creates a pipeline from ordered provider lists.
func NewPipeline(pre, post []Provider) *Pipeline {
	return &Pipeline{pre: pre, post: post}
}

// State reports where the pipeline currently is.
func (p *Pipeline) State() State {
	return p.state
}

// Run executes both phases and returns the assembled context. Any provider
// error aborts immediately and leaves the pipeline failed; configuration is
// computed once per process lifetime, so there is no retry.
func (p *Pipeline) Run(m *env.Manager) (Context, error) {
	if p.state != StateUnstarted {
		return nil, ErrPipelineConsumed
	}

	ctx := Context{}

	p.state = StatePhaseOne
	for _, prov := range p.pre {
		if err := apply(m, ctx, prov); err != nil {
			p.state = StateFailed
			return nil, err
		}
	}

	p.state = StatePhaseTwo
	for _, prov := range p.post {
		if err := apply(m, ctx, prov); err != nil {
			p.state = StateFailed
			return nil, err
		}
	}

	p.state = StateComplete
	return ctx, nil
}

func apply(m *env.Manager, ctx Context, prov Provider) error {
	pairs, err := prov.Run(m, ctx)
	if err != nil {
		return fmt.Errorf("provider %s: %w", prov.Name, err)
	}
	for _, pair := range pairs {
		ctx[pair.Key] = pair.Value
	}
	return nil
}

// RequireNonEmpty asserts that the context holds a non-empty string list
// under key and returns it.
func RequireNonEmpty(ctx Context, key string) ([]string, error) {
	items := ctx.StringSlice(key)
	if len(items) == 0 {
		return nil, &InvariantError{Key: key, Reason: "must be a non-empty list"}
	}
	return items, nil
}

// RequireFirst asserts that the string list under key starts with want and
// returns it.
func RequireFirst(ctx Context, key, want string) ([]string, error) {
	items := ctx.StringSlice(key)
	if len(items) == 0 || items[0] != want {
		return nil, &InvariantError{Key: key, Reason: fmt.Sprintf("%s must be the first entry", want)}
	}
	return items, nil
}
