package settings

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/modelw/preset/internal/env"
)

func testManager(values map[string]string) *env.Manager {
	return env.NewManager(env.WithLookup(func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}))
}

func yield(pairs ...Pair) func(*env.Manager, Context) ([]Pair, error) {
	return func(*env.Manager, Context) ([]Pair, error) {
		return pairs, nil
	}
}

func TestPipelinePhaseOrder(t *testing.T) {
	var order []string

	record := func(name string, pairs ...Pair) Provider {
		return Provider{Name: name, Run: func(*env.Manager, Context) ([]Pair, error) {
			order = append(order, name)
			return pairs, nil
		}}
	}

	p := NewPipeline(
		[]Provider{record("one"), record("two")},
		[]Provider{record("three"), record("four")},
	)

	if _, err := p.Run(testManager(nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"one", "two", "three", "four"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}
	if p.State() != StateComplete {
		t.Fatalf("expected complete state, got %s", p.State())
	}
}

func TestPipelineReviewPhaseWins(t *testing.T) {
	p := NewPipeline(
		[]Provider{{Name: "write", Run: yield(Pair{Key: "DEBUG", Value: true})}},
		[]Provider{{Name: "review", Run: yield(Pair{Key: "DEBUG", Value: false})}},
	)

	ctx, err := p.Run(testManager(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ctx["DEBUG"]; got != false {
		t.Fatalf("expected review phase to win, got %v", got)
	}
}

func TestPipelineReviewSeesFullContext(t *testing.T) {
	var seen []string

	p := NewPipeline(
		[]Provider{
			{Name: "a", Run: yield(Pair{Key: "A", Value: 1})},
			{Name: "b", Run: yield(Pair{Key: "B", Value: 2})},
		},
		[]Provider{
			{Name: "review", Run: func(_ *env.Manager, ctx Context) ([]Pair, error) {
				for _, key := range []string{"A", "B"} {
					if _, ok := ctx[key]; ok {
						seen = append(seen, key)
					}
				}
				return nil, nil
			}},
		},
	)

	if _, err := p.Run(testManager(nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(seen, []string{"A", "B"}) {
		t.Fatalf("review phase saw %v", seen)
	}
}

func TestPipelineDeterministic(t *testing.T) {
	build := func() *Pipeline {
		return NewPipeline(
			[]Provider{
				{Name: "base", Run: func(m *env.Manager, _ Context) ([]Pair, error) {
					debug, err := m.GetBool("DEBUG", env.Default(false))
					if err != nil {
						return nil, err
					}
					return []Pair{{Key: "DEBUG", Value: debug}, {Key: "HOSTS", Value: []string{"*"}}}, nil
				}},
			},
			nil,
		)
	}

	values := map[string]string{"DEBUG": "true"}

	first, err := build().Run(testManager(values))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := build().Run(testManager(values))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical contexts, got %v and %v", first, second)
	}
}

func TestPipelineProviderErrorFails(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		pre   []Provider
		post  []Provider
		state State
	}{
		{
			name: "WritePhase",
			pre:  []Provider{{Name: "bad", Run: func(*env.Manager, Context) ([]Pair, error) { return nil, boom }}},
		},
		{
			name: "ReviewPhase",
			post: []Provider{{Name: "bad", Run: func(*env.Manager, Context) ([]Pair, error) { return nil, boom }}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPipeline(tc.pre, tc.post)

			_, err := p.Run(testManager(nil))
			if !errors.Is(err, boom) {
				t.Fatalf("expected wrapped provider error, got %v", err)
			}
			if got := err.Error(); got != fmt.Sprintf("provider bad: %v", boom) {
				t.Fatalf("unexpected message: %q", got)
			}
			if p.State() != StateFailed {
				t.Fatalf("expected failed state, got %s", p.State())
			}
		})
	}
}

func TestPipelineRunsOnce(t *testing.T) {
	p := NewPipeline(nil, nil)

	if _, err := p.Run(testManager(nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Run(testManager(nil)); !errors.Is(err, ErrPipelineConsumed) {
		t.Fatalf("expected ErrPipelineConsumed, got %v", err)
	}
}

func TestRequireNonEmpty(t *testing.T) {
	t.Parallel()

	t.Run("Present", func(t *testing.T) {
		got, err := RequireNonEmpty(Context{"LANGUAGES": []string{"en", "es"}}, "LANGUAGES")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(got, []string{"en", "es"}) {
			t.Fatalf("unexpected list: %v", got)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := RequireNonEmpty(Context{"LANGUAGES": []string{}}, "LANGUAGES")
		if !errors.Is(err, ErrInvariant) {
			t.Fatalf("expected ErrInvariant, got %v", err)
		}

		var inv *InvariantError
		if !errors.As(err, &inv) || inv.Key != "LANGUAGES" {
			t.Fatalf("expected InvariantError naming LANGUAGES, got %v", err)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if _, err := RequireNonEmpty(Context{}, "LANGUAGES"); !errors.Is(err, ErrInvariant) {
			t.Fatalf("expected ErrInvariant, got %v", err)
		}
	})
}

func TestRequireFirst(t *testing.T) {
	t.Parallel()

	t.Run("FirstMatches", func(t *testing.T) {
		got, err := RequireFirst(Context{"MIDDLEWARE": []string{"X", "Y"}}, "MIDDLEWARE", "X")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(got, []string{"X", "Y"}) {
			t.Fatalf("unexpected list: %v", got)
		}
	})

	t.Run("WrongFirst", func(t *testing.T) {
		if _, err := RequireFirst(Context{"MIDDLEWARE": []string{"Y", "X"}}, "MIDDLEWARE", "X"); !errors.Is(err, ErrInvariant) {
			t.Fatalf("expected ErrInvariant, got %v", err)
		}
	})
}

func TestContextStringSlice(t *testing.T) {
	t.Parallel()

	ctx := Context{
		"LIST":   []string{"a"},
		"SCALAR": 1,
	}

	if got := ctx.StringSlice("LIST"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("unexpected list: %v", got)
	}
	if got := ctx.StringSlice("SCALAR"); got != nil {
		t.Fatalf("expected nil for non-list, got %v", got)
	}
	if got := ctx.StringSlice("ABSENT"); got != nil {
		t.Fatalf("expected nil for absent key, got %v", got)
	}
}
