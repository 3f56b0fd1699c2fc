package settings

import (
	"reflect"
	"testing"
)

func TestInstallRegistryOrdering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		register func(r *InstallRegistry)
		want     []string
	}{
		{
			name: "PriorityThenInsertionOrder",
			register: func(r *InstallRegistry) {
				r.Register("b", 100)
				r.Register("a", 10)
				r.Register("c", 100)
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "EqualPrioritiesKeepRelativeOrder",
			register: func(r *InstallRegistry) {
				r.Register("x", 60)
				r.Register("y", 60)
				r.Register("z", 60)
			},
			want: []string{"x", "y", "z"},
		},
		{
			name: "DefaultPriorityInterleaves",
			register: func(r *InstallRegistry) {
				r.RegisterDefault("middle")
				r.Register("first", 10)
				r.Register("last", 200)
			},
			want: []string{"first", "middle", "last"},
		},
		{
			name:     "Empty",
			register: func(r *InstallRegistry) {},
			want:     []string{},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := NewInstallRegistry()
			tc.register(r)

			if got := r.Apps(); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestInstallRegistryDuplicateIsNoOp(t *testing.T) {
	t.Parallel()

	r := NewInstallRegistry()
	r.Register("app", 10)
	r.Register("app", 200)
	r.Register("other", 50)

	want := []string{"app", "other"}
	if got := r.Apps(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected first priority to win, got %v", got)
	}
}

func TestInstallRegistryMergeContext(t *testing.T) {
	t.Parallel()

	r := NewInstallRegistry()
	r.Register("runtime", 10)
	r.MergeContext([]string{"myapp", "runtime", "otherapp"})
	r.Register("helper", 90)

	want := []string{"runtime", "helper", "myapp", "otherapp"}
	if got := r.Apps(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected merge result: %v", got)
	}
}

func TestInstallRegistryAppsReturnsCopy(t *testing.T) {
	t.Parallel()

	r := NewInstallRegistry()
	r.Register("app", 10)

	first := r.Apps()
	first[0] = "mutated"

	if got := r.Apps(); got[0] != "app" {
		t.Fatalf("expected registry to be unaffected, got %v", got)
	}
}
