package settings

import "sort"

// DefaultPriority is assigned to contributions that don't classify
// themselves, including app names merged in from the context. Explicit
// "load first" and "load last" contributions interleave around it.
const DefaultPriority = 100

type contribution struct {
	priority int
	name     string
}

// InstallRegistry collects prioritized app-installation requests from
// independent, unordered sources and produces one stable ordered list.
// Because contribution order is not guaranteed across providers, each app
// carries a priority and the list is re-sorted on every read.
type InstallRegistry struct {
	entries []contribution
	seen    map[string]struct{}
}

// NewInstallRegistry creates an empty registry.
func NewInstallRegistry() *InstallRegistry {
	return &InstallRegistry{
		seen: make(map[string]struct{}),
	}
}

// Register adds an app contribution. Registering a name twice is a no-op:
// the priority given at first registration wins.
func (r *InstallRegistry) Register(name string, priority int) {
	if _, ok := r.seen[name]; ok {
		return
	}
	r.seen[name] = struct{}{}
	r.entries = append(r.entries, contribution{priority: priority, name: name})
}

// RegisterDefault adds an app contribution at DefaultPriority.
func (r *InstallRegistry) RegisterDefault(name string) {
	r.Register(name, DefaultPriority)
}

// MergeContext folds app names already present in the assembled context into
// the registry at DefaultPriority, skipping names seen before.
func (r *InstallRegistry) MergeContext(apps []string) {
	for _, app := range apps {
		r.Register(app, DefaultPriority)
	}
}

// Apps returns the app names sorted by ascending priority, ties broken by
// the order in which names were first registered.
func (r *InstallRegistry) Apps() []string {
	sorted := make([]contribution, len(r.entries))
	copy(sorted, r.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].priority < sorted[j].priority
	})

	out := make([]string, len(sorted))
	for i, entry := range sorted {
		out[i] = entry.name
	}
	return out
}
