// Package registry is an explicit, constructed lookup from an
// algorithm name to its descriptor, built by direct Register calls
// (see NewDefault, which the driver calls) -- no package-level init(),
// no blank import, no process-wide state.
package registry

import "fmt"

// AlgoKind names one of the five vertex programs this repository ships.
type AlgoKind int

const (
	BFS AlgoKind = iota
	ConnectedComponents
	PageRank
	LabelPropagation
	RandomWalk
)

func (k AlgoKind) String() string {
	switch k {
	case BFS:
		return "bfs"
	case ConnectedComponents:
		return "cc"
	case PageRank:
		return "pr"
	case LabelPropagation:
		return "lpa"
	case RandomWalk:
		return "rw"
	default:
		return fmt.Sprintf("AlgoKind(%d)", int(k))
	}
}

// Entry is one registered algorithm: its kind and its fixed default
// arguments. The driver in cmd/graphbsp uses only Lookup's ok result;
// its own defaults are hard-coded there and are not read from here.
type Entry struct {
	Kind        AlgoKind
	DefaultArgs []string
}

// Registry is a constructed, immutable-after-build name -> Entry map.
type Registry struct {
	entries map[string]Entry
}

// New returns an empty Registry ready for Register calls.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds name to the registry with the given kind and default
// arguments. Register panics on a duplicate name: that is a
// programming error in the driver's own construction code, not a
// runtime condition.
func (r *Registry) Register(name string, kind AlgoKind, defaultArgs ...string) {
	if _, exists := r.entries[name]; exists {
		panic(fmt.Sprintf("registry: duplicate algorithm name %q", name))
	}
	r.entries[name] = Entry{Kind: kind, DefaultArgs: defaultArgs}
}

// Lookup returns the Entry registered under name, and whether it exists.
func (r *Registry) Lookup(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// NewDefault builds the registry populated with the five algorithms
// this repository ships, each with its fixed defaults.
func NewDefault() *Registry {
	r := New()
	r.Register("bfs", BFS, "0")
	r.Register("cc", ConnectedComponents)
	r.Register("pr", PageRank, "0.85", "10")
	r.Register("lpa", LabelPropagation, "5")
	r.Register("rw", RandomWalk, "10", "5")
	return r
}
