// Package registry keeps an explicit catalog of loadable test
// modules keyed by their module ref, together with the dependency
// edges between them. The actual (re)loading is delegated to the host
// environment through the Loader interface; the registry owns
// identity, the graph and reload ordering only.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/watchcat-dev/watchcat/packages/modref"
)

// Loader is the host environment's module (re)load capability.
type Loader interface {
	Load(ref modref.Ref, force bool) error
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ref modref.Ref, force bool) error

// Load calls the underlying function.
func (f LoaderFunc) Load(ref modref.Ref, force bool) error {
	return f(ref, force)
}

// LoadError reports that a module failed to load or reload.
type LoadError struct {
	Ref modref.Ref
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading module %s: %v", e.Ref, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadOptions controls a Load call.
type LoadOptions struct {
	// ForceReload bypasses any cached compilation in the host.
	ForceReload bool
	// Transitive also reloads everything that depends on the module,
	// so edits propagate without a process restart.
	Transitive bool
}

type module struct {
	path string
	deps []modref.Ref
}

// Registry maps module refs to their source paths and dependencies.
type Registry struct {
	mu      sync.Mutex
	loader  Loader
	modules map[modref.Ref]*module
}

// New creates an empty registry that loads through the given loader.
func New(loader Loader) *Registry {
	return &Registry{
		loader:  loader,
		modules: make(map[modref.Ref]*module),
	}
}

// Register records a module, its source path and the modules it
// depends on. Re-registering a ref replaces its previous entry.
func (r *Registry) Register(ref modref.Ref, path string, deps ...modref.Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[ref] = &module{path: path, deps: deps}
}

// Path returns the registered source path for a ref.
func (r *Registry) Path(ref modref.Ref) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[ref]
	if !ok {
		return "", false
	}
	return m.path, true
}

// Refs returns all registered refs in sorted order.
func (r *Registry) Refs() []modref.Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	refs := make([]modref.Ref, 0, len(r.modules))
	for ref := range r.modules {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}

// Load (re)loads a module. With Transitive set, every module that
// depends on it, directly or through other modules, is reloaded
// afterwards so no dependent keeps a stale definition. The first
// failure aborts the walk and is returned as a *LoadError.
func (r *Registry) Load(ref modref.Ref, opts LoadOptions) error {
	order := []modref.Ref{ref}
	if opts.Transitive {
		order = append(order, r.dependents(ref)...)
	}

	for _, m := range order {
		if err := r.loader.Load(m, opts.ForceReload); err != nil {
			return &LoadError{Ref: m, Err: err}
		}
	}
	return nil
}

// dependents returns the reverse-dependency closure of ref in
// breadth-first order: direct dependents first, then theirs, each ref
// at most once.
func (r *Registry) dependents(ref modref.Ref) []modref.Ref {
	r.mu.Lock()
	reverse := make(map[modref.Ref][]modref.Ref)
	for name, m := range r.modules {
		for _, dep := range m.deps {
			reverse[dep] = append(reverse[dep], name)
		}
	}
	r.mu.Unlock()

	for _, edges := range reverse {
		sort.Slice(edges, func(i, j int) bool { return edges[i] < edges[j] })
	}

	var order []modref.Ref
	seen := map[modref.Ref]bool{ref: true}
	queue := []modref.Ref{ref}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range reverse[current] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			order = append(order, dep)
			queue = append(queue, dep)
		}
	}
	return order
}
