package probes

import (
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
)

// Module is one protocol engine exposed over HTTP.
type Module interface {
	Name() string
	Operations() []string
	RegisterRoutes(r gin.IRoutes)
}

// Registry stores modules by name.
type Registry struct {
	repo map[string]Module
	mu   sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{repo: make(map[string]Module)}
}

// Register adds a module, replacing any module with the same name.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repo[m.Name()] = m
}

// All returns a snapshot of all registered modules.
func (r *Registry) All() map[string]Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Module, len(r.repo))
	for name, m := range r.repo {
		out[name] = m
	}
	return out
}

func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.repo[name]
	return m, ok
}

type ModuleInfo struct {
	Name       string   `json:"name"`
	Operations []string `json:"operations"`
}

// List describes every module, sorted by name.
func (r *Registry) List() []ModuleInfo {
	entries := r.All()
	list := make([]ModuleInfo, 0, len(entries))
	for name, m := range entries {
		if m == nil {
			continue
		}
		ops := append([]string(nil), m.Operations()...)
		sort.Strings(ops)
		list = append(list, ModuleInfo{Name: name, Operations: ops})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}
