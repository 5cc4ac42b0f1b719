// Package llmparams implements the LLM Parameters Service (C5): resolving a
// LLMParameters record by (owner, default), and validating the numeric
// ranges a provider call is allowed to use.
package llmparams

import (
	"fmt"
	"sync"
	"sync/atomic"

	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
)

// Registry holds every known LLMParameters behind a copy-on-write snapshot,
// the same discipline prompts.Registry uses for PromptTemplate.
type Registry struct {
	snapshot atomic.Pointer[map[string]types.LLMParameters]
	mu       sync.Mutex // guards writers only; readers never take this
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := make(map[string]types.LLMParameters)
	r.snapshot.Store(&empty)
	return r
}

// Put inserts or replaces a parameter set by ID. If the incoming set has
// IsDefault=true, any other set owned by the same OwnerID has its
// IsDefault cleared atomically as part of the same swap.
func (r *Registry) Put(params types.LLMParameters) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.snapshot.Load()
	next := make(map[string]types.LLMParameters, len(current)+1)
	for id, p := range current {
		if params.IsDefault && id != params.ID && p.OwnerID == params.OwnerID {
			p.IsDefault = false
		}
		next[id] = p
	}
	next[params.ID] = params

	r.snapshot.Store(&next)
}

// Delete removes a parameter set by ID.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.snapshot.Load()
	next := make(map[string]types.LLMParameters, len(current))
	for k, v := range current {
		if k != id {
			next[k] = v
		}
	}
	r.snapshot.Store(&next)
}

// Get returns a parameter set by ID.
func (r *Registry) Get(id string) (types.LLMParameters, bool) {
	m := *r.snapshot.Load()
	params, ok := m[id]
	return params, ok
}

// resolve implements the C5 lookup order: (owner, default) -> system
// default. The system default is modeled as a parameter set owned by "".
func (r *Registry) resolve(ownerID string) (types.LLMParameters, error) {
	m := *r.snapshot.Load()

	if params, ok := findDefault(m, ownerID); ok {
		return params, nil
	}
	if params, ok := findDefault(m, ""); ok {
		return params, nil
	}

	return types.LLMParameters{}, rcerrors.New(rcerrors.KindNotFound, rcerrors.CodeParametersNotFound,
		fmt.Sprintf("no default LLM parameters for owner %q", ownerID))
}

func findDefault(m map[string]types.LLMParameters, ownerID string) (types.LLMParameters, bool) {
	for _, params := range m {
		if params.IsDefault && params.OwnerID == ownerID {
			return params, true
		}
	}
	return types.LLMParameters{}, false
}
