// Package prompts implements the Prompt Template Service (C4): resolving a
// template by (owner, collection, type), formatting it with variables, and
// realizing a ContextStrategy over retrieved chunks.
package prompts

import (
	"fmt"
	"sync"
	"sync/atomic"

	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
)

// Registry holds every known PromptTemplate behind a copy-on-write
// snapshot so readers never block a writer setting a new default -- the
// same discipline the teacher's connection pool and vector store use for
// hot, read-mostly state.
type Registry struct {
	snapshot atomic.Pointer[map[string]types.PromptTemplate]
	mu       sync.Mutex // guards writers only; readers never take this
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := make(map[string]types.PromptTemplate)
	r.snapshot.Store(&empty)
	return r
}

// Put inserts or replaces a template by ID. If the incoming template has
// IsDefault=true, any other template sharing its (owner, collection, type)
// scope has its IsDefault cleared atomically as part of the same swap --
// the default-uniqueness invariant is enforced here, not by the caller.
func (r *Registry) Put(tmpl types.PromptTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.snapshot.Load()
	next := make(map[string]types.PromptTemplate, len(current)+1)
	for id, t := range current {
		if tmpl.IsDefault && id != tmpl.ID && sameScope(t, tmpl) {
			t.IsDefault = false
		}
		next[id] = t
	}
	next[tmpl.ID] = tmpl

	r.snapshot.Store(&next)
}

// Delete removes a template by ID.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.snapshot.Load()
	next := make(map[string]types.PromptTemplate, len(current))
	for k, v := range current {
		if k != id {
			next[k] = v
		}
	}
	r.snapshot.Store(&next)
}

// Get returns a template by ID.
func (r *Registry) Get(id string) (types.PromptTemplate, bool) {
	m := *r.snapshot.Load()
	tmpl, ok := m[id]
	return tmpl, ok
}

// resolve implements the C4 lookup order: (user, collection, type,
// default) -> (user, nil, type, default) -> system default for type. The
// system default is modeled as a template owned by ownerID "" with no
// collection.
func (r *Registry) resolve(ownerID string, collectionID *string, templateType types.TemplateType) (types.PromptTemplate, error) {
	m := *r.snapshot.Load()

	if collectionID != nil {
		if tmpl, ok := findDefault(m, ownerID, *collectionID, templateType); ok {
			return tmpl, nil
		}
	}
	if tmpl, ok := findDefault(m, ownerID, "", templateType); ok {
		return tmpl, nil
	}
	if tmpl, ok := findDefault(m, "", "", templateType); ok {
		return tmpl, nil
	}

	return types.PromptTemplate{}, rcerrors.New(rcerrors.KindNotFound, rcerrors.CodeTemplateNotFound,
		fmt.Sprintf("no default template for type %q", templateType))
}

func findDefault(m map[string]types.PromptTemplate, ownerID, collectionID string, templateType types.TemplateType) (types.PromptTemplate, bool) {
	for _, tmpl := range m {
		if !tmpl.IsDefault || tmpl.TemplateType != templateType || tmpl.OwnerID != ownerID {
			continue
		}
		tmplCollection := ""
		if tmpl.CollectionID != nil {
			tmplCollection = *tmpl.CollectionID
		}
		if tmplCollection == collectionID {
			return tmpl, true
		}
	}
	return types.PromptTemplate{}, false
}

func sameScope(a, b types.PromptTemplate) bool {
	if a.TemplateType != b.TemplateType || a.OwnerID != b.OwnerID {
		return false
	}
	aCollection, bCollection := "", ""
	if a.CollectionID != nil {
		aCollection = *a.CollectionID
	}
	if b.CollectionID != nil {
		bCollection = *b.CollectionID
	}
	return aCollection == bCollection
}
