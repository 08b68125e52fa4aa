// Package skills holds the registry of invocable skills. The gateway's
// skill.list/skill.invoke methods are thin pass-throughs over it.
package skills

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownSkill is returned when invoking an unregistered skill id.
var ErrUnknownSkill = errors.New("unknown skill")

// Handler executes one skill invocation.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Skill is a registered, invocable capability.
type Skill struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	handler     Handler
}

// Registry maps skill ids to handlers. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Skill
}

func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]Skill)}
}

// Register adds or replaces a skill.
func (r *Registry) Register(id, description string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[id] = Skill{ID: id, Description: description, handler: handler}
}

// List returns registered skills sorted by id.
func (r *Registry) List() []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Skill, 0, len(r.skills))
	for _, s := range r.skills {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Invoke runs a skill. Handler errors and panics are wrapped, never
// propagated raw across the boundary.
func (r *Registry) Invoke(ctx context.Context, id string, params json.RawMessage) (result interface{}, err error) {
	r.mu.RLock()
	skill, ok := r.skills[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSkill, id)
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("skill %s panicked: %v", id, rec)
		}
	}()

	result, err = skill.handler(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("skill %s: %w", id, err)
	}
	return result, nil
}
