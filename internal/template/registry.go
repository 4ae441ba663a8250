package template

import (
	"errors"
	"fmt"
	"sync"

	"notification-engine/internal/models"
)

// ErrTemplateNotFound is returned when no active template exists for a
// (kind, channel) pair. The dispatcher treats it as a soft skip.
var ErrTemplateNotFound = errors.New("template not found")

type key struct {
	kind    models.EventKind
	channel models.Channel
}

// Registry resolves message templates by (event kind, channel).
type Registry struct {
	mu        sync.RWMutex
	templates map[key]models.Template
}

func NewRegistry(templates ...models.Template) *Registry {
	r := &Registry{templates: make(map[key]models.Template)}
	for _, t := range templates {
		r.Register(t)
	}
	return r
}

// Register adds or replaces the template for its (kind, channel) pair.
func (r *Registry) Register(t models.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[key{t.EventKind, t.Channel}] = t
}

// Lookup returns the active template for (kind, channel). Inactive templates
// are invisible to callers.
func (r *Registry) Lookup(kind models.EventKind, channel models.Channel) (models.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[key{kind, channel}]
	if !ok || !t.Active {
		return models.Template{}, fmt.Errorf("%w: kind=%s channel=%s", ErrTemplateNotFound, kind, channel)
	}
	return t, nil
}
