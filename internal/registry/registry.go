package registry

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dohr-michael/toolhost/internal/events"
)

// Registry is the unified store for all tool registrations.
// Built-in tools are recomputed at every load; user/marketplace/import
// registrations are persisted through the FileStore and merged over the
// built-ins without ever replacing them.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Registration
	bus   *events.Bus
	store *FileStore
}

// New creates an empty registry. The store may be nil for in-memory use.
func New(bus *events.Bus, store *FileStore) *Registry {
	return &Registry{
		tools: make(map[string]*Registration),
		bus:   bus,
		store: store,
	}
}

// Load registers all built-in tools and merges persisted registrations over
// them. A persisted entry whose id collides with a built-in is skipped.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, def := range BuiltinDefinitions() {
		r.tools[def.ID] = &Registration{Tool: def, Source: SourceBuiltin, Enabled: true}
	}

	if r.store == nil {
		return nil
	}

	persisted, err := r.store.LoadAll()
	if err != nil {
		return err
	}
	for _, reg := range persisted {
		if existing, ok := r.tools[reg.Tool.ID]; ok && existing.IsBuiltin() {
			slog.Warn("persisted tool shadows a builtin, skipping", "id", reg.Tool.ID)
			continue
		}
		r.tools[reg.Tool.ID] = reg
	}

	slog.Info("tool registry loaded", "tools", len(r.tools))
	return nil
}

// Register adds a new tool. Registering over a built-in id fails with
// BUILTIN_CONFLICT; registering over an existing id without overwrite fails
// with ALREADY_EXISTS.
func (r *Registry) Register(def ToolDefinition, source Source, overwrite bool) error {
	if err := ValidateDefinition(&def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tools[def.ID]; ok {
		if existing.IsBuiltin() {
			return NewError(CodeBuiltinConflict, "tool %q is a built-in and cannot be replaced", def.ID)
		}
		if !overwrite {
			return NewError(CodeAlreadyExists, "tool %q is already registered", def.ID)
		}
	}

	now := time.Now()
	if def.Metadata.CreatedAt.IsZero() {
		def.Metadata.CreatedAt = now
	}
	def.Metadata.UpdatedAt = now
	if def.Metadata.Status == "" {
		def.Metadata.Status = "active"
	}

	reg := &Registration{Tool: def, Source: source, Enabled: true}
	r.tools[def.ID] = reg
	r.persist(reg)

	if r.bus != nil {
		r.bus.Publish(events.NewTypedEvent(events.SourceRegistry, events.ToolRegisteredPayload{
			ToolID: def.ID,
			Source: string(source),
		}))
	}
	return nil
}

// Update replaces the definition of an existing non-builtin tool.
// The id is immutable: the updated definition must carry the same id.
func (r *Registry) Update(def ToolDefinition) error {
	if err := ValidateDefinition(&def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tools[def.ID]
	if !ok {
		return NewError(CodeToolNotFound, "tool %q is not registered", def.ID)
	}
	if existing.IsBuiltin() {
		return NewError(CodeBuiltinConflict, "built-in tool %q cannot be updated", def.ID)
	}

	def.Metadata.CreatedAt = existing.Tool.Metadata.CreatedAt
	def.Metadata.UpdatedAt = time.Now()
	existing.Tool = def
	r.persist(existing)
	return nil
}

// Delete removes a non-builtin tool.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tools[id]
	if !ok {
		return NewError(CodeToolNotFound, "tool %q is not registered", id)
	}
	if existing.IsBuiltin() {
		return NewError(CodeBuiltinConflict, "built-in tool %q cannot be deleted", id)
	}

	delete(r.tools, id)
	if r.store != nil {
		if err := r.store.Delete(id); err != nil {
			slog.Warn("delete persisted tool", "id", id, "error", err)
		}
	}

	if r.bus != nil {
		r.bus.Publish(events.NewTypedEvent(events.SourceRegistry, events.ToolUnregisteredPayload{ToolID: id}))
	}
	return nil
}

// Toggle enables or disables a tool. Built-ins can be disabled but not removed.
func (r *Registry) Toggle(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tools[id]
	if !ok {
		return NewError(CodeToolNotFound, "tool %q is not registered", id)
	}
	existing.Enabled = enabled
	if !existing.IsBuiltin() {
		r.persist(existing)
	}
	return nil
}

// Get returns a copy of the registration for the given id.
func (r *Registry) Get(id string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.tools[id]
	if !ok {
		return Registration{}, false
	}
	return *reg, true
}

// List returns all registrations sorted by id.
func (r *Registry) List() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Registration, 0, len(r.tools))
	for _, reg := range r.tools {
		result = append(result, *reg)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Tool.ID < result[j].Tool.ID
	})
	return result
}

// Search returns enabled tools whose id, name, description or category
// contains the query (case-insensitive).
func (r *Registry) Search(query string) []Registration {
	q := strings.ToLower(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Registration
	for _, reg := range r.tools {
		if !reg.Enabled {
			continue
		}
		t := reg.Tool
		if strings.Contains(strings.ToLower(t.ID), q) ||
			strings.Contains(strings.ToLower(t.Name), q) ||
			strings.Contains(strings.ToLower(t.Description), q) ||
			strings.Contains(strings.ToLower(t.Category), q) {
			result = append(result, *reg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Tool.ID < result[j].Tool.ID
	})
	return result
}

// AgentTools returns enabled tools whose security policy permits the agent
// caller, sorted descending by aiHints.priority (stable by id).
func (r *Registry) AgentTools() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Registration
	for _, reg := range r.tools {
		if !reg.Enabled {
			continue
		}
		if !reg.Tool.Security.AllowsCaller(CallerAgent) {
			continue
		}
		result = append(result, *reg)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Tool.AIHints.Priority != result[j].Tool.AIHints.Priority {
			return result[i].Tool.AIHints.Priority > result[j].Tool.AIHints.Priority
		}
		return result[i].Tool.ID < result[j].Tool.ID
	})
	return result
}

// UpdateStats incrementally recomputes a tool's running average execution
// time and success rate after an execution.
func (r *Registry) UpdateStats(id string, duration time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.tools[id]
	if !ok {
		return
	}

	m := &reg.Tool.Metadata
	n := float64(m.UsageCount)
	durMS := float64(duration.Milliseconds())

	m.AverageExecutionTime = (m.AverageExecutionTime*n + durMS) / (n + 1)
	succ := 0.0
	if success {
		succ = 1.0
	}
	m.SuccessRate = (m.SuccessRate*n + succ) / (n + 1)
	m.UsageCount++
	m.UpdatedAt = time.Now()

	if !reg.IsBuiltin() {
		r.persist(reg)
	}
}

// persist writes a non-builtin registration through the store. Callers hold
// the write lock.
func (r *Registry) persist(reg *Registration) {
	if r.store == nil || reg.IsBuiltin() {
		return
	}
	if err := r.store.Save(reg); err != nil {
		slog.Warn("persist tool registration", "id", reg.Tool.ID, "error", err)
	}
}
