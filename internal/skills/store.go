package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dohr-michael/toolhost/internal/registry"
)

// Store manages the installed-skill lifecycle: installed → active → disabled
// → uninstalled. State is persisted to state.json under the skills dir.
type Store struct {
	dir    string
	exec   *Executor
	caller ToolCaller
	reg    *registry.Registry

	mu        sync.RWMutex
	installed map[string]*InstalledSkill
	active    map[string]*Bridge // activation bridges holding registered tool sets
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, exec *Executor, caller ToolCaller, reg *registry.Registry) *Store {
	return &Store{
		dir:       dir,
		exec:      exec,
		caller:    caller,
		reg:       reg,
		installed: make(map[string]*InstalledSkill),
		active:    make(map[string]*Bridge),
	}
}

// RegisterBuiltin adds a first-party skill shipped with the binary. Built-in
// skills have a zero install time and cannot be uninstalled.
func (s *Store) RegisterBuiltin(m Manifest, fn BuiltinSkill) error {
	if err := m.Validate(); err != nil {
		return err
	}
	m.Runtime = RuntimeBuiltin
	s.exec.RegisterBuiltin(m.ID, fn)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.installed[m.ID]; exists {
		return registry.NewError(registry.CodeAlreadyExists, "skill %s is already installed", m.ID)
	}
	s.installed[m.ID] = &InstalledSkill{
		Manifest: m,
		Status:   StatusInstalled,
		Source:   InstallLocal,
	}
	return nil
}

// Load restores persisted state and re-activates previously active skills.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read skill state: %w", err)
	}

	var persisted []*InstalledSkill
	if err := json.Unmarshal(data, &persisted); err != nil {
		return fmt.Errorf("parse skill state: %w", err)
	}

	for _, skill := range persisted {
		if skill.IsBuiltin() {
			// Built-ins are recomputed in code; only their status survives.
			s.mu.Lock()
			if existing, ok := s.installed[skill.Manifest.ID]; ok {
				existing.Status = skill.Status
				existing.UserConfig = skill.UserConfig
			}
			s.mu.Unlock()
			continue
		}

		m, err := LoadManifest(skill.InstallPath)
		if err != nil {
			skill.Status = StatusError
			skill.StatusError = err.Error()
			slog.Warn("installed skill unreadable", "skill", skill.Manifest.ID, "error", err)
		} else {
			skill.Manifest = *m
			skill.Doc, _ = LoadDoc(skill.InstallPath, m)
		}

		s.mu.Lock()
		s.installed[skill.Manifest.ID] = skill
		s.mu.Unlock()

		if skill.Status == StatusActive {
			skill.Status = StatusInstalled
			if err := s.Activate(skill.Manifest.ID); err != nil {
				slog.Warn("skill re-activation failed", "skill", skill.Manifest.ID, "error", err)
			}
		}
	}
	return nil
}

// Install validates and copies a skill package into the store.
func (s *Store) Install(srcDir string, source InstallSource) (*InstalledSkill, error) {
	m, err := LoadManifest(srcDir)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, exists := s.installed[m.ID]; exists {
		s.mu.Unlock()
		return nil, registry.NewError(registry.CodeAlreadyExists, "skill %s is already installed", m.ID)
	}
	s.mu.Unlock()

	dest := filepath.Join(s.dir, m.ID)
	if err := copyTree(srcDir, dest); err != nil {
		os.RemoveAll(dest)
		return nil, fmt.Errorf("install skill %s: %w", m.ID, err)
	}

	doc, err := LoadDoc(dest, m)
	if err != nil {
		slog.Warn("skill doc unreadable", "skill", m.ID, "error", err)
	}

	skill := &InstalledSkill{
		Manifest:    *m,
		InstallPath: dest,
		Status:      StatusInstalled,
		Source:      source,
		InstalledAt: time.Now(),
		Doc:         doc,
	}

	s.mu.Lock()
	s.installed[m.ID] = skill
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		return nil, err
	}
	slog.Info("skill installed", "skill", m.ID, "version", m.Version, "source", source)
	return skill, nil
}

// Activate registers the skill's provided tools and marks it active. A
// registration failure sets the skill's status to error without affecting
// other skills.
func (s *Store) Activate(id string) error {
	skill, err := s.get(id)
	if err != nil {
		return err
	}

	bridge := NewBridge(&skill.Manifest, s.caller, s.reg)
	if err := bridge.RegisterProvidedTools(); err != nil {
		s.mu.Lock()
		skill.Status = StatusError
		skill.StatusError = err.Error()
		s.mu.Unlock()
		s.persist()
		return err
	}

	s.mu.Lock()
	skill.Status = StatusActive
	skill.StatusError = ""
	s.active[id] = bridge
	s.mu.Unlock()
	return s.persist()
}

// Disable unregisters the skill's tools and marks it disabled. Files stay.
func (s *Store) Disable(id string) error {
	skill, err := s.get(id)
	if err != nil {
		return err
	}

	s.deactivate(id)
	s.mu.Lock()
	skill.Status = StatusDisabled
	s.mu.Unlock()
	return s.persist()
}

// Uninstall removes the skill's files and tools. Built-in skills cannot be
// uninstalled.
func (s *Store) Uninstall(id string) error {
	skill, err := s.get(id)
	if err != nil {
		return err
	}
	if skill.IsBuiltin() {
		return fmt.Errorf("skill %s is built-in and can only be disabled", id)
	}

	s.exec.Cancel(id)
	s.deactivate(id)

	if skill.InstallPath != "" {
		if err := os.RemoveAll(skill.InstallPath); err != nil {
			return fmt.Errorf("remove skill %s: %w", id, err)
		}
	}

	s.mu.Lock()
	delete(s.installed, id)
	s.mu.Unlock()
	return s.persist()
}

// Run executes an active skill with a fresh per-run bridge.
func (s *Store) Run(ctx context.Context, id string, sc Context, params map[string]any) (*RunResult, error) {
	skill, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if skill.Status != StatusActive {
		return nil, fmt.Errorf("skill %s is not active (status %s)", id, skill.Status)
	}

	var bridge *Bridge
	if skill.Manifest.HasPermission(PermMCPCall) {
		bridge = NewBridge(&skill.Manifest, s.caller, s.reg)
	}
	return s.exec.Run(ctx, skill, sc, params, bridge)
}

// Cancel terminates a running skill by id.
func (s *Store) Cancel(id string) bool {
	return s.exec.Cancel(id)
}

// Get returns the installed skill for id.
func (s *Store) Get(id string) (*InstalledSkill, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	skill, ok := s.installed[id]
	return skill, ok
}

// List returns all installed skills sorted by id.
func (s *Store) List() []*InstalledSkill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*InstalledSkill, 0, len(s.installed))
	for _, skill := range s.installed {
		out = append(out, skill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.ID < out[j].Manifest.ID })
	return out
}

func (s *Store) get(id string) (*InstalledSkill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	skill, ok := s.installed[id]
	if !ok {
		return nil, fmt.Errorf("skill %s is not installed", id)
	}
	return skill, nil
}

func (s *Store) deactivate(id string) {
	s.mu.Lock()
	bridge, ok := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	if ok {
		bridge.UnregisterAllTools()
	}
}

func (s *Store) statePath() string {
	return filepath.Join(s.dir, "state.json")
}

func (s *Store) persist() error {
	s.mu.RLock()
	out := make([]*InstalledSkill, 0, len(s.installed))
	for _, skill := range s.installed {
		out = append(out, skill)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.ID < out[j].Manifest.ID })

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal skill state: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create skills dir: %w", err)
	}
	tmp := s.statePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write skill state: %w", err)
	}
	if err := os.Rename(tmp, s.statePath()); err != nil {
		return fmt.Errorf("rename skill state: %w", err)
	}
	return nil
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
