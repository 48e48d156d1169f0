package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultProfileName is seeded on first start and cannot be deleted.
const DefaultProfileName = "default"

// Manager holds named profiles with JSON file persistence. Lookups are
// case-insensitive on the profile name. All methods are safe for concurrent
// use.
type Manager struct {
	path string

	mu       sync.RWMutex
	profiles map[string]*Profile // keyed by lowercase name
}

type storeFile struct {
	Profiles []*Profile `json:"profiles"`
}

// NewManager loads profiles from path, creating the file with the default
// profile if it does not exist yet. An invalid stored profile is a
// configuration error and fails the load.
func NewManager(path string) (*Manager, error) {
	m := &Manager{
		path:     path,
		profiles: make(map[string]*Profile),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		def, nerr := New(DefaultProfileName, DefaultRules())
		if nerr != nil {
			return nerr
		}
		m.profiles[DefaultProfileName] = def
		slog.Info("profile store initialized with default profile", "path", m.path)
		return m.persist()
	}
	if err != nil {
		return fmt.Errorf("failed to read profile store: %w", err)
	}

	var sf storeFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("failed to parse profile store %s: %w", m.path, err)
	}
	for _, p := range sf.Profiles {
		if err := ValidateName(p.Name); err != nil {
			return fmt.Errorf("stored profile %q: %w", p.Name, err)
		}
		if err := p.Rules.Validate(); err != nil {
			return fmt.Errorf("stored profile %q: %w", p.Name, err)
		}
		m.profiles[strings.ToLower(p.Name)] = p
	}
	if _, ok := m.profiles[DefaultProfileName]; !ok {
		def, err := New(DefaultProfileName, DefaultRules())
		if err != nil {
			return err
		}
		m.profiles[DefaultProfileName] = def
	}
	return nil
}

// persist writes the store file. Caller must hold m.mu for writing, or be
// the constructor before the manager escapes.
func (m *Manager) persist() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create profile store directory: %w", err)
	}
	sf := storeFile{Profiles: m.sorted()}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile store: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write profile store: %w", err)
	}
	return nil
}

func (m *Manager) sorted() []*Profile {
	out := make([]*Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve returns a copy of the named profile's rules. The copy is the
// engine's snapshot: later profile updates do not affect a run that already
// resolved.
func (m *Manager) Resolve(name string) (Rules, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return p.Rules.Clone(), nil
}

// Get returns the named profile.
func (m *Manager) Get(name string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// List returns all profiles sorted by name.
func (m *Manager) List() []*Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted()
}

// Create adds a new profile copying its rules from the source profile,
// or from the default profile when from is empty.
func (m *Manager) Create(name, from string) (*Profile, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if from == "" {
		from = DefaultProfileName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.profiles[strings.ToLower(name)]; exists {
		return nil, fmt.Errorf("%w: profile %q already exists", ErrValidation, name)
	}
	src, ok := m.profiles[strings.ToLower(from)]
	if !ok {
		return nil, fmt.Errorf("%w: source profile %s", ErrNotFound, from)
	}

	p, err := New(name, src.Rules)
	if err != nil {
		return nil, err
	}
	m.profiles[strings.ToLower(name)] = p
	if err := m.persist(); err != nil {
		delete(m.profiles, strings.ToLower(name))
		return nil, err
	}
	slog.Info("profile created", "name", name, "from", from)
	return p, nil
}

// Update changes one or more category actions on the named profile. Every
// change is validated against the legal action matrix before any is applied.
func (m *Manager) Update(name string, changes map[Category]Action) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	next := p.Rules.Clone()
	for c, a := range changes {
		if _, known := validActions[c]; !known {
			return nil, fmt.Errorf("%w: unknown PII category %q", ErrValidation, c)
		}
		if !ActionAllowed(c, a) {
			return nil, fmt.Errorf("%w: action %q is not valid for %s (valid: %v)",
				ErrValidation, a, c, validActions[c])
		}
		next[c] = a
	}

	prev := p.Rules
	p.Rules = next
	p.ModifiedAt = time.Now().UTC()
	if err := m.persist(); err != nil {
		p.Rules = prev
		return nil, err
	}
	slog.Info("profile updated", "name", name, "changes", len(changes))
	return p, nil
}

// Delete removes a profile. The default profile is protected.
func (m *Manager) Delete(name string) error {
	if strings.EqualFold(name, DefaultProfileName) {
		return fmt.Errorf("%w: cannot delete the default profile", ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(name)
	p, ok := m.profiles[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(m.profiles, key)
	if err := m.persist(); err != nil {
		m.profiles[key] = p
		return err
	}
	slog.Info("profile deleted", "name", name)
	return nil
}
