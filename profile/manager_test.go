package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "profiles.json"))
	require.NoError(t, err)
	return m
}

func TestManagerSeedsDefaultProfile(t *testing.T) {
	m := newTestManager(t)

	p, err := m.Get("default")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), p.Rules)

	// lookup is case-insensitive
	_, err = m.Get("DEFAULT")
	assert.NoError(t, err)
}

func TestManagerResolveUnknown(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Resolve("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerResolveReturnsCopy(t *testing.T) {
	m := newTestManager(t)

	rules, err := m.Resolve("default")
	require.NoError(t, err)
	rules[PersonName] = ActionDelete

	again, err := m.Resolve("default")
	require.NoError(t, err)
	assert.Equal(t, ActionKeepPart, again[PersonName])
}

func TestManagerCreateUpdateDelete(t *testing.T) {
	m := newTestManager(t)

	p, err := m.Create("strict", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), p.Rules)

	_, err = m.Create("strict", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = m.Update("strict", map[Category]Action{PersonName: ActionDelete, Email: ActionDelete})
	require.NoError(t, err)

	rules, err := m.Resolve("strict")
	require.NoError(t, err)
	assert.Equal(t, ActionDelete, rules[PersonName])
	assert.Equal(t, ActionDelete, rules[Email])

	require.NoError(t, m.Delete("strict"))
	_, err = m.Get("strict")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerUpdateRejectsIllegalAction(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Update("default", map[Category]Action{Email: ActionInvent})
	require.ErrorIs(t, err, ErrValidation)

	// nothing applied
	rules, err := m.Resolve("default")
	require.NoError(t, err)
	assert.Equal(t, ActionKeepPart, rules[Email])
}

func TestManagerDefaultProfileProtected(t *testing.T) {
	m := newTestManager(t)
	assert.ErrorIs(t, m.Delete("default"), ErrValidation)
	assert.ErrorIs(t, m.Delete("Default"), ErrValidation)
}

func TestManagerPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	m, err := NewManager(path)
	require.NoError(t, err)

	_, err = m.Create("audit", "default")
	require.NoError(t, err)
	_, err = m.Update("audit", map[Category]Action{Phone: ActionInvent})
	require.NoError(t, err)

	reloaded, err := NewManager(path)
	require.NoError(t, err)

	rules, err := reloaded.Resolve("audit")
	require.NoError(t, err)
	assert.Equal(t, ActionInvent, rules[Phone])
}

func TestManagerRejectsCorruptStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"profiles":[{"name":"bad","rules":{"email":"invent"}}]}`), 0o644))

	_, err := NewManager(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}
