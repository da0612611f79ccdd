package vnet

import (
	"context"
	"strings"

	"github.com/mwort/grass-addons/gis"
)

// TmpMaps creates, tracks and destroys the temporary vector maps produced
// during analysis.
type TmpMaps struct {
	env    gis.Env
	runner *gis.Runner
	maps   []*VectMap
}

// NewTmpMaps creates an empty registry.
func NewTmpMaps(env gis.Env, runner *gis.Runner) *TmpMaps {
	return &TmpMaps{env: env, runner: runner}
}

// Add registers a temporary map under the session mapset and returns it.
func (t *TmpMaps) Add(name string) *VectMap {
	m := NewVectMap(t.env, name)
	t.maps = append(t.maps, m)
	return m
}

// Has reports whether a map of the given name is registered.
func (t *TmpMaps) Has(name string) bool {
	return t.Get(name) != nil
}

// Get returns the registered map with the given name, or nil.
func (t *TmpMaps) Get(name string) *VectMap {
	fullName := t.env.FullMapName(strings.TrimSpace(name))
	for _, m := range t.maps {
		if m.Name() == fullName {
			return m
		}
	}
	return nil
}

// Remove drops a map from the registry without touching the mapset.
func (t *TmpMaps) Remove(m *VectMap) bool {
	for i, reg := range t.maps {
		if reg == m {
			t.maps = append(t.maps[:i], t.maps[i+1:]...)
			return true
		}
	}
	return false
}

// Delete removes the map from the mapset via g.remove and drops it from
// the registry.
func (t *TmpMaps) Delete(ctx context.Context, m *VectMap) error {
	if m == nil {
		return nil
	}
	_, err := t.runner.Run(ctx, gis.NewCommand("g.remove").Arg("vect", m.Name()))
	t.Remove(m)
	return err
}

// DeleteAll removes every registered map from the mapset.
func (t *TmpMaps) DeleteAll(ctx context.Context) error {
	var firstErr error
	for _, m := range t.maps {
		if _, err := t.runner.Run(ctx, gis.NewCommand("g.remove").Arg("vect", m.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.maps = nil
	return firstErr
}
