package vnet

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwort/grass-addons/gis"
)

// MapState reports whether a map changed since its state was saved.
type MapState int

const (
	StateUnknown   MapState = -1 // state never saved
	StateChanged   MapState = 0
	StateUnchanged MapState = 1
)

// VectMap is one vector map tracked by the tool, usually a temporary
// analysis result. It remembers the map's modification time so changes
// made outside the tool can be detected.
type VectMap struct {
	fullName  string
	env       gis.Env
	modifTime string
}

// NewVectMap tracks the map with the given mapset-qualified name.
func NewVectMap(env gis.Env, fullName string) *VectMap {
	return &VectMap{fullName: env.FullMapName(fullName), env: env}
}

// Name returns the mapset-qualified map name.
func (m *VectMap) Name() string { return m.fullName }

// SaveState remembers the map's current modification time.
func (m *VectMap) SaveState() {
	m.modifTime = m.lastModified()
}

// State compares the saved modification time against the current one.
func (m *VectMap) State() MapState {
	if m.modifTime == "" {
		return StateUnknown
	}
	if m.modifTime != m.lastModified() {
		return StateChanged
	}
	return StateUnchanged
}

// LastModified reads the map's modification time from its head file.
func (m *VectMap) LastModified() string { return m.lastModified() }

// lastModified scans the vector head file for the MAP DATE line. A map
// that does not exist yet reads as the empty string.
func (m *VectMap) lastModified() string {
	headPath := filepath.Join(m.env.VectorDir(m.fullName), "head")
	f, err := os.Open(headPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MAP DATE:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "MAP DATE:"))
		}
	}
	return ""
}
