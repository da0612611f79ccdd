package gis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Env describes the GRASS session the tool operates in.
type Env struct {
	GISDBase string
	Location string
	Mapset   string
}

// CurrentEnv reads the GRASS session environment from the process
// environment (GISDBASE, LOCATION_NAME, MAPSET).
func CurrentEnv() (Env, error) {
	e := Env{
		GISDBase: os.Getenv("GISDBASE"),
		Location: os.Getenv("LOCATION_NAME"),
		Mapset:   os.Getenv("MAPSET"),
	}
	if e.GISDBase == "" || e.Location == "" || e.Mapset == "" {
		return Env{}, fmt.Errorf("GRASS session environment not set (GISDBASE, LOCATION_NAME, MAPSET)")
	}
	return e, nil
}

// VectorDir returns the filesystem directory of a vector map in the
// session mapset.
func (e Env) VectorDir(name string) string {
	name, _, _ = strings.Cut(name, "@")
	return filepath.Join(e.GISDBase, e.Location, e.Mapset, "vector", name)
}

// FullMapName qualifies a map name with the session mapset unless it
// already carries one.
func (e Env) FullMapName(name string) string {
	if strings.Contains(name, "@") {
		return name
	}
	return name + "@" + e.Mapset
}
