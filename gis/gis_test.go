package gis

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTempFilesCreateAndRemove(t *testing.T) {
	files, err := NewTempFiles(t.TempDir())
	if err != nil {
		t.Fatalf("NewTempFiles failed: %v", err)
	}

	a, err := files.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b, err := files.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a == b {
		t.Errorf("expected unique paths, got %q twice", a)
	}
	if _, err := os.Stat(a); err != nil {
		t.Errorf("created file missing: %v", err)
	}

	if err := files.Remove(a); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := files.Remove(a); err != nil {
		t.Errorf("removing a missing file should not fail: %v", err)
	}
}

func TestTempFilesWrite(t *testing.T) {
	files, err := NewTempFiles(t.TempDir())
	if err != nil {
		t.Fatalf("NewTempFiles failed: %v", err)
	}

	path, err := files.Write("1 5.5 6.5 7.5 8.5")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(raw) != "1 5.5 6.5 7.5 8.5" {
		t.Errorf("unexpected content %q", raw)
	}
}

func TestCurrentEnv(t *testing.T) {
	t.Setenv("GISDBASE", "/data/grassdata")
	t.Setenv("LOCATION_NAME", "nc_spm")
	t.Setenv("MAPSET", "user1")

	e, err := CurrentEnv()
	if err != nil {
		t.Fatalf("CurrentEnv failed: %v", err)
	}
	if e.Mapset != "user1" {
		t.Errorf("expected mapset user1, got %q", e.Mapset)
	}

	want := filepath.Join("/data/grassdata", "nc_spm", "user1", "vector", "roads")
	if got := e.VectorDir("roads@user1"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestCurrentEnvMissing(t *testing.T) {
	t.Setenv("GISDBASE", "")
	t.Setenv("LOCATION_NAME", "")
	t.Setenv("MAPSET", "")

	if _, err := CurrentEnv(); err == nil {
		t.Error("expected error for unset session environment")
	}
}

func TestFullMapName(t *testing.T) {
	e := Env{Mapset: "user1"}
	if got := e.FullMapName("roads"); got != "roads@user1" {
		t.Errorf("expected roads@user1, got %q", got)
	}
	if got := e.FullMapName("roads@other"); got != "roads@other" {
		t.Errorf("expected roads@other untouched, got %q", got)
	}
}
