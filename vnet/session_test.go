package vnet

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwort/grass-addons/config"
	"github.com/mwort/grass-addons/gis"
	"github.com/mwort/grass-addons/storage"
)

// fakeExec captures spawned commands and serves canned output per module.
// Modules listed in fail report that error instead of running.
type fakeExec struct {
	calls []string
	out   map[string]string
	fail  map[string]error
}

func (f *fakeExec) run(_ context.Context, name string, args []string) ([]byte, error) {
	f.calls = append(f.calls, strings.Join(append([]string{name}, args...), " "))
	if err := f.fail[name]; err != nil {
		return nil, err
	}
	return []byte(f.out[name]), nil
}

func (f *fakeExec) find(module string) string {
	for _, call := range f.calls {
		if strings.HasPrefix(call, module+" ") {
			return call
		}
	}
	return ""
}

func (f *fakeExec) count(module string) int {
	n := 0
	for _, call := range f.calls {
		if strings.HasPrefix(call, module+" ") {
			n++
		}
	}
	return n
}

func newTestSession(t *testing.T) (*Session, *fakeExec, gis.Env) {
	t.Helper()

	env := gis.Env{GISDBase: t.TempDir(), Location: "nc", Mapset: "user1"}
	fe := &fakeExec{out: map[string]string{
		"v.category": "1 all 1379 1 1379\n",
	}}
	runner := gis.NewRunner(0).WithExec(fe.run)

	files, err := gis.NewTempFiles(filepath.Join(env.GISDBase, "tmp"))
	if err != nil {
		t.Fatalf("NewTempFiles() error: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config.New() error: %v", err)
	}

	s, err := NewSession(cfg, env, runner, files, nil)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, fe, env
}

func addPathPoints(s *Session) {
	s.AddPoint(Point{E: 10, N: 20, Cat: "Start point", Topology: "new point", Checked: true})
	s.AddPoint(Point{E: 30, N: 40, Cat: "End point", Topology: "new point", Checked: true})
}

func TestAnalyzeRequiresInput(t *testing.T) {
	s, _, _ := newTestSession(t)
	addPathPoints(s)

	if _, err := s.Analyze(context.Background()); err == nil {
		t.Fatal("Analyze() without an input map succeeded, want error")
	}
}

func TestAnalyzeRequiresPoints(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.SetInput("input", "roads")
	s.AddPoint(Point{E: 10, N: 20, Cat: "Start point", Checked: true})

	_, err := s.Analyze(context.Background())
	if err == nil || !strings.Contains(err.Error(), "End point") {
		t.Fatalf("Analyze() error = %v, want missing end point", err)
	}
}

func TestAnalyzePath(t *testing.T) {
	s, fe, _ := newTestSession(t)
	s.SetInput("input", "roads")
	addPathPoints(s)

	result, err := s.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if result != "vnet_tmp_result0@user1" {
		t.Errorf("result map = %q, want %q", result, "vnet_tmp_result0@user1")
	}

	call := fe.find("v.net.path")
	if call == "" {
		t.Fatalf("v.net.path was not executed: %v", fe.calls)
	}
	for _, want := range []string{
		"input=roads",
		"output=vnet_tmp_result0@user1",
		"alayer=1",
		"nlayer=2",
		"dmax=1000",
		"file=",
		"--overwrite",
	} {
		if !strings.Contains(call, want) {
			t.Errorf("v.net.path call %q missing %q", call, want)
		}
	}
	// The point layer pipeline belongs to the other analyses only.
	if fe.count("v.edit") != 0 || fe.count("v.net") != 0 {
		t.Errorf("v.net.path ran the point layer pipeline: %v", fe.calls)
	}
}

func TestAnalyzeGenericPipeline(t *testing.T) {
	s, fe, _ := newTestSession(t)
	if err := s.SetModule("v.net.iso"); err != nil {
		t.Fatalf("SetModule() error: %v", err)
	}
	s.SetInput("input", "roads")
	s.AddPoint(Point{E: 10, N: 20, Checked: true})

	if _, err := s.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	// The two trailing g.remove calls clean up the point layer maps.
	wantOrder := []string{"v.category", "v.edit", "v.net", "v.net.iso", "g.remove", "g.remove"}
	if len(fe.calls) != len(wantOrder) {
		t.Fatalf("got %d commands %v, want %d", len(fe.calls), fe.calls, len(wantOrder))
	}
	for i, module := range wantOrder {
		if !strings.HasPrefix(fe.calls[i], module+" ") {
			t.Errorf("command %d = %q, want module %q", i, fe.calls[i], module)
		}
	}

	edit := fe.find("v.edit")
	for _, want := range []string{"map=vnet_tmp_in_pts@user1", "tool=create", "-n"} {
		if !strings.Contains(edit, want) {
			t.Errorf("v.edit call %q missing %q", edit, want)
		}
	}

	connect := fe.find("v.net")
	for _, want := range []string{
		"points=vnet_tmp_in_pts@user1",
		"input=roads",
		"output=vnet_tmp_in_pts_connected@user1",
		"operation=connect",
		"thresh=1000",
	} {
		if !strings.Contains(connect, want) {
			t.Errorf("v.net call %q missing %q", connect, want)
		}
	}

	iso := fe.find("v.net.iso")
	for _, want := range []string{
		"input=vnet_tmp_in_pts_connected@user1",
		"output=vnet_tmp_result0@user1",
		"costs=1000,2000,3000",
		"ccats=1380", // one point, first category past the map's maximum
	} {
		if !strings.Contains(iso, want) {
			t.Errorf("v.net.iso call %q missing %q", iso, want)
		}
	}
}

func TestAnalyzeFlowAddsCutMap(t *testing.T) {
	s, fe, _ := newTestSession(t)
	if err := s.SetModule("v.net.flow"); err != nil {
		t.Fatalf("SetModule() error: %v", err)
	}
	s.SetInput("input", "roads")
	s.AddPoint(Point{E: 1, N: 1, Cat: "Source point", Checked: true})
	s.AddPoint(Point{E: 2, N: 2, Cat: "Sink point", Checked: true})

	if _, err := s.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	flow := fe.find("v.net.flow")
	for _, want := range []string{
		"cut=vnet_tmp_flow_cut1@user1",
		"source_cats=1380",
		"sink_cats=1381",
	} {
		if !strings.Contains(flow, want) {
			t.Errorf("v.net.flow call %q missing %q", flow, want)
		}
	}
}

func TestUndoRedoCycle(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()

	s.SetInput("input", "roads")
	addPathPoints(s)
	if _, err := s.Analyze(ctx); err != nil {
		t.Fatalf("first Analyze() error: %v", err)
	}

	s.ClearPoints()
	if err := s.SetModule("v.net.salesman"); err != nil {
		t.Fatalf("SetModule() error: %v", err)
	}
	s.SetInput("input", "streets")
	s.AddPoint(Point{E: 5, N: 6, Checked: true})
	if _, err := s.Analyze(ctx); err != nil {
		t.Fatalf("second Analyze() error: %v", err)
	}

	if !s.CanUndo() {
		t.Fatal("CanUndo() = false after two analyses")
	}

	_, ok, err := s.Undo()
	if err != nil {
		t.Fatalf("Undo() error: %v", err)
	}
	if !ok {
		t.Fatal("Undo() found no older step")
	}
	if s.Module() != "v.net.path" {
		t.Errorf("module after undo = %q, want %q", s.Module(), "v.net.path")
	}
	if s.Input("input") != "roads" {
		t.Errorf("input after undo = %q, want %q", s.Input("input"), "roads")
	}
	pts := s.Points()
	if len(pts) != 2 {
		t.Fatalf("got %d points after undo, want 2", len(pts))
	}
	if pts[0].E != 10 || pts[0].N != 20 || pts[0].Cat != "Start point" || !pts[0].Checked {
		t.Errorf("first point after undo = %+v", pts[0])
	}
	if got := s.Result(); got == nil || got.Name() != "vnet_tmp_result0@user1" {
		t.Errorf("result after undo = %v, want vnet_tmp_result0@user1", got)
	}

	if !s.CanRedo() {
		t.Fatal("CanRedo() = false after undo")
	}
	_, ok, err = s.Redo()
	if err != nil {
		t.Fatalf("Redo() error: %v", err)
	}
	if !ok {
		t.Fatal("Redo() found no newer step")
	}
	if s.Module() != "v.net.salesman" {
		t.Errorf("module after redo = %q, want %q", s.Module(), "v.net.salesman")
	}
	if s.Input("input") != "streets" {
		t.Errorf("input after redo = %q, want %q", s.Input("input"), "streets")
	}
	if len(s.Points()) != 1 {
		t.Errorf("got %d points after redo, want 1", len(s.Points()))
	}
}

func TestFailedAnalysisKeepsHistoryClean(t *testing.T) {
	s, fe, _ := newTestSession(t)
	ctx := context.Background()

	// A three-point run that fails must leave nothing behind.
	s.SetInput("input", "roads")
	addPathPoints(s)
	s.AddPoint(Point{E: 50, N: 60, Cat: "Start point", Topology: "new point", Checked: true})
	fe.fail = map[string]error{"v.net.path": errors.New("exit status 1")}

	if _, err := s.Analyze(ctx); err == nil {
		t.Fatal("Analyze() succeeded although the module failed")
	}
	if s.Result() != nil {
		t.Errorf("failed analysis set result map %q", s.Result().Name())
	}
	if s.tmp.Has("vnet_tmp_result0") {
		t.Error("failed analysis left its result map registered")
	}

	fe.fail = nil
	s.ClearPoints()
	addPathPoints(s)
	first, err := s.Analyze(ctx)
	if err != nil {
		t.Fatalf("Analyze() after failure error: %v", err)
	}
	if _, err := s.Analyze(ctx); err != nil {
		t.Fatalf("second Analyze() error: %v", err)
	}

	// The failed run's points must not bleed into the committed steps.
	_, ok, err := s.Undo()
	if err != nil || !ok {
		t.Fatalf("Undo() = %v, %v; want a step", ok, err)
	}
	if len(s.Points()) != 2 {
		t.Fatalf("step committed with 2 points restores %d", len(s.Points()))
	}
	if got := s.Result(); got == nil || got.Name() != first {
		t.Errorf("result after undo = %v, want %q", got, first)
	}
}

func TestUndoPastOldestStep(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()

	s.SetInput("input", "roads")
	addPathPoints(s)
	if _, err := s.Analyze(ctx); err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	if _, ok, err := s.Undo(); err != nil || !ok {
		t.Fatalf("first Undo() = %v, %v; want a step", ok, err)
	}
	if _, ok, err := s.Undo(); err != nil || ok {
		t.Fatalf("Undo() past the oldest step = %v, %v; want no step, no error", ok, err)
	}
}

func TestEvictionReleasesTmpMaps(t *testing.T) {
	s, fe, _ := newTestSession(t)
	ctx := context.Background()
	s.cfg.SetMaxHistSteps(2)

	s.SetInput("input", "roads")
	addPathPoints(s)
	for i := 0; i < 3; i++ {
		if _, err := s.Analyze(ctx); err != nil {
			t.Fatalf("Analyze() %d error: %v", i, err)
		}
	}

	// The third commit pushes the first step off the log, so its result
	// map has to be removed from the mapset.
	var removed []string
	for _, call := range fe.calls {
		if strings.HasPrefix(call, "g.remove ") {
			removed = append(removed, call)
		}
	}
	if len(removed) != 1 || !strings.Contains(removed[0], "vect=vnet_tmp_result0@user1") {
		t.Errorf("g.remove calls = %v, want one for vnet_tmp_result0@user1", removed)
	}
	if s.tmp.Has("vnet_tmp_result0") {
		t.Error("evicted result map still registered")
	}
	if !s.tmp.Has("vnet_tmp_result1") || !s.tmp.Has("vnet_tmp_result2") {
		t.Error("retained result maps missing from the registry")
	}
}

func TestSaveResult(t *testing.T) {
	s, fe, _ := newTestSession(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, "final"); err == nil {
		t.Fatal("SaveResult() before any analysis succeeded, want error")
	}

	s.SetInput("input", "roads")
	addPathPoints(s)
	if _, err := s.Analyze(ctx); err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if err := s.SaveResult(ctx, "final"); err != nil {
		t.Fatalf("SaveResult() error: %v", err)
	}

	call := fe.find("g.copy")
	if !strings.Contains(call, "vect=vnet_tmp_result0@user1,final") {
		t.Errorf("g.copy call %q missing source and target", call)
	}
}

func TestAnalyzeRecordsRun(t *testing.T) {
	env := gis.Env{GISDBase: t.TempDir(), Location: "nc", Mapset: "user1"}
	fe := &fakeExec{out: map[string]string{"v.category": "1 all 1379 1 1379\n"}}
	runner := gis.NewRunner(0).WithExec(fe.run)
	files, err := gis.NewTempFiles(filepath.Join(env.GISDBase, "tmp"))
	if err != nil {
		t.Fatalf("NewTempFiles() error: %v", err)
	}
	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config.New() error: %v", err)
	}

	runs := storage.NewMemoryStore()
	s, err := NewSession(cfg, env, runner, files, runs)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	s.SetInput("input", "roads")
	addPathPoints(s)
	if _, err := s.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	recorded, err := runs.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(recorded) != 1 {
		t.Fatalf("got %d recorded runs, want 1", len(recorded))
	}
	if recorded[0].Module != "v.net.path" || recorded[0].InputMap != "roads" {
		t.Errorf("recorded run = %+v", recorded[0])
	}
	if recorded[0].ResultMap != "vnet_tmp_result0@user1" {
		t.Errorf("recorded result map = %q", recorded[0].ResultMap)
	}
}

func TestSnapNodesCachesByInputState(t *testing.T) {
	s, fe, env := newTestSession(t)
	ctx := context.Background()

	s.SetInput("input", "roads")
	writeHead(t, env, "roads", "Mon Aug 31 10:00:00 2026")

	m, err := s.SnapNodes(ctx)
	if err != nil {
		t.Fatalf("SnapNodes() error: %v", err)
	}
	if m.Name() != "vnet_snap_points@user1" {
		t.Errorf("snap map = %q, want %q", m.Name(), "vnet_snap_points@user1")
	}

	call := fe.find("v.to.points")
	for _, want := range []string{"input=roads", "output=vnet_snap_points@user1", "llayer=2", "-n"} {
		if !strings.Contains(call, want) {
			t.Errorf("v.to.points call %q missing %q", call, want)
		}
	}

	// Unchanged input map and layer: the node map is reused.
	if _, err := s.SnapNodes(ctx); err != nil {
		t.Fatalf("second SnapNodes() error: %v", err)
	}
	if fe.count("v.to.points") != 1 {
		t.Errorf("got %d v.to.points runs, want 1 (cached)", fe.count("v.to.points"))
	}

	// An outside edit of the input map forces a rebuild.
	writeHead(t, env, "roads", "Mon Aug 31 12:00:00 2026")
	if _, err := s.SnapNodes(ctx); err != nil {
		t.Fatalf("third SnapNodes() error: %v", err)
	}
	if fe.count("v.to.points") != 2 {
		t.Errorf("got %d v.to.points runs, want 2 after input change", fe.count("v.to.points"))
	}
}

func TestUndoNoticesOutsideChange(t *testing.T) {
	s, _, env := newTestSession(t)
	ctx := context.Background()

	writeHead(t, env, "roads", "Mon Aug 31 10:00:00 2026")
	s.SetInput("input", "roads")
	addPathPoints(s)
	if _, err := s.Analyze(ctx); err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	writeHead(t, env, "roads", "Mon Aug 31 12:00:00 2026")
	notices, ok, err := s.Undo()
	if err != nil || !ok {
		t.Fatalf("Undo() = %v, %v; want a step", ok, err)
	}
	found := false
	for _, n := range notices {
		if strings.Contains(n, "roads") && strings.Contains(n, "changed outside") {
			found = true
		}
	}
	if !found {
		t.Errorf("notices = %v, want an outside-change notice for roads", notices)
	}
}
