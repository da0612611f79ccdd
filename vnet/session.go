package vnet

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mwort/grass-addons/config"
	"github.com/mwort/grass-addons/gis"
	"github.com/mwort/grass-addons/history"
	"github.com/mwort/grass-addons/storage"
)

// Session drives one network-analysis lifecycle: collect inputs and
// points, run a v.net.* module into a temporary result map, snapshot
// everything into the history log, and walk that log back and forth.
//
// Information Hiding:
//   - Owns the history log and the temporary-map registry; callers
//     never touch either directly.
//   - Command assembly for the GRASS modules stays private; callers
//     see only module names and typed inputs.
type Session struct {
	cfg    *config.Settings
	env    gis.Env
	runner *gis.Runner
	files  *gis.TempFiles
	hist   *history.Log
	tmp    *TmpMaps
	runs   storage.RunStore

	module string
	inputs map[string]string
	points []Point

	result     *VectMap
	mapsToHist []string
	histMapNum int

	snapPts    *VectMap
	snapInput  *VectMap
	snapNlayer string
}

// NewSession builds a session around an existing GRASS environment.
// The run store is optional; pass nil to skip the run catalog.
func NewSession(cfg *config.Settings, env gis.Env, runner *gis.Runner, files *gis.TempFiles, runs storage.RunStore) (*Session, error) {
	hist, err := history.New(files, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating history log: %w", err)
	}
	return &Session{
		cfg:    cfg,
		env:    env,
		runner: runner,
		files:  files,
		hist:   hist,
		tmp:    NewTmpMaps(env, runner),
		runs:   runs,
		module: ModuleOrder[0],
		inputs: map[string]string{
			"input":  "",
			"alayer": "1",
			"nlayer": "2",
		},
	}, nil
}

// SetModule selects the analysis module for the next Analyze call.
func (s *Session) SetModule(module string) error {
	if _, ok := Lookup(module); !ok {
		return fmt.Errorf("unknown analysis module %q", module)
	}
	s.module = module
	return nil
}

// Module returns the currently selected analysis module.
func (s *Session) Module() string { return s.module }

// SetInput sets one named input (map name, layer or column).
func (s *Session) SetInput(name, value string) {
	s.inputs[name] = value
}

// Input returns the value of one named input.
func (s *Session) Input(name string) string { return s.inputs[name] }

// AddPoint appends a point to the working set and returns its index.
func (s *Session) AddPoint(pt Point) int {
	s.points = append(s.points, pt)
	return len(s.points) - 1
}

// Points returns the current working set of points.
func (s *Session) Points() []Point { return s.points }

// ClearPoints empties the working set of points.
func (s *Session) ClearPoints() { s.points = nil }

func (s *Session) validate(an Analysis) error {
	if strings.TrimSpace(s.inputs["input"]) == "" {
		return fmt.Errorf("no input vector map selected")
	}
	byCat := pointsByCat(s.points, an)
	for _, cat := range an.Cats {
		if len(byCat[cat.Param]) == 0 {
			label := cat.Label
			if label == "" {
				label = cat.Param
			}
			return fmt.Errorf("no point of category %q defined", label)
		}
	}
	return nil
}

// Analyze runs the selected module against the current inputs and
// points. The result lands in a fresh temporary vector map whose
// fully qualified name is returned; the inputs, points and temporary
// maps are committed to the history log as one new step.
func (s *Session) Analyze(ctx context.Context) (string, error) {
	an, ok := Lookup(s.module)
	if !ok {
		return "", fmt.Errorf("unknown analysis module %q", s.module)
	}
	if err := s.validate(an); err != nil {
		return "", err
	}

	prevResult := s.result
	s.mapsToHist = nil
	s.result = s.newTmpMapToHist("vnet_tmp_result")
	s.snapshot()

	cmd := gis.NewCommand(s.module)
	for _, col := range an.Cols {
		field := col
		if ac, ok := AttrCols[col]; ok && ac.InputField != "" {
			field = ac.InputField
		}
		if v := strings.TrimSpace(s.inputs[field]); v != "" {
			cmd.Arg(col, v)
		}
	}
	cmd.Arg("alayer", strings.TrimSpace(s.inputs["alayer"]))
	cmd.Arg("nlayer", strings.TrimSpace(s.inputs["nlayer"]))
	cmd.Arg("output", s.result.Name())

	var err error
	if s.module == "v.net.path" {
		err = s.runPath(ctx, cmd, an)
	} else {
		err = s.runGeneric(ctx, cmd, an)
	}
	if err != nil {
		s.rollback(prevResult)
		return "", err
	}

	s.result.SaveState()
	if err := s.commitHistory(ctx); err != nil {
		s.hist.Discard()
		return "", err
	}
	if s.runs != nil {
		run := storage.NewRun(s.module, s.inputs["input"], s.result.Name(), cmd.Args)
		if err := s.runs.Record(ctx, run); err != nil {
			return "", fmt.Errorf("recording run: %w", err)
		}
	}
	return s.result.Name(), nil
}

// runPath handles v.net.path, which reads its start/end coordinates
// from a one-line file instead of a point layer.
func (s *Session) runPath(ctx context.Context, cmd *gis.Command, an Analysis) error {
	byCat := pointsByCat(s.points, an)
	st := byCat["st_pt"][0]
	end := byCat["end_pt"][0]

	line := fmt.Sprintf("1 %s %s %s %s\n",
		formatCoord(st.E), formatCoord(st.N),
		formatCoord(end.E), formatCoord(end.N))
	coordsFile, err := s.files.Write(line)
	if err != nil {
		return fmt.Errorf("writing coordinates file: %w", err)
	}
	defer s.files.Remove(coordsFile)

	cmd.Arg("file", coordsFile)
	cmd.Arg("dmax", strconv.FormatFloat(s.cfg.Analysis.MaxDist, 'f', -1, 64))
	cmd.Arg("input", s.inputs["input"])
	cmd.Flag("--overwrite")

	_, err = s.runner.Run(ctx, cmd)
	return err
}

// runGeneric handles every module other than v.net.path: the checked
// points are written to a GRASS ASCII file, materialized with v.edit
// under categories past the input map's maximum, connected to the
// network with v.net and passed to the module as category ranges.
func (s *Session) runGeneric(ctx context.Context, cmd *gis.Command, an Analysis) error {
	maxCat, err := s.maxCategory(ctx)
	if err != nil {
		return err
	}

	nlayer, err := strconv.Atoi(strings.TrimSpace(s.inputs["nlayer"]))
	if err != nil {
		return fmt.Errorf("invalid node layer %q: %w", s.inputs["nlayer"], err)
	}

	byCat := pointsByCat(s.points, an)
	ascii, ranges := asciiPoints(an, byCat, maxCat, nlayer)
	asciiFile, err := s.files.Write(ascii)
	if err != nil {
		return fmt.Errorf("writing points file: %w", err)
	}
	defer s.files.Remove(asciiFile)

	inPts := s.tmp.Add("vnet_tmp_in_pts")
	connected := s.tmp.Add("vnet_tmp_in_pts_connected")
	defer func() {
		_ = s.tmp.Delete(ctx, connected)
		_ = s.tmp.Delete(ctx, inPts)
	}()

	cmd.Arg("input", connected.Name())
	cmd.Flag("--overwrite")

	switch s.module {
	case "v.net.distance":
		cmd.Arg("from_layer", "1")
		cmd.Arg("to_layer", "1")
	case "v.net.flow":
		cut := s.newTmpMapToHist("vnet_tmp_flow_cut")
		cmd.Arg("cut", cut.Name())
	case "v.net.iso":
		cmd.Arg("costs", s.cfg.Analysis.IsoLines)
	}
	for _, cat := range an.Cats {
		cmd.Arg(cat.Param, ranges[cat.Param].String())
	}

	edit := gis.NewCommand("v.edit").
		Arg("map", inPts.Name()).
		Arg("input", asciiFile).
		Arg("tool", "create").
		Flag("--overwrite").
		Flag("-n")
	if _, err := s.runner.Run(ctx, edit); err != nil {
		return err
	}

	connect := gis.NewCommand("v.net").
		Arg("points", inPts.Name()).
		Arg("input", s.inputs["input"]).
		Arg("output", connected.Name()).
		Arg("alayer", strings.TrimSpace(s.inputs["alayer"])).
		Arg("nlayer", strings.TrimSpace(s.inputs["nlayer"])).
		Arg("operation", "connect").
		Arg("thresh", strconv.FormatFloat(s.cfg.Analysis.MaxDist, 'f', -1, 64)).
		Flag("--overwrite")
	if _, err := s.runner.Run(ctx, connect); err != nil {
		return err
	}

	_, err = s.runner.Run(ctx, cmd)
	return err
}

// maxCategory reports the highest category used on the active layer of
// the input map, read from a v.category report.
func (s *Session) maxCategory(ctx context.Context) (int, error) {
	report := gis.NewCommand("v.category").
		Arg("input", s.inputs["input"]).
		Arg("option", "report").
		Flag("-g")
	out, err := s.runner.Run(ctx, report)
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		for _, f := range fields {
			if f != "all" {
				continue
			}
			max, err := strconv.Atoi(fields[4])
			if err != nil {
				return 0, fmt.Errorf("parsing category report line %q: %w", line, err)
			}
			return max, nil
		}
	}
	return 0, fmt.Errorf("no category report for map %q", s.inputs["input"])
}

// newTmpMapToHist registers a fresh temporary map that belongs to the
// pending history step. The accumulated map list is written to the
// step so eviction can release the maps later.
func (s *Session) newTmpMapToHist(prefix string) *VectMap {
	name := prefix + strconv.Itoa(s.histMapNum)
	s.histMapNum++

	m := s.tmp.Add(name)
	s.mapsToHist = append(s.mapsToHist, m.Name())

	items := make([]history.Value, len(s.mapsToHist))
	for i, n := range s.mapsToHist {
		items[i] = history.Str(n)
	}
	s.hist.Add("tmp_data", "maps", history.List(items...))
	return m
}

// rollback discards the pending history step of a failed analysis and
// unregisters the temporary maps it reserved, which were never produced.
// The previous result map stays current.
func (s *Session) rollback(prev *VectMap) {
	s.hist.Discard()
	for _, name := range s.mapsToHist {
		if m := s.tmp.Get(name); m != nil {
			s.tmp.Remove(m)
		}
	}
	s.mapsToHist = nil
	s.result = prev
}

// snapshot records the current inputs, points and module into the
// pending history step.
func (s *Session) snapshot() {
	for i, pt := range s.points {
		name := "pt" + strconv.Itoa(i)
		s.hist.AddGrouped("points", name, "coords",
			history.List(history.Float(pt.E), history.Float(pt.N)))
		s.hist.AddGrouped("points", name, "cat", history.Str(pt.Cat))
		s.hist.AddGrouped("points", name, "topology", history.Str(pt.Topology))
		s.hist.AddGrouped("points", name, "checked", history.Bool(pt.Checked))
	}
	for name, val := range s.inputs {
		s.hist.Add("input_data", name, history.Str(val))
	}
	inputMap := NewVectMap(s.env, s.inputs["input"])
	s.hist.Add("other", "input_modified", history.Str(inputMap.LastModified()))
	s.hist.Add("vnet_modules", "curr_module", history.Str(s.module))
}

// commitHistory saves the pending step and releases the temporary maps
// of every step that fell off the end of the log.
func (s *Session) commitHistory(ctx context.Context) error {
	evicted, err := s.hist.SaveStep()
	if err != nil {
		return fmt.Errorf("committing history step: %w", err)
	}
	for _, step := range evicted {
		maps, ok := step.Value("tmp_data", "maps")
		if !ok {
			continue
		}
		for _, item := range maps.Items() {
			m := s.tmp.Get(item.Str())
			if m == nil {
				continue
			}
			if err := s.tmp.Delete(ctx, m); err != nil {
				return fmt.Errorf("releasing evicted map %q: %w", m.Name(), err)
			}
		}
	}
	return nil
}

// CanUndo reports whether an older history step exists.
func (s *Session) CanUndo() bool { return s.hist.CurrStep() < s.hist.StepsNum() }

// CanRedo reports whether a newer history step exists.
func (s *Session) CanRedo() bool { return s.hist.CurrStep() > 0 }

// Undo steps one entry back in the history log and applies it to the
// session state. The returned notices flag maps that were changed
// outside the tool since the step was recorded; ok is false when no
// older step exists.
func (s *Session) Undo() (notices []string, ok bool, err error) {
	data, err := s.hist.Prev()
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return s.applyStep(data), true, nil
}

// Redo steps one entry forward in the history log and applies it to
// the session state; ok is false when no newer step exists.
func (s *Session) Redo() (notices []string, ok bool, err error) {
	data, err := s.hist.Next()
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return s.applyStep(data), true, nil
}

// applyStep restores module, points, inputs and the result map from a
// retrieved history step.
func (s *Session) applyStep(data history.StepData) []string {
	var notices []string

	if v, ok := data.Value("vnet_modules", "curr_module"); ok {
		s.module = v.String()
	}

	s.points = nil
	for i := 0; ; i++ {
		g, ok := data.Group("points", "pt"+strconv.Itoa(i))
		if !ok {
			break
		}
		var pt Point
		if c, ok := g["coords"]; ok {
			if items := c.Items(); len(items) >= 2 {
				pt.E = numeric(items[0])
				pt.N = numeric(items[1])
			}
		}
		if v, ok := g["cat"]; ok {
			pt.Cat = v.String()
		}
		if v, ok := g["topology"]; ok {
			pt.Topology = v.String()
		}
		if v, ok := g["checked"]; ok {
			pt.Checked = v.Bool()
		}
		s.points = append(s.points, pt)
	}

	if kd, ok := data["input_data"]; ok {
		for name, slot := range kd {
			if !slot.IsGroup() {
				s.inputs[name] = slot.Value().String()
			}
		}
	}

	if maps, ok := data.Value("tmp_data", "maps"); ok {
		for _, item := range maps.Items() {
			name := item.Str()
			if !strings.Contains(name, "vnet_tmp_result") {
				continue
			}
			m := s.tmp.Get(name)
			if m == nil {
				continue
			}
			s.result = m
			if m.State() == StateChanged {
				notices = append(notices,
					fmt.Sprintf("temporary map %q was changed outside the tool", m.Name()))
			}
		}
	}

	if v, ok := data.Value("other", "input_modified"); ok {
		curr := NewVectMap(s.env, s.inputs["input"]).LastModified()
		if curr != v.String() {
			notices = append(notices,
				fmt.Sprintf("input map %q was changed outside the tool", s.inputs["input"]))
		}
	}
	return notices
}

func numeric(v history.Value) float64 {
	if v.Kind() == history.KindInt {
		return float64(v.Int())
	}
	return v.Float()
}

// Result returns the temporary map holding the last analysis result,
// or nil when no analysis ran yet.
func (s *Session) Result() *VectMap { return s.result }

// SaveResult publishes the temporary result map under a permanent name
// via g.copy.
func (s *Session) SaveResult(ctx context.Context, name string) error {
	if s.result == nil {
		return fmt.Errorf("no analysis result to save")
	}
	copyCmd := gis.NewCommand("g.copy").
		Arg("vect", s.result.Name()+","+name).
		Flag("--overwrite")
	_, err := s.runner.Run(ctx, copyCmd)
	return err
}

// SnapNodes materializes the network nodes of the input map into the
// temporary map vnet_snap_points via v.to.points, so callers can snap
// new points onto them. The map is rebuilt only when the input map or
// the node layer changed since the last call.
func (s *Session) SnapNodes(ctx context.Context) (*VectMap, error) {
	input := strings.TrimSpace(s.inputs["input"])
	if input == "" {
		return nil, fmt.Errorf("no input vector map selected")
	}
	nlayer := strings.TrimSpace(s.inputs["nlayer"])
	full := s.env.FullMapName(input)

	if s.snapPts == nil {
		s.snapPts = s.tmp.Add("vnet_snap_points")
	}
	if s.snapInput != nil &&
		s.snapInput.Name() == full &&
		s.snapNlayer == nlayer &&
		s.snapInput.State() == StateUnchanged &&
		s.snapPts.State() != StateChanged {
		return s.snapPts, nil
	}

	toPoints := gis.NewCommand("v.to.points").
		Arg("input", input).
		Arg("output", s.snapPts.Name()).
		Arg("llayer", nlayer).
		Flag("-n").
		Flag("--overwrite")
	if _, err := s.runner.Run(ctx, toPoints); err != nil {
		return nil, err
	}
	s.snapPts.SaveState()

	s.snapInput = NewVectMap(s.env, input)
	s.snapInput.SaveState()
	s.snapNlayer = nlayer
	return s.snapPts, nil
}

// Close releases every temporary map the session still owns, removes
// the history backing file and closes the run store.
func (s *Session) Close(ctx context.Context) error {
	var firstErr error
	if err := s.tmp.DeleteAll(ctx); err != nil {
		firstErr = err
	}
	if err := s.hist.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.runs != nil {
		if err := s.runs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
