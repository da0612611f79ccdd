// Command execution for CLI commands.
//
// Information Hiding:
// - Session and storage setup hidden
// - Output formatting hidden

package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mwort/grass-addons/config"
	"github.com/mwort/grass-addons/gis"
	"github.com/mwort/grass-addons/history"
	"github.com/mwort/grass-addons/storage"
	"github.com/mwort/grass-addons/vnet"
)

// Options holds CLI execution options.
type Options struct {
	DBPath  string
	Timeout time.Duration
	Verbose bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		DBPath:  ".vnet/vnet.db",
		Timeout: 5 * time.Minute,
	}
}

// ParsePoint parses one point argument of the form "E,N" or "E,N,role",
// where role names the point's category (e.g. "Start point").
func ParsePoint(s string) (vnet.Point, error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) < 2 {
		return vnet.Point{}, fmt.Errorf("point %q: want E,N or E,N,role", s)
	}
	e, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return vnet.Point{}, fmt.Errorf("point %q: bad easting: %w", s, err)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return vnet.Point{}, fmt.Errorf("point %q: bad northing: %w", s, err)
	}
	pt := vnet.Point{E: e, N: n, Topology: "new point", Checked: true}
	if len(parts) == 3 {
		pt.Cat = strings.TrimSpace(parts[2])
	}
	return pt, nil
}

func openRunStore(opts Options) (storage.RunStore, error) {
	if opts.DBPath == "" {
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.OpenSqlite(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

func newSession(opts Options) (*vnet.Session, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	env, err := gis.CurrentEnv()
	if err != nil {
		return nil, err
	}

	files, err := gis.NewTempFiles("")
	if err != nil {
		return nil, err
	}

	runs, err := openRunStore(opts)
	if err != nil {
		return nil, err
	}

	runner := gis.NewRunner(opts.Timeout)
	return vnet.NewSession(cfg, env, runner, files, runs)
}

// Analyze runs one network analysis and prints the result map name.
// When save is non-empty the temporary result is copied there.
func Analyze(ctx context.Context, module, input string, pointArgs []string, save string, opts Options) error {
	session, err := newSession(opts)
	if err != nil {
		return err
	}
	defer session.Close(ctx)

	if err := session.SetModule(module); err != nil {
		return err
	}
	session.SetInput("input", input)

	for _, arg := range pointArgs {
		pt, err := ParsePoint(arg)
		if err != nil {
			return err
		}
		session.AddPoint(pt)
	}

	if opts.Verbose {
		an, _ := vnet.Lookup(module)
		fmt.Printf("Running %s on %s with %d point(s)...\n", an.Label, input, len(session.Points()))
	}

	result, err := session.Analyze(ctx)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	fmt.Printf("Result written to %s\n", result)

	if save != "" {
		if err := session.SaveResult(ctx, save); err != nil {
			return fmt.Errorf("saving result: %w", err)
		}
		fmt.Printf("Result saved as %s\n", save)
	}
	return nil
}

// ListModules prints the available analysis modules.
func ListModules(verbose bool) {
	for _, module := range vnet.ModuleOrder {
		an, ok := vnet.Lookup(module)
		if !ok {
			continue
		}
		fmt.Printf("%s\n", an.Label)
		if !verbose {
			continue
		}
		for _, cat := range an.Cats {
			label := cat.Label
			if label == "" {
				label = "Point"
			}
			fmt.Printf("  point role: %s (%s)\n", label, cat.Param)
		}
		for _, col := range an.Cols {
			fmt.Printf("  cost column: %s\n", col)
		}
	}
}

// ListRuns prints recorded analysis runs, newest first.
func ListRuns(ctx context.Context, limit int, opts Options) error {
	store, err := openRunStore(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, run := range runs {
		created := time.Unix(run.CreatedAt, 0).Format(time.RFC3339)
		fmt.Printf("%s  %s  %s  %s -> %s\n",
			run.ID, created, run.Module, run.InputMap, run.ResultMap)
		if opts.Verbose && len(run.Params) > 0 {
			fmt.Printf("  params: %s\n", strings.Join(run.Params, " "))
		}
	}
	return nil
}

// DeleteRun removes one recorded run.
func DeleteRun(ctx context.Context, id string, opts Options) error {
	store, err := openRunStore(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Deleted run %s\n", id)
	return nil
}

// DumpHistory prints the steps of a history file, newest first by
// stored index.
func DumpHistory(path string) error {
	steps, err := history.ReadFile(path)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Println("History is empty.")
		return nil
	}

	for _, step := range steps {
		fmt.Printf("step %d\n", step.Index)
		printStepData(step.Data)
	}
	return nil
}

func printStepData(data history.StepData) {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		kd := data[key]
		subkeys := make([]string, 0, len(kd))
		for sub := range kd {
			subkeys = append(subkeys, sub)
		}
		sort.Strings(subkeys)

		for _, sub := range subkeys {
			slot := kd[sub]
			if !slot.IsGroup() {
				fmt.Printf("  %s.%s = %s\n", key, sub, slot.Value())
				continue
			}
			group := slot.Group()
			leaves := make([]string, 0, len(group))
			for leaf := range group {
				leaves = append(leaves, leaf)
			}
			sort.Strings(leaves)
			for _, leaf := range leaves {
				fmt.Printf("  %s.%s.%s = %s\n", key, sub, leaf, group[leaf])
			}
		}
	}
}
