// Package vnet drives GRASS vector network analyses without a GUI.
//
// A Session accumulates analysis points and input parameters, invokes the
// v.net.* modules through the gis runner, and records every committed
// analysis in the history log so it can be walked back and forth.
package vnet

// CatSpec describes one point-category parameter of an analysis, e.g.
// the start and end points of a shortest-path run.
type CatSpec struct {
	Param string // module parameter name, e.g. "st_pt"
	Label string // point role shown to the user, "" for single-role analyses
}

// ResultStyle hints how the analysis result is rendered.
type ResultStyle struct {
	SingleColor bool
	CatColor    bool
	AttrColor   string // attribute column driving the color, e.g. "flow"
}

// Analysis describes one v.net.* module.
type Analysis struct {
	Module string
	Label  string
	Cats   []CatSpec
	Cols   []string // cost column parameters accepted by the module
	Style  ResultStyle
}

// AttrCol describes one cost-column parameter.
type AttrCol struct {
	Label      string
	Name       string
	InputField string // input slot the value is read from, when shared
}

// AttrCols are the cost-column parameters used across the analyses.
var AttrCols = map[string]AttrCol{
	"afcolumn": {
		Label: "Arc forward/both direction(s) cost column:",
		Name:  "arc forward/both",
	},
	"abcolumn": {
		Label: "Arc backward direction cost column:",
		Name:  "arc backward",
	},
	"acolumn": {
		Label:      "Arcs' cost column (for both directions):",
		Name:       "arc",
		InputField: "afcolumn",
	},
	"ncolumn": {
		Label: "Node cost column:",
		Name:  "node",
	},
}

// ModuleOrder lists the analyses in presentation order.
var ModuleOrder = []string{
	"v.net.path",
	"v.net.salesman",
	"v.net.flow",
	"v.net.alloc",
	"v.net.distance",
	"v.net.iso",
	"v.net.steiner",
}

var analyses = map[string]Analysis{
	"v.net.path": {
		Module: "v.net.path",
		Label:  "Shortest path (v.net.path)",
		Cats: []CatSpec{
			{Param: "st_pt", Label: "Start point"},
			{Param: "end_pt", Label: "End point"},
		},
		Cols:  []string{"afcolumn", "abcolumn", "ncolumn"},
		Style: ResultStyle{SingleColor: true},
	},
	"v.net.salesman": {
		Module: "v.net.salesman",
		Label:  "Salesman (v.net.salesman)",
		Cats:   []CatSpec{{Param: "ccats"}},
		Cols:   []string{"afcolumn", "abcolumn"},
		Style:  ResultStyle{SingleColor: true},
	},
	"v.net.flow": {
		Module: "v.net.flow",
		Label:  "Flow (v.net.flow)",
		Cats: []CatSpec{
			{Param: "source_cats", Label: "Source point"},
			{Param: "sink_cats", Label: "Sink point"},
		},
		Cols:  []string{"afcolumn", "abcolumn", "ncolumn"},
		Style: ResultStyle{AttrColor: "flow"},
	},
	"v.net.alloc": {
		Module: "v.net.alloc",
		Label:  "Allocate subnets for nearest centers (v.net.alloc)",
		Cats:   []CatSpec{{Param: "ccats"}},
		Cols:   []string{"afcolumn", "abcolumn", "ncolumn"},
		Style:  ResultStyle{CatColor: true},
	},
	"v.net.steiner": {
		Module: "v.net.steiner",
		Label:  "Create Steiner tree for the network and given terminals (v.net.steiner)",
		Cats:   []CatSpec{{Param: "tcats"}},
		Cols:   []string{"acolumn"},
		Style:  ResultStyle{SingleColor: true},
	},
	"v.net.distance": {
		Module: "v.net.distance",
		Label:  "Computes shortest distance via the network (v.net.distance)",
		Cats: []CatSpec{
			{Param: "from_cats", Label: "From point"},
			{Param: "to_cats", Label: "To point"},
		},
		Cols:  []string{"afcolumn", "abcolumn", "ncolumn"},
		Style: ResultStyle{CatColor: true},
	},
	"v.net.iso": {
		Module: "v.net.iso",
		Label:  "Splits net by cost isolines (v.net.iso)",
		Cats:   []CatSpec{{Param: "ccats"}},
		Cols:   []string{"afcolumn", "abcolumn", "ncolumn"},
		Style:  ResultStyle{CatColor: true},
	},
}

// Lookup returns the analysis description for a module name.
func Lookup(module string) (Analysis, bool) {
	an, ok := analyses[module]
	return an, ok
}
