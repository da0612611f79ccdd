package vnet

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is one analysis point picked on the network.
type Point struct {
	E, N     float64
	Cat      string // point role label, matched against the analysis cats
	Topology string // "new point" or "snapped to node"
	Checked  bool
}

// Coords returns the point position.
func (p Point) Coords() (e, n float64) { return p.E, p.N }

// pointsByCat groups the checked points by the category parameter they
// belong to. Single-category analyses take every checked point; otherwise
// a point joins the category whose label matches its role, defaulting to
// the first category.
func pointsByCat(pts []Point, an Analysis) map[string][]Point {
	byCat := map[string][]Point{}
	for _, cat := range an.Cats {
		byCat[cat.Param] = []Point{}
	}

	for _, pt := range pts {
		if !pt.Checked {
			continue
		}
		param := an.Cats[0].Param
		if len(an.Cats) > 1 {
			for _, cat := range an.Cats {
				if cat.Label == pt.Cat {
					param = cat.Param
					break
				}
			}
		}
		byCat[param] = append(byCat[param], pt)
	}
	return byCat
}

// catRange is the inclusive category number range assigned to one
// category parameter while rendering points to ASCII.
type catRange struct {
	first, last int
}

func (r catRange) String() string {
	if r.first == r.last {
		return strconv.Itoa(r.first)
	}
	return fmt.Sprintf("%d-%d", r.first, r.last)
}

// asciiPoints renders grouped points in the GRASS ASCII vector form,
// assigning fresh category numbers above maxCat. Categories are processed
// in the analysis's parameter order so numbering is deterministic.
func asciiPoints(an Analysis, byCat map[string][]Point, maxCat, layer int) (string, map[string]catRange) {
	ranges := map[string]catRange{}
	var b strings.Builder
	catNum := maxCat

	for _, cat := range an.Cats {
		r := catRange{first: catNum + 1}
		for _, pt := range byCat[cat.Param] {
			catNum++
			fmt.Fprintf(&b, "P 1 1\n")
			fmt.Fprintf(&b, "%s %s\n", formatCoord(pt.E), formatCoord(pt.N))
			fmt.Fprintf(&b, "%d %d\n", layer, catNum)
		}
		r.last = catNum
		ranges[cat.Param] = r
	}
	return b.String(), ranges
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
