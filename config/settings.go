// Package config provides tool settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Color parsing for result and point styles
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RGB is a color as a 3-tuple of channel values.
type RGB [3]int

// String renders the color in R:G:B form.
func (c RGB) String() string {
	return fmt.Sprintf("%d:%d:%d", c[0], c[1], c[2])
}

// ParseRGB parses a color in R:G:B form.
func ParseRGB(s string) (RGB, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return RGB{}, fmt.Errorf("invalid color %q: expected R:G:B", s)
	}
	var c RGB
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return RGB{}, fmt.Errorf("invalid color %q: bad channel %q", s, p)
		}
		c[i] = n
	}
	return c, nil
}

// Settings holds all tool configuration.
type Settings struct {
	History  HistoryConfig
	Analysis AnalysisConfig
	Style    StyleConfig
}

// HistoryConfig holds undo/redo history configuration.
type HistoryConfig struct {
	MaxSteps int
}

// AnalysisConfig holds analysis execution configuration.
type AnalysisConfig struct {
	MaxDist       float64 // threshold for connecting points to the network
	IsoLines      string  // comma-separated costs for v.net.iso
	SnapThreshold int     // snapping threshold in pixels
}

// StyleConfig holds result and point rendering style.
type StyleConfig struct {
	LineWidth   int
	LineColor   RGB
	PointSize   int
	PointWidth  int
	PointColors PointColors
}

// PointColors holds the per-role point colors.
type PointColors struct {
	Unused   RGB
	Used1Cat RGB
	Used2Cat RGB
	Selected RGB
}

// defaults match the original tool's initial settings.
func defaults() Settings {
	return Settings{
		History: HistoryConfig{
			MaxSteps: 3,
		},
		Analysis: AnalysisConfig{
			MaxDist:       1000,
			IsoLines:      "1000,2000,3000",
			SnapThreshold: 10,
		},
		Style: StyleConfig{
			LineWidth:  5,
			LineColor:  RGB{192, 0, 0},
			PointSize:  10,
			PointWidth: 2,
			PointColors: PointColors{
				Unused:   RGB{131, 139, 139},
				Used1Cat: RGB{192, 0, 0},
				Used2Cat: RGB{0, 0, 255},
				Selected: RGB{9, 249, 17},
			},
		},
	}
}

// New creates settings, loading overrides from VNET_* environment variables.
func New() (*Settings, error) {
	s := defaults()

	var err error
	if s.History.MaxSteps, err = intEnv("VNET_MAX_HIST_STEPS", s.History.MaxSteps); err != nil {
		return nil, err
	}
	if s.History.MaxSteps < 1 {
		return nil, fmt.Errorf("VNET_MAX_HIST_STEPS must be at least 1, got %d", s.History.MaxSteps)
	}
	if s.Analysis.MaxDist, err = floatEnv("VNET_MAX_DIST", s.Analysis.MaxDist); err != nil {
		return nil, err
	}
	if v := os.Getenv("VNET_ISO_LINES"); v != "" {
		s.Analysis.IsoLines = v
	}
	if s.Analysis.SnapThreshold, err = intEnv("VNET_SNAP_THRESH", s.Analysis.SnapThreshold); err != nil {
		return nil, err
	}
	if s.Style.LineWidth, err = intEnv("VNET_LINE_WIDTH", s.Style.LineWidth); err != nil {
		return nil, err
	}
	if s.Style.LineColor, err = colorEnv("VNET_LINE_COLOR", s.Style.LineColor); err != nil {
		return nil, err
	}
	if s.Style.PointSize, err = intEnv("VNET_POINT_SIZE", s.Style.PointSize); err != nil {
		return nil, err
	}
	if s.Style.PointWidth, err = intEnv("VNET_POINT_WIDTH", s.Style.PointWidth); err != nil {
		return nil, err
	}
	pc := &s.Style.PointColors
	if pc.Unused, err = colorEnv("VNET_POINT_COLOR_UNUSED", pc.Unused); err != nil {
		return nil, err
	}
	if pc.Used1Cat, err = colorEnv("VNET_POINT_COLOR_USED1CAT", pc.Used1Cat); err != nil {
		return nil, err
	}
	if pc.Used2Cat, err = colorEnv("VNET_POINT_COLOR_USED2CAT", pc.Used2Cat); err != nil {
		return nil, err
	}
	if pc.Selected, err = colorEnv("VNET_POINT_COLOR_SELECTED", pc.Selected); err != nil {
		return nil, err
	}

	return &s, nil
}

// MustNew creates settings and panics on error. Use only in main().
func MustNew() *Settings {
	s, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return s
}

// MaxHistSteps returns the retained history depth. The history log calls
// this on every commit, so a change made through SetMaxHistSteps applies
// from the next commit on.
func (s *Settings) MaxHistSteps() int {
	return s.History.MaxSteps
}

// SetMaxHistSteps changes the retained history depth.
func (s *Settings) SetMaxHistSteps(n int) {
	s.History.MaxSteps = n
}

func intEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	return n, nil
}

func floatEnv(name string, def float64) (float64, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	return f, nil
}

func colorEnv(name string, def RGB) (RGB, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	c, err := ParseRGB(v)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return c, nil
}
