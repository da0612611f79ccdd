// Package storage keeps a catalog of executed network analyses.
//
// Information Hiding:
// - Backend choice (SQLite file, in-memory) hidden behind RunStore
// - Fingerprint computation encapsulated in NewRun
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Run is one recorded analysis execution.
type Run struct {
	ID          string
	Module      string
	InputMap    string
	ResultMap   string
	Params      []string
	Fingerprint string
	CreatedAt   int64
}

// NewRun builds a run record for an executed module. The fingerprint
// hashes module, input map and parameters, so identical reruns can be
// spotted in the catalog.
func NewRun(module, inputMap, resultMap string, params []string) Run {
	h := xxhash.New()
	_, _ = h.WriteString(module)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(inputMap)
	for _, p := range params {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(p)
	}
	return Run{
		ID:          uuid.NewString(),
		Module:      module,
		InputMap:    inputMap,
		ResultMap:   resultMap,
		Params:      params,
		Fingerprint: fmt.Sprintf("%016x", h.Sum64()),
		CreatedAt:   time.Now().Unix(),
	}
}

// encodeParams flattens parameters for storage; decodeParams reverses it.
// Parameters never contain newlines, so a newline join is unambiguous.
func encodeParams(params []string) string {
	return strings.Join(params, "\n")
}

func decodeParams(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// RunStore records and retrieves analysis runs.
type RunStore interface {
	// Record saves one run.
	Record(ctx context.Context, run Run) error

	// List returns runs newest first, at most limit entries. A limit
	// of zero or below means no limit.
	List(ctx context.Context, limit int) ([]Run, error)

	// Get returns a run by ID. Returns nil, nil if not found.
	Get(ctx context.Context, id string) (*Run, error)

	// Delete removes a run by ID. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases the backing resources.
	Close() error
}
