package history

import (
	"bufio"
	"fmt"
	"os"
)

// Step is one fully parsed entry of a history file.
type Step struct {
	Index int
	Data  StepData
}

// ReadFile parses a whole history file into its steps, in file order.
// Intended for inspection tooling; the log itself reads steps lazily.
func ReadFile(path string) ([]Step, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()

	var steps []Step
	var curr *Step
	newStep := false

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			newStep = true
			continue
		}
		if newStep {
			newStep = false
			idx, err := parseStepHeader(line)
			if err != nil {
				return nil, err
			}
			steps = append(steps, Step{Index: idx, Data: StepData{}})
			curr = &steps[len(steps)-1]
			continue
		}
		if curr == nil {
			return nil, fmt.Errorf("%w: data before first step header", ErrCorruptHistory)
		}
		if err := parseStepLine(line, curr.Data); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading history file: %w", err)
	}
	return steps, nil
}
