// Package history implements the bounded undo/redo log of analysis steps.
//
// Each committed step is a nested mapping of annotations serialized to a
// line-oriented text file owned exclusively by the log. Steps are retained
// up to the configured depth; committing past the depth evicts the oldest
// steps and hands their data back so the caller can release any temporary
// resources named in them.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrCorruptHistory reports a backing file the log could not have written
// itself. The format is entirely self-produced, so a malformed line means
// external tampering rather than recoverable input.
var ErrCorruptHistory = errors.New("corrupt history file")

// Config supplies the retained-step limit. It is consulted again on every
// commit, so a shrinking limit can evict several steps at once.
type Config interface {
	MaxHistSteps() int
}

// StepLimit adapts a fixed step count to Config.
type StepLimit int

// MaxHistSteps returns the fixed limit.
func (l StepLimit) MaxHistSteps() int { return int(l) }

// TempFiles creates uniquely named empty files and removes them on demand.
type TempFiles interface {
	Create() (string, error)
	Remove(path string) error
}

// Log is a file-backed ring of committed steps with a pending in-memory
// buffer. It assumes exclusive ownership of its backing file for its whole
// lifetime; operations are synchronous and single-threaded.
type Log struct {
	files TempFiles
	cfg   Config

	file     string
	curr     int // navigation offset, 0 = newest committed step
	stepsNum int // index of the oldest retained step
	pending  StepData
}

// New creates a log with an empty backing file. Close removes the file.
func New(files TempFiles, cfg Config) (*Log, error) {
	path, err := files.Create()
	if err != nil {
		return nil, fmt.Errorf("create history file: %w", err)
	}
	return &Log{
		files:   files,
		cfg:     cfg,
		file:    path,
		pending: StepData{},
	}, nil
}

// Add records a value under key and subkey in the pending step buffer.
// Adding to the same slot twice overwrites the earlier value. The backing
// file is not touched.
func (l *Log) Add(key, subkey string, v Value) {
	l.keyData(key)[subkey] = valueSlot(v)
}

// AddGrouped records a value under key, group and leaf in the pending step
// buffer. A plain slot previously stored under the group name is replaced.
func (l *Log) AddGrouped(key, group, leaf string, v Value) {
	kd := l.keyData(key)
	slot := kd[group]
	if slot.group == nil {
		slot = Slot{group: map[string]Value{}}
	}
	slot.group[leaf] = v
	kd[group] = slot
}

// Discard drops the pending step buffer without committing it. Committed
// steps are untouched.
func (l *Log) Discard() {
	l.pending = StepData{}
}

func (l *Log) keyData(key string) KeyData {
	kd, ok := l.pending[key]
	if !ok {
		kd = KeyData{}
		l.pending[key] = kd
	}
	return kd
}

// SaveStep commits the pending buffer as the newest step. Previously
// committed steps shift one position older and any step whose new index
// reaches the configured limit is evicted; evicted steps are returned
// keyed by their final index so the caller can release resources named in
// them. The backing file is fully replaced via a write-new-then-rename
// sequence; the pending buffer, the step counter and the navigation
// offset update only once the replacement succeeds, so a failed commit
// leaves the log unchanged and retryable.
func (l *Log) SaveStep() (map[int]StepData, error) {
	maxSteps := l.cfg.MaxHistSteps()

	tmpPath, err := l.files.Create()
	if err != nil {
		return nil, fmt.Errorf("create history file: %w", err)
	}
	out, err := os.Create(tmpPath)
	if err != nil {
		_ = l.files.Remove(tmpPath)
		return nil, fmt.Errorf("open history file: %w", err)
	}

	w := bufio.NewWriter(out)
	writeStepHeader(w, 0)
	writeStepData(w, l.pending)

	evicted, oldest, err := l.carryOver(w, maxSteps)
	if err == nil {
		err = w.Flush()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = l.files.Remove(tmpPath)
		return nil, err
	}

	if err := os.Rename(tmpPath, l.file); err != nil {
		_ = l.files.Remove(tmpPath)
		return nil, fmt.Errorf("replace history file: %w", err)
	}

	l.curr = 0
	l.stepsNum = oldest
	l.pending = StepData{}
	return evicted, nil
}

// carryOver copies retained steps from the current backing file into w,
// renumbering each one step older. Steps renumbered past maxSteps are
// parsed into the returned eviction map instead of being written. The
// second result is the index of the oldest step that was kept.
func (l *Log) carryOver(w *bufio.Writer, maxSteps int) (map[int]StepData, int, error) {
	in, err := os.Open(l.file)
	if err != nil {
		return nil, 0, fmt.Errorf("open history file: %w", err)
	}
	defer in.Close()

	evicted := map[int]StepData{}
	var evictTarget StepData
	newStep := false
	num := 0
	oldest := 0

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			newStep = true
			num++
			continue
		}

		if newStep {
			newStep = false
			if _, err := parseStepHeader(line); err != nil {
				return nil, 0, err
			}
			if num >= maxSteps {
				evictTarget = StepData{}
				evicted[num] = evictTarget
			} else {
				evictTarget = nil
				writeStepHeader(w, num)
				oldest = num
			}
			continue
		}

		if evictTarget != nil {
			if err := parseStepLine(line, evictTarget); err != nil {
				return nil, 0, err
			}
		} else {
			fmt.Fprintln(w, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read history file: %w", err)
	}
	return evicted, oldest, nil
}

// Prev moves the navigation offset one step older and returns that step's
// data. The result is empty when the offset runs past the retained depth.
func (l *Log) Prev() (StepData, error) {
	l.curr++
	return l.stepData(l.curr)
}

// Next moves the navigation offset one step newer and returns that step's
// data. The result is empty when the offset runs past the newest step.
func (l *Log) Next() (StepData, error) {
	l.curr--
	return l.stepData(l.curr)
}

// stepData scans the backing file for the step stored under the given
// index. A single forward pass suffices given the bounded step count.
func (l *Log) stepData(step int) (StepData, error) {
	in, err := os.Open(l.file)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer in.Close()

	data := StepData{}
	newStep := false
	found := false

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if found {
				break
			}
			newStep = true
			continue
		}

		if newStep {
			newStep = false
			idx, err := parseStepHeader(line)
			if err != nil {
				return nil, err
			}
			if idx == step {
				found = true
			}
			continue
		}

		if found {
			if err := parseStepLine(line, data); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	return data, nil
}

// StepsNum returns the index of the oldest retained step, which is also
// the number of steps reachable through Prev from the newest one.
func (l *Log) StepsNum() int { return l.stepsNum }

// CurrStep returns the current navigation offset.
func (l *Log) CurrStep() int { return l.curr }

// File returns the path of the backing file.
func (l *Log) File() string { return l.file }

// Close removes the backing file. The log must not be used afterwards.
func (l *Log) Close() error {
	return l.files.Remove(l.file)
}
