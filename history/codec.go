package history

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// sep separates the fields of one key line.
const sep = ";"

// stepHeaderPrefix starts the header line of every step.
const stepHeaderPrefix = "history step="

// writeStepHeader emits the blank step boundary followed by the header
// line carrying the step's stored index.
func writeStepHeader(w io.Writer, idx int) {
	fmt.Fprintf(w, "\n%s%d\n", stepHeaderPrefix, idx)
}

// writeStepData emits the key lines of one step. Plain subkeys of a key
// share a single line; every group gets a line of its own with the group
// identifier as the first field. Keys, subkeys and leaves are written in
// sorted order so output is deterministic.
func writeStepData(w io.Writer, data StepData) {
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

		fields := []string{key}
		for _, sub := range subkeys {
			if slot := kd[sub]; !slot.IsGroup() {
				fields = append(fields, sub, slot.value.encode())
			}
		}
		if len(fields) > 1 {
			fmt.Fprintln(w, strings.Join(fields, sep))
		}

		for _, sub := range subkeys {
			slot := kd[sub]
			if !slot.IsGroup() || len(slot.group) == 0 {
				continue
			}
			leaves := make([]string, 0, len(slot.group))
			for leaf := range slot.group {
				leaves = append(leaves, leaf)
			}
			sort.Strings(leaves)

			fields := []string{key, sub}
			for _, leaf := range leaves {
				fields = append(fields, leaf, slot.group[leaf].encode())
			}
			fmt.Fprintln(w, strings.Join(fields, sep))
		}
	}
}

// parseStepLine decodes one key line into data. An odd number of fields
// after the key means the first field names a group and the rest alternate
// leaf and value; an even number alternates subkey and value directly.
func parseStepLine(line string, data StepData) error {
	fields := strings.Split(line, sep)
	if len(fields) < 3 {
		return fmt.Errorf("%w: malformed line %q", ErrCorruptHistory, line)
	}

	key := fields[0]
	kv := fields[1:]
	var group string
	if len(kv)%2 != 0 {
		group = kv[0]
		kv = kv[1:]
	}

	kd, ok := data[key]
	if !ok {
		kd = KeyData{}
		data[key] = kd
	}

	for i := 0; i < len(kv); i += 2 {
		v := decodeValue(kv[i+1])
		if group == "" {
			kd[kv[i]] = valueSlot(v)
			continue
		}
		slot := kd[group]
		if slot.group == nil {
			slot = Slot{group: map[string]Value{}}
		}
		slot.group[kv[i]] = v
		kd[group] = slot
	}
	return nil
}

// parseStepHeader extracts the stored index from a step header line.
func parseStepHeader(line string) (int, error) {
	if !strings.HasPrefix(line, stepHeaderPrefix) {
		return 0, fmt.Errorf("%w: bad step header %q", ErrCorruptHistory, line)
	}
	idx, err := strconv.Atoi(line[len(stepHeaderPrefix):])
	if err != nil {
		return 0, fmt.Errorf("%w: bad step header %q", ErrCorruptHistory, line)
	}
	return idx, nil
}
