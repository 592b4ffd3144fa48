// Package masterdata loads the canonical company profile and exposes it as an
// immutable snapshot of canonical keys to values.
package masterdata

import (
	"bufio"
	"io"
	"sort"
	"strings"

	"github.com/cloneofkoha/form-filler/internal/classify"
	"github.com/cloneofkoha/form-filler/internal/common"
)

// Snapshot is a read-only view of the company profile. A snapshot is never
// mutated after Parse returns; reloads build a new one.
type Snapshot struct {
	values map[string]string
	keys   []string
}

// Parse reads a labeled-field profile document ("Bank Name: ...", markdown
// bullets and bold markers tolerated) into a snapshot. Fields that are absent
// from the source are absent from the snapshot, not empty strings.
func Parse(r io.Reader) (*Snapshot, error) {
	rules := classify.Default()

	values := make(map[string]string)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		label, value, ok := splitLine(sc.Text())
		if !ok {
			continue
		}
		key := rules.CanonicalKeyFor(label)
		if key == "" {
			continue
		}
		// Keys are unique within a snapshot; first occurrence wins.
		if _, dup := values[key]; dup {
			continue
		}
		values[key] = value
	}
	if err := sc.Err(); err != nil {
		return nil, common.NewAppError("DATA_LOAD", "reading master data source", common.ErrDataLoad)
	}
	if len(values) == 0 {
		return nil, common.NewAppError("DATA_LOAD", "no recognizable field pairs in master data source", common.ErrDataLoad)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Snapshot{values: values, keys: keys}, nil
}

// splitLine extracts one "Label: value" pair from a profile line.
func splitLine(line string) (label, value string, ok bool) {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "---") {
		return "", "", false
	}
	// markdown bullets and numbering
	s = strings.TrimLeft(s, "-*•> \t")
	s = strings.ReplaceAll(s, "**", "")

	i := strings.Index(s, ":")
	if i <= 0 {
		return "", "", false
	}
	label = strings.TrimSpace(s[:i])
	value = strings.TrimSpace(s[i+1:])
	if label == "" || value == "" {
		return "", "", false
	}
	if len(label) > 64 || strings.Contains(label, "http") || !containsLetter(label) {
		return "", "", false
	}
	return label, value, true
}

func containsLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

// Get returns the value for a canonical key.
func (s *Snapshot) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the canonical keys in sorted order.
func (s *Snapshot) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.values)
}

// Reference renders the snapshot as "key: value" lines in key order, the form
// handed to the model fallback as its only allowed evidence.
func (s *Snapshot) Reference() string {
	var b strings.Builder
	for _, k := range s.keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(s.values[k])
		b.WriteString("\n")
	}
	return b.String()
}
