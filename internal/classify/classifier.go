// Package classify maps the label text of a fill target to a canonical
// master-data key. Matching is a deterministic rule table plus a
// normalization function; no model is involved, so it stays auditable and
// unit-testable on its own.
package classify

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cloneofkoha/form-filler/constants"
)

//go:embed rules.yaml
var embeddedRules []byte

// Rule binds one canonical key to its known label synonyms.
type Rule struct {
	Key    string   `yaml:"key"`
	Labels []string `yaml:"labels"`
}

// Match is the outcome of classifying one label.
type Match struct {
	Key        string
	Confidence float32
}

// FreeText reports whether the label could not be tied to any canonical key.
func (m Match) FreeText() bool {
	return m.Key == "" || m.Confidence < constants.FreeTextFloor
}

// Classifier scores normalized label text against the rule table.
type Classifier struct {
	rules    []Rule
	synonyms map[string][]string // key -> normalized synonyms, rule order preserved
}

// New builds a classifier from the embedded rule table.
func New() *Classifier {
	c, err := NewFromReader(strings.NewReader(string(embeddedRules)))
	if err != nil {
		// The embedded table is part of the build; failing to parse it is a bug.
		panic(fmt.Sprintf("classify: embedded rules: %v", err))
	}
	return c
}

// NewFromReader builds a classifier from a YAML rule table, allowing the
// embedded defaults to be overridden at startup.
func NewFromReader(r io.Reader) (*Classifier, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("rule table is empty")
	}

	c := &Classifier{
		rules:    doc.Rules,
		synonyms: make(map[string][]string, len(doc.Rules)),
	}
	for _, rule := range doc.Rules {
		syns := make([]string, 0, len(rule.Labels)+1)
		seen := map[string]struct{}{}
		for _, l := range rule.Labels {
			n := Normalize(l)
			if n == "" {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			syns = append(syns, n)
		}
		// The key itself, humanized, always counts as a synonym.
		if h := Normalize(humanize(rule.Key)); h != "" {
			if _, dup := seen[h]; !dup {
				syns = append(syns, h)
			}
		}
		c.synonyms[rule.Key] = syns
	}
	return c, nil
}

var (
	defaultOnce sync.Once
	defaultC    *Classifier
)

// Default returns the process-wide classifier built from the embedded rules.
func Default() *Classifier {
	defaultOnce.Do(func() { defaultC = New() })
	return defaultC
}

// Classify compares label text against the synonyms of each candidate key and
// returns the best match with a confidence in [0,1]. Ties are broken by the
// shortest label-length distance, then by candidate order, so output is stable
// across runs on identical input.
func (c *Classifier) Classify(label string, keys []string) Match {
	norm := Normalize(label)
	if norm == "" {
		return Match{}
	}

	best := Match{}
	bestDist := -1
	for _, key := range keys {
		conf, dist := c.scoreKey(norm, key)
		if conf > best.Confidence || (conf == best.Confidence && conf > 0 && dist < bestDist) {
			best = Match{Key: key, Confidence: conf}
			bestDist = dist
		}
	}
	if best.Confidence < constants.FreeTextFloor {
		return Match{Key: best.Key, Confidence: best.Confidence}
	}
	return best
}

// scoreKey returns the best synonym score for one key and the label-length
// distance of the synonym that produced it.
func (c *Classifier) scoreKey(norm, key string) (float32, int) {
	syns := c.synonyms[key]
	if len(syns) == 0 {
		// Keys outside the rule table (ad-hoc master data fields) still match
		// through their own humanized name.
		syns = []string{Normalize(humanize(key))}
	}

	var best float32
	bestDist := -1
	for _, syn := range syns {
		conf := score(norm, syn)
		dist := absInt(len(norm) - len(syn))
		if conf > best || (conf == best && conf > 0 && (bestDist < 0 || dist < bestDist)) {
			best = conf
			bestDist = dist
		}
	}
	return best, bestDist
}

// CanonicalKeyFor maps a raw field label to its canonical key. Labels with an
// exact normalized synonym take the rule key; anything else gets a slug of the
// normalized label so unmatched master-data fields are still addressable.
func (c *Classifier) CanonicalKeyFor(label string) string {
	norm := Normalize(label)
	if norm == "" {
		return ""
	}
	for _, rule := range c.rules {
		for _, syn := range c.synonyms[rule.Key] {
			if syn == norm {
				return rule.Key
			}
		}
	}
	return Slug(norm)
}

// score compares two normalized strings.
// exact match 1.0, containment 0.88, otherwise scaled token overlap.
func score(a, b string) float32 {
	if a == b {
		return 1.0
	}
	if len(a) >= 4 && len(b) >= 4 {
		if strings.Contains(a, b) || strings.Contains(b, a) {
			return 0.88
		}
	}
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) == 0 || len(bt) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(at))
	for _, t := range at {
		set[t] = struct{}{}
	}
	inter := 0
	union := len(set)
	for _, t := range bt {
		if _, ok := set[t]; ok {
			inter++
		} else {
			union++
		}
	}
	if inter == 0 {
		return 0
	}
	return 0.8 * float32(inter) / float32(union)
}

// Normalize lowercases, drops parentheticals and punctuation, and collapses
// whitespace, so "VAT / GST Number (if applicable):" and "vat gst number"
// compare equal.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = stripParens(s)

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Slug turns a normalized label into an identifier-shaped key.
func Slug(norm string) string {
	return strings.ReplaceAll(strings.TrimSpace(norm), " ", "_")
}

func stripParens(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func humanize(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
