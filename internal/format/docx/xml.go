package docx

import (
	"bytes"
	"strings"

	"github.com/cloneofkoha/form-filler/internal/format"
)

// span is a half-open byte range [start, end) within document.xml covering a
// full element including its tags.
type span struct {
	start, end int
}

func tagLen(tag string) int {
	return len("<w:") + len(tag)
}

// elements finds every <w:tag ...>...</w:tag> element, handling attributes,
// self-closing forms and nesting of the same tag.
func elements(doc []byte, tag string) []span {
	open := []byte("<w:" + tag)
	closing := []byte("</w:" + tag + ">")

	var out []span
	pos := 0
	for {
		i := indexOpenTag(doc, open, pos)
		if i < 0 {
			return out
		}
		gt := bytes.IndexByte(doc[i:], '>')
		if gt < 0 {
			return out
		}
		if doc[i+gt-1] == '/' {
			// self-closing
			out = append(out, span{start: i, end: i + gt + 1})
			pos = i + gt + 1
			continue
		}
		// scan for the matching close, counting nested opens of the same tag
		depth := 1
		scan := i + gt + 1
		for depth > 0 {
			nextOpen := indexOpenTag(doc, open, scan)
			nextClose := bytes.Index(doc[scan:], closing)
			if nextClose < 0 {
				return out // unbalanced; drop the dangling element
			}
			nextClose += scan
			if nextOpen >= 0 && nextOpen < nextClose {
				ngt := bytes.IndexByte(doc[nextOpen:], '>')
				if ngt >= 0 && doc[nextOpen+ngt-1] == '/' {
					scan = nextOpen + ngt + 1
					continue
				}
				depth++
				scan = nextOpen + len(open)
				continue
			}
			depth--
			scan = nextClose + len(closing)
		}
		out = append(out, span{start: i, end: scan})
		pos = scan
	}
}

// indexOpenTag finds "<w:tag" followed by a delimiter so "<w:t" does not match
// "<w:tbl".
func indexOpenTag(doc, open []byte, from int) int {
	for {
		i := bytes.Index(doc[from:], open)
		if i < 0 {
			return -1
		}
		i += from
		next := i + len(open)
		if next >= len(doc) {
			return -1
		}
		switch doc[next] {
		case ' ', '>', '/', '\t', '\n', '\r':
			return i
		}
		from = i + 1
	}
}

func elementsWithin(doc []byte, outer span, tag string) []span {
	inner := elements(doc[outer.start:outer.end], tag)
	for i := range inner {
		inner[i].start += outer.start
		inner[i].end += outer.start
	}
	return inner
}

func insideAny(s span, outers []span) bool {
	for _, o := range outers {
		if s.start >= o.start && s.end <= o.end {
			return true
		}
	}
	return false
}

// textRuns returns the content spans of every <w:t> within the element.
func textRuns(doc []byte, within span) []span {
	var out []span
	for _, t := range elementsWithin(doc, within, "t") {
		gt := bytes.IndexByte(doc[t.start:t.end], '>')
		if gt < 0 {
			continue
		}
		if doc[t.start+gt-1] == '/' {
			continue // self-closing, no content
		}
		contentStart := t.start + gt + 1
		contentEnd := t.end - len("</w:t>")
		if contentEnd < contentStart {
			continue
		}
		out = append(out, span{start: contentStart, end: contentEnd})
	}
	return out
}

// textOf concatenates the visible text of an element.
func textOf(doc []byte, within span) string {
	var b strings.Builder
	for _, r := range textRuns(doc, within) {
		b.Write(doc[r.start:r.end])
	}
	return unescapeXML(b.String())
}

// placeholderRun finds a text run whose whole content is a placeholder
// convention (underscores, dots) of meaningful length.
func placeholderRun(doc []byte, within span) (span, bool) {
	runs := textRuns(doc, within)
	for i := len(runs) - 1; i >= 0; i-- {
		content := string(doc[runs[i].start:runs[i].end])
		trimmed := strings.TrimSpace(content)
		if len(trimmed) >= 3 && format.IsPlaceholder(trimmed) {
			return runs[i], true
		}
	}
	return span{}, false
}

// insertionPoint returns the offset just before the closing </w:p> of the
// element's last paragraph.
func insertionPoint(doc []byte, within span) (int, bool) {
	paras := elementsWithin(doc, within, "p")
	if len(paras) == 0 {
		return 0, false
	}
	last := paras[len(paras)-1]
	if !bytes.HasSuffix(doc[last.start:last.end], []byte("</w:p>")) {
		return 0, false // self-closing empty paragraph, nowhere to hang a run
	}
	return last.end - len("</w:p>"), true
}

func rowContext(doc []byte, cells []span) string {
	parts := make([]string, 0, len(cells))
	for _, c := range cells {
		if t := strings.TrimSpace(textOf(doc, c)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " | ")
}

func unescapeXML(s string) string {
	r := strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&amp;", "&",
	)
	return r.Replace(s)
}
