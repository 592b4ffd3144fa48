package pdf

import (
	"sort"
	"strings"

	"github.com/cloneofkoha/form-filler/internal/format"
)

// textBox is one positioned piece of extracted text. Coordinates are PDF
// user-space points, origin bottom-left.
type textBox struct {
	S        string
	X, Y, W  float64
	FontSize float64
}

// labelSlot is a detected entry field: a colon-suffixed label segment with
// enough empty space after it on the same line.
type labelSlot struct {
	Label string
	Line  string
	X, Y  float64 // bottom-left point where the value should start
}

const (
	lineTolerance = 2.0  // points of Y jitter folded into one line
	minGap        = 30.0 // minimum whitespace after a label to call it a field
	valuePad      = 8.0  // horizontal padding between label and filled value
)

// segment is a run of characters with ordinary spacing between them.
type segment struct {
	text       string
	x, y, endX float64
	fontSize   float64
}

// detectSlots groups raw text boxes into lines and segments, then keeps the
// segments that read like labels with an empty stretch after them.
func detectSlots(boxes []textBox) []labelSlot {
	lines := groupLines(boxes)

	var slots []labelSlot
	for _, line := range lines {
		segs := groupSegments(line)
		lineText := joinSegments(segs)
		for i, seg := range segs {
			label := strings.TrimSpace(seg.text)
			// without document structure, the trailing colon is the only
			// reliable separator between labels and prose
			if !strings.HasSuffix(label, ":") || !format.LooksLikeLabel(label) {
				continue
			}
			gap := minGap + 1 // end of line counts as open space
			if i+1 < len(segs) {
				gap = segs[i+1].x - seg.endX
			}
			if gap < minGap {
				continue
			}
			slots = append(slots, labelSlot{
				Label: format.TrimLabel(label),
				Line:  lineText,
				X:     seg.endX + valuePad,
				Y:     seg.y,
			})
		}
	}
	return slots
}

// groupLines buckets boxes by baseline and orders them top-down, left-right.
func groupLines(boxes []textBox) [][]textBox {
	sorted := make([]textBox, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if diff := sorted[i].Y - sorted[j].Y; diff > lineTolerance || diff < -lineTolerance {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines [][]textBox
	for _, b := range sorted {
		if strings.TrimSpace(b.S) == "" && b.W == 0 {
			continue
		}
		n := len(lines)
		if n > 0 {
			lastY := lines[n-1][0].Y
			if b.Y >= lastY-lineTolerance && b.Y <= lastY+lineTolerance {
				lines[n-1] = append(lines[n-1], b)
				continue
			}
		}
		lines = append(lines, []textBox{b})
	}
	return lines
}

// groupSegments merges adjacent boxes of a line into word runs, splitting
// where the horizontal gap exceeds normal spacing.
func groupSegments(line []textBox) []segment {
	var segs []segment
	for _, b := range line {
		fs := b.FontSize
		if fs <= 0 {
			fs = 10
		}
		if n := len(segs); n > 0 {
			prev := &segs[n-1]
			gap := b.X - prev.endX
			if gap <= 1.2*fs {
				if gap > 0.2*fs && !strings.HasSuffix(prev.text, " ") {
					prev.text += " "
				}
				prev.text += b.S
				if end := b.X + b.W; end > prev.endX {
					prev.endX = end
				}
				continue
			}
		}
		segs = append(segs, segment{
			text:     b.S,
			x:        b.X,
			y:        b.Y,
			endX:     b.X + b.W,
			fontSize: fs,
		})
	}
	return segs
}

func joinSegments(segs []segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " | ")
}
