// Package document holds the canonical data model shared by the format
// adapters, the classifier, the resolver and the engine.
package document

import "github.com/cloneofkoha/form-filler/constants"

// Document is an opaque byte buffer plus its container format. The engine
// never mutates Data; render always builds a fresh output buffer.
type Document struct {
	Data   []byte
	Format constants.Format
}

// Locator pins a FillTarget to its position in the source container.
// Exactly one group of fields is meaningful, selected by the document format:
// Sheet+Cell for spreadsheets, Entry+Offset(+Length) for flow documents,
// Page+X/Y for fixed-layout PDFs.
type Locator struct {
	// Spreadsheet: sheet name and A1-style cell reference.
	Sheet string
	Cell  string

	// Flow document: zip entry plus a byte span within it. Length zero means
	// a pure insertion point; Length > 0 means the span holds a placeholder
	// to be replaced. Kind distinguishes table-cell slots from inline
	// "Label: ____" slots, which render with different spacing.
	Entry  string
	Offset int
	Length int
	Kind   string

	// Fixed-layout PDF: 1-based page and the bottom-left point of the box.
	Page int
	X, Y float64
}

// FillTarget is a located blank slot in a document inferred to require a value.
// Targets live for the duration of one fill request only.
type FillTarget struct {
	ID       string
	Label    string
	Context  string
	Current  string
	Fillable bool
	Loc      Locator
}

// ResolvedValue is the outcome of resolving one fillable target.
type ResolvedValue struct {
	TargetID string
	Value    string
	Source   constants.Source
}
