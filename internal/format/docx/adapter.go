// Package docx adapts flow-document forms. Fillable locations are blank or
// placeholder table cells next to a label cell, and inline "Label: ____"
// paragraph slots. Rendering edits only word/document.xml; every other zip
// entry is copied raw, byte for byte.
package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/cloneofkoha/form-filler/constants"
	"github.com/cloneofkoha/form-filler/internal/common"
	"github.com/cloneofkoha/form-filler/internal/document"
	"github.com/cloneofkoha/form-filler/internal/format"
)

const documentEntry = "word/document.xml"

const (
	kindTableCell = "table-cell"
	kindInline    = "inline"
)

type Adapter struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) Format() constants.Format {
	return constants.DOCX
}

// inlineRe splits paragraph text into "label : trailing-placeholder".
var inlineRe = regexp.MustCompile(`^(.{1,80}?)\s*:\s*([_\s.…]*)$`)

func (a *Adapter) Parse(data []byte) ([]document.FillTarget, error) {
	doc, err := readDocumentXML(data)
	if err != nil {
		return nil, err
	}

	tables := elements(doc, "tbl")
	var targets []document.FillTarget

	for _, tbl := range tables {
		tt, err := a.parseTable(doc, tbl)
		if err != nil {
			return nil, err
		}
		targets = append(targets, tt...)
	}

	for _, p := range elements(doc, "p") {
		if insideAny(p, tables) {
			continue
		}
		if t, ok := a.parseInline(doc, p); ok {
			targets = append(targets, t)
		}
	}

	// document order
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Loc.Offset < targets[j].Loc.Offset
	})
	a.logger.Debug("docx.parse.ok", "targets", len(targets))
	return targets, nil
}

// parseTable emits a target for every blank or placeholder cell that directly
// follows a label cell in the same row.
func (a *Adapter) parseTable(doc []byte, tbl span) ([]document.FillTarget, error) {
	inner := doc[tbl.start:tbl.end]
	// delimiter-aware so <w:tblPr>, <w:tblGrid> and friends do not count
	if idx := indexOpenTag(inner, []byte("<w:tbl"), tagLen("tbl")); idx >= 0 {
		// nested tables are the kind of embedded structure we refuse rather
		// than risk garbling
		return nil, common.NewAppError("PARSE_DOCX", "nested table structure", common.ErrUnsupportedFormat)
	}

	var targets []document.FillTarget
	for _, tr := range elementsWithin(doc, tbl, "tr") {
		cells := elementsWithin(doc, tr, "tc")
		rowText := rowContext(doc, cells)
		for i := 0; i+1 < len(cells); i++ {
			label := strings.TrimSpace(textOf(doc, cells[i]))
			if label == "" || !format.LooksLikeLabel(label) {
				continue
			}
			next := cells[i+1]
			nextText := textOf(doc, next)

			if ph, ok := placeholderRun(doc, next); ok {
				targets = append(targets, document.FillTarget{
					ID:       uuid.New().String(),
					Label:    format.TrimLabel(label),
					Context:  rowText,
					Current:  strings.TrimSpace(nextText),
					Fillable: true,
					Loc: document.Locator{
						Entry:  documentEntry,
						Offset: ph.start,
						Length: ph.end - ph.start,
						Kind:   kindTableCell,
					},
				})
				continue
			}
			if format.IsBlank(nextText) {
				at, ok := insertionPoint(doc, next)
				if !ok {
					continue
				}
				targets = append(targets, document.FillTarget{
					ID:       uuid.New().String(),
					Label:    format.TrimLabel(label),
					Context:  rowText,
					Fillable: true,
					Loc: document.Locator{
						Entry:  documentEntry,
						Offset: at,
						Kind:   kindTableCell,
					},
				})
			}
		}
	}
	return targets, nil
}

// parseInline matches "Label: ____" and "Label:" paragraph conventions.
func (a *Adapter) parseInline(doc []byte, p span) (document.FillTarget, bool) {
	text := strings.TrimSpace(textOf(doc, p))
	m := inlineRe.FindStringSubmatch(text)
	if m == nil {
		return document.FillTarget{}, false
	}
	label, trailer := m[1], m[2]
	if !format.LooksLikeLabel(label) {
		return document.FillTarget{}, false
	}

	if strings.Count(trailer, "_")+strings.Count(trailer, ".") >= 3 {
		ph, ok := placeholderRun(doc, p)
		if !ok {
			return document.FillTarget{}, false
		}
		return document.FillTarget{
			ID:       uuid.New().String(),
			Label:    format.TrimLabel(label),
			Context:  text,
			Current:  strings.TrimSpace(trailer),
			Fillable: true,
			Loc: document.Locator{
				Entry:  documentEntry,
				Offset: ph.start,
				Length: ph.end - ph.start,
				Kind:   kindInline,
			},
		}, true
	}

	if format.IsBlank(trailer) {
		at := p.end - len("</w:p>")
		return document.FillTarget{
			ID:       uuid.New().String(),
			Label:    format.TrimLabel(label),
			Context:  text,
			Fillable: true,
			Loc: document.Locator{
				Entry:  documentEntry,
				Offset: at,
				Kind:   kindInline,
			},
		}, true
	}
	return document.FillTarget{}, false
}

// Render rewrites word/document.xml with the fills applied and repackages the
// archive. Entries other than document.xml keep their exact stored bytes.
func (a *Adapter) Render(data []byte, fills []format.Fill) ([]byte, error) {
	if len(fills) == 0 {
		return data, nil
	}
	doc, err := readDocumentXML(data)
	if err != nil {
		return nil, err
	}

	// apply back to front so earlier offsets stay valid
	ordered := make([]format.Fill, 0, len(fills))
	for _, f := range fills {
		if f.Value != "" {
			ordered = append(ordered, f)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Target.Loc.Offset > ordered[j].Target.Loc.Offset
	})

	for _, f := range ordered {
		loc := f.Target.Loc
		if loc.Offset < 0 || loc.Offset+loc.Length > len(doc) {
			return nil, common.NewAppError("RENDER_DOCX", "fill target out of range", common.ErrInternal)
		}
		var patch []byte
		if loc.Length > 0 {
			patch = []byte(escapeXML(f.Value))
		} else {
			v := f.Value
			if loc.Kind == kindInline {
				v = " " + v
			}
			patch = []byte(`<w:r><w:t xml:space="preserve">` + escapeXML(v) + `</w:t></w:r>`)
		}
		doc = append(doc[:loc.Offset], append(patch, doc[loc.Offset+loc.Length:]...)...)
	}

	return rewriteArchive(data, documentEntry, doc, a.logger)
}

// readDocumentXML validates the container and returns word/document.xml.
func readDocumentXML(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, common.NewAppError("PARSE_DOCX", "not a valid document archive", common.ErrUnsupportedFormat)
	}
	for _, f := range zr.File {
		if f.Name != documentEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, common.NewAppError("PARSE_DOCX", "reading "+documentEntry, common.ErrUnsupportedFormat)
		}
		raw, err := io.ReadAll(rc)
		cerr := rc.Close()
		if err != nil || cerr != nil {
			return nil, common.NewAppError("PARSE_DOCX", "reading "+documentEntry, common.ErrUnsupportedFormat)
		}
		if !bytes.Contains(raw, []byte("<w:document")) {
			return nil, common.NewAppError("PARSE_DOCX", documentEntry+" is not a word-processing body", common.ErrUnsupportedFormat)
		}
		return raw, nil
	}
	return nil, common.NewAppError("PARSE_DOCX", documentEntry+" missing from archive", common.ErrUnsupportedFormat)
}

// rewriteArchive rebuilds the zip, swapping one entry's content and copying
// every other entry's compressed bytes untouched.
func rewriteArchive(data []byte, entry string, content []byte, logger *slog.Logger) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, common.NewAppError("RENDER_DOCX", "not a valid document archive", common.ErrUnsupportedFormat)
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, f := range zr.File {
		if f.Name == entry {
			hdr := f.FileHeader
			hdr.CRC32 = 0
			hdr.CompressedSize64 = 0
			hdr.UncompressedSize64 = 0
			w, err := zw.CreateHeader(&hdr)
			if err != nil {
				return nil, common.WrapError(err, "creating "+entry)
			}
			if _, err := w.Write(content); err != nil {
				return nil, common.WrapError(err, "writing "+entry)
			}
			continue
		}
		raw, err := f.OpenRaw()
		if err != nil {
			return nil, common.WrapError(err, "opening "+f.Name)
		}
		hdr := f.FileHeader
		w, err := zw.CreateRaw(&hdr)
		if err != nil {
			return nil, common.WrapError(err, "copying "+f.Name)
		}
		if _, err := io.Copy(w, raw); err != nil {
			return nil, common.WrapError(err, "copying "+f.Name)
		}
	}
	if err := zw.Close(); err != nil {
		logger.Error("docx.render.close_error", "error", err)
		return nil, common.WrapError(err, "closing archive")
	}
	return out.Bytes(), nil
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
