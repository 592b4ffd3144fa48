// Package xlsx adapts tabular spreadsheet forms. A fillable location is an
// empty cell directly right of or directly below a label cell, or any cell
// holding a placeholder convention (underscores, empty brackets).
package xlsx

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/cloneofkoha/form-filler/constants"
	"github.com/cloneofkoha/form-filler/internal/common"
	"github.com/cloneofkoha/form-filler/internal/document"
	"github.com/cloneofkoha/form-filler/internal/format"
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
	return constants.XLSX
}

// Parse scans every sheet row by row. The input bytes are never modified.
func (a *Adapter) Parse(data []byte) ([]document.FillTarget, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, common.NewAppError("PARSE_XLSX", "not a valid spreadsheet", common.ErrUnsupportedFormat)
	}
	defer a.close(f)

	var targets []document.FillTarget
	claimed := map[string]struct{}{} // sheet!cell already targeted

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, common.NewAppError("PARSE_XLSX", fmt.Sprintf("reading sheet %q", sheet), common.ErrUnsupportedFormat)
		}
		for r, row := range rows {
			for c, cell := range row {
				text := strings.TrimSpace(cell)
				if text == "" {
					continue
				}
				if format.IsPlaceholder(text) {
					// placeholder cell: label is the nearest non-empty cell to the left
					label := leftNeighbor(row, c)
					if label == "" || !format.LooksLikeLabel(label) {
						continue
					}
					targets = append(targets, a.target(sheet, r, c, label, text, rowContext(row), claimed))
					continue
				}
				if !format.LooksLikeLabel(text) {
					continue
				}
				// a non-colon cell right of a colon label is an answer, not
				// another label
				if !strings.HasSuffix(text, ":") && strings.HasSuffix(leftNeighbor(row, c), ":") {
					continue
				}
				// empty cell to the right of the label
				if blankAt(rows, r, c+1) {
					targets = append(targets, a.target(sheet, r, c+1, text, "", rowContext(row), claimed))
					continue
				}
				// or directly below, for grids of label columns over an
				// answer row; a filled value to the right (no colon) means
				// the label is already answered
				right := strings.TrimSpace(row[c+1])
				if strings.HasSuffix(right, ":") && blankAt(rows, r+1, c) && rowBelowMostlyBlank(rows, r+1) {
					targets = append(targets, a.target(sheet, r+1, c, text, "", rowContext(row), claimed))
				}
			}
		}
	}

	// drop zero-value entries produced by duplicate claims
	out := targets[:0]
	for _, t := range targets {
		if t.ID != "" {
			out = append(out, t)
		}
	}
	a.logger.Debug("xlsx.parse.ok", "targets", len(out))
	return out, nil
}

func (a *Adapter) target(sheet string, row, col int, label, current, context string, claimed map[string]struct{}) document.FillTarget {
	cell, _ := excelize.CoordinatesToCellName(col+1, row+1)
	ref := sheet + "!" + cell
	if _, dup := claimed[ref]; dup {
		return document.FillTarget{}
	}
	claimed[ref] = struct{}{}
	return document.FillTarget{
		ID:       uuid.New().String(),
		Label:    format.TrimLabel(label),
		Context:  context,
		Current:  current,
		Fillable: true,
		Loc:      document.Locator{Sheet: sheet, Cell: cell},
	}
}

// Render writes each fill into its cell on a fresh copy of the workbook.
// Writes into a merged range land on the merge anchor so the value is visible.
func (a *Adapter) Render(data []byte, fills []format.Fill) ([]byte, error) {
	if len(fills) == 0 {
		return data, nil
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, common.NewAppError("RENDER_XLSX", "not a valid spreadsheet", common.ErrUnsupportedFormat)
	}
	defer a.close(f)

	for _, fill := range fills {
		if fill.Value == "" {
			continue
		}
		sheet, cell := fill.Target.Loc.Sheet, fill.Target.Loc.Cell
		cell, err := a.mergeAnchor(f, sheet, cell)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStr(sheet, cell, fill.Value); err != nil {
			return nil, common.WrapError(err, "setting cell "+sheet+"!"+cell)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, common.WrapError(err, "xlsx write")
	}
	return buf.Bytes(), nil
}

// mergeAnchor maps a cell inside a merged range to the range's top-left cell.
func (a *Adapter) mergeAnchor(f *excelize.File, sheet, cell string) (string, error) {
	merges, err := f.GetMergeCells(sheet)
	if err != nil {
		return "", common.WrapError(err, "reading merged cells")
	}
	col, row, err := excelize.CellNameToCoordinates(cell)
	if err != nil {
		return "", common.WrapError(err, "bad cell reference "+cell)
	}
	for _, m := range merges {
		c1, r1, err1 := excelize.CellNameToCoordinates(m.GetStartAxis())
		c2, r2, err2 := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err1 != nil || err2 != nil {
			continue
		}
		if col >= c1 && col <= c2 && row >= r1 && row <= r2 {
			return m.GetStartAxis(), nil
		}
	}
	return cell, nil
}

func (a *Adapter) close(f *excelize.File) {
	if err := f.Close(); err != nil {
		a.logger.Warn("xlsx.close_error", "error", err)
	}
}

func leftNeighbor(row []string, col int) string {
	for c := col - 1; c >= 0; c-- {
		if t := strings.TrimSpace(row[c]); t != "" {
			return t
		}
	}
	return ""
}

func blankAt(rows [][]string, r, c int) bool {
	if r >= len(rows) {
		return true
	}
	row := rows[r]
	if c >= len(row) {
		return true
	}
	return strings.TrimSpace(row[c]) == ""
}

// rowBelowMostlyBlank guards the fill-below policy against dense data rows.
// Rows past the used range count as blank.
func rowBelowMostlyBlank(rows [][]string, r int) bool {
	if r >= len(rows) {
		return true
	}
	return rowIsMostlyBlank(rows[r])
}

func rowIsMostlyBlank(row []string) bool {
	filled := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			filled++
		}
	}
	return filled <= 1
}

func rowContext(row []string) string {
	parts := make([]string, 0, len(row))
	for _, cell := range row {
		if t := strings.TrimSpace(cell); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " | ")
}
