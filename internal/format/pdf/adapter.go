// Package pdf adapts fixed-layout PDF forms. Targets come from AcroForm text
// widgets when the document has them, otherwise from positioned text
// extraction: label boxes with a whitespace gap wide enough to be an entry
// field. Filling stamps a text overlay at the target box and leaves the
// original page content untouched.
package pdf

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	ledongthuc "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/cloneofkoha/form-filler/constants"
	"github.com/cloneofkoha/form-filler/internal/common"
	"github.com/cloneofkoha/form-filler/internal/document"
	"github.com/cloneofkoha/form-filler/internal/format"
)

const overlayFontPts = 9

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
	return constants.PDF
}

func (a *Adapter) Parse(data []byte) ([]document.FillTarget, error) {
	ctx, err := readContext(data)
	if err != nil {
		return nil, err
	}

	widgets, err := a.formWidgets(ctx)
	if err != nil {
		return nil, err
	}
	if len(widgets) > 0 {
		a.logger.Debug("pdf.parse.acroform", "widgets", len(widgets))
		return widgets, nil
	}

	targets, err := a.textTargets(data)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("pdf.parse.layout", "targets", len(targets))
	return targets, nil
}

// textTargets extracts positioned text and infers entry fields from label
// boxes followed by open space.
func (a *Adapter) textTargets(data []byte) (targets []document.FillTarget, err error) {
	defer func() {
		// the text extractor is not hardened against every malformed stream
		if r := recover(); r != nil {
			targets = nil
			err = common.NewAppError("PARSE_PDF", fmt.Sprintf("text extraction failed: %v", r), common.ErrUnsupportedFormat)
		}
	}()

	r, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, common.NewAppError("PARSE_PDF", "not a valid PDF", common.ErrUnsupportedFormat)
	}

	for pageNr := 1; pageNr <= r.NumPage(); pageNr++ {
		page := r.Page(pageNr)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		boxes := make([]textBox, 0, len(content.Text))
		for _, t := range content.Text {
			boxes = append(boxes, textBox{S: t.S, X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize})
		}
		for _, slot := range detectSlots(boxes) {
			targets = append(targets, document.FillTarget{
				ID:       uuid.New().String(),
				Label:    slot.Label,
				Context:  slot.Line,
				Fillable: true,
				Loc: document.Locator{
					Page: pageNr,
					X:    slot.X,
					Y:    slot.Y,
				},
			})
		}
	}
	return targets, nil
}

// Render stamps each value as a per-page text overlay at its target box.
func (a *Adapter) Render(data []byte, fills []format.Fill) ([]byte, error) {
	byPage := make(map[int][]*model.Watermark)
	for _, f := range fills {
		if f.Value == "" {
			continue
		}
		loc := f.Target.Loc
		desc := fmt.Sprintf(
			"fontname:Helvetica, points:%d, scale:1 abs, pos:bl, off:%.1f %.1f, rot:0, fillcolor:#000000",
			overlayFontPts, loc.X, loc.Y,
		)
		wm, err := api.TextWatermark(f.Value, desc, true, false, types.POINTS)
		if err != nil {
			return nil, common.WrapError(err, "building overlay")
		}
		byPage[loc.Page] = append(byPage[loc.Page], wm)
	}
	if len(byPage) == 0 {
		return data, nil
	}

	var out bytes.Buffer
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.AddWatermarksSliceMap(bytes.NewReader(data), &out, byPage, conf); err != nil {
		return nil, common.NewAppError("RENDER_PDF", "stamping overlay", common.ErrUnsupportedFormat)
	}
	return out.Bytes(), nil
}

// readContext validates the container; corrupt bytes fail the request here.
func readContext(data []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, common.NewAppError("PARSE_PDF", "not a valid PDF", common.ErrUnsupportedFormat)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, common.NewAppError("PARSE_PDF", "unreadable page tree", common.ErrUnsupportedFormat)
	}
	return ctx, nil
}
