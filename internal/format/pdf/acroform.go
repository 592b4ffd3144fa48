package pdf

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/cloneofkoha/form-filler/internal/document"
	"github.com/cloneofkoha/form-filler/internal/format"
)

// formWidgets walks every page's annotations and returns a target for each
// empty text widget. The widget rectangle gives the overlay position; the
// field's alternate description (TU) is preferred over its name (T) as label
// text.
func (a *Adapter) formWidgets(ctx *model.Context) ([]document.FillTarget, error) {
	var targets []document.FillTarget

	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageDict, _, _, err := ctx.PageDict(pageNr, false)
		if err != nil || pageDict == nil {
			continue
		}
		obj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := ctx.DereferenceArray(obj)
		if err != nil {
			continue
		}
		for _, ref := range annots {
			d, err := ctx.DereferenceDict(ref)
			if err != nil || d == nil {
				continue
			}
			if sub := d.NameEntry("Subtype"); sub == nil || *sub != "Widget" {
				continue
			}
			if ft := d.NameEntry("FT"); ft == nil || *ft != "Tx" {
				continue
			}
			if v := stringEntry(ctx, d, "V"); strings.TrimSpace(v) != "" {
				continue // already filled
			}
			label := stringEntry(ctx, d, "TU")
			if label == "" {
				label = stringEntry(ctx, d, "T")
			}
			if label == "" || !format.LooksLikeLabel(label) {
				continue
			}
			x, y, ok := rectOrigin(ctx, d)
			if !ok {
				continue
			}
			targets = append(targets, document.FillTarget{
				ID:       uuid.New().String(),
				Label:    format.TrimLabel(humanizeFieldName(label)),
				Context:  "form field " + label,
				Fillable: true,
				Loc: document.Locator{
					Page: pageNr,
					X:    x + 2,
					Y:    y + 2,
				},
			})
		}
	}
	return targets, nil
}

func stringEntry(ctx *model.Context, d types.Dict, key string) string {
	obj, found := d.Find(key)
	if !found {
		return ""
	}
	obj, err := ctx.Dereference(obj)
	if err != nil {
		return ""
	}
	switch s := obj.(type) {
	case types.StringLiteral:
		str, err := types.StringLiteralToString(s)
		if err != nil {
			return ""
		}
		return str
	case types.HexLiteral:
		str, err := types.HexLiteralToString(s)
		if err != nil {
			return ""
		}
		return str
	}
	return ""
}

// rectOrigin returns the bottom-left corner of the widget rectangle.
func rectOrigin(ctx *model.Context, d types.Dict) (float64, float64, bool) {
	obj, found := d.Find("Rect")
	if !found {
		return 0, 0, false
	}
	arr, err := ctx.DereferenceArray(obj)
	if err != nil || len(arr) != 4 {
		return 0, 0, false
	}
	nums := make([]float64, 0, 4)
	for _, o := range arr {
		o, err := ctx.Dereference(o)
		if err != nil {
			return 0, 0, false
		}
		switch n := o.(type) {
		case types.Integer:
			nums = append(nums, float64(n))
		case types.Float:
			nums = append(nums, float64(n))
		default:
			return 0, 0, false
		}
	}
	x := min(nums[0], nums[2])
	y := min(nums[1], nums[3])
	return x, y, true
}

// humanizeFieldName turns "vendor_company_name" style field names into label
// text the classifier can score.
func humanizeFieldName(name string) string {
	name = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}
