package filler

import (
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// stampPoints is the integral size pdfcpu renders a stamp at.
func stampPoints(size float64) int {
	points := int(math.Round(size))
	if points < 1 {
		points = 1
	}
	return points
}

// baselineLift is how far above the lower edge of its bounding box a
// single-line text stamp puts the baseline, mirroring pdfcpu's bottom
// alignment.
func baselineLift(fontName string, points int) float64 {
	return math.Ceil(font.LineHeight(fontName, points) - font.Ascent(fontName, points))
}

// stampDescription places the text's baseline at (x, y) in page space,
// unscaled and unrotated.
func stampDescription(fontName string, size, x, y float64) string {
	points := stampPoints(size)
	return fmt.Sprintf("fontname:%s, points:%d, position:bl, offset:%.2f %.2f, scalefactor:1 abs, rotation:0, opacity:1, fillcolor:#000000",
		fontName, points, x, y-baselineLift(fontName, points))
}

// stampMap groups stamp operations by 1-based page number.
func stampMap(ops []stampOp, fontName string) (map[int][]*model.Watermark, error) {
	m := make(map[int][]*model.Watermark)
	for _, op := range ops {
		wm, err := api.TextWatermark(op.text, stampDescription(fontName, op.size, op.x, op.y), true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("field %q: failed to build stamp: %w", op.field, err)
		}
		m[op.page+1] = append(m[op.page+1], wm)
	}
	return m, nil
}
