package processing

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Parametrize encodes each matched ground-truth box relative to its anchor as
// (dx, dy, dw, dh): offsets of the top-left corner scaled by the anchor size,
// and log ratios of the widths and heights. Output shape matches the anchor
// tensor (W, H, A, 4).
//
// matchedBoxes may be nil (no ground truth), in which case the targets are
// all zero. Non-finite encodings from zero-area matched boxes (log(0), 0/0)
// are masked to zero; the returned tensor is always finite, which silently
// hides degenerate ground truth rather than failing on it.
func Parametrize(anchors, matchedBoxes *tensor.Dense) (*tensor.Dense, error) {
	anchorShape := anchors.Shape()
	if len(anchorShape) != 4 || anchorShape[3] != 4 {
		return nil, errors.Errorf("expected a (W, H, A, 4) anchor tensor, got shape %v", anchorShape)
	}

	reg := make([]float32, anchorShape.TotalSize())
	if matchedBoxes == nil {
		return tensor.New(
			tensor.Of(tensor.Float32),
			tensor.WithShape(anchorShape...),
			tensor.WithBacking(reg),
		), nil
	}

	if !matchedBoxes.Shape().Eq(anchorShape) {
		return nil, errors.Errorf("matched box shape %v does not align with anchor shape %v", matchedBoxes.Shape(), anchorShape)
	}

	anchorData := anchors.Float32s()
	gtData := matchedBoxes.Float32s()
	for i := 0; i < len(anchorData); i += 4 {
		anchorW := anchorData[i+2] - anchorData[i]
		anchorH := anchorData[i+3] - anchorData[i+1]
		gtW := gtData[i+2] - gtData[i]
		gtH := gtData[i+3] - gtData[i+1]

		reg[i] = (gtData[i] - anchorData[i]) / anchorW
		reg[i+1] = (gtData[i+1] - anchorData[i+1]) / anchorH
		reg[i+2] = math32.Log(gtW / anchorW)
		reg[i+3] = math32.Log(gtH / anchorH)
	}

	for i, v := range reg {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			reg[i] = 0
		}
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(anchorShape...),
		tensor.WithBacking(reg),
	), nil
}
