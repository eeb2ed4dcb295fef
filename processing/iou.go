package processing

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// IoU computes intersection-over-union between two (xMin, yMin, xMax, yMax)
// boxes. Disjoint or zero-area boxes score exactly 0; the result is always
// finite and in [0, 1], and symmetric in its arguments.
func IoU(boxA, boxB []float32) float32 {
	interW := math32.Min(boxA[2], boxB[2]) - math32.Max(boxA[0], boxB[0])
	interH := math32.Min(boxA[3], boxB[3]) - math32.Max(boxA[1], boxB[1])
	if interW <= 0 || interH <= 0 {
		return 0
	}
	intersection := interW * interH

	areaA := (boxA[2] - boxA[0]) * (boxA[3] - boxA[1])
	areaB := (boxB[2] - boxB[0]) * (boxB[3] - boxB[1])
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// Overlaps computes the full overlap tensor between a (W, H, A, 4) anchor
// grid and a (B, 4) ground-truth tensor, returning shape (W, H, A, B).
// Brute force over all pairs; anchor and box counts are modest enough that
// no spatial pruning is needed.
func Overlaps(anchors, gtBoxes *tensor.Dense) (*tensor.Dense, error) {
	anchorShape := anchors.Shape()
	if len(anchorShape) != 4 || anchorShape[3] != 4 {
		return nil, errors.Errorf("expected a (W, H, A, 4) anchor tensor, got shape %v", anchorShape)
	}
	gtShape := gtBoxes.Shape()
	if len(gtShape) != 2 || gtShape[1] != 4 {
		return nil, errors.Errorf("expected a (B, 4) ground-truth tensor, got shape %v", gtShape)
	}

	numAnchors := anchorShape[0] * anchorShape[1] * anchorShape[2]
	numBoxes := gtShape[0]
	anchorData := anchors.Float32s()
	gtData := gtBoxes.Float32s()

	overlaps := make([]float32, numAnchors*numBoxes)
	for i := 0; i < numAnchors; i++ {
		anchor := anchorData[i*4 : (i+1)*4]
		for b := 0; b < numBoxes; b++ {
			overlaps[i*numBoxes+b] = IoU(anchor, gtData[b*4:(b+1)*4])
		}
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(anchorShape[0], anchorShape[1], anchorShape[2], numBoxes),
		tensor.WithBacking(overlaps),
	), nil
}
