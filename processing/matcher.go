package processing

import (
	"github.com/goodengineer/faster-rcnn/config"
	"github.com/goodengineer/faster-rcnn/utils"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// MatchResult holds the per-anchor outcome of matching the grid against the
// ground-truth boxes of one image.
type MatchResult struct {
	// MatchedBoxes is the best-overlapping ground-truth box per anchor,
	// shape (W, H, A, 4). Nil when the image has no ground truth. Values
	// are only meaningful under the positive mask.
	MatchedBoxes *tensor.Dense
	// MaxIoU is each anchor's best overlap over all boxes, shape (W, H, A).
	MaxIoU *tensor.Dense
	// Positives and Negatives are bool tensors of shape (W, H, A). Anchors
	// in neither mask are ignored and must not be sampled.
	Positives *tensor.Dense
	Negatives *tensor.Dense
}

// ValidateBoxes checks the coordinate-ordering invariant of a (B, 4)
// ground-truth tensor. Zero-area boxes are valid; inverted ones are not.
func ValidateBoxes(gtBoxes *tensor.Dense) error {
	shape := gtBoxes.Shape()
	if len(shape) != 2 || shape[1] != 4 {
		return errors.Errorf("expected a (B, 4) ground-truth tensor, got shape %v", shape)
	}
	data := gtBoxes.Float32s()
	for b := 0; b < shape[0]; b++ {
		box := data[b*4 : (b+1)*4]
		if box[2] < box[0] {
			return errors.Errorf("ground-truth box %d has x_max %.3f < x_min %.3f", b, box[2], box[0])
		}
		if box[3] < box[1] {
			return errors.Errorf("ground-truth box %d has y_max %.3f < y_min %.3f", b, box[3], box[1])
		}
	}
	return nil
}

// MatchAnchors matches every anchor of the grid against the ground-truth
// boxes and labels it positive, negative or ignored by thresholding its best
// overlap. Thresholds are strict on both sides: an anchor at exactly the
// positive threshold is not positive, one at exactly the negative threshold
// is not negative. Ties between boxes resolve to the lowest box index.
//
// gtBoxes may be nil or empty, which is a valid state: every anchor is
// negative and no matched boxes are produced.
func MatchAnchors(params *config.AnchorTargetParams, anchors, gtBoxes *tensor.Dense) (*MatchResult, error) {
	anchorShape := anchors.Shape()
	if len(anchorShape) != 4 || anchorShape[3] != 4 {
		return nil, errors.Errorf("expected a (W, H, A, 4) anchor tensor, got shape %v", anchorShape)
	}
	gridShape := []int{anchorShape[0], anchorShape[1], anchorShape[2]}
	numAnchors := anchorShape[0] * anchorShape[1] * anchorShape[2]

	numBoxes := 0
	if gtBoxes != nil && len(gtBoxes.Shape()) == 2 {
		numBoxes = gtBoxes.Shape()[0]
	}
	if numBoxes == 0 {
		positives := make([]bool, numAnchors)
		negatives := make([]bool, numAnchors)
		for i := range negatives {
			negatives[i] = true
		}
		return &MatchResult{
			MaxIoU:    tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(gridShape...)),
			Positives: tensor.New(tensor.WithShape(gridShape...), tensor.WithBacking(positives)),
			Negatives: tensor.New(tensor.WithShape(gridShape...), tensor.WithBacking(negatives)),
		}, nil
	}

	if err := ValidateBoxes(gtBoxes); err != nil {
		return nil, err
	}

	overlaps, err := Overlaps(anchors, gtBoxes)
	if err != nil {
		return nil, err
	}
	overlapData := overlaps.Float32s()

	maxIoU := make([]float32, numAnchors)
	bestBox := make([]int, numAnchors)
	positives := make([]bool, numAnchors)
	negatives := make([]bool, numAnchors)
	for i := 0; i < numAnchors; i++ {
		row := overlapData[i*numBoxes : (i+1)*numBoxes]
		best := 0
		for b := 1; b < numBoxes; b++ {
			// strictly greater keeps the first maximum
			if row[b] > row[best] {
				best = b
			}
		}
		bestBox[i] = best
		maxIoU[i] = row[best]
		positives[i] = maxIoU[i] > params.PositiveThreshold
		negatives[i] = maxIoU[i] < params.NegativeThreshold
	}

	matched, err := utils.SelectRows2D(gtBoxes, bestBox)
	if err != nil {
		return nil, errors.Wrap(err, "gathering matched boxes")
	}
	if err := matched.Reshape(anchorShape[0], anchorShape[1], anchorShape[2], 4); err != nil {
		return nil, err
	}

	return &MatchResult{
		MatchedBoxes: matched,
		MaxIoU:       tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(gridShape...), tensor.WithBacking(maxIoU)),
		Positives:    tensor.New(tensor.WithShape(gridShape...), tensor.WithBacking(positives)),
		Negatives:    tensor.New(tensor.WithShape(gridShape...), tensor.WithBacking(negatives)),
	}, nil
}
