package rcnn

import (
	"fmt"
	"sync"

	"github.com/goodengineer/faster-rcnn/config"
	"gorgonia.org/tensor"
)

// AnchorDimensions enumerates the (width, height) ratio pairs in canonical
// order: outer loop over width ratios, inner loop over height ratios. The
// resulting index is the shape axis of the anchor grid, so the ordering must
// stay stable across releases to keep persisted model weights valid.
func AnchorDimensions(widthRatios, heightRatios []float32) [][2]float32 {
	dimensions := make([][2]float32, 0, len(widthRatios)*len(heightRatios))
	for _, w := range widthRatios {
		for _, h := range heightRatios {
			dimensions = append(dimensions, [2]float32{w, h})
		}
	}
	return dimensions
}

// Anchors builds the dense anchor grid as a (W, H, A, 4) float32 tensor with
// each anchor stored as (xMin, yMin, xMax, yMax) in the input frame. Anchor
// centers sit at the geometric center of each output cell; widths and heights
// are the shape ratios scaled by the receptive field. Edge anchors may extend
// outside the frame and are deliberately not clipped.
func Anchors(params *config.AnchorTargetParams) (*tensor.Dense, error) {
	width := params.OutputSize[0]
	height := params.OutputSize[1]
	dimensions := AnchorDimensions(params.WidthRatios, params.HeightRatios)
	cellSize := params.CellSize()

	allAnchors := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(width, height, len(dimensions), 4),
	)

	for ix := 0; ix < width; ix++ {
		centerX := cellSize * (float32(ix) + 0.5)
		for iy := 0; iy < height; iy++ {
			// same cell size on both axes, see CellSize
			centerY := cellSize * (float32(iy) + 0.5)
			for k, dim := range dimensions {
				w := dim[0] * params.ReceptiveField
				h := dim[1] * params.ReceptiveField

				err := allAnchors.SetAt(centerX-w/2, ix, iy, k, 0)
				if err != nil {
					return nil, err
				}
				err = allAnchors.SetAt(centerY-h/2, ix, iy, k, 1)
				if err != nil {
					return nil, err
				}
				err = allAnchors.SetAt(centerX+w/2, ix, iy, k, 2)
				if err != nil {
					return nil, err
				}
				err = allAnchors.SetAt(centerY+h/2, ix, iy, k, 3)
				if err != nil {
					return nil, err
				}
			}
		}
	}

	return allAnchors, nil
}

var (
	anchorCacheMu sync.Mutex
	anchorCache   = map[string]*tensor.Dense{}
)

// CachedAnchors returns the anchor grid for the given geometry, computing it
// at most once per configuration. The grid is image-content independent, so
// callers processing many images of the same geometry share one tensor. The
// returned tensor must be treated as read-only.
func CachedAnchors(params *config.AnchorTargetParams) (*tensor.Dense, error) {
	key := cacheKey(params)

	anchorCacheMu.Lock()
	defer anchorCacheMu.Unlock()

	if anchors, ok := anchorCache[key]; ok {
		return anchors, nil
	}
	anchors, err := Anchors(params)
	if err != nil {
		return nil, err
	}
	anchorCache[key] = anchors
	return anchors, nil
}

func cacheKey(params *config.AnchorTargetParams) string {
	return fmt.Sprintf("%dx%d|%dx%d|%v|%v|%v",
		params.InputSize[0], params.InputSize[1],
		params.OutputSize[0], params.OutputSize[1],
		params.ReceptiveField, params.WidthRatios, params.HeightRatios,
	)
}
