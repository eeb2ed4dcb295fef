package faster_rcnn

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/goodengineer/faster-rcnn/config"
	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

// tinyParams is a 4x2 grid of one 4x4 anchor per cell over a 16x8 frame.
func tinyParams() *config.AnchorTargetParams {
	return config.NewAnchorTargetParams(
		[2]int{16, 8}, [2]int{4, 2}, 4,
		[]float32{1.0}, []float32{1.0},
		0.5, 0.3, 256,
	)
}

func TestNewAnchorTargetPipeline_InvalidParams(t *testing.T) {
	params := tinyParams()
	params.SampleSize = 0
	_, err := NewAnchorTargetPipeline(params, 1)
	assert.Error(t, err)
}

func TestNewAnchorTargetPipeline_DefaultParams(t *testing.T) {
	pipeline, err := NewAnchorTargetPipeline(nil, 1)
	assert.NoError(t, err)
	assert.Equal(t, config.DefaultAnchorTargetParams, pipeline.Params())
	assert.Equal(t, []int{50, 25, 9, 4}, []int(pipeline.Anchors().Shape()))
}

func TestBuildTargets_SingleMatchingBox(t *testing.T) {
	pipeline, err := NewAnchorTargetPipeline(tinyParams(), 1)
	assert.NoError(t, err)

	// exactly the anchor of cell (0,0)
	gtBoxes := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 4),
		tensor.WithBacking([]float32{0, 0, 4, 4}),
	)

	result, err := pipeline.BuildTargets(gtBoxes)
	assert.NoError(t, err)

	positives := result.Positives.Bools()
	negatives := result.Negatives.Bools()
	assert.Len(t, positives, 8)
	assert.True(t, positives[0])
	assert.False(t, negatives[0])
	for i := 1; i < 8; i++ {
		assert.False(t, positives[i], "anchor %d should not be positive", i)
		assert.True(t, negatives[i], "anchor %d should be negative", i)
	}

	assert.InDelta(t, 1.0, result.MaxIoU.Float32s()[0], 1e-6)
	assert.Equal(t, []int{0}, result.PositiveIndices)

	// the matching anchor regresses to zero
	regTargets := result.RegTargets.Float32s()
	for c := 0; c < 4; c++ {
		assert.InDelta(t, 0, regTargets[c], 1e-6)
	}

	// one positive plus every remaining negative fits well under the budget
	assert.Len(t, result.SelectedIndices, 8)
	assert.Equal(t, 0, result.SelectedIndices[0])
}

func TestBuildTargets_NoGroundTruth(t *testing.T) {
	pipeline, err := NewAnchorTargetPipeline(tinyParams(), 1)
	assert.NoError(t, err)

	result, err := pipeline.BuildTargets(nil)
	assert.NoError(t, err)

	assert.Empty(t, result.PositiveIndices)
	assert.Equal(t, make([]float32, 8*4), result.RegTargets.Float32s())
	for _, negative := range result.Negatives.Bools() {
		assert.True(t, negative)
	}
	assert.Len(t, result.SelectedIndices, 8)
}

func TestBuildTargets_DegenerateBoxStaysFinite(t *testing.T) {
	pipeline, err := NewAnchorTargetPipeline(tinyParams(), 1)
	assert.NoError(t, err)

	gtBoxes := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 4),
		tensor.WithBacking([]float32{2, 2, 2, 2}),
	)

	result, err := pipeline.BuildTargets(gtBoxes)
	assert.NoError(t, err)
	assert.Empty(t, result.PositiveIndices)
	for _, v := range result.RegTargets.Float32s() {
		assert.False(t, math32.IsNaN(v) || math32.IsInf(v, 0))
	}
}

func TestBuildTargets_InvalidBox(t *testing.T) {
	pipeline, err := NewAnchorTargetPipeline(tinyParams(), 1)
	assert.NoError(t, err)

	gtBoxes := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 4),
		tensor.WithBacking([]float32{4, 0, 0, 4}),
	)
	_, err = pipeline.BuildTargets(gtBoxes)
	assert.Error(t, err)
}

func TestFlatRegTargets(t *testing.T) {
	pipeline, err := NewAnchorTargetPipeline(tinyParams(), 1)
	assert.NoError(t, err)

	result, err := pipeline.BuildTargets(nil)
	assert.NoError(t, err)

	flat, err := result.FlatRegTargets()
	assert.NoError(t, err)
	assert.Equal(t, []int{8, 4}, []int(flat.Shape()))
	// the original stays 4-D
	assert.Equal(t, []int{4, 2, 1, 4}, []int(result.RegTargets.Shape()))
}
