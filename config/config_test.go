package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultAnchorTargetParams(t *testing.T) {
	params := DefaultAnchorTargetParams
	assert.NoError(t, params.Validate())
	assert.Equal(t, float32(32), params.CellSize())
	assert.Equal(t, 9, params.NumAnchors())
}

func TestAnchorTargetParams_Validate(t *testing.T) {
	valid := func() *AnchorTargetParams {
		return NewAnchorTargetParams(
			[2]int{1600, 800}, [2]int{50, 25}, 212,
			[]float32{0.3, 0.5, 1.0}, []float32{0.3, 0.5, 1.0},
			0.5, 0.3, 256,
		)
	}
	assert.NoError(t, valid().Validate())

	cases := []struct {
		name   string
		mutate func(*AnchorTargetParams)
	}{
		{"zero input width", func(p *AnchorTargetParams) { p.InputSize[0] = 0 }},
		{"negative output height", func(p *AnchorTargetParams) { p.OutputSize[1] = -1 }},
		{"zero receptive field", func(p *AnchorTargetParams) { p.ReceptiveField = 0 }},
		{"empty width ratios", func(p *AnchorTargetParams) { p.WidthRatios = nil }},
		{"negative height ratio", func(p *AnchorTargetParams) { p.HeightRatios = []float32{0.3, -0.5} }},
		{"inverted thresholds", func(p *AnchorTargetParams) { p.NegativeThreshold = 0.6 }},
		{"zero sample size", func(p *AnchorTargetParams) { p.SampleSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := valid()
			tc.mutate(params)
			assert.Error(t, params.Validate())
		})
	}
}
