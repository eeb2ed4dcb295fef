package config

import (
	"github.com/pkg/errors"
)

// AnchorTargetParams holds the fixed geometry and sampling constants used to
// turn ground-truth boxes into region-proposal training targets. All box
// coordinates downstream are expressed in the InputSize frame.
type AnchorTargetParams struct {
	InputSize         [2]int    `json:"input_size"`
	OutputSize        [2]int    `json:"output_size"`
	ReceptiveField    float32   `json:"receptive_field"`
	WidthRatios       []float32 `json:"width_ratios"`
	HeightRatios      []float32 `json:"height_ratios"`
	PositiveThreshold float32   `json:"positive_threshold"`
	NegativeThreshold float32   `json:"negative_threshold"`
	SampleSize        int       `json:"sample_size"`
}

// ReceptiveField is precalculated offline for the backbone at the 50x25
// output resolution (tensorflow/contrib/receptive_field).
var DefaultAnchorTargetParams = &AnchorTargetParams{
	InputSize:         [2]int{1600, 800},
	OutputSize:        [2]int{50, 25},
	ReceptiveField:    212,
	WidthRatios:       []float32{0.3, 0.5, 1.0},
	HeightRatios:      []float32{0.3, 0.5, 1.0},
	PositiveThreshold: 0.5,
	NegativeThreshold: 0.3,
	SampleSize:        256,
}

func NewAnchorTargetParams(inputSize, outputSize [2]int, receptiveField float32, widthRatios, heightRatios []float32, positiveThreshold, negativeThreshold float32, sampleSize int) *AnchorTargetParams {
	return &AnchorTargetParams{
		InputSize:         inputSize,
		OutputSize:        outputSize,
		ReceptiveField:    receptiveField,
		WidthRatios:       widthRatios,
		HeightRatios:      heightRatios,
		PositiveThreshold: positiveThreshold,
		NegativeThreshold: negativeThreshold,
		SampleSize:        sampleSize,
	}
}

// CellSize is the stride between anchor centers. It is derived from the
// horizontal axis and used for both axes.
func (p *AnchorTargetParams) CellSize() float32 {
	return float32(p.InputSize[0]) / float32(p.OutputSize[0])
}

// NumAnchors is the number of anchor shapes per grid cell.
func (p *AnchorTargetParams) NumAnchors() int {
	return len(p.WidthRatios) * len(p.HeightRatios)
}

func (p *AnchorTargetParams) Validate() error {
	if p.InputSize[0] <= 0 || p.InputSize[1] <= 0 {
		return errors.Errorf("input size must be positive, got %dx%d", p.InputSize[0], p.InputSize[1])
	}
	if p.OutputSize[0] <= 0 || p.OutputSize[1] <= 0 {
		return errors.Errorf("output size must be positive, got %dx%d", p.OutputSize[0], p.OutputSize[1])
	}
	if p.ReceptiveField <= 0 {
		return errors.Errorf("receptive field must be positive, got %f", p.ReceptiveField)
	}
	if len(p.WidthRatios) == 0 || len(p.HeightRatios) == 0 {
		return errors.New("width and height ratio sets must not be empty")
	}
	for _, r := range p.WidthRatios {
		if r <= 0 {
			return errors.Errorf("width ratio must be positive, got %f", r)
		}
	}
	for _, r := range p.HeightRatios {
		if r <= 0 {
			return errors.Errorf("height ratio must be positive, got %f", r)
		}
	}
	if p.NegativeThreshold >= p.PositiveThreshold {
		return errors.Errorf("negative threshold %f must be below positive threshold %f", p.NegativeThreshold, p.PositiveThreshold)
	}
	if p.SampleSize <= 0 {
		return errors.Errorf("sample size must be positive, got %d", p.SampleSize)
	}
	return nil
}
