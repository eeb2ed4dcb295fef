package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

// maskTensor builds a (10, 10, 6) bool tensor with the flat indices in the
// given half-open range set.
func maskTensor(from, to int) *tensor.Dense {
	mask := make([]bool, 600)
	for i := from; i < to; i++ {
		mask[i] = true
	}
	return tensor.New(tensor.WithShape(10, 10, 6), tensor.WithBacking(mask))
}

func TestAnchorSampler_Balanced(t *testing.T) {
	positives := maskTensor(0, 300)
	negatives := maskTensor(300, 600)

	sampler := NewAnchorSampler(256, 1)
	selected, positiveIndices, err := sampler.Sample(positives, negatives)
	assert.NoError(t, err)

	assert.Len(t, selected, 256)
	assert.Len(t, positiveIndices, 300)

	seen := make(map[int]bool)
	for _, idx := range selected {
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 600)
		assert.False(t, seen[idx], "duplicate sampled index %d", idx)
		seen[idx] = true
	}
	// exactly half the budget from each class, positives first
	for _, idx := range selected[:128] {
		assert.Less(t, idx, 300)
	}
	for _, idx := range selected[128:] {
		assert.GreaterOrEqual(t, idx, 300)
	}
}

func TestAnchorSampler_ScarcePositives(t *testing.T) {
	positives := maskTensor(0, 10)
	negatives := maskTensor(20, 600)

	sampler := NewAnchorSampler(256, 1)
	selected, positiveIndices, err := sampler.Sample(positives, negatives)
	assert.NoError(t, err)

	// negatives backfill the budget
	assert.Len(t, selected, 256)
	assert.Len(t, positiveIndices, 10)
	for _, idx := range selected[:10] {
		assert.Less(t, idx, 10)
	}
	for _, idx := range selected[10:] {
		assert.GreaterOrEqual(t, idx, 20)
	}
}

func TestAnchorSampler_ScarceBoth(t *testing.T) {
	positives := maskTensor(0, 5)
	negatives := maskTensor(5, 10)

	sampler := NewAnchorSampler(256, 1)
	selected, _, err := sampler.Sample(positives, negatives)
	assert.NoError(t, err)
	assert.Len(t, selected, 10)
}

func TestAnchorSampler_NoTrainableAnchors(t *testing.T) {
	positives := maskTensor(0, 0)
	negatives := maskTensor(0, 0)

	sampler := NewAnchorSampler(256, 1)
	selected, positiveIndices, err := sampler.Sample(positives, negatives)
	assert.NoError(t, err)
	assert.Empty(t, selected)
	assert.Empty(t, positiveIndices)
}

func TestAnchorSampler_Seedable(t *testing.T) {
	positives := maskTensor(0, 300)
	negatives := maskTensor(300, 600)

	first, _, err := NewAnchorSampler(256, 42).Sample(positives, negatives)
	assert.NoError(t, err)
	second, _, err := NewAnchorSampler(256, 42).Sample(positives, negatives)
	assert.NoError(t, err)
	assert.Equal(t, first, second)

	third, _, err := NewAnchorSampler(256, 7).Sample(positives, negatives)
	assert.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestAnchorSampler_MaskSizeMismatch(t *testing.T) {
	positives := maskTensor(0, 10)
	negatives := tensor.New(tensor.WithShape(5, 5, 6), tensor.WithBacking(make([]bool, 150)))

	sampler := NewAnchorSampler(256, 1)
	_, _, err := sampler.Sample(positives, negatives)
	assert.Error(t, err)
}
