package processing

import (
	"math/rand"

	"github.com/goodengineer/faster-rcnn/utils"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// AnchorSampler draws the bounded, class-balanced anchor subset used for the
// loss of one training iteration. Positive anchors are vastly outnumbered by
// negatives, so up to half the budget goes to positives and negatives
// backfill the rest.
//
// The sampler owns its random source and is not safe for concurrent use;
// give each image worker its own sampler.
type AnchorSampler struct {
	sampleSize int
	rng        *rand.Rand
}

func NewAnchorSampler(sampleSize int, seed int64) *AnchorSampler {
	return &AnchorSampler{
		sampleSize: sampleSize,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Sample flattens the positive and negative masks and returns the selected
// flat anchor indices, positives first. It also returns the full positive
// index set for recall reporting. When positives are scarce the negatives
// fill the budget; when both are scarce the sample is simply smaller. Both
// sets empty yields an empty selection, which callers must treat as "no
// trainable anchors this image".
func (s *AnchorSampler) Sample(positives, negatives *tensor.Dense) (selected, positiveIndices []int, err error) {
	posMask := positives.Bools()
	negMask := negatives.Bools()
	if len(posMask) != len(negMask) {
		return nil, nil, errors.Errorf("mask sizes differ: %d positives vs %d negatives", len(posMask), len(negMask))
	}

	positiveIndices = utils.WhereTrue(posMask)
	negativeIndices := utils.WhereTrue(negMask)

	randomPositives := utils.Permuted(s.rng, positiveIndices)
	if len(randomPositives) > s.sampleSize/2 {
		randomPositives = randomPositives[:s.sampleSize/2]
	}

	randomNegatives := utils.Permuted(s.rng, negativeIndices)
	remaining := s.sampleSize - len(randomPositives)
	if len(randomNegatives) > remaining {
		randomNegatives = randomNegatives[:remaining]
	}

	selected = append(randomPositives, randomNegatives...)
	return selected, positiveIndices, nil
}
