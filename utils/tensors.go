package utils

import (
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// SelectRows2D gathers rows of a (N, C) float32 tensor by index, returning a
// (len(indices), C) tensor. Indices may repeat.
func SelectRows2D(t *tensor.Dense, indices []int) (*tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) != 2 {
		return nil, errors.Errorf("expected a 2D tensor, got shape %v", shape)
	}
	numRows, numCols := shape[0], shape[1]

	data := t.Float32s()
	selected := make([]float32, 0, len(indices)*numCols)
	for _, idx := range indices {
		if idx < 0 || idx >= numRows {
			return nil, errors.Errorf("row index %d out of bounds for %d rows", idx, numRows)
		}
		selected = append(selected, data[idx*numCols:(idx+1)*numCols]...)
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(indices), numCols),
		tensor.WithBacking(selected),
	), nil
}

// WhereTrue returns the flat indices of the set entries of a mask.
func WhereTrue(mask []bool) []int {
	indices := make([]int, 0, len(mask))
	for i, v := range mask {
		if v {
			indices = append(indices, i)
		}
	}
	return indices
}

// Permuted returns a new slice holding the given indices in a random order
// drawn from rng. The input slice is left untouched.
func Permuted(rng *rand.Rand, indices []int) []int {
	permuted := make([]int, len(indices))
	for i, j := range rng.Perm(len(indices)) {
		permuted[i] = indices[j]
	}
	return permuted
}
