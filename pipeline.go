package faster_rcnn

import (
	"github.com/goodengineer/faster-rcnn/config"
	"github.com/goodengineer/faster-rcnn/processing"
	"github.com/goodengineer/faster-rcnn/rcnn"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// AnchorTargetResult is the full supervision signal for one image: the
// shared anchor geometry, per-anchor regression targets and labels, and the
// subsampled index set to mask the loss with.
type AnchorTargetResult struct {
	// Anchors is the (W, H, A, 4) grid shared across images of the same
	// geometry. Read-only.
	Anchors *tensor.Dense `json:"anchors"`
	// RegTargets holds (dx, dy, dw, dh) per anchor, shape (W, H, A, 4).
	// Only meaningful under the positive mask, finite everywhere.
	RegTargets *tensor.Dense `json:"reg_targets"`
	// MaxIoU is each anchor's best overlap, shape (W, H, A).
	MaxIoU *tensor.Dense `json:"max_iou"`
	// Positives and Negatives are bool label tensors of shape (W, H, A).
	Positives *tensor.Dense `json:"positives"`
	Negatives *tensor.Dense `json:"negatives"`
	// SelectedIndices are the flat anchor indices sampled for this
	// iteration, positives first. PositiveIndices is the full positive set
	// for recall metrics.
	SelectedIndices []int `json:"selected_indices"`
	PositiveIndices []int `json:"positive_indices"`
}

// FlatRegTargets returns the regression targets reshaped to (W*H*A, 4) so
// rows line up with the flat indices in SelectedIndices.
func (r *AnchorTargetResult) FlatRegTargets() (*tensor.Dense, error) {
	flat := r.RegTargets.Clone().(*tensor.Dense)
	if err := flat.Reshape(flat.Shape().TotalSize()/4, 4); err != nil {
		return nil, err
	}
	return flat, nil
}

// AnchorTargetPipeline turns the ground-truth boxes of an image into
// region-proposal training targets: anchor generation, overlap matching,
// target parametrization and balanced subsampling.
//
// Everything except the sampler is a pure function of the configuration and
// the boxes. The pipeline holds a seeded random source for sampling and is
// therefore not safe for concurrent use; build one pipeline per worker with
// distinct seeds.
type AnchorTargetPipeline struct {
	params  *config.AnchorTargetParams
	anchors *tensor.Dense
	sampler *processing.AnchorSampler
}

// NewAnchorTargetPipeline validates the parameters and resolves the cached
// anchor grid for them. A nil params uses the dental panoramic defaults.
func NewAnchorTargetPipeline(params *config.AnchorTargetParams, seed int64) (*AnchorTargetPipeline, error) {
	if params == nil {
		params = config.DefaultAnchorTargetParams
	}
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid anchor target params")
	}

	anchors, err := rcnn.CachedAnchors(params)
	if err != nil {
		return nil, errors.Wrap(err, "generating anchor grid")
	}

	return &AnchorTargetPipeline{
		params:  params,
		anchors: anchors,
		sampler: processing.NewAnchorSampler(params.SampleSize, seed),
	}, nil
}

func (p *AnchorTargetPipeline) Params() *config.AnchorTargetParams {
	return p.params
}

// Anchors exposes the shared anchor grid. Read-only.
func (p *AnchorTargetPipeline) Anchors() *tensor.Dense {
	return p.anchors
}

// BuildTargets runs matching, parametrization and sampling for one image.
// gtBoxes is a (B, 4) tensor in the input frame; nil or empty means the
// image has no annotated objects and yields all-negative labels with zero
// targets.
func (p *AnchorTargetPipeline) BuildTargets(gtBoxes *tensor.Dense) (*AnchorTargetResult, error) {
	match, err := processing.MatchAnchors(p.params, p.anchors, gtBoxes)
	if err != nil {
		return nil, errors.Wrap(err, "anchor matching")
	}

	regTargets, err := processing.Parametrize(p.anchors, match.MatchedBoxes)
	if err != nil {
		return nil, errors.Wrap(err, "target parametrization")
	}

	selected, positiveIndices, err := p.sampler.Sample(match.Positives, match.Negatives)
	if err != nil {
		return nil, errors.Wrap(err, "anchor sampling")
	}

	return &AnchorTargetResult{
		Anchors:         p.anchors,
		RegTargets:      regTargets,
		MaxIoU:          match.MaxIoU,
		Positives:       match.Positives,
		Negatives:       match.Negatives,
		SelectedIndices: selected,
		PositiveIndices: positiveIndices,
	}, nil
}
