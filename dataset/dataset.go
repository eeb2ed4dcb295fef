// Package dataset loads a VOC-layout dataset of dental panoramic x-rays and
// produces per-image training examples through the anchor target pipeline.
//
// The expected layout under the root directory:
//
//	Annotations/<name>.xml        VOC annotation per image
//	JPEGImages/<name>.png         panoramic x-ray
//	pascal_label_map.pbtxt        class id <-> name mapping
package dataset

import (
	"encoding/xml"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	fasterrcnn "github.com/goodengineer/faster-rcnn"
	"github.com/goodengineer/faster-rcnn/config"
	"github.com/goodengineer/faster-rcnn/utils"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Example is one training sample: the image as a (1, 3, H, W) tensor in the
// input frame, its anchor targets, and the class id of each truth box.
type Example struct {
	Image   *tensor.Dense
	Targets *fasterrcnn.AnchorTargetResult
	Classes []int
}

// ToothImageDataset indexes the annotation files of a VOC-layout directory
// and builds anchor targets for its images on demand.
type ToothImageDataset struct {
	rootDir         string
	params          *config.AnchorTargetParams
	pipeline        *fasterrcnn.AnchorTargetPipeline
	labelMap        map[int]string
	inverseLabelMap map[string]int
	annotations     []string
}

func NewToothImageDataset(rootDir string, params *config.AnchorTargetParams, seed int64) (*ToothImageDataset, error) {
	pipeline, err := fasterrcnn.NewAnchorTargetPipeline(params, seed)
	if err != nil {
		return nil, err
	}

	labelMapPath := filepath.Join(rootDir, "pascal_label_map.pbtxt")
	labelMap, err := ParseLabelMap(labelMapPath)
	if err != nil {
		return nil, err
	}
	inverseLabelMap, err := ParseInverseLabelMap(labelMapPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(rootDir, "Annotations"))
	if err != nil {
		return nil, errors.Wrapf(err, "listing annotations in %s", rootDir)
	}
	annotations := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".xml") {
			annotations = append(annotations, entry.Name())
		}
	}
	sort.Strings(annotations)

	return &ToothImageDataset{
		rootDir:         rootDir,
		params:          pipeline.Params(),
		pipeline:        pipeline,
		labelMap:        labelMap,
		inverseLabelMap: inverseLabelMap,
		annotations:     annotations,
	}, nil
}

func (d *ToothImageDataset) Len() int {
	return len(d.annotations)
}

// LabelName resolves a class id to its name, or "" when unknown.
func (d *ToothImageDataset) LabelName(id int) string {
	return d.labelMap[id]
}

type vocAnnotation struct {
	XMLName xml.Name `xml:"annotation"`
	Size    struct {
		Width  int `xml:"width"`
		Height int `xml:"height"`
	} `xml:"size"`
	Objects []struct {
		Name   string `xml:"name"`
		BndBox struct {
			XMin float32 `xml:"xmin"`
			YMin float32 `xml:"ymin"`
			XMax float32 `xml:"xmax"`
			YMax float32 `xml:"ymax"`
		} `xml:"bndbox"`
	} `xml:"object"`
}

// TruthBoxes parses the i-th annotation and rescales its boxes from the
// annotated frame into the canonical input frame. Images without objects
// return a nil tensor, which downstream treats as the all-negative case.
func (d *ToothImageDataset) TruthBoxes(i int) (*tensor.Dense, []int, error) {
	if i < 0 || i >= len(d.annotations) {
		return nil, nil, errors.Errorf("annotation index %d out of range [0, %d)", i, len(d.annotations))
	}
	path := filepath.Join(d.rootDir, "Annotations", d.annotations[i])

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var annotation vocAnnotation
	if err := xml.NewDecoder(f).Decode(&annotation); err != nil {
		return nil, nil, errors.Wrapf(err, "parsing annotation %s", path)
	}
	if annotation.Size.Width <= 0 || annotation.Size.Height <= 0 {
		return nil, nil, errors.Errorf("annotation %s has invalid size %dx%d", path, annotation.Size.Width, annotation.Size.Height)
	}
	if len(annotation.Objects) == 0 {
		return nil, nil, nil
	}

	widthRatio := float32(annotation.Size.Width) / float32(d.params.InputSize[0])
	heightRatio := float32(annotation.Size.Height) / float32(d.params.InputSize[1])

	boxes := make([]float32, 0, len(annotation.Objects)*4)
	classes := make([]int, 0, len(annotation.Objects))
	for _, object := range annotation.Objects {
		id, ok := d.inverseLabelMap[object.Name]
		if !ok {
			return nil, nil, errors.Errorf("annotation %s references unknown label %q", path, object.Name)
		}
		classes = append(classes, id)
		boxes = append(boxes,
			object.BndBox.XMin/widthRatio,
			object.BndBox.YMin/heightRatio,
			object.BndBox.XMax/widthRatio,
			object.BndBox.YMax/heightRatio,
		)
	}

	gtBoxes := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(annotation.Objects), 4),
		tensor.WithBacking(boxes),
	)
	return gtBoxes, classes, nil
}

// Image loads the x-ray backing the i-th annotation.
func (d *ToothImageDataset) Image(i int) (image.Image, error) {
	if i < 0 || i >= len(d.annotations) {
		return nil, errors.Errorf("image index %d out of range [0, %d)", i, len(d.annotations))
	}
	stem := strings.TrimSuffix(d.annotations[i], ".xml")
	return utils.LoadImage(filepath.Join(d.rootDir, "JPEGImages", stem+".png"))
}

// Example assembles the full training sample for the i-th image.
func (d *ToothImageDataset) Example(i int) (*Example, error) {
	img, err := d.Image(i)
	if err != nil {
		return nil, err
	}
	resized := utils.ResizeToFrame(img, d.params.InputSize)

	gtBoxes, classes, err := d.TruthBoxes(i)
	if err != nil {
		return nil, err
	}

	targets, err := d.pipeline.BuildTargets(gtBoxes)
	if err != nil {
		return nil, err
	}

	return &Example{
		Image:   utils.ImageToCHWTensor(resized),
		Targets: targets,
		Classes: classes,
	}, nil
}
