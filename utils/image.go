package utils

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// LoadImage decodes a PNG or JPEG file from disk.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding image %s", path)
	}
	return img, nil
}

// ResizeToFrame scales an image to the canonical detector input frame
// (width, height), ignoring the source aspect ratio.
func ResizeToFrame(img image.Image, frame [2]int) image.Image {
	return resize.Resize(uint(frame[0]), uint(frame[1]), img, resize.Bilinear)
}

// ImageToCHWTensor converts a grayscale x-ray into a (1, 3, H, W) float32
// tensor with the luminance channel replicated three times and values scaled
// to [0, 1], matching what the backbone expects.
func ImageToCHWTensor(img image.Image) *tensor.Dense {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	plane := width * height

	data := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			v := float32(gray.Y) / 255.0
			i := y*width + x
			data[i] = v
			data[plane+i] = v
			data[2*plane+i] = v
		}
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 3, height, width),
		tensor.WithBacking(data),
	)
}
