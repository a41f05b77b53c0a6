package node

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// Tensor is the pipeline host's native image representation: float32 RGB in
// [0,1] with [1,H,W,3] layout, matching what sampler nodes consume.
type Tensor struct {
	Data   []float32
	Height int
	Width  int
}

// NewTensor allocates a zeroed tensor.
func NewTensor(width, height int) *Tensor {
	return &Tensor{
		Data:   make([]float32, height*width*3),
		Height: height,
		Width:  width,
	}
}

// Blank returns a solid-white tensor, the placeholder producers fall back to
// when no canvas image is available. The graph always needs some image.
func Blank(width, height int) *Tensor {
	t := NewTensor(width, height)
	for i := range t.Data {
		t.Data[i] = 1.0
	}
	return t
}

// FromImage converts a decoded image into tensor form.
func FromImage(img image.Image) *Tensor {
	bounds := img.Bounds()
	t := NewTensor(bounds.Dx(), bounds.Dy())
	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			t.Data[idx] = float32(r) / 65535.0
			t.Data[idx+1] = float32(g) / 65535.0
			t.Data[idx+2] = float32(b) / 65535.0
			idx += 3
		}
	}
	return t
}

// Image converts the tensor back to an 8-bit RGBA image, clamping values
// into [0,1].
func (t *Tensor) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	idx := 0
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: channelByte(t.Data[idx]),
				G: channelByte(t.Data[idx+1]),
				B: channelByte(t.Data[idx+2]),
				A: 255,
			})
			idx += 3
		}
	}
	return img
}

// EncodePNG renders the tensor as PNG bytes.
func (t *Tensor) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, t.Image()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage parses encoded image bytes into tensor form. Any format the
// image package recognizes is accepted; the bridge itself always serves PNG.
func DecodeImage(data []byte) (*Tensor, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img), nil
}

func channelByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
