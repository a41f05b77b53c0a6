package node

import (
	"image"
	"image/color"
	"testing"
)

func TestBlankIsSolidWhite(t *testing.T) {
	tensor := Blank(4, 2)
	if tensor.Width != 4 || tensor.Height != 2 {
		t.Fatalf("unexpected dimensions: %dx%d", tensor.Width, tensor.Height)
	}
	if len(tensor.Data) != 4*2*3 {
		t.Fatalf("unexpected data length: %d", len(tensor.Data))
	}
	for i, v := range tensor.Data {
		if v != 1.0 {
			t.Fatalf("channel %d is %f, want 1.0", i, v)
		}
	}
}

func TestImageRoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	src.SetRGBA(1, 0, color.RGBA{G: 255, A: 255})
	src.SetRGBA(2, 1, color.RGBA{B: 128, A: 255})

	tensor := FromImage(src)
	back := tensor.Image()

	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			want := src.RGBAAt(x, y)
			got := back.RGBAAt(x, y)
			if want.R != got.R || want.G != got.G || want.B != got.B {
				t.Fatalf("pixel (%d,%d) changed: want %v got %v", x, y, want, got)
			}
		}
	}
}

func TestEncodeDecodePNG(t *testing.T) {
	tensor := Blank(5, 3)
	tensor.Data[0] = 0.25

	encoded, err := tensor.EncodePNG()
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	decoded, err := DecodeImage(encoded)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if decoded.Width != 5 || decoded.Height != 3 {
		t.Fatalf("dimensions lost: %dx%d", decoded.Width, decoded.Height)
	}
	// 0.25 maps to byte 64 and back to 64/255.
	if got := decoded.Data[0]; got < 0.24 || got > 0.26 {
		t.Fatalf("red channel drifted: %f", got)
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, err := DecodeImage([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestChannelByteClamps(t *testing.T) {
	cases := []struct {
		in   float32
		want uint8
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 128},
		{1, 255},
		{2.5, 255},
	}
	for _, tc := range cases {
		if got := channelByte(tc.in); got != tc.want {
			t.Fatalf("channelByte(%f) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
