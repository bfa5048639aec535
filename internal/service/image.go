package service

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
)

const imageSize = 64

// renderImage draws a two-tone tile whose colours derive from name, so the
// same name always yields the same bytes
func renderImage(name string) ([]byte, error) {
	h := fnv.New64a()
	h.Write([]byte(name))
	sum := h.Sum64()

	fg := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 0xff}
	bg := color.RGBA{R: ^fg.R, G: ^fg.G, B: ^fg.B, A: 0xff}
	stripe := 4 + int(sum>>24)%12

	img := image.NewRGBA(image.Rect(0, 0, imageSize, imageSize))
	for y := range imageSize {
		for x := range imageSize {
			c := bg
			if ((x+y)/stripe)%2 == 0 {
				c = fg
			}
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
