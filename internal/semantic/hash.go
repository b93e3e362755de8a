package semantic

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// hashSize is the average-hash grid dimension (8x8), per spec.md 4.9.
const hashSize = 8

// ImageHash computes a 64-bit average hash of a JPEG-encoded crop, hex-
// encoded to 16 characters. Grounded on orbo's dependency on
// golang.org/x/image for resize support (internal/pipeline uses the same
// module for frame handling); the average-hash algorithm itself has no
// gonum/x-image helper, so it is implemented directly over the decoded
// image.
func ImageHash(jpegData []byte) (string, error) {
	img, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return "", fmt.Errorf("semantic: decode crop for hashing: %w", err)
	}

	gray := image.NewGray(image.Rect(0, 0, hashSize, hashSize))
	draw.BiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Over, nil)

	var sum int
	pixels := make([]uint8, 0, hashSize*hashSize)
	for y := 0; y < hashSize; y++ {
		for x := 0; x < hashSize; x++ {
			c := gray.GrayAt(x, y)
			pixels = append(pixels, c.Y)
			sum += int(c.Y)
		}
	}
	avg := sum / (hashSize * hashSize)

	var bits uint64
	for i, v := range pixels {
		if int(v) >= avg {
			bits |= 1 << uint(63-i)
		}
	}
	return fmt.Sprintf("%016x", bits), nil
}
