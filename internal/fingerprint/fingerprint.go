package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/webp"
)

// Fingerprint is a 64-bit perceptual hash summarizing an image's visual
// content. It is an opaque bit pattern: only the Hamming distance between
// two fingerprints is meaningful, never the numeric value.
type Fingerprint uint64

// hashBits is the only hash width the corpus understands.
const hashBits = 64

// ErrUndecodable marks bytes that do not decode as any recognized image
// format. Callers treat it as "not an image", not as a fatal error.
var ErrUndecodable = errors.New("undecodable image data")

// Extract decodes image bytes (format sniffed from content, never from a
// filename or mime hint) and returns their perceptual hash. Visually
// near-identical images produce fingerprints within a few bits of each
// other; unrelated images differ in roughly half the bits.
func Extract(data []byte) (Fingerprint, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, fmt.Errorf("perception hash: %w", err)
	}
	if hash.Bits() != hashBits {
		// A hash of any other width is a bug, not bad input.
		panic(fmt.Sprintf("perceptual hash is %d bits, want %d", hash.Bits(), hashBits))
	}

	return Fingerprint(hash.GetHash()), nil
}

// Distance returns the Hamming distance between two fingerprints (0..64).
func Distance(a, b Fingerprint) int {
	return bits.OnesCount64(uint64(a) ^ uint64(b))
}
