package anki

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Zstandard frame magic, little endian. Modern packages compress the
// collection database (collection.anki21b) and the media manifest with
// plain zstd frames.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// LooksCompressed reports whether buf starts with a zstd frame header.
func LooksCompressed(buf []byte) bool {
	if len(buf) < len(zstdMagic) {
		return false
	}
	for i, b := range zstdMagic {
		if buf[i] != b {
			return false
		}
	}
	return true
}

// Decompress reverses one zstd frame. Callers decide how hard a failure
// is: fatal for the collection database, advisory everywhere else.
func Decompress(buf []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to init zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(buf, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress zstd frame: %w", err)
	}
	return out, nil
}
