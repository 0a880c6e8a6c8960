package database

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrCorruptEmbedding is wrapped by DecodeEmbedding for undecodable blobs.
var ErrCorruptEmbedding = errors.New("corrupt embedding")

// EncodeEmbedding serializes an embedding as little-endian float32 values.
// Used by the blob-backed stores (SQLite, MariaDB).
func EncodeEmbedding(embedding []float32) []byte {
	buf := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeEmbedding parses a blob written by EncodeEmbedding.
func DecodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty blob", ErrCorruptEmbedding)
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("%w: blob length %d is not a multiple of 4", ErrCorruptEmbedding, len(blob))
	}

	out := make([]float32, len(blob)/4)
	for i := range out {
		v := math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("%w: non-finite value at %d", ErrCorruptEmbedding, i)
		}
		out[i] = v
	}
	return out, nil
}
