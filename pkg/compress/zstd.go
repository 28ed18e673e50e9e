// Package compress stores large JSON blobs zstd-compressed above a size threshold.
package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// DefaultThreshold is the payload size above which Encode compresses.
const DefaultThreshold = 4 * 1024

// Codec compresses payloads larger than its threshold.
// It is safe for concurrent use.
type Codec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewCodec creates a zstd codec. threshold <= 0 uses DefaultThreshold.
func NewCodec(threshold int) (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	return &Codec{
		encoder:   encoder,
		decoder:   decoder,
		threshold: threshold,
	}, nil
}

// Encode returns data compressed when it exceeds the threshold, and whether
// it did so.
func (c *Codec) Encode(data []byte) ([]byte, bool, error) {
	if len(data) <= c.threshold {
		return data, false, nil
	}
	return c.encoder.EncodeAll(data, nil), true, nil
}

// Decode reverses Encode.
func (c *Codec) Decode(data []byte, compressed bool) ([]byte, error) {
	if !compressed {
		return data, nil
	}
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return out, nil
}

// Close releases decoder resources.
func (c *Codec) Close() {
	c.decoder.Close()
}
