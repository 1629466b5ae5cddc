package cache

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

// initCodec builds the shared encoder and decoder. EncodeAll and DecodeAll
// are safe for concurrent use on a single instance.
func initCodec() {
	encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if codecErr != nil {
		return
	}
	decoder, codecErr = zstd.NewReader(nil)
}

// Compress returns data compressed with zstd.
func Compress(data []byte) ([]byte, error) {
	codecOnce.Do(initCodec)
	if codecErr != nil {
		return nil, codecErr
	}
	return encoder.EncodeAll(data, nil), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	codecOnce.Do(initCodec)
	if codecErr != nil {
		return nil, codecErr
	}
	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out, nil
}
