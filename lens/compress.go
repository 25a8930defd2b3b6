package lens

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// EncodeAll and DecodeAll are safe for concurrent use, so a single encoder and decoder serve all
// cache writers and readers.
var (
	zstdEncoder = sync.OnceValue(func() *zstd.Encoder {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			panic(err) // only fails on invalid options
		}
		return encoder
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
)

// ZstdCompress appends the zstd compressed form of data to dst.
func ZstdCompress(dst, data []byte) []byte {
	return zstdEncoder().EncodeAll(data, dst)
}

// ZstdDecompress appends the decompressed form of data to dst.
func ZstdDecompress(dst, data []byte) ([]byte, error) {
	decoder, err := zstdDecoder()
	if err != nil {
		return nil, err
	}
	return decoder.DecodeAll(data, dst)
}
