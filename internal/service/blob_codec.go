package service

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	// BlobCompressionNone 表示原样存储。
	BlobCompressionNone = "none"
	// BlobCompressionZstd 表示以 zstd 默认级别压缩存储。
	BlobCompressionZstd = "zstd"
)

// zstd.Encoder 与 zstd.Decoder 可并发复用。
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("service: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("service: zstd decoder initialization failed: " + err.Error())
	}
}

// encodeBlob 按配置压缩数据；压缩后不更小时原样保存。
func encodeBlob(data []byte, compression string) ([]byte, string) {
	if compression != BlobCompressionZstd || len(data) == 0 {
		return data, BlobCompressionNone
	}
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return data, BlobCompressionNone
	}
	return compressed, BlobCompressionZstd
}

func decodeBlob(stored []byte, compression string, size int64) ([]byte, error) {
	switch compression {
	case "", BlobCompressionNone:
		return stored, nil
	case BlobCompressionZstd:
		out, err := zstdDecoder.DecodeAll(stored, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if int64(len(out)) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown blob compression %q", compression)
	}
}
