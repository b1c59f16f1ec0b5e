//go:build cgozstd

package volumeio

import (
	"fmt"

	"github.com/valyala/gozstd"
)

// zstdCodec binds libzstd through cgo. Build with -tags cgozstd.
type zstdCodec struct{}

func (zstdCodec) Compress(data []byte) ([]byte, error) {
	return gozstd.CompressLevel(nil, data, 3), nil
}

func (zstdCodec) Decompress(data []byte, size int) ([]byte, error) {
	out, err := gozstd.Decompress(make([]byte, 0, size), data)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return checkSize(out, size)
}
