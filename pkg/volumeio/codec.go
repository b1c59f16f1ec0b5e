package volumeio

import (
	"fmt"
	"strings"
)

// Compression identifies the codec applied to the voxel payload.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionS2
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionS2:
		return "s2"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// Codec compresses and decompresses voxel payloads. Implementations are safe
// for concurrent use.
type Codec interface {
	// Compress returns a newly allocated compressed copy of data.
	Compress(data []byte) ([]byte, error)

	// Decompress restores a payload whose uncompressed length is size.
	Decompress(data []byte, size int) ([]byte, error)
}

var builtinCodecs = map[Compression]Codec{
	CompressionNone: noopCodec{},
	CompressionGzip: gzipCodec{},
	CompressionZstd: zstdCodec{},
	CompressionS2:   s2Codec{},
	CompressionLZ4:  lz4Codec{},
}

// GetCodec returns the built-in codec for c.
func GetCodec(c Compression) (Codec, error) {
	if codec, ok := builtinCodecs[c]; ok {
		return codec, nil
	}
	return nil, fmt.Errorf("unsupported compression type: %s", c)
}

// extensions maps file suffixes to codecs, longest first.
var extensions = []struct {
	suffix      string
	compression Compression
}{
	{".fvol.gz", CompressionGzip},
	{".fvol.zst", CompressionZstd},
	{".fvol.sz", CompressionS2},
	{".fvol.lz4", CompressionLZ4},
	{".fvol", CompressionNone},
}

// CompressionForPath selects the codec from the file name.
func CompressionForPath(path string) (Compression, error) {
	lower := strings.ToLower(path)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext.suffix) {
			return ext.compression, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownExtension, path)
}

// IsVolumeFile reports whether path carries a known volume extension.
func IsVolumeFile(path string) bool {
	_, err := CompressionForPath(path)
	return err == nil
}

// TrimExtension removes the volume extension from a file name.
func TrimExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext.suffix) {
			return name[:len(name)-len(ext.suffix)]
		}
	}
	return name
}

type noopCodec struct{}

func (noopCodec) Compress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

func (noopCodec) Decompress(data []byte, size int) ([]byte, error) {
	if len(data) != size {
		return nil, fmt.Errorf("raw payload has %d bytes, expected %d", len(data), size)
	}
	return append([]byte(nil), data...), nil
}
