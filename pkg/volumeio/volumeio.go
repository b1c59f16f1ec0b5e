// Package volumeio reads and writes volumes in the FVOL container.
//
// An FVOL file is a fixed little-endian header followed by the voxel payload:
//
//	magic        [4]byte  "FVOL"
//	version      uint8
//	dtype        uint8    1 = float32, 2 = float64
//	compression  uint8    see Compression
//	reserved     uint8
//	ndims        uint32
//	dims         [ndims]int64
//	rawSize      uint64   payload length before compression
//	storedSize   uint64   payload length on disk
//	payload      [storedSize]byte
//
// The payload holds the voxels in row-major order. The codec is chosen from
// the file extension on save and read back from the header on load.
package volumeio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"fracnd/internal/models"
)

const (
	magic   = "FVOL"
	version = 1

	// maxDims bounds the header so corrupt files cannot trigger huge
	// allocations.
	maxDims = 16
)

var (
	// ErrBadMagic is returned for files that are not FVOL containers.
	ErrBadMagic = errors.New("not an FVOL file")

	// ErrCorrupt is returned for truncated or inconsistent payloads.
	ErrCorrupt = errors.New("corrupt volume file")

	// ErrUnknownExtension is returned when a path has no volume extension.
	ErrUnknownExtension = errors.New("unknown volume file extension")
)

// DType is the on-disk element type.
type DType uint8

const (
	Float32 DType = 1
	Float64 DType = 2
)

func (d DType) size() int {
	switch d {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// SaveOptions controls how a volume is written.
type SaveOptions struct {
	// DType is the element type; zero selects Float32
	DType DType
}

var order = binary.LittleEndian

// Load reads a volume file.
func Load(path string) (*models.Volume, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read volume: %w", err)
	}
	v, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return v, nil
}

// Save writes v to path, compressing the payload according to the file
// extension. The file is written to a temporary name and renamed into place.
func Save(path string, v *models.Volume, opts SaveOptions) error {
	compression, err := CompressionForPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(v, opts.DType, compression)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write volume: %w", err)
	}
	return os.Rename(tmp, path)
}

// Encode serializes v into an FVOL container.
func Encode(v *models.Volume, dtype DType, compression Compression) ([]byte, error) {
	if dtype == 0 {
		dtype = Float32
	}
	width := dtype.size()
	if width == 0 {
		return nil, fmt.Errorf("unsupported dtype %d", dtype)
	}
	if v.Dims() == 0 || v.Dims() > maxDims {
		return nil, fmt.Errorf("volume must have 1 to %d dimensions, got %d", maxDims, v.Dims())
	}
	codec, err := GetCodec(compression)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 0, v.Len()*width)
	for _, x := range v.Data {
		if dtype == Float32 {
			raw = order.AppendUint32(raw, math.Float32bits(float32(x)))
		} else {
			raw = order.AppendUint64(raw, math.Float64bits(x))
		}
	}
	stored, err := codec.Compress(raw)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 4+4+4+8*v.Dims()+16+len(stored))
	buf = append(buf, magic...)
	buf = append(buf, version, byte(dtype), byte(compression), 0)
	buf = order.AppendUint32(buf, uint32(v.Dims()))
	for _, s := range v.Shape {
		buf = order.AppendUint64(buf, uint64(s))
	}
	buf = order.AppendUint64(buf, uint64(len(raw)))
	buf = order.AppendUint64(buf, uint64(len(stored)))
	buf = append(buf, stored...)
	return buf, nil
}

// Decode parses an FVOL container.
func Decode(data []byte) (*models.Volume, error) {
	r := bytes.NewReader(data)

	var head [12]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, ErrBadMagic
	}
	if string(head[:4]) != magic {
		return nil, ErrBadMagic
	}
	if head[4] != version {
		return nil, fmt.Errorf("unsupported FVOL version %d", head[4])
	}
	dtype := DType(head[5])
	width := dtype.size()
	if width == 0 {
		return nil, fmt.Errorf("%w: unknown dtype %d", ErrCorrupt, dtype)
	}
	codec, err := GetCodec(Compression(head[6]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	ndims := order.Uint32(head[8:12])
	if ndims == 0 || ndims > maxDims {
		return nil, fmt.Errorf("%w: %d dimensions", ErrCorrupt, ndims)
	}
	shape := make([]int, ndims)
	n := 1
	for i := range shape {
		var d int64
		if err := binary.Read(r, order, &d); err != nil {
			return nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%w: axis %d has extent %d", ErrCorrupt, i, d)
		}
		shape[i] = int(d)
		n *= shape[i]
	}

	var sizes [2]uint64
	if err := binary.Read(r, order, &sizes); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	rawSize, storedSize := sizes[0], sizes[1]
	if rawSize != uint64(n*width) {
		return nil, fmt.Errorf("%w: payload of %d bytes does not match shape %v", ErrCorrupt, rawSize, shape)
	}
	if storedSize != uint64(r.Len()) {
		return nil, fmt.Errorf("%w: expected %d payload bytes, found %d", ErrCorrupt, storedSize, r.Len())
	}

	stored := data[len(data)-r.Len():]
	raw, err := codec.Decompress(stored, int(rawSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	values := make([]float64, n)
	for i := range values {
		if dtype == Float32 {
			values[i] = float64(math.Float32frombits(order.Uint32(raw[i*4:])))
		} else {
			values[i] = math.Float64frombits(order.Uint64(raw[i*8:]))
		}
	}
	return models.VolumeFromData(values, shape...)
}
