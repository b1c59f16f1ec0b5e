package volumeio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fracnd/internal/models"
)

func testVolume() *models.Volume {
	v := models.NewVolume(4, 5, 6)
	for i := range v.Data {
		// Multiples of 1/4 survive the float32 conversion exactly.
		v.Data[i] = float64(i%17) * 0.25
	}
	return v
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	v := testVolume()

	for _, ext := range []string{".fvol", ".fvol.gz", ".fvol.zst", ".fvol.sz", ".fvol.lz4"} {
		for _, dtype := range []DType{Float32, Float64} {
			path := filepath.Join(dir, "vol"+ext)
			require.NoError(t, Save(path, v, SaveOptions{DType: dtype}), ext)

			got, err := Load(path)
			require.NoError(t, err, ext)
			assert.Equal(t, v.Shape, got.Shape, ext)
			assert.Equal(t, v.Data, got.Data, ext)
		}
	}
}

func TestEncodeRecordsCompression(t *testing.T) {
	v := testVolume()
	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionZstd, CompressionS2, CompressionLZ4} {
		data, err := Encode(v, Float64, c)
		require.NoError(t, err, c.String())
		assert.Equal(t, byte(c), data[6], c.String())

		got, err := Decode(data)
		require.NoError(t, err, c.String())
		assert.Equal(t, v.Data, got.Data, c.String())
	}
}

func TestLZ4Incompressible(t *testing.T) {
	v := models.NewVolume(3)
	v.Data = []float64{1.1, -7.3, 3.14159}

	data, err := Encode(v, Float64, CompressionLZ4)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, v.Data, got.Data)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("nope"))
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = Decode([]byte("XVOL\x01\x01\x00\x00\x01\x00\x00\x00"))
	assert.ErrorIs(t, err, ErrBadMagic)

	data, err := Encode(testVolume(), Float32, CompressionNone)
	require.NoError(t, err)

	_, err = Decode(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Decode(data[:20])
	assert.ErrorIs(t, err, ErrCorrupt)

	bad := append([]byte(nil), data...)
	bad[5] = 9
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSaveUnknownExtension(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "vol.nii"), testVolume(), SaveOptions{})
	assert.ErrorIs(t, err, ErrUnknownExtension)
}

func TestExtensions(t *testing.T) {
	c, err := CompressionForPath("/data/P001/P001_seg.FVOL.GZ")
	require.NoError(t, err)
	assert.Equal(t, CompressionGzip, c)

	assert.True(t, IsVolumeFile("a_t1.fvol.lz4"))
	assert.False(t, IsVolumeFile("a_t1.nii.gz"))

	assert.Equal(t, "P001_seg", TrimExtension("P001_seg.fvol.zst"))
	assert.Equal(t, "notes.txt", TrimExtension("notes.txt"))
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.fvol")
	b := filepath.Join(dir, "b.fvol")

	require.NoError(t, Save(a, testVolume(), SaveOptions{}))
	require.NoError(t, Save(b, testVolume(), SaveOptions{}))

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Len(t, fa, 16)
	assert.Equal(t, fa, fb)

	require.NoError(t, os.WriteFile(b, []byte("changed"), 0o644))
	fb, err = Fingerprint(b)
	require.NoError(t, err)
	assert.NotEqual(t, fa, fb)

	_, err = Fingerprint(filepath.Join(dir, "missing.fvol"))
	assert.Error(t, err)
}
