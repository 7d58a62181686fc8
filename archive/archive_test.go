package archive

import (
	"bytes"
	"context"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diffra/blobstore"
	"github.com/hupe1980/diffra/model"
	"github.com/hupe1980/diffra/resource"
)

func sampleData(n, h, w int) ([]int64, *model.Block) {
	indexes := make([]int64, n)
	block := model.NewBlock(n, h, w)
	for i := range indexes {
		indexes[i] = int64(i)
	}
	for i := range block.Data {
		block.Data[i] = uint32(i * 7)
	}
	return indexes, block
}

func TestNPZ_RoundTrip(t *testing.T) {
	indexes, patterns := sampleData(4, 8, 6)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, indexes, patterns))

	gotIndexes, gotPatterns, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	assert.Equal(t, indexes, gotIndexes)
	assert.Equal(t, patterns.Data, gotPatterns.Data)
	assert.Equal(t, patterns.N, gotPatterns.N)
	assert.Equal(t, patterns.Extent(), gotPatterns.Extent())
}

func TestNPZ_RoundTripWithUnassigned(t *testing.T) {
	indexes, patterns := sampleData(3, 4, 4)
	indexes[1] = model.UnassignedIndex

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, indexes, patterns))

	gotIndexes, _, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, model.UnassignedIndex, gotIndexes[1])
}

func TestNPZ_RoundTripEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, model.NewBlock(0, 0, 0)))

	gotIndexes, gotPatterns, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Empty(t, gotIndexes)
	assert.Equal(t, 0, gotPatterns.N)
}

func TestNPZ_File(t *testing.T) {
	indexes, patterns := sampleData(2, 16, 16)
	path := filepath.Join(t.TempDir(), "export.npz")

	require.NoError(t, WriteFile(path, indexes, patterns))

	gotIndexes, gotPatterns, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, indexes, gotIndexes)
	assert.Equal(t, patterns.Data, gotPatterns.Data)
}

func TestNPZ_ReadRejectsGarbage(t *testing.T) {
	data := []byte("not a zip archive at all")
	_, _, err := Read(bytes.NewReader(data), int64(len(data)))
	require.Error(t, err)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	indexes, patterns := sampleData(5, 12, 10)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, indexes, patterns))

	gotIndexes, gotPatterns, err := ReadSnapshot(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, indexes, gotIndexes)
	assert.Equal(t, patterns.Data, gotPatterns.Data)
	assert.Equal(t, patterns.Extent(), gotPatterns.Extent())
}

func TestSnapshot_File(t *testing.T) {
	indexes, patterns := sampleData(3, 8, 8)
	path := filepath.Join(t.TempDir(), "state.snap")

	require.NoError(t, WriteSnapshotFile(path, indexes, patterns))

	gotIndexes, gotPatterns, err := ReadSnapshotFile(path)
	require.NoError(t, err)
	assert.Equal(t, indexes, gotIndexes)
	assert.Equal(t, patterns.Data, gotPatterns.Data)
}

func TestSnapshot_RejectsWrongMagic(t *testing.T) {
	_, _, err := ReadSnapshot(bytes.NewReader([]byte("DIFSNAPXxxxxxxxxxxxxxxxxxxxxxxxx")))
	require.Error(t, err)
}

func TestSnapshot_RejectsOversizedShape(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])

	var header [24]byte
	binary.LittleEndian.PutUint64(header[0:], 1<<62)
	binary.LittleEndian.PutUint64(header[8:], 4)
	binary.LittleEndian.PutUint64(header[16:], 4)
	buf.Write(header[:])

	_, _, err := ReadSnapshot(&buf)
	require.Error(t, err)
	var shapeErr *ErrShape
	assert.ErrorAs(t, err, &shapeErr)
}

func TestSnapshot_TruncatedPayloadFails(t *testing.T) {
	// Plausible header, no payload. The reader must fail on the short
	// stream instead of sizing buffers from the header alone.
	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])

	var header [24]byte
	binary.LittleEndian.PutUint64(header[0:], 1<<40)
	binary.LittleEndian.PutUint64(header[8:], 1)
	binary.LittleEndian.PutUint64(header[16:], 1)
	buf.Write(header[:])

	_, _, err := ReadSnapshot(&buf)
	require.Error(t, err)
}

func TestNPY_RejectsOversizedShape(t *testing.T) {
	hdr := npyHeader("<u4", []int{1 << 62, 4, 4})
	_, _, err := readNPYUint32(bytes.NewReader(hdr))
	require.Error(t, err)
	var shapeErr *ErrShape
	assert.ErrorAs(t, err, &shapeErr)
}

func TestNPY_TruncatedDataFails(t *testing.T) {
	hdr := npyHeader("<i8", []int{1 << 40})
	_, err := readNPYInt64(bytes.NewReader(hdr))
	require.Error(t, err)
}

func TestUploadDownload(t *testing.T) {
	store := blobstore.NewMemoryStore()
	indexes, patterns := sampleData(4, 8, 8)

	ctx := context.Background()
	require.NoError(t, Upload(ctx, store, "run-0001.npz", indexes, patterns, nil))

	gotIndexes, gotPatterns, err := Download(ctx, store, "run-0001.npz", nil)
	require.NoError(t, err)
	assert.Equal(t, indexes, gotIndexes)
	assert.Equal(t, patterns.Data, gotPatterns.Data)
}

func TestUploadDownload_RateLimited(t *testing.T) {
	store := blobstore.NewMemoryStore()
	indexes, patterns := sampleData(2, 4, 4)
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})

	ctx := context.Background()
	require.NoError(t, Upload(ctx, store, "run.npz", indexes, patterns, rc))

	gotIndexes, _, err := Download(ctx, store, "run.npz", rc)
	require.NoError(t, err)
	assert.Equal(t, indexes, gotIndexes)
}

func TestDownload_Missing(t *testing.T) {
	store := blobstore.NewMemoryStore()
	_, _, err := Download(context.Background(), store, "absent.npz", nil)
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}
