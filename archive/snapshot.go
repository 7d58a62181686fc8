package archive

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/diffra/model"
)

// Snapshot form: a fixed header followed by one LZ4 frame holding the
// indexes and pixel data back to back. Cheaper than the zip container for
// local scratch persistence.

var snapshotMagic = [8]byte{'D', 'I', 'F', 'S', 'N', 'A', 'P', '1'}

// WriteSnapshot serializes the arrays in the LZ4-framed snapshot form.
func WriteSnapshot(w io.Writer, indexes []int64, patterns *model.Block) error {
	if _, err := w.Write(snapshotMagic[:]); err != nil {
		return err
	}

	var header [24]byte
	binary.LittleEndian.PutUint64(header[0:], uint64(patterns.N))
	binary.LittleEndian.PutUint64(header[8:], uint64(patterns.H))
	binary.LittleEndian.PutUint64(header[16:], uint64(patterns.W))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	zw := lz4.NewWriter(w)

	buf := make([]byte, 8*len(indexes))
	for i, v := range indexes {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(v))
	}
	if _, err := zw.Write(buf); err != nil {
		return err
	}

	pix := make([]byte, 4*len(patterns.Data))
	for i, v := range patterns.Data {
		binary.LittleEndian.PutUint32(pix[4*i:], v)
	}
	if _, err := zw.Write(pix); err != nil {
		return err
	}

	return zw.Close()
}

// ReadSnapshot is the structural inverse of WriteSnapshot.
func ReadSnapshot(r io.Reader) ([]int64, *model.Block, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, nil, fmt.Errorf("archive: snapshot header: %w", err)
	}
	if magic != snapshotMagic {
		return nil, nil, fmt.Errorf("archive: not a snapshot")
	}

	var header [24]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, nil, fmt.Errorf("archive: snapshot header: %w", err)
	}
	n := int(binary.LittleEndian.Uint64(header[0:]))
	h := int(binary.LittleEndian.Uint64(header[8:]))
	w := int(binary.LittleEndian.Uint64(header[16:]))
	if _, err := elemCount([]int{n}, 8); err != nil {
		return nil, nil, err
	}
	count, err := elemCount([]int{n, h, w}, 4)
	if err != nil {
		return nil, nil, err
	}

	zr := lz4.NewReader(r)

	indexes, err := readInt64Elems(zr, n)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: snapshot indexes: %w", err)
	}

	data, err := readUint32Elems(zr, count)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: snapshot patterns: %w", err)
	}

	patterns, err := model.BlockFromSlice(data, n, h, w)
	if err != nil {
		return nil, nil, err
	}
	return indexes, patterns, nil
}

// WriteSnapshotFile writes the snapshot form to a file path.
func WriteSnapshotFile(path string, indexes []int64, patterns *model.Block) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSnapshot(f, indexes, patterns); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadSnapshotFile reads the snapshot form from a file path.
func ReadSnapshotFile(path string) ([]int64, *model.Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadSnapshot(f)
}
