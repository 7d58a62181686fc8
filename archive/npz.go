package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zip"

	"github.com/hupe1980/diffra/model"
)

const (
	indexesEntry  = "indexes.npy"
	patternsEntry = "patterns.npy"
)

// Write serializes the indexes and patterns arrays into the zip-of-arrays
// container.
func Write(w io.Writer, indexes []int64, patterns *model.Block) error {
	zw := zip.NewWriter(w)

	iw, err := zw.CreateHeader(&zip.FileHeader{Name: indexesEntry, Method: zip.Deflate})
	if err != nil {
		return err
	}
	if err := writeNPYInt64(iw, indexes); err != nil {
		return err
	}

	pw, err := zw.CreateHeader(&zip.FileHeader{Name: patternsEntry, Method: zip.Deflate})
	if err != nil {
		return err
	}
	if err := writeNPYUint32(pw, patterns.Data, []int{patterns.N, patterns.H, patterns.W}); err != nil {
		return err
	}

	return zw.Close()
}

// Read is the structural inverse of Write.
func Read(ra io.ReaderAt, size int64) ([]int64, *model.Block, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: open container: %w", err)
	}

	var indexes []int64
	var patterns *model.Block

	for _, f := range zr.File {
		switch f.Name {
		case indexesEntry:
			rc, err := f.Open()
			if err != nil {
				return nil, nil, err
			}
			indexes, err = readNPYInt64(rc)
			rc.Close()
			if err != nil {
				return nil, nil, err
			}
		case patternsEntry:
			rc, err := f.Open()
			if err != nil {
				return nil, nil, err
			}
			data, shape, err := readNPYUint32(rc)
			rc.Close()
			if err != nil {
				return nil, nil, err
			}
			if len(shape) != 3 {
				return nil, nil, fmt.Errorf("archive: patterns entry must be 3-D, got %v", shape)
			}
			patterns, err = model.BlockFromSlice(data, shape[0], shape[1], shape[2])
			if err != nil {
				return nil, nil, err
			}
		}
	}

	if indexes == nil || patterns == nil {
		return nil, nil, fmt.Errorf("archive: container missing %s or %s", indexesEntry, patternsEntry)
	}
	if len(indexes) != patterns.N {
		return nil, nil, fmt.Errorf("archive: indexes length %d does not match %d patterns", len(indexes), patterns.N)
	}
	return indexes, patterns, nil
}

// WriteFile exports to a file path.
func WriteFile(path string, indexes []int64, patterns *model.Block) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, indexes, patterns); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile imports from a file path.
func ReadFile(path string) ([]int64, *model.Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	return Read(f, fi.Size())
}
