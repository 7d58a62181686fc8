package registry

import (
	"context"

	"github.com/hupe1980/diffra/archive"
	"github.com/hupe1980/diffra/model"
)

// NPZReader reads the built-in zip-of-arrays archive format back into a
// dataset. Import is the structural inverse of export: the restored dataset
// carries one source array holding all patterns under their original global
// indices.
type NPZReader struct{}

// SimpleName returns "NPZ".
func (NPZReader) SimpleName() string { return "NPZ" }

// Read opens an archive file.
func (NPZReader) Read(_ context.Context, path string) (model.Dataset, error) {
	indexes, patterns, err := archive.ReadFile(path)
	if err != nil {
		return nil, err
	}

	meta := model.Metadata{
		NumPatternsTotal:    patterns.N,
		NumPatternsPerArray: patterns.N,
		DetectorExtent:      patterns.Extent(),
		FilePath:            path,
	}

	return &model.SimpleDataset{
		Meta: meta,
		Sources: []model.PatternArray{
			&model.SimpleArray{ArrayLabel: path, ArrayIndexes: indexes, Block: patterns},
		},
	}, nil
}
