package archive

import (
	"context"
	"fmt"

	"github.com/hupe1980/diffra/blobstore"
	"github.com/hupe1980/diffra/model"
	"github.com/hupe1980/diffra/resource"
)

// Upload exports the arrays as an archive blob. The write stream passes
// through the controller's IO rate limiter and counts as one background
// transfer; rc may be nil.
func Upload(ctx context.Context, store blobstore.Store, name string, indexes []int64, patterns *model.Block, rc *resource.Controller) error {
	if err := rc.AcquireTransfer(ctx); err != nil {
		return err
	}
	defer rc.ReleaseTransfer()

	w, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("archive: create blob %q: %w", name, err)
	}

	if err := Write(resource.NewRateLimitedWriter(ctx, w, rc), indexes, patterns); err != nil {
		w.Close()
		return fmt.Errorf("archive: upload %q: %w", name, err)
	}
	return w.Close()
}

// Download imports an archive blob. The structural inverse of Upload.
func Download(ctx context.Context, store blobstore.Store, name string, rc *resource.Controller) ([]int64, *model.Block, error) {
	if err := rc.AcquireTransfer(ctx); err != nil {
		return nil, nil, err
	}
	defer rc.ReleaseTransfer()

	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: open blob %q: %w", name, err)
	}
	defer blob.Close()

	// Zip needs random access; the rate limit is charged per ReadAt below.
	ra := limitedReaderAt{ctx: ctx, blob: blob, rc: rc}
	indexes, patterns, err := Read(ra, blob.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("archive: download %q: %w", name, err)
	}
	return indexes, patterns, nil
}

type limitedReaderAt struct {
	ctx  context.Context
	blob blobstore.Blob
	rc   *resource.Controller
}

func (r limitedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if err := r.rc.AcquireIO(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.blob.ReadAt(r.ctx, p, off)
}
