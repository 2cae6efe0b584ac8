package video

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/abdul-hamid-achik/mediaflow/internal/metrics"
	"github.com/abdul-hamid-achik/mediaflow/internal/storage"
)

// listTree returns every regular file under root as a slash-separated
// relative path, sorted.
func listTree(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// uploadTree uploads every file under root to bucket at prefix+relpath with
// at most limit uploads in flight. The first failure cancels the rest.
func uploadTree(ctx context.Context, store storage.Storage, bucket, root, prefix string, limit int) ([]string, error) {
	files, err := listTree(root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no output produced", ErrTranscodeFailed)
	}

	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	keys := make([]string, len(files))
	for i, rel := range files {
		key := path.Join(prefix, rel)
		keys[i] = key
		local := filepath.Join(root, filepath.FromSlash(rel))

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := storage.UploadFile(gctx, store, bucket, key, local); err != nil {
				metrics.RecordRenditionUpload("error")
				return fmt.Errorf("upload %s: %w", key, err)
			}
			metrics.RecordRenditionUpload("success")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}
