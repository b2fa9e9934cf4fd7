package hub

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ggufctl/internal/catalog"
	"ggufctl/internal/common/fsutil"
	"ggufctl/pkg/types"
)

// ProgressEvent reports per-file download progress.
type ProgressEvent struct {
	Event string // "skip", "start", "done"
	Path  string
	Bytes int64
}

// ProgressFunc receives download progress events. May be nil.
type ProgressFunc func(ProgressEvent)

// expectedSize returns the real payload size of a repo file, preferring the
// LFS pointer metadata over the blob size.
func expectedSize(f types.RepoFile) int64 {
	if f.LFS != nil {
		return f.LFS.Size
	}
	return f.Size
}

// Download fetches every file of the repo tree into destDir. Files already
// present with a matching size are skipped, so an interrupted download can
// be resumed by running it again. Partial files are written to a .part
// temp name and renamed only on success.
func (c *Client) Download(ctx context.Context, repo, destDir string, progress ProgressFunc) error {
	if progress == nil {
		progress = func(ProgressEvent) {}
	}
	files, err := c.ListTree(ctx, repo)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("repo %s has no files at revision %s", repo, c.revision)
	}
	if err := fsutil.EnsureDir(destDir); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}
	for _, f := range files {
		if f.Type == "directory" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		local := filepath.Join(destDir, filepath.FromSlash(f.Path))
		if want := expectedSize(f); want > 0 && fsutil.FileSize(local) == want {
			c.log.Debug().Str("path", f.Path).Msg("already downloaded, skipping")
			progress(ProgressEvent{Event: "skip", Path: f.Path, Bytes: want})
			continue
		}
		if err := c.downloadFile(ctx, repo, f, local, progress); err != nil {
			return fmt.Errorf("download %s: %w", f.Path, err)
		}
	}
	return nil
}

func (c *Client) downloadFile(ctx context.Context, repo string, f types.RepoFile, local string, progress ProgressFunc) error {
	if err := fsutil.EnsureDir(filepath.Dir(local)); err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s/resolve/%s/%s", c.endpoint, repo, c.revision, f.Path)
	c.log.Info().Str("path", f.Path).Int64("size", expectedSize(f)).Msg("downloading")
	progress(ProgressEvent{Event: "start", Path: f.Path, Bytes: expectedSize(f)})

	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmp := local + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if want := expectedSize(f); want > 0 && n != want {
		_ = os.Remove(tmp)
		return fmt.Errorf("short download: got %d bytes, want %d", n, want)
	}
	if err := os.Rename(tmp, local); err != nil {
		return err
	}
	progress(ProgressEvent{Event: "done", Path: f.Path, Bytes: n})
	return nil
}

// LocalDir returns the canonical local directory for a repo under baseDir,
// named after the repo's short name.
func LocalDir(baseDir, repo string) string {
	return filepath.Join(baseDir, catalog.ShortName(repo))
}
