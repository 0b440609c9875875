package surface

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/observability"
)

// DownloadExpectation names the file an action should download and where
// to keep it. An empty Filename skips the name check; an empty SaveAs keeps
// the file where the engine put it.
type DownloadExpectation struct {
	Filename string
	SaveAs   string
}

// DownloadRecord is a finished download.
type DownloadRecord struct {
	SuggestedFilename string
	SourcePath        string
	SavedPath         string
	URL               string
}

// AwaitDownload runs trigger on from and waits for the download it starts.
// The file is persisted to exp.SaveAs even when the suggested name does not
// match, so the mismatch can be inspected.
func (c *Coordinator) AwaitDownload(ctx context.Context, from *Surface, exp DownloadExpectation, trigger Trigger) (_ DownloadRecord, err error) {
	ctx, span := observability.StartSpan(ctx, "surface.download", attribute.String("expected", exp.Filename))
	defer func() {
		c.metrics.RecordSpawn(string(SpawnDownload), err)
		observability.EndSpan(span, err)
	}()

	if err := from.CheckAttached(ctx); err != nil {
		return DownloadRecord{}, err
	}
	if err := os.MkdirAll(c.dlDir, 0o755); err != nil {
		return DownloadRecord{}, fmt.Errorf("create download dir: %w", err)
	}

	arm := func(gctx context.Context) func() (*engine.Download, error) {
		return from.page.ExpectDownload(gctx, c.dlDir)
	}
	dl, err := race(ctx, c.timeout, SpawnDownload, arm, trigger)
	if err != nil {
		return DownloadRecord{}, err
	}

	rec := DownloadRecord{
		SuggestedFilename: dl.SuggestedFilename,
		SourcePath:        dl.Path,
		SavedPath:         dl.Path,
		URL:               dl.URL,
	}
	if exp.SaveAs != "" {
		if err := copyFile(dl.Path, exp.SaveAs); err != nil {
			return rec, fmt.Errorf("save download %q: %w", dl.SuggestedFilename, err)
		}
		rec.SavedPath = exp.SaveAs
	}
	c.logger.Debug("download saved",
		zap.String("suggested", rec.SuggestedFilename),
		zap.String("path", rec.SavedPath))

	if exp.Filename != "" && exp.Filename != rec.SuggestedFilename {
		return rec, &DownloadMismatchError{Expected: exp.Filename, Suggested: rec.SuggestedFilename}
	}
	return rec, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
