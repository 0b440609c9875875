package herokuapp

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/page"
	"github.com/v0xg/uiharness/internal/surface"
)

var (
	downloadLinks  = locator.CSS(`a[href^="download/"]`)
	uploadInput    = locator.ID("file-upload")
	uploadSubmit   = locator.ID("file-submit")
	uploadedFiles  = locator.ID("uploaded-files")
	uploadedHeader = locator.CSS("h3").WithText("File Uploaded!")
)

// FileDownload is the /download example.
type FileDownload struct{ app }

// Open navigates to the example.
func (d *FileDownload) Open(ctx context.Context) error {
	return d.open(ctx, "/download", downloadLinks.First())
}

// Files lists the offered file names.
func (d *FileDownload) Files(ctx context.Context) ([]string, error) {
	return d.Texts(ctx, downloadLinks)
}

// Download clicks the link for name and saves the file to saveAs.
func (d *FileDownload) Download(ctx context.Context, name, saveAs string) (surface.DownloadRecord, error) {
	link := locator.CSS(`a[href="download/` + name + `"]`)
	return d.Coordinator().AwaitDownload(ctx, d.Surface(), surface.DownloadExpectation{
		Filename: name,
		SaveAs:   saveAs,
	}, func(ctx context.Context) error {
		return d.Click(ctx, link)
	})
}

// FileUpload is the /upload example.
type FileUpload struct{ app }

// Open navigates to the example.
func (u *FileUpload) Open(ctx context.Context) error {
	return u.open(ctx, "/upload", uploadInput)
}

// Upload sets path on the file input, submits and returns the name the
// server reports.
func (u *FileUpload) Upload(ctx context.Context, path string) (string, error) {
	if err := u.SetInputFiles(ctx, uploadInput, path); err != nil {
		return "", err
	}
	if err := u.Click(ctx, uploadSubmit); err != nil {
		return "", err
	}
	if err := u.WaitVisible(ctx, uploadedHeader); err != nil {
		return "", err
	}
	return u.Text(ctx, uploadedFiles)
}

// VerifyUploaded checks the server reports the base name of path.
func (u *FileUpload) VerifyUploaded(ctx context.Context, path string) error {
	got, err := u.Text(ctx, uploadedFiles)
	if err != nil {
		return err
	}
	if want := filepath.Base(path); strings.TrimSpace(got) != want {
		return page.Mismatch("uploaded file", want, got)
	}
	return nil
}
