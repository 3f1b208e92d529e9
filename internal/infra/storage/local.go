package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/bryanwahyu/medreport/internal/domain/artifacts"
)

// LocalArea is a directory on an afero filesystem. Writes go to a temp file in the same
// directory and are renamed into place, so readers never see partial files.
type LocalArea struct {
	fs  afero.Fs
	dir string
}

func NewLocalArea(fs afero.Fs, dir string) (*LocalArea, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", artifacts.ErrUnavailable, dir, err)
	}
	return &LocalArea{fs: fs, dir: filepath.Clean(dir)}, nil
}

func (a *LocalArea) Put(ctx context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	base, err := baseName(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tmp, err := afero.TempFile(a.fs, a.dir, ".tmp-"+base+"-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", artifacts.ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		a.fs.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", base, err)
	}
	if err := tmp.Close(); err != nil {
		a.fs.Remove(tmpName)
		return "", fmt.Errorf("%w: %v", artifacts.ErrUnavailable, err)
	}
	final := filepath.Join(a.dir, base)
	if err := a.fs.Rename(tmpName, final); err != nil {
		a.fs.Remove(tmpName)
		return "", fmt.Errorf("%w: %v", artifacts.ErrUnavailable, err)
	}
	return final, nil
}

func (a *LocalArea) Open(_ context.Context, path string) (io.ReadCloser, error) {
	p, err := a.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := a.fs.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", artifacts.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", artifacts.ErrUnavailable, err)
	}
	return f, nil
}

func (a *LocalArea) Remove(_ context.Context, path string) error {
	p, err := a.resolve(path)
	if err != nil {
		return err
	}
	if err := a.fs.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", artifacts.ErrNotFound, path)
		}
		return fmt.Errorf("%w: %v", artifacts.ErrUnavailable, err)
	}
	return nil
}

func (a *LocalArea) Check(context.Context) error {
	fi, err := a.fs.Stat(a.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", artifacts.ErrUnavailable, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", artifacts.ErrUnavailable, a.dir)
	}
	return nil
}

// resolve accepts only paths directly inside the area.
func (a *LocalArea) resolve(path string) (string, error) {
	p := filepath.Clean(path)
	if filepath.Dir(p) != a.dir {
		return "", fmt.Errorf("%w: %s", artifacts.ErrNotFound, path)
	}
	return p, nil
}

// baseName reduces an uploaded filename to its base; names that would escape the area are rejected.
func baseName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" || base == ".." || strings.HasPrefix(base, ".tmp-") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return base, nil
}

// ContentType guesses a MIME type from the file extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
