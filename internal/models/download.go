package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"syscall"

	"github.com/loclean/loclean/internal/logger"
)

// ErrorKind classifies download failures so callers can distinguish
// them with errors.As.
type ErrorKind int

const (
	// KindNotFound means the model is not in the registry or the hub
	// returned 404.
	KindNotFound ErrorKind = iota
	// KindNetwork covers transport failures and non-404 HTTP errors.
	KindNetwork
	// KindPermission means the cache directory or file is not writable.
	KindPermission
	// KindDiskSpace means the filesystem filled up mid-download.
	KindDiskSpace
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindNetwork:
		return "network"
	case KindPermission:
		return "permission"
	case KindDiskSpace:
		return "disk-space"
	default:
		return "unknown"
	}
}

// DownloadError is a classified model-download failure.
type DownloadError struct {
	Kind  ErrorKind
	Model string
	Err   error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("model download failed (%s) for %s: %v", e.Kind, e.Model, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// IsPresent reports whether the model file already exists under dir.
func IsPresent(name, dir string) (string, bool) {
	m, err := Get(name)
	if err != nil {
		return "", false
	}
	path := filepath.Join(dir, m.Filename)
	if _, err := os.Stat(path); err != nil {
		return path, false
	}
	return path, true
}

// Ensure returns a local path for the named model, downloading it into
// dir when absent. An existing file is reused unless force is set.
func Ensure(ctx context.Context, name, dir string, force bool) (string, error) {
	m, err := Get(name)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, m.Filename)
	if !force {
		if _, err := os.Stat(path); err == nil {
			logger.Debug("model already cached", "model", name, "path", path)
			return path, nil
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", classify(name, err)
	}

	logger.Info("downloading model", "model", name, "size_mb", m.SizeMB, "url", m.DownloadURL())
	if err := download(ctx, m.DownloadURL(), path); err != nil {
		return "", classify(name, err)
	}

	logger.Info("model downloaded", "model", name, "path", path)
	return path, nil
}

// classify wraps err in a DownloadError with the matching kind.
func classify(model string, err error) error {
	var derr *DownloadError
	if errors.As(err, &derr) {
		return err
	}

	kind := KindNetwork
	switch {
	case errors.Is(err, syscall.ENOSPC):
		kind = KindDiskSpace
	case errors.Is(err, os.ErrPermission):
		kind = KindPermission
	case errors.Is(err, errNotFound):
		kind = KindNotFound
	}
	return &DownloadError{Kind: kind, Model: model, Err: err}
}

var errNotFound = errors.New("not found on hub")

// download streams the URL into dest via a temp file, renaming on
// success so a partial download never masquerades as a cached model.
func download(ctx context.Context, url, dest string) (retErr error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: HTTP 404 for %s", errNotFound, url)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	tmp := dest + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		out.Close()
		if retErr != nil {
			os.Remove(tmp)
		}
	}()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}
