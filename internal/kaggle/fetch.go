package kaggle

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"github.com/zeebo/xxh3"
)

var zipMagic = []byte("PK\x03\x04")

// ErrUnsafePath is returned when an archive entry would be extracted outside
// the target directory.
var ErrUnsafePath = errors.New("kaggle: archive entry escapes target directory")

// Request identifies one dataset file and where to put it.
type Request struct {
	// Dataset is "owner/name".
	Dataset string
	File    string
	Dir     string
	Force   bool
	Unzip   bool
}

// Result describes the file left on disk by Download.
type Result struct {
	Path    string
	Size    int64
	Digest  uint64
	Skipped bool
}

// Fetcher downloads dataset files. The API client is created on first use so
// that commands which never download need no credentials.
type Fetcher struct {
	cfg Config

	once   sync.Once
	client *Client
}

// NewFetcher returns a Fetcher that builds its Client from cfg on first use.
func NewFetcher(cfg Config) *Fetcher {
	return &Fetcher{cfg: cfg}
}

func (f *Fetcher) apiClient() *Client {
	f.once.Do(func() {
		if f.client == nil {
			f.client = NewClient(f.cfg)
		}
	})
	return f.client
}

// Download fetches req.File from req.Dataset into req.Dir.
//
// Unless req.Force is set, an existing target file is left alone and reported
// with Skipped. The API serves either the raw file or a zip archive holding
// it. With req.Unzip the archive is extracted into req.Dir and removed;
// otherwise it is kept as File + ".zip".
func (f *Fetcher) Download(ctx context.Context, req Request) (Result, error) {
	owner, name, ok := strings.Cut(req.Dataset, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Result{}, fmt.Errorf("kaggle: dataset %q is not owner/name", req.Dataset)
	}
	if req.File == "" {
		return Result{}, errors.New("kaggle: file name is required")
	}
	if req.Dir == "" {
		return Result{}, errors.New("kaggle: target directory is required")
	}

	target := filepath.Join(req.Dir, req.File)
	if !req.Force {
		for _, p := range existingCandidates(target, req.Unzip) {
			if _, err := os.Stat(p); err == nil {
				slog.Info("dataset file already present, skipping download",
					"dataset", req.Dataset, "file", req.File, "path", p)
				return describe(p, true)
			}
		}
	}

	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("kaggle: create %s: %w", req.Dir, err)
	}

	resp, err := f.apiClient().DownloadDatasetFile(ctx, owner, name, req.File)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(req.Dir, "."+filepath.Base(req.File)+".*.part")
	if err != nil {
		return Result{}, fmt.Errorf("kaggle: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Result{}, fmt.Errorf("kaggle: download %s: %w", req.File, err)
	}
	slog.Debug("downloaded dataset payload", "dataset", req.Dataset, "file", req.File, "bytes", n)

	isZip, err := hasZipMagic(tmpName)
	if err != nil {
		return Result{}, err
	}
	if !isZip {
		if err := os.Rename(tmpName, target); err != nil {
			return Result{}, fmt.Errorf("kaggle: move %s: %w", target, err)
		}
		return describe(target, false)
	}

	archive := target + ".zip"
	if err := os.Rename(tmpName, archive); err != nil {
		return Result{}, fmt.Errorf("kaggle: move %s: %w", archive, err)
	}
	if !req.Unzip {
		return describe(archive, false)
	}

	if err := extract(archive, req.Dir); err != nil {
		return Result{}, err
	}
	if err := os.Remove(archive); err != nil {
		return Result{}, fmt.Errorf("kaggle: remove %s: %w", archive, err)
	}
	return describe(target, false)
}

func existingCandidates(target string, unzip bool) []string {
	if unzip {
		return []string{target}
	}
	return []string{target, target + ".zip"}
}

func hasZipMagic(path string) (bool, error) {
	fh, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("kaggle: open %s: %w", path, err)
	}
	defer fh.Close()
	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(fh, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, fmt.Errorf("kaggle: read %s: %w", path, err)
	}
	return bytes.Equal(head, zipMagic), nil
}

// extract unpacks every regular file of the archive under dir.
func extract(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("kaggle: open archive %s: %w", archive, err)
	}
	defer zr.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	for _, zf := range zr.File {
		dest, err := safeJoin(root, zf.Name)
		if err != nil {
			return err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(zf, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(zf *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("kaggle: open entry %s: %w", zf.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("kaggle: extract %s: %w", zf.Name, err)
	}
	return out.Close()
}

func safeJoin(root, name string) (string, error) {
	dest := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return dest, nil
}

// describe stats path and computes its xxh3 digest.
func describe(path string, skipped bool) (Result, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("kaggle: open %s: %w", path, err)
	}
	defer fh.Close()

	h := xxh3.New()
	n, err := io.Copy(h, bufio.NewReader(fh))
	if err != nil {
		return Result{}, fmt.Errorf("kaggle: hash %s: %w", path, err)
	}
	return Result{Path: path, Size: n, Digest: h.Sum64(), Skipped: skipped}, nil
}
