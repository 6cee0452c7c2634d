package elt

import (
	"context"
	"log/slog"

	"kaggleelt/internal/dbtsource"
	"kaggleelt/internal/kaggle"
	"kaggleelt/internal/metrics"
)

// Downloader fetches one dataset file. *kaggle.Fetcher implements it.
type Downloader interface {
	Download(ctx context.Context, req kaggle.Request) (kaggle.Result, error)
}

// Extract downloads tbl's file into the dataset directory under downloadDir
// and unpacks it. An existing file is kept unless force is set.
func Extract(ctx context.Context, d Downloader, src *dbtsource.Source, tbl *dbtsource.Table, downloadDir string, force bool) (kaggle.Result, error) {
	res, err := d.Download(ctx, kaggle.Request{
		Dataset: src.KaggleFullName(),
		File:    tbl.KaggleFileName,
		Dir:     DatasetDir(downloadDir, src),
		Force:   force,
		Unzip:   true,
	})
	if err != nil {
		return kaggle.Result{}, err
	}
	if !res.Skipped {
		metrics.RecordDownload(src.Name, res.Size)
	}
	slog.Info("extract complete",
		"dataset", src.Name,
		"table", tbl.Name,
		"path", res.Path,
		"bytes", res.Size,
		"xxh3", res.Digest,
		"skipped", res.Skipped,
	)
	return res, nil
}
