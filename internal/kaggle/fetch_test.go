package kaggle

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/zeebo/xxh3"
)

const carsCSV = "Veh_ID,Make\n1,Volvo\n2,Saab\n"

func zipPayload(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func serve(t *testing.T, payload []byte, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path != "/datasets/download/someone/used-cars/vehicles.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload_RawFile(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := serve(t, []byte(carsCSV), &hits)
	dir := t.TempDir()

	f := NewFetcher(Config{BaseURL: srv.URL})
	res, err := f.Download(context.Background(), Request{Dataset: "someone/used-cars", File: "vehicles.csv", Dir: dir, Unzip: true})
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if res.Skipped {
		t.Fatalf("fresh download reported as skipped")
	}
	if res.Path != filepath.Join(dir, "vehicles.csv") {
		t.Fatalf("path = %q", res.Path)
	}
	if res.Size != int64(len(carsCSV)) || res.Digest != xxh3.HashString(carsCSV) {
		t.Fatalf("unexpected result: %+v", res)
	}
	got, _ := os.ReadFile(res.Path)
	if string(got) != carsCSV {
		t.Fatalf("content = %q", got)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".*.part"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestDownload_ZipIsExtractedAndRemoved(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := serve(t, zipPayload(t, map[string]string{"vehicles.csv": carsCSV}), &hits)
	dir := t.TempDir()

	f := NewFetcher(Config{BaseURL: srv.URL})
	res, err := f.Download(context.Background(), Request{Dataset: "someone/used-cars", File: "vehicles.csv", Dir: dir, Unzip: true})
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	got, err := os.ReadFile(res.Path)
	if err != nil || string(got) != carsCSV {
		t.Fatalf("extracted content = %q, err %v", got, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "vehicles.csv.zip")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("archive should be removed, stat err = %v", err)
	}
}

func TestDownload_ZipKeptWithoutUnzip(t *testing.T) {
	t.Parallel()

	var hits int32
	payload := zipPayload(t, map[string]string{"vehicles.csv": carsCSV})
	srv := serve(t, payload, &hits)
	dir := t.TempDir()

	f := NewFetcher(Config{BaseURL: srv.URL})
	req := Request{Dataset: "someone/used-cars", File: "vehicles.csv", Dir: dir}
	res, err := f.Download(context.Background(), req)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if res.Path != filepath.Join(dir, "vehicles.csv.zip") || res.Size != int64(len(payload)) {
		t.Fatalf("unexpected result: %+v", res)
	}

	again, err := f.Download(context.Background(), req)
	if err != nil {
		t.Fatalf("second download: %v", err)
	}
	if !again.Skipped || atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("existing archive should be reused: %+v, hits=%d", again, hits)
	}
}

func TestDownload_SkipsExistingUnlessForced(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := serve(t, []byte(carsCSV), &hits)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "vehicles.csv"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(Config{BaseURL: srv.URL})
	req := Request{Dataset: "someone/used-cars", File: "vehicles.csv", Dir: dir, Unzip: true}
	res, err := f.Download(context.Background(), req)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !res.Skipped || res.Size != 3 || atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected skip without request: %+v hits=%d", res, hits)
	}

	req.Force = true
	res, err = f.Download(context.Background(), req)
	if err != nil {
		t.Fatalf("forced download: %v", err)
	}
	if res.Skipped || res.Size != int64(len(carsCSV)) || atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected forced download: %+v hits=%d", res, hits)
	}
}

func TestDownload_RejectsZipSlip(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := serve(t, zipPayload(t, map[string]string{"../evil.csv": "x"}), &hits)
	parent := t.TempDir()
	dir := filepath.Join(parent, "data")

	f := NewFetcher(Config{BaseURL: srv.URL})
	_, err := f.Download(context.Background(), Request{Dataset: "someone/used-cars", File: "vehicles.csv", Dir: dir, Unzip: true})
	if err == nil {
		t.Fatalf("expected unsafe archive to be rejected")
	}
	if _, err := os.Stat(filepath.Join(parent, "evil.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("entry escaped target directory")
	}
}

func TestDownload_NotFound(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := serve(t, nil, &hits)
	dir := t.TempDir()

	f := NewFetcher(Config{BaseURL: srv.URL})
	_, err := f.Download(context.Background(), Request{Dataset: "someone/used-cars", File: "other.csv", Dir: dir})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "other.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("no file should be written on failure")
	}
}

func TestDownload_RequestValidation(t *testing.T) {
	t.Parallel()

	f := NewFetcher(Config{BaseURL: "http://127.0.0.1:0"})
	bad := []Request{
		{Dataset: "nope", File: "a.csv", Dir: "/tmp"},
		{Dataset: "a/b/c", File: "a.csv", Dir: "/tmp"},
		{Dataset: "a/b", Dir: "/tmp"},
		{Dataset: "a/b", File: "a.csv"},
	}
	for _, req := range bad {
		if _, err := f.Download(context.Background(), req); err == nil {
			t.Fatalf("expected error for %+v", req)
		}
	}
}
