package metrics

import (
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	counters   []call
	histograms []call
	flushes    int
}

type call struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, call{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, call{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func withFake(t *testing.T) *fakeBackend {
	t.Helper()
	orig := backend
	t.Cleanup(func() { backend = orig })
	fb := &fakeBackend{}
	backend = fb
	return fb
}

func TestRecordTask(t *testing.T) {
	fb := withFake(t)

	RecordTask("cars", "load_vehicles", "success", 1500*time.Millisecond)
	RecordTask("cars", "download_vehicles", "failed", time.Second)

	if len(fb.counters) != 2 || len(fb.histograms) != 2 {
		t.Fatalf("calls: counters=%d histograms=%d; want 2 each", len(fb.counters), len(fb.histograms))
	}
	c := fb.counters[0]
	if c.name != TaskTotal || c.value != 1 {
		t.Fatalf("counter[0] = %#v", c)
	}
	if c.labels["dataset"] != "cars" || c.labels["task"] != "load_vehicles" || c.labels["status"] != "success" {
		t.Fatalf("counter[0].labels = %v", c.labels)
	}
	h := fb.histograms[0]
	if h.name != TaskDurationSeconds || h.value != 1.5 {
		t.Fatalf("histogram[0] = %#v", h)
	}
	if got := fb.counters[1].labels["status"]; got != "failed" {
		t.Fatalf("counter[1] status = %q", got)
	}
}

func TestRecordRowsAndDownload(t *testing.T) {
	fb := withFake(t)

	RecordRows("cars", "vehicles", 0) // ignored
	RecordRows("cars", "vehicles", 42)
	RecordDownload("cars", -1) // ignored
	RecordDownload("cars", 1024)

	if len(fb.counters) != 2 {
		t.Fatalf("got %d counter calls, want 2", len(fb.counters))
	}
	if c := fb.counters[0]; c.name != RowsLoadedTotal || c.value != 42 || c.labels["table"] != "vehicles" {
		t.Fatalf("rows counter = %#v", c)
	}
	if c := fb.counters[1]; c.name != BytesDownloaded || c.value != 1024 {
		t.Fatalf("download counter = %#v", c)
	}
}

func TestSetBackendNilAndFlush(t *testing.T) {
	fb := withFake(t)

	SetBackend(nil)
	if backend != Backend(fb) {
		t.Fatalf("SetBackend(nil) replaced the backend")
	}
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if fb.flushes != 1 {
		t.Fatalf("flushes = %d, want 1", fb.flushes)
	}
}
