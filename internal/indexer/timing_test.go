package indexer

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTimingRecorderWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timing.jsonl")

	start := time.Now()
	tr := newTimingRecorder(start, path)
	if !tr.Enabled() {
		t.Fatalf("recorder should be enabled: %v", tr.Err())
	}
	tr.RecordStage("scan", start, 5*time.Millisecond, "")
	tr.RecordFile("extract", "main.c", "extracted", start, 2*time.Millisecond)
	tr.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var events []timingEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev timingEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad JSONL line: %v", err)
		}
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Phase != "scan" || events[0].Kind != "stage" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].File != "main.c" || events[1].Status != "extracted" {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}

func TestTimingRecorderDisabled(t *testing.T) {
	tr := newTimingRecorder(time.Now(), "")
	if tr.Enabled() {
		t.Error("recorder without path should be disabled")
	}
	// Records are no-ops when disabled
	tr.RecordStage("scan", time.Now(), time.Millisecond, "")
	tr.Close()
}

func TestResolveTimingPath(t *testing.T) {
	idx := New()
	if p := idx.resolveTimingPath("/tmp/project"); p != "" {
		t.Errorf("timing disabled by default, got %q", p)
	}

	idx.Timing = true
	if p := idx.resolveTimingPath("/tmp/project"); p != filepath.Join("/tmp/project", "timing.jsonl") {
		t.Errorf("unexpected default path %q", p)
	}

	idx.TimingPath = "/tmp/custom.jsonl"
	if p := idx.resolveTimingPath("/tmp/project"); p != "/tmp/custom.jsonl" {
		t.Errorf("explicit path not honored: %q", p)
	}

	t.Setenv("SNIPE_TIMING_JSONL", "/tmp/env.jsonl")
	if p := idx.resolveTimingPath("/tmp/project"); p != "/tmp/env.jsonl" {
		t.Errorf("env override not honored: %q", p)
	}
}
