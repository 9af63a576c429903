package log

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

type entry struct {
	Kind  string `json:"kind"`
	RunID uint64 `json:"run_id"`
}

func TestJSONLZstdWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")
	clock := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(entry{Kind: "generate_start", RunID: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(entry{Kind: "complete", RunID: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(entry{Kind: "generate_start", RunID: 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir, "events")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "events-2024-05-01-10.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}

	var got []entry
	if err := ReadJSONL(files[0], func(line []byte) error {
		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[1].Kind != "complete" {
		t.Fatalf("entries=%+v", got)
	}
}

func TestWriterReopensAfterClose(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir)
	if err := l.WriteEvent(entry{Kind: "a"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := l.WriteEvent(entry{Kind: "b"}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(l.Dir(), "events")
	if err != nil || len(files) == 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	n := 0
	for _, f := range files {
		if err := ReadJSONL(f, func([]byte) error { n++; return nil }); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if n != 2 {
		t.Fatalf("lines=%d", n)
	}
}
