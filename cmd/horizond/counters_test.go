package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/starquake/horizon/internal/counters"
)

func TestWriteCountersReport(t *testing.T) {
	registry := counters.NewMemoryRegistry(8)
	rec, err := registry.Allocate(counters.TypeRecordingPosition, counters.RecordingPositionLabel(3, 10, testChannel))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	registry.SetValue(rec, 4096)
	replay, err := registry.Allocate(counters.TypeReplayPosition, counters.ReplayPositionLabel(1, 3))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	registry.SetValue(replay, 512)
	freed, err := registry.Allocate(counters.TypeReplayPosition, counters.ReplayPositionLabel(2, 3))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	registry.Free(freed)

	var buf bytes.Buffer
	if err := writeCountersReport(&buf, registry); err != nil {
		t.Fatalf("writeCountersReport: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "rec-pos: 3 10 "+testChannel) {
		t.Errorf("report missing recording counter:\n%s", out)
	}
	if !strings.Contains(out, "4096") {
		t.Errorf("report missing recording value:\n%s", out)
	}
	if strings.Contains(out, "replay-pos: 2 3") {
		t.Errorf("report includes freed counter:\n%s", out)
	}
	if !strings.Contains(out, "2 allocated, 1 recording positions, 1 active replays") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}

func TestWriteCountersReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeCountersReport(&buf, counters.NewMemoryRegistry(4)); err != nil {
		t.Fatalf("writeCountersReport: %v", err)
	}
	if !strings.Contains(buf.String(), "0 allocated, 0 recording positions, 0 active replays") {
		t.Errorf("unexpected summary:\n%s", buf.String())
	}
}
