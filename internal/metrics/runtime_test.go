package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRuntimeMetrics_AggregatesToolAndModelStats(t *testing.T) {
	stateDir := t.TempDir()
	m := NewRuntimeMetrics(stateDir)

	steps := []struct {
		d         time.Duration
		outcome   Outcome
		truncated bool
		prompted  bool
	}{
		{20 * time.Millisecond, OutcomeExecuted, true, false},
		{5 * time.Millisecond, OutcomeDenied, false, false},
		{time.Millisecond, OutcomeRejected, false, true},
		{150 * time.Millisecond, OutcomeTimeout, false, false},
		{2 * time.Millisecond, OutcomeFailed, false, false},
	}
	for _, s := range steps {
		if _, err := m.RecordTool(s.d, s.outcome, s.truncated, s.prompted); err != nil {
			t.Fatalf("RecordTool error: %v", err)
		}
	}
	if _, err := m.RecordModelCall(false, nil); err != nil {
		t.Fatalf("RecordModelCall error: %v", err)
	}
	snap, err := m.RecordModelCall(true, errors.New("boom"))
	if err != nil {
		t.Fatalf("RecordModelCall error: %v", err)
	}

	tool := snap.Tool
	if tool.Total != 5 || tool.Executed != 1 || tool.Denied != 1 || tool.Rejected != 1 || tool.Timeouts != 1 || tool.Errors != 1 {
		t.Fatalf("unexpected tool stats: %+v", tool)
	}
	if tool.Truncated != 1 || tool.Prompts != 1 {
		t.Fatalf("unexpected truncation/prompt counts: %+v", tool)
	}
	if tool.MaxLatencyMs != 150 || tool.LastLatencyMs != 2 {
		t.Fatalf("unexpected latency stats: %+v", tool)
	}
	if got := tool.DenialRatio(); got != 0.4 {
		t.Fatalf("expected denial ratio 0.4, got %v", got)
	}
	if snap.Model.Calls != 2 || snap.Model.Retries != 1 || snap.Model.Failures != 1 {
		t.Fatalf("unexpected model stats: %+v", snap.Model)
	}

	persisted, err := ReadRuntimeSnapshot(stateDir)
	if err != nil {
		t.Fatalf("ReadRuntimeSnapshot error: %v", err)
	}
	if persisted.Tool.Total != 5 || persisted.Model.Calls != 2 {
		t.Fatalf("unexpected persisted snapshot: %+v", persisted)
	}
	if !strings.Contains(persisted.Summary(), "tools 5") {
		t.Fatalf("unexpected summary %q", persisted.Summary())
	}
}

func TestRuntimeMetrics_ReadMissingSnapshot(t *testing.T) {
	snap, err := ReadRuntimeSnapshot(t.TempDir())
	if err != nil {
		t.Fatalf("ReadRuntimeSnapshot error: %v", err)
	}
	if snap.HasData() {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestRuntimeMetrics_NilAndMemoryOnly(t *testing.T) {
	var nilMetrics *RuntimeMetrics
	if _, err := nilMetrics.RecordTool(time.Second, OutcomeExecuted, false, false); err != nil {
		t.Fatalf("nil recorder error: %v", err)
	}

	m := NewRuntimeMetrics("")
	snap, err := m.RecordTool(time.Millisecond, OutcomeExecuted, false, false)
	if err != nil {
		t.Fatalf("memory-only RecordTool error: %v", err)
	}
	if snap.Tool.Total != 1 || m.Snapshot().Tool.Total != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
