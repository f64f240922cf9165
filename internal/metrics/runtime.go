package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const runtimeMetricsFileName = "runtime_metrics.json"

var latencyBucketUpperBoundsMs = []int64{
	10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000,
}

// Outcome classifies a single bridge invocation.
type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeDenied   Outcome = "denied"
	OutcomeRejected Outcome = "rejected"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeFailed   Outcome = "failed"
)

// RuntimeSnapshot contains aggregated metrics for tool and model calls.
type RuntimeSnapshot struct {
	UpdatedAt time.Time  `json:"updated_at"`
	Tool      ToolStats  `json:"tool"`
	Model     ModelStats `json:"model"`
}

// ToolStats tracks bridge invocations.
type ToolStats struct {
	Total             int64 `json:"total"`
	Executed          int64 `json:"executed"`
	Denied            int64 `json:"denied"`
	Rejected          int64 `json:"rejected"`
	Timeouts          int64 `json:"timeouts"`
	Errors            int64 `json:"errors"`
	Truncated         int64 `json:"truncated"`
	Prompts           int64 `json:"prompts"`
	TotalLatencyMs    int64 `json:"total_latency_ms"`
	MaxLatencyMs      int64 `json:"max_latency_ms"`
	LastLatencyMs     int64 `json:"last_latency_ms"`
	P95ProxyLatencyMs int64 `json:"p95_proxy_latency_ms"`
}

// DenialRatio returns (denied+rejected)/total in [0,1].
func (t ToolStats) DenialRatio() float64 {
	if t.Total <= 0 {
		return 0
	}
	return float64(t.Denied+t.Rejected) / float64(t.Total)
}

// TimeoutRatio returns timeouts/total in [0,1].
func (t ToolStats) TimeoutRatio() float64 {
	if t.Total <= 0 {
		return 0
	}
	return float64(t.Timeouts) / float64(t.Total)
}

// AvgLatencyMs returns average latency in milliseconds.
func (t ToolStats) AvgLatencyMs() float64 {
	if t.Total <= 0 {
		return 0
	}
	return float64(t.TotalLatencyMs) / float64(t.Total)
}

// ModelStats tracks model calls made by the conversation loop.
type ModelStats struct {
	Calls    int64 `json:"calls"`
	Retries  int64 `json:"retries"`
	Failures int64 `json:"failures"`
}

// HasData reports whether any metrics were recorded.
func (s RuntimeSnapshot) HasData() bool {
	return s.Tool.Total > 0 || s.Model.Calls > 0
}

// Summary renders a one-line status for footers and logs.
func (s RuntimeSnapshot) Summary() string {
	return fmt.Sprintf("tools %d (ok %d, denied %d, timeouts %d, truncated %d) | model calls %d, retries %d",
		s.Tool.Total, s.Tool.Executed, s.Tool.Denied+s.Tool.Rejected, s.Tool.Timeouts, s.Tool.Truncated,
		s.Model.Calls, s.Model.Retries)
}

// RuntimeMetrics records metrics in memory and optionally persists them.
// A nil *RuntimeMetrics is a valid no-op recorder.
type RuntimeMetrics struct {
	path string

	mu      sync.Mutex
	snap    RuntimeSnapshot
	buckets []int64
}

// NewRuntimeMetrics creates a recorder persisting to <stateDir>/runtime_metrics.json.
// An empty stateDir keeps metrics in memory only.
func NewRuntimeMetrics(stateDir string) *RuntimeMetrics {
	path := ""
	if strings.TrimSpace(stateDir) != "" {
		path = runtimeMetricsPath(stateDir)
	}
	return &RuntimeMetrics{
		path:    path,
		buckets: make([]int64, len(latencyBucketUpperBoundsMs)+1),
	}
}

// Snapshot returns the latest in-memory snapshot.
func (m *RuntimeMetrics) Snapshot() RuntimeSnapshot {
	if m == nil {
		return RuntimeSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// RecordTool updates tool metrics for one bridge invocation.
func (m *RuntimeMetrics) RecordTool(duration time.Duration, outcome Outcome, truncated, prompted bool) (RuntimeSnapshot, error) {
	if m == nil {
		return RuntimeSnapshot{}, nil
	}

	latencyMs := duration.Milliseconds()
	if latencyMs < 0 {
		latencyMs = 0
	}

	m.mu.Lock()
	m.snap.UpdatedAt = time.Now().UTC()
	t := &m.snap.Tool
	t.Total++
	switch outcome {
	case OutcomeExecuted:
		t.Executed++
	case OutcomeDenied:
		t.Denied++
	case OutcomeRejected:
		t.Rejected++
	case OutcomeTimeout:
		t.Timeouts++
	default:
		t.Errors++
	}
	if truncated {
		t.Truncated++
	}
	if prompted {
		t.Prompts++
	}
	t.TotalLatencyMs += latencyMs
	t.LastLatencyMs = latencyMs
	if latencyMs > t.MaxLatencyMs {
		t.MaxLatencyMs = latencyMs
	}
	m.buckets[latencyBucketIndex(latencyMs)]++
	t.P95ProxyLatencyMs = p95ProxyFromBuckets(m.buckets, t.Total)

	snapshot := m.snap
	m.mu.Unlock()

	return snapshot, persistRuntimeSnapshot(m.path, snapshot)
}

// RecordModelCall updates model metrics for one attempt.
func (m *RuntimeMetrics) RecordModelCall(retry bool, err error) (RuntimeSnapshot, error) {
	if m == nil {
		return RuntimeSnapshot{}, nil
	}

	m.mu.Lock()
	m.snap.UpdatedAt = time.Now().UTC()
	m.snap.Model.Calls++
	if retry {
		m.snap.Model.Retries++
	}
	if err != nil {
		m.snap.Model.Failures++
	}
	snapshot := m.snap
	m.mu.Unlock()

	return snapshot, persistRuntimeSnapshot(m.path, snapshot)
}

// ReadRuntimeSnapshot reads the persisted snapshot from stateDir.
// If no file exists yet, it returns a zero-value snapshot and nil error.
func ReadRuntimeSnapshot(stateDir string) (RuntimeSnapshot, error) {
	raw, err := os.ReadFile(runtimeMetricsPath(stateDir))
	if err != nil {
		if os.IsNotExist(err) {
			return RuntimeSnapshot{}, nil
		}
		return RuntimeSnapshot{}, fmt.Errorf("read runtime metrics: %w", err)
	}

	var snap RuntimeSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return RuntimeSnapshot{}, fmt.Errorf("decode runtime metrics: %w", err)
	}
	return snap, nil
}

func runtimeMetricsPath(stateDir string) string {
	return filepath.Join(stateDir, runtimeMetricsFileName)
}

func persistRuntimeSnapshot(path string, snapshot RuntimeSnapshot) error {
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create runtime metrics dir: %w", err)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode runtime metrics: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write runtime metrics temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename runtime metrics file: %w", err)
	}
	return nil
}

func latencyBucketIndex(latencyMs int64) int {
	for i, upper := range latencyBucketUpperBoundsMs {
		if latencyMs <= upper {
			return i
		}
	}
	return len(latencyBucketUpperBoundsMs)
}

func p95ProxyFromBuckets(buckets []int64, total int64) int64 {
	if total <= 0 {
		return 0
	}
	target := int64(float64(total) * 0.95)
	if target <= 0 {
		target = 1
	}

	var cumulative int64
	for i, count := range buckets {
		cumulative += count
		if cumulative < target {
			continue
		}
		if i >= len(latencyBucketUpperBoundsMs) {
			return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
		}
		return latencyBucketUpperBoundsMs[i]
	}
	return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
}
