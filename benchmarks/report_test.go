package benchmarks

import (
	"strings"
	"testing"
)

// ============================================================
// Parsing
// ============================================================

func TestParseBenchmarkOutput(t *testing.T) {
	output := `goos: linux
goarch: amd64
pkg: github.com/kilerdb/kiler/internal/storage/engine
cpu: Intel(R) Xeon(R) CPU @ 2.80GHz
BenchmarkSet-8             28431             42117 ns/op            6212 B/op         41 allocs/op
BenchmarkGet-8           1254812               951 ns/op             112 B/op          4 allocs/op
BenchmarkScan-8              124           9214832 ns/op          402114 B/op       3021 allocs/op
PASS
ok      github.com/kilerdb/kiler/internal/storage/engine      5.412s
`

	results, err := ParseBenchmarkOutput(strings.NewReader(output))
	if err != nil {
		t.Fatalf("ParseBenchmarkOutput failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	tests := []struct {
		name        string
		iterations  int
		nsPerOp     float64
		bytesPerOp  int64
		allocsPerOp int64
	}{
		{"BenchmarkSet", 28431, 42117, 6212, 41},
		{"BenchmarkGet", 1254812, 951, 112, 4},
		{"BenchmarkScan", 124, 9214832, 402114, 3021},
	}

	for i, want := range tests {
		got := results[i]
		if got.Name != want.name {
			t.Errorf("result %d: name = %q, want %q", i, got.Name, want.name)
		}
		if got.Package != "github.com/kilerdb/kiler/internal/storage/engine" {
			t.Errorf("result %d: package = %q", i, got.Package)
		}
		if got.Iterations != want.iterations {
			t.Errorf("result %d: iterations = %d, want %d", i, got.Iterations, want.iterations)
		}
		if got.NsPerOp != want.nsPerOp {
			t.Errorf("result %d: ns/op = %f, want %f", i, got.NsPerOp, want.nsPerOp)
		}
		if got.BytesPerOp != want.bytesPerOp {
			t.Errorf("result %d: B/op = %d, want %d", i, got.BytesPerOp, want.bytesPerOp)
		}
		if got.AllocsPerOp != want.allocsPerOp {
			t.Errorf("result %d: allocs/op = %d, want %d", i, got.AllocsPerOp, want.allocsPerOp)
		}
	}
}

func TestParseBenchmarkOutputNoMemStats(t *testing.T) {
	output := `pkg: github.com/kilerdb/kiler/internal/storage/btree
BenchmarkLookup-4        5000000               312 ns/op
`

	results, err := ParseBenchmarkOutput(strings.NewReader(output))
	if err != nil {
		t.Fatalf("ParseBenchmarkOutput failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].NsPerOp != 312 {
		t.Errorf("ns/op = %f, want 312", results[0].NsPerOp)
	}
	if results[0].BytesPerOp != 0 || results[0].AllocsPerOp != 0 {
		t.Errorf("memory stats should be zero when absent")
	}
}

func TestParseBenchmarkOutputEmpty(t *testing.T) {
	results, err := ParseBenchmarkOutput(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseBenchmarkOutput failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

// ============================================================
// Reports and targets
// ============================================================

func TestNewReport(t *testing.T) {
	report := NewReport()

	if report.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if len(report.Targets) == 0 {
		t.Error("default targets should be populated")
	}
	for _, key := range []string{"PointLookup", "CommitOps", "ScanOps"} {
		if _, ok := report.Targets[key]; !ok {
			t.Errorf("missing default target %q", key)
		}
	}
}

func TestCheckTargetsPass(t *testing.T) {
	report := NewReport()
	report.AddResults([]BenchmarkResult{
		{Name: "BenchmarkGet", NsPerOp: 900},       // under 10 us
		{Name: "BenchmarkSet", NsPerOp: 50000},     // 20,000 op/s
		{Name: "BenchmarkScan", NsPerOp: 10000000}, // 10 ms
	})

	checks := report.CheckTargets()
	if len(checks) != 3 {
		t.Fatalf("expected 3 checks, got %d", len(checks))
	}
	for _, check := range checks {
		if !check.Passed {
			t.Errorf("check %s should pass (actual %.0f ns/op)", check.BenchmarkName, check.ActualNsPerOp)
		}
	}
}

func TestCheckTargetsFail(t *testing.T) {
	report := NewReport()
	report.AddResults([]BenchmarkResult{
		{Name: "BenchmarkGet", NsPerOp: 25000},  // over 10 us
		{Name: "BenchmarkSet", NsPerOp: 500000}, // 2,000 op/s, under 10,000
	})

	checks := report.CheckTargets()
	if len(checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(checks))
	}
	for _, check := range checks {
		if check.Passed {
			t.Errorf("check %s should fail", check.BenchmarkName)
		}
	}
}

func TestCheckTargetsIgnoresUnmappedBenchmarks(t *testing.T) {
	report := NewReport()
	report.AddResults([]BenchmarkResult{
		{Name: "BenchmarkNodeSplit", NsPerOp: 100},
	})

	if checks := report.CheckTargets(); len(checks) != 0 {
		t.Errorf("expected no checks for unmapped benchmark, got %d", len(checks))
	}
}

func TestGenerateTextReport(t *testing.T) {
	report := NewReport()
	report.SetSystemInfo("go1.22.2", "linux", "amd64")
	report.AddResults([]BenchmarkResult{
		{Name: "BenchmarkGet", Package: "github.com/kilerdb/kiler/internal/storage/engine", Iterations: 1000000, NsPerOp: 950, BytesPerOp: 112, AllocsPerOp: 4},
	})

	var sb strings.Builder
	if err := report.GenerateTextReport(&sb); err != nil {
		t.Fatalf("GenerateTextReport failed: %v", err)
	}

	out := sb.String()
	for _, want := range []string{"KilerDB", "go1.22.2", "linux/amd64", "BenchmarkGet", "Point lookup", "PASS"} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q", want)
		}
	}
}

func TestGenerateMarkdownReport(t *testing.T) {
	report := NewReport()
	report.SetSystemInfo("go1.22.2", "linux", "amd64")
	report.AddResults([]BenchmarkResult{
		{Name: "BenchmarkSet", Iterations: 30000, NsPerOp: 40000, BytesPerOp: 6000, AllocsPerOp: 40},
	})

	var sb strings.Builder
	if err := report.GenerateMarkdownReport(&sb); err != nil {
		t.Fatalf("GenerateMarkdownReport failed: %v", err)
	}

	out := sb.String()
	for _, want := range []string{"# KilerDB Performance Benchmark Report", "| BenchmarkSet |", "## Performance Target Compliance", "PASS"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown report missing %q", want)
		}
	}
}

func TestSummary(t *testing.T) {
	report := NewReport()
	report.AddResults([]BenchmarkResult{
		{Name: "BenchmarkGet", NsPerOp: 900},
	})

	summary := report.Summary()
	if !strings.Contains(summary, "1 benchmark results") {
		t.Errorf("summary missing result count: %q", summary)
	}
	if !strings.Contains(summary, "1/1 passed") {
		t.Errorf("summary missing target count: %q", summary)
	}
}

// ============================================================
// Formatting helpers
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ns   float64
		want string
	}{
		{500, "500 ns"},
		{2500, "2.5 us"},
		{3500000, "3.5 ms"},
		{2500000000, "2.50 s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.ns); got != tt.want {
			t.Errorf("formatDuration(%f) = %q, want %q", tt.ns, got, tt.want)
		}
	}
}

func TestFormatOpsPerSec(t *testing.T) {
	tests := []struct {
		ops  float64
		want string
	}{
		{500, "500 op/s"},
		{25000, "25.0k op/s"},
		{3200000, "3.2M op/s"},
	}
	for _, tt := range tests {
		if got := formatOpsPerSec(tt.ops); got != tt.want {
			t.Errorf("formatOpsPerSec(%f) = %q, want %q", tt.ops, got, tt.want)
		}
	}
}
