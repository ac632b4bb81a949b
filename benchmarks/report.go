// Package benchmarks turns `go test -bench` output into a report and checks
// the codec benchmarks against throughput targets.
package benchmarks

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult represents a single benchmark result.
type BenchmarkResult struct {
	// Name is the benchmark name without the GOMAXPROCS suffix
	Name string
	// Package is the package containing the benchmark
	Package     string
	Iterations  int
	NsPerOp     float64
	MBPerSec    float64
	BytesPerOp  int64
	AllocsPerOp int64
}

// Target is a performance bound for one benchmark. Zero fields are not checked.
type Target struct {
	Description string
	MaxNsPerOp  float64
	MinMBPerSec float64
	// ZeroAlloc requires 0 allocs/op; run with -benchmem.
	ZeroAlloc bool
}

// DefaultTargets returns the bounds for the decoder, encoder and LDAP
// codec benchmarks.
func DefaultTargets() map[string]Target {
	return map[string]Target{
		"BenchmarkStreamDecoder_Feed": {
			Description: "one-chunk streaming decode",
			MinMBPerSec: 100,
			ZeroAlloc:   true,
		},
		"BenchmarkStreamDecoder_FeedBytewise": {
			Description: "one octet per Feed",
			MinMBPerSec: 10,
		},
		"BenchmarkDecodeTree": {
			Description: "decode into a tuple tree",
			MinMBPerSec: 50,
		},
		"BenchmarkSerialize": {
			Description: "second encoder pass",
			MaxNsPerOp:  5000,
		},
		"BenchmarkCodec_DecodeBind": {
			Description: "LDAP bind through the digester",
			MaxNsPerOp:  20000,
		},
	}
}

// Report represents a complete benchmark report.
type Report struct {
	Timestamp time.Time
	Results   []BenchmarkResult
	Targets   map[string]Target
}

// NewReport creates a report checked against DefaultTargets.
func NewReport() *Report {
	return &Report{
		Timestamp: time.Now(),
		Targets:   DefaultTargets(),
	}
}

// benchLine matches one result line:
// BenchmarkName-N  iterations  ns/op  [MB/s]  [B/op]  [allocs/op]
var benchLine = regexp.MustCompile(`^(Benchmark\S+?)(?:-\d+)?\s+(\d+)\s+([\d.]+) ns/op(?:\s+([\d.]+) MB/s)?(?:\s+(\d+) B/op)?(?:\s+(\d+) allocs/op)?`)

// ParseBenchmarkOutput parses Go benchmark output and returns results.
// Lines that are not results are skipped; "pkg:" lines set the package of
// the results that follow.
func ParseBenchmarkOutput(r io.Reader) ([]BenchmarkResult, error) {
	var results []BenchmarkResult
	pkg := ""

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if rest, ok := strings.CutPrefix(line, "pkg:"); ok {
			pkg = strings.TrimSpace(rest)
			continue
		}

		m := benchLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		res := BenchmarkResult{Name: m[1], Package: pkg}
		res.Iterations, _ = strconv.Atoi(m[2])
		res.NsPerOp, _ = strconv.ParseFloat(m[3], 64)
		if m[4] != "" {
			res.MBPerSec, _ = strconv.ParseFloat(m[4], 64)
		}
		if m[5] != "" {
			res.BytesPerOp, _ = strconv.ParseInt(m[5], 10, 64)
		}
		if m[6] != "" {
			res.AllocsPerOp, _ = strconv.ParseInt(m[6], 10, 64)
		}
		results = append(results, res)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading benchmark output: %w", err)
	}
	return results, nil
}

// AddResults adds benchmark results to the report.
func (r *Report) AddResults(results []BenchmarkResult) {
	r.Results = append(r.Results, results...)
}

// TargetCheck is the outcome of one result against its target.
type TargetCheck struct {
	Benchmark string
	Target    Target
	Result    BenchmarkResult
	// Failures lists the bounds the result missed.
	Failures []string
}

// Passed reports whether every bound was met.
func (c TargetCheck) Passed() bool { return len(c.Failures) == 0 }

// CheckTargets checks every result that has a target, in benchmark name order.
func (r *Report) CheckTargets() []TargetCheck {
	var checks []TargetCheck
	for _, res := range r.Results {
		t, ok := r.Targets[res.Name]
		if !ok {
			continue
		}

		c := TargetCheck{Benchmark: res.Name, Target: t, Result: res}
		if t.MaxNsPerOp > 0 && res.NsPerOp > t.MaxNsPerOp {
			c.Failures = append(c.Failures, fmt.Sprintf("%s > %s", formatDuration(res.NsPerOp), formatDuration(t.MaxNsPerOp)))
		}
		if t.MinMBPerSec > 0 && res.MBPerSec < t.MinMBPerSec {
			c.Failures = append(c.Failures, fmt.Sprintf("%.2f MB/s < %.2f MB/s", res.MBPerSec, t.MinMBPerSec))
		}
		if t.ZeroAlloc && res.AllocsPerOp > 0 {
			c.Failures = append(c.Failures, fmt.Sprintf("%d allocs/op", res.AllocsPerOp))
		}
		checks = append(checks, c)
	}

	sort.Slice(checks, func(i, j int) bool { return checks[i].Benchmark < checks[j].Benchmark })
	return checks
}

func (r *Report) byPackage() ([]string, map[string][]BenchmarkResult) {
	groups := make(map[string][]BenchmarkResult)
	for _, res := range r.Results {
		pkg := res.Package
		if pkg == "" {
			pkg = "unknown"
		}
		groups[pkg] = append(groups[pkg], res)
	}

	pkgs := make([]string, 0, len(groups))
	for pkg, results := range groups {
		pkgs = append(pkgs, pkg)
		sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	}
	sort.Strings(pkgs)
	return pkgs, groups
}

// GenerateTextReport writes a plain text report to w.
func (r *Report) GenerateTextReport(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "=== obaber Benchmark Report ===\n\n")
	fmt.Fprintf(bw, "Generated: %s\n\n", r.Timestamp.Format(time.RFC3339))

	pkgs, groups := r.byPackage()
	for _, pkg := range pkgs {
		fmt.Fprintf(bw, "--- Package: %s ---\n\n", pkg)
		fmt.Fprintf(bw, "%-40s %12s %12s %10s %10s %10s\n",
			"Benchmark", "Iterations", "ns/op", "MB/s", "B/op", "allocs/op")
		fmt.Fprintf(bw, "%s\n", strings.Repeat("-", 99))
		for _, res := range groups[pkg] {
			fmt.Fprintf(bw, "%-40s %12d %12.2f %10.2f %10d %10d\n",
				res.Name, res.Iterations, res.NsPerOp, res.MBPerSec, res.BytesPerOp, res.AllocsPerOp)
		}
		fmt.Fprintln(bw)
	}

	if checks := r.CheckTargets(); len(checks) > 0 {
		fmt.Fprintln(bw, "=== Targets ===")
		fmt.Fprintln(bw)
		for _, c := range checks {
			status := "PASS"
			if !c.Passed() {
				status = "FAIL " + strings.Join(c.Failures, "; ")
			}
			fmt.Fprintf(bw, "%-40s %s\n", c.Benchmark, status)
		}
	}
	return bw.Flush()
}

// GenerateMarkdownReport writes the report as Markdown tables to w.
func (r *Report) GenerateMarkdownReport(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# obaber Benchmark Report")
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "Generated: %s\n\n", r.Timestamp.Format(time.RFC3339))

	pkgs, groups := r.byPackage()
	for _, pkg := range pkgs {
		fmt.Fprintf(bw, "## %s\n\n", pkg)
		fmt.Fprintln(bw, "| Benchmark | Iterations | ns/op | MB/s | B/op | allocs/op |")
		fmt.Fprintln(bw, "|-----------|------------|-------|------|------|-----------|")
		for _, res := range groups[pkg] {
			fmt.Fprintf(bw, "| %s | %d | %.2f | %.2f | %d | %d |\n",
				res.Name, res.Iterations, res.NsPerOp, res.MBPerSec, res.BytesPerOp, res.AllocsPerOp)
		}
		fmt.Fprintln(bw)
	}

	if checks := r.CheckTargets(); len(checks) > 0 {
		fmt.Fprintln(bw, "## Targets")
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, "| Benchmark | Description | Status |")
		fmt.Fprintln(bw, "|-----------|-------------|--------|")
		for _, c := range checks {
			status := "PASS"
			if !c.Passed() {
				status = "FAIL: " + strings.Join(c.Failures, "; ")
			}
			fmt.Fprintf(bw, "| %s | %s | %s |\n", c.Benchmark, c.Target.Description, status)
		}
	}
	return bw.Flush()
}

// Generate writes the report in format, "text" or "markdown".
func (r *Report) Generate(w io.Writer, format string) error {
	switch format {
	case "", "text":
		return r.GenerateTextReport(w)
	case "markdown", "md":
		return r.GenerateMarkdownReport(w)
	default:
		return fmt.Errorf("unknown report format: %s", format)
	}
}

// Summary returns a one-paragraph summary of the results.
func (r *Report) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Total benchmarks: %d\n", len(r.Results))

	checks := r.CheckTargets()
	passed := 0
	for _, c := range checks {
		if c.Passed() {
			passed++
		}
	}
	fmt.Fprintf(&sb, "Targets: %d/%d passed\n", passed, len(checks))
	return sb.String()
}

func formatDuration(ns float64) string {
	switch {
	case ns < 1e3:
		return fmt.Sprintf("%.2f ns", ns)
	case ns < 1e6:
		return fmt.Sprintf("%.2f us", ns/1e3)
	case ns < 1e9:
		return fmt.Sprintf("%.2f ms", ns/1e6)
	default:
		return fmt.Sprintf("%.2f s", ns/1e9)
	}
}
