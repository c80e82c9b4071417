// Package bench sweeps an iperf3 benchmark matrix across namespaces,
// targets, durations and protocols, persisting each run's raw iperf3
// JSON for downstream plotting.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"grimm.is/xlatbench/internal/clock"
	"grimm.is/xlatbench/internal/config"
	"grimm.is/xlatbench/internal/logging"
	"grimm.is/xlatbench/internal/network"
)

// Status of one benchmark run.
const (
	RunOK     = "ok"
	RunFailed = "failed"
)

// RunRecord is the outcome of one cell of the matrix. Failed runs stay
// in the report so the matrix is always complete.
type RunRecord struct {
	Namespace string  `json:"namespace"`
	Target    string  `json:"target"`
	Duration  int     `json:"duration_secs"`
	Label     string  `json:"label"`
	Protocol  string  `json:"protocol"`
	Status    string  `json:"status"`
	File      string  `json:"file,omitempty"`
	Mbps      float64 `json:"mbps,omitempty"`

	// TCP runs carry the sender's retransmit count; UDP runs carry the
	// receiver's jitter and loss.
	Retransmits int     `json:"retransmits,omitempty"`
	JitterMs    float64 `json:"jitter_ms,omitempty"`
	LostPercent float64 `json:"lost_percent,omitempty"`

	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Report is a whole sweep: its identity, every run and the aggregate
// summary.
type Report struct {
	RunID     string       `json:"run_id"`
	StartedAt time.Time    `json:"started_at"`
	Records   []RunRecord  `json:"records"`
	Summary   []SummaryRow `json:"summary,omitempty"`
}

// Starter launches a prepared command inside a namespace. Satisfied by
// netns.Manager.
type Starter interface {
	StartIn(namespace string, cmd *exec.Cmd) error
}

// Runner sweeps the matrix sequentially so runs never compete for
// bandwidth.
type Runner struct {
	exec    network.Execer
	starter Starter
	log     *logging.Logger

	server *exec.Cmd
}

// NewRunner returns a Runner using exec for clients and starter for the
// optional long-lived server.
func NewRunner(execer network.Execer, starter Starter, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.WithComponent("bench")
	}
	return &Runner{exec: execer, starter: starter, log: log}
}

// Run executes the configured matrix and writes raw iperf3 JSON plus a
// report file under the results directory. Failed cells are recorded,
// not fatal; the returned report always covers the full matrix.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*Report, error) {
	b := cfg.Bench
	if b == nil {
		return nil, fmt.Errorf("configuration has no bench block")
	}
	if err := os.MkdirAll(b.ResultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results dir: %w", err)
	}

	if b.Server != nil {
		if err := r.startServer(b.Server); err != nil {
			return nil, err
		}
		defer r.stopServer()
	}

	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: clock.Now(),
	}
	r.log.Info("benchmark sweep starting", "run_id", report.RunID,
		"cells", len(b.Namespaces)*len(b.Targets)*len(b.Durations)*len(b.Protocols))

	for _, ns := range b.Namespaces {
		for _, target := range b.Targets {
			for _, dur := range b.Durations {
				for _, proto := range b.Protocols {
					select {
					case <-ctx.Done():
						return report, ctx.Err()
					default:
					}
					rec := r.runOne(ns, target, dur, proto, b)
					report.Records = append(report.Records, rec)
				}
			}
		}
	}

	report.Summary = Summarize(report.Records)
	if err := r.writeReport(b.ResultsDir, report); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) runOne(namespace, target string, duration int, protocol string, b *config.Bench) RunRecord {
	rec := RunRecord{
		Namespace: namespace,
		Target:    target,
		Duration:  duration,
		Label:     DurationLabel(duration),
		Protocol:  protocol,
		StartedAt: clock.Now(),
	}

	args := []string{"--json", "-c", target, "-t", strconv.Itoa(duration)}
	if protocol == "udp" {
		args = append(args, "-u", "-b", b.UDPBandwidth)
	}

	r.log.Info("benchmark run", "namespace", namespace, "target", target,
		"duration", rec.Label, "protocol", protocol)

	out, err := r.exec.Run(namespace, "iperf3", args...)
	if err != nil {
		rec.Status = RunFailed
		rec.Error = err.Error()
		r.log.Warn("benchmark run failed", "namespace", namespace, "target", target, "error", err)
		return rec
	}

	// iperf3 can exit zero and still print garbage (or an in-band
	// error object); such a run carries no measurement and is a failure.
	m, err := parseRunMetrics([]byte(out), protocol)
	if err != nil {
		rec.Status = RunFailed
		rec.Error = err.Error()
		r.log.Warn("benchmark run failed", "namespace", namespace, "target", target, "error", err)
		return rec
	}

	name := ResultFileName(namespace, target, rec.Label, protocol)
	path := filepath.Join(b.ResultsDir, name)
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		rec.Status = RunFailed
		rec.Error = err.Error()
		return rec
	}

	rec.Status = RunOK
	rec.File = name
	rec.Mbps = m.Mbps
	rec.Retransmits = m.Retransmits
	rec.JitterMs = m.JitterMs
	rec.LostPercent = m.LostPercent
	return rec
}

func (r *Runner) startServer(s *config.BenchServer) error {
	args := []string{"-s"}
	if s.Bind != "" {
		args = append(args, "-B", s.Bind)
	}
	cmd := exec.Command("iperf3", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := r.starter.StartIn(s.Namespace, cmd); err != nil {
		return fmt.Errorf("failed to start iperf3 server in %q: %w", s.Namespace, err)
	}
	r.server = cmd
	r.log.Info("iperf3 server started", "namespace", s.Namespace, "bind", s.Bind)
	return nil
}

func (r *Runner) stopServer() {
	if r.server == nil || r.server.Process == nil {
		r.server = nil
		return
	}
	_ = syscall.Kill(-r.server.Process.Pid, syscall.SIGTERM)
	_ = r.server.Wait()
	r.server = nil
	r.log.Info("iperf3 server stopped")
}

func (r *Runner) writeReport(dir string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "report.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// DurationLabel renders a duration in the form the result files use:
// whole minutes as "2min", everything else as seconds.
func DurationLabel(secs int) string {
	if secs >= 60 && secs%60 == 0 {
		return fmt.Sprintf("%dmin", secs/60)
	}
	return fmt.Sprintf("%ds", secs)
}

// ResultFileName builds the per-run raw output filename. Colons in the
// target are flattened so IPv6 literals survive as filenames.
func ResultFileName(namespace, target, label, protocol string) string {
	flat := strings.ReplaceAll(target, ":", "_")
	return fmt.Sprintf("%s_%s_%s_%s.json", namespace, flat, label, protocol)
}

// iperfEnd is the slice of iperf3's JSON output the records need.
type iperfEnd struct {
	End struct {
		SumSent struct {
			BitsPerSecond float64 `json:"bits_per_second"`
			Retransmits   int     `json:"retransmits"`
		} `json:"sum_sent"`
		SumReceived struct {
			BitsPerSecond float64 `json:"bits_per_second"`
		} `json:"sum_received"`
		Sum struct {
			BitsPerSecond float64 `json:"bits_per_second"`
			JitterMs      float64 `json:"jitter_ms"`
			LostPercent   float64 `json:"lost_percent"`
		} `json:"sum"`
	} `json:"end"`
	Error string `json:"error"`
}

// runMetrics is what one parsed run contributes to its record.
type runMetrics struct {
	Mbps        float64
	Retransmits int
	JitterMs    float64
	LostPercent float64
}

// parseRunMetrics extracts the achieved rate and per-protocol quality
// figures: receiver-side rate plus sender retransmits for TCP, the
// single sum with jitter and loss for UDP.
func parseRunMetrics(raw []byte, protocol string) (runMetrics, error) {
	var parsed iperfEnd
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return runMetrics{}, fmt.Errorf("unparsable iperf3 output: %w", err)
	}
	if parsed.Error != "" {
		return runMetrics{}, fmt.Errorf("iperf3: %s", parsed.Error)
	}

	var m runMetrics
	if protocol == "udp" {
		m.Mbps = parsed.End.Sum.BitsPerSecond / 1e6
		m.JitterMs = parsed.End.Sum.JitterMs
		m.LostPercent = parsed.End.Sum.LostPercent
		return m, nil
	}
	bps := parsed.End.SumReceived.BitsPerSecond
	if bps == 0 {
		bps = parsed.End.Sum.BitsPerSecond
	}
	m.Mbps = bps / 1e6
	m.Retransmits = parsed.End.SumSent.Retransmits
	return m, nil
}
