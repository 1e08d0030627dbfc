package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

type report struct {
	StartedAt         time.Time           `json:"started_at"`
	Mode              loadMode            `json:"mode"`
	Target            string              `json:"target"`
	DurationSeconds   float64             `json:"duration_seconds"`
	Scenarios         int                 `json:"scenarios"`
	Failed            int                 `json:"failed"`
	ErrorRate         float64             `json:"error_rate"`
	RPS               float64             `json:"rps"`
	ScenarioLatencyMs latency             `json:"scenario_latency_ms"`
	Operations        map[string]opReport `json:"operations"`
}

func (r *recorder) report(cfg config, startedAt time.Time, elapsed time.Duration) report {
	r.mu.Lock()
	defer r.mu.Unlock()

	scenario := r.opLocked(opScenario)
	out := report{
		StartedAt:         startedAt.UTC(),
		Mode:              cfg.mode,
		Target:            cfg.target(),
		DurationSeconds:   elapsed.Seconds(),
		Scenarios:         scenario.Calls,
		Failed:            scenario.Failed,
		ErrorRate:         scenario.ErrorRate,
		ScenarioLatencyMs: scenario.LatencyMs,
		Operations:        make(map[string]opReport, len(r.ops)),
	}
	if elapsed > 0 {
		out.RPS = float64(out.Scenarios) / elapsed.Seconds()
	}
	for name := range r.ops {
		if name != opScenario {
			out.Operations[name] = r.opLocked(name)
		}
	}
	return out
}

func printReport(w io.Writer, r report, cfg config) {
	l := r.ScenarioLatencyMs
	_, _ = fmt.Fprintf(w, "CRM load test: mode=%s target=%s run-tag=%s\n", r.Mode, r.Target, cfg.runTag)
	_, _ = fmt.Fprintf(w, "scenarios=%d failed=%d error_rate=%.4f duration=%.2fs rps=%.2f\n",
		r.Scenarios, r.Failed, r.ErrorRate, r.DurationSeconds, r.RPS)
	_, _ = fmt.Fprintf(w, "latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		l.Min, l.Avg, l.P50, l.P95, l.P99, l.Max)

	for _, name := range slices.Sorted(maps.Keys(r.Operations)) {
		op := r.Operations[name]
		_, _ = fmt.Fprintf(w, "  %-20s calls=%d failed=%d p95=%.2fms outcomes=%v\n",
			name, op.Calls, op.Failed, op.LatencyMs.P95, op.Outcomes)
	}
}

// writeReport пишет JSON-отчёт; путь должен оставаться внутри текущего каталога.
func writeReport(path string, r report) error {
	clean := filepath.Clean(path)
	switch {
	case clean == "." || clean == string(filepath.Separator):
		return errors.New("output path must point to a file")
	case clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)):
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(clean, append(data, '\n'), 0o600)
}
