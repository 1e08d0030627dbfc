package main

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// opScenario — запись о сценарии целиком, в отличие от отдельных GraphQL-операций.
const opScenario = "scenario"

// latency — сводка по выборке в миллисекундах.
type latency struct {
	Min float64 `json:"min"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

// summarize считает перцентили методом nearest-rank.
func summarize(samples []time.Duration) latency {
	if len(samples) == 0 {
		return latency{}
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	rank := func(p int) float64 {
		i := (p*len(sorted)+99)/100 - 1
		return ms(sorted[max(i, 0)])
	}
	return latency{
		Min: ms(sorted[0]),
		Avg: ms(sum / time.Duration(len(sorted))),
		P50: rank(50),
		P95: rank(95),
		P99: rank(99),
		Max: ms(sorted[len(sorted)-1]),
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// opReport — итог по одной операции (createOrder, allOrders, ...).
type opReport struct {
	Calls     int            `json:"calls"`
	Failed    int            `json:"failed"`
	ErrorRate float64        `json:"error_rate"`
	Outcomes  map[string]int `json:"outcomes"`
	LatencyMs latency        `json:"latency_ms"`
}

type opSamples struct {
	outcomes map[string]int
	failed   int
	took     []time.Duration
}

// recorder собирает результаты вызовов из всех воркеров.
type recorder struct {
	mu  sync.Mutex
	ops map[string]*opSamples
}

func newRecorder() *recorder {
	return &recorder{ops: make(map[string]*opSamples)}
}

func (r *recorder) observe(op string, took time.Duration, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.ops[op]
	if s == nil {
		s = &opSamples{outcomes: make(map[string]int)}
		r.ops[op] = s
	}
	s.took = append(s.took, took)
	s.outcomes[outcome]++
	if outcome != outcomeOK {
		s.failed++
	}
}

func (r *recorder) op(name string) opReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opLocked(name)
}

func (r *recorder) opLocked(name string) opReport {
	s := r.ops[name]
	if s == nil {
		return opReport{}
	}
	return opReport{
		Calls:     len(s.took),
		Failed:    s.failed,
		ErrorRate: errorRate(s.failed, len(s.took)),
		Outcomes:  maps.Clone(s.outcomes),
		LatencyMs: summarize(s.took),
	}
}

func errorRate(failed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
