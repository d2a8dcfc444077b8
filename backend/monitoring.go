// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/ttbt-io/pagerunner/report"
	"github.com/ttbt-io/pagerunner/runner"
)

// ResolutionConfig defines the policy for a single RRD bucket set.
type ResolutionConfig struct {
	Name       string        `json:"name"`
	Resolution time.Duration `json:"resolution"`
	Retention  time.Duration `json:"retention"`
	Buckets    int           `json:"buckets"`
}

var DefaultResolutions = []ResolutionConfig{
	{"1m", 1 * time.Minute, 2 * time.Hour, 120},
	{"15m", 15 * time.Minute, 24 * time.Hour, 96},
	{"1h", 1 * time.Hour, 7 * 24 * time.Hour, 168},
}

// Point represents a single data point in a time series.
type Point[T any] struct {
	Timestamp int64 `json:"t"`
	Value     T     `json:"v"`
}

// RingBuffer is a fixed-size circular buffer for storing time series data.
type RingBuffer[T any] struct {
	Config ResolutionConfig `json:"config"`
	Data   []Point[T]       `json:"data"`
	Head   int              `json:"head"` // Points to the *next* write position
}

func NewRingBuffer[T any](cfg ResolutionConfig) *RingBuffer[T] {
	return &RingBuffer[T]{
		Config: cfg,
		Data:   make([]Point[T], cfg.Buckets),
	}
}

func (rb *RingBuffer[T]) align(timestamp int64) int64 {
	resSec := int64(rb.Config.Resolution.Seconds())
	return (timestamp / resSec) * resSec
}

// last returns the most recent point if it falls in the same bucket as
// timestamp.
func (rb *RingBuffer[T]) last(timestamp int64) *Point[T] {
	prev := &rb.Data[(rb.Head-1+len(rb.Data))%len(rb.Data)]
	if prev.Timestamp != 0 && prev.Timestamp == rb.align(timestamp) {
		return prev
	}
	return nil
}

// Add appends a point, replacing the most recent one if it has the same
// aligned timestamp.
func (rb *RingBuffer[T]) Add(timestamp int64, value T) {
	if p := rb.last(timestamp); p != nil {
		p.Value = value
		return
	}
	rb.Data[rb.Head] = Point[T]{Timestamp: rb.align(timestamp), Value: value}
	rb.Head = (rb.Head + 1) % len(rb.Data)
}

// GetPoints returns the data points sorted by time.
func (rb *RingBuffer[T]) GetPoints() []Point[T] {
	points := make([]Point[T], 0, len(rb.Data))
	for i := range len(rb.Data) {
		idx := (rb.Head + i) % len(rb.Data)
		if rb.Data[idx].Timestamp > 0 {
			points = append(points, rb.Data[idx])
		}
	}
	return points
}

// CounterSeries counts occurrences per bucket at every resolution.
type CounterSeries struct {
	Name    string                          `json:"name"`
	Buffers map[string]*RingBuffer[float64] `json:"buffers"`
}

func NewCounterSeries(name string) *CounterSeries {
	buffers := make(map[string]*RingBuffer[float64])
	for _, cfg := range DefaultResolutions {
		buffers[cfg.Name] = NewRingBuffer[float64](cfg)
	}
	return &CounterSeries{Name: name, Buffers: buffers}
}

func (cs *CounterSeries) Ingest(timestamp int64, value float64) {
	for _, buf := range cs.Buffers {
		if p := buf.last(timestamp); p != nil {
			p.Value += value
			continue
		}
		buf.Add(timestamp, value)
	}
}

// HistogramSeries holds all resolutions for a latency histogram.
type HistogramSeries struct {
	Name    string                                   `json:"name"`
	Buffers map[string]*RingBuffer[report.Histogram] `json:"buffers"`
}

func NewHistogramSeries(name string) *HistogramSeries {
	buffers := make(map[string]*RingBuffer[report.Histogram])
	for _, cfg := range DefaultResolutions {
		buffers[cfg.Name] = NewRingBuffer[report.Histogram](cfg)
	}
	return &HistogramSeries{Name: name, Buffers: buffers}
}

func (hs *HistogramSeries) Ingest(timestamp int64, d time.Duration) {
	for _, buf := range hs.Buffers {
		if p := buf.last(timestamp); p != nil {
			p.Value.Add(d)
			continue
		}
		var h report.Histogram
		h.Add(d)
		buf.Add(timestamp, h)
	}
}

// Metrics aggregates live run events into time series. It is fed by the Hub
// and served at /api/metrics.
type Metrics struct {
	mu          sync.Mutex
	Runs        *CounterSeries   `json:"runs"`
	Failures    *CounterSeries   `json:"failures"`
	Steps       *CounterSeries   `json:"steps"`
	StepLatency *HistogramSeries `json:"stepLatency"`
	LastUpdate  int64            `json:"lastUpdate"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		Runs:        NewCounterSeries("runs"),
		Failures:    NewCounterSeries("failures"),
		Steps:       NewCounterSeries("steps"),
		StepLatency: NewHistogramSeries("stepLatency"),
	}
}

// Observe accounts for one run event.
func (m *Metrics) Observe(ev runner.RunEvent) {
	ts := ev.Time.Unix()
	if ev.Time.IsZero() {
		ts = time.Now().Unix()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ev.Type {
	case runner.RunFinished:
		m.Runs.Ingest(ts, 1)
		if !ev.Passed {
			m.Failures.Ingest(ts, 1)
		}
	case runner.StepPassed, runner.StepFailed:
		m.Steps.Ingest(ts, 1)
		m.StepLatency.Ingest(ts, ev.Duration)
	default:
		return
	}
	m.LastUpdate = ts
}

// WriteJSON encodes a consistent snapshot of m.
func (m *Metrics) WriteJSON(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return json.NewEncoder(w).Encode(m)
}
