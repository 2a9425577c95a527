package dictation

import (
	"sync"
	"time"
)

const metricsHistorySize = 100

// TurnMetrics captures latency figures for one recording turn.
type TurnMetrics struct {
	RecordStart     time.Time     `json:"-"`
	RecordEnd       time.Time     `json:"-"`
	TranscriptAt    time.Time     `json:"-"`
	RecordDuration  time.Duration `json:"record_duration"`
	TranscriptDelay time.Duration `json:"transcript_delay"`
	TotalLatency    time.Duration `json:"total_latency"`
	ChunksCaptured  int           `json:"chunks_captured"`
	ChunksDropped   int           `json:"chunks_dropped"`
	BytesSent       int           `json:"bytes_sent"`
}

// MetricsCollector tracks per-turn latency and keeps a bounded history
// for averaging.
type MetricsCollector struct {
	mu      sync.Mutex
	current TurnMetrics
	history []TurnMetrics
}

// NewMetricsCollector returns an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{history: make([]TurnMetrics, 0, metricsHistorySize)}
}

// MarkRecordStart begins a new turn, discarding any unfinished one.
func (m *MetricsCollector) MarkRecordStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = TurnMetrics{RecordStart: time.Now()}
}

// MarkRecordEnd records the end of capture and the payload size sent.
func (m *MetricsCollector) MarkRecordEnd(bytesSent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.RecordEnd = time.Now()
	m.current.BytesSent = bytesSent
	if !m.current.RecordStart.IsZero() {
		m.current.RecordDuration = m.current.RecordEnd.Sub(m.current.RecordStart)
	}
}

// MarkTranscriptDone closes out the turn and files it into history.
func (m *MetricsCollector) MarkTranscriptDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.TranscriptAt = time.Now()
	if !m.current.RecordEnd.IsZero() {
		m.current.TranscriptDelay = m.current.TranscriptAt.Sub(m.current.RecordEnd)
	}
	if !m.current.RecordStart.IsZero() {
		m.current.TotalLatency = m.current.TranscriptAt.Sub(m.current.RecordStart)
	}
	m.history = append(m.history, m.current)
	if len(m.history) > metricsHistorySize {
		m.history = m.history[1:]
	}
}

// IncrementChunks counts a captured chunk for the current turn.
func (m *MetricsCollector) IncrementChunks() {
	m.mu.Lock()
	m.current.ChunksCaptured++
	m.mu.Unlock()
}

// IncrementDropped counts a chunk dropped by conversion.
func (m *MetricsCollector) IncrementDropped() {
	m.mu.Lock()
	m.current.ChunksDropped++
	m.mu.Unlock()
}

// Current returns a copy of the in-progress turn.
func (m *MetricsCollector) Current() TurnMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Turns returns the number of completed turns in history.
func (m *MetricsCollector) Turns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// Average aggregates the completed-turn history.
func (m *MetricsCollector) Average() TurnMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return TurnMetrics{}
	}
	var avg TurnMetrics
	for _, t := range m.history {
		avg.RecordDuration += t.RecordDuration
		avg.TranscriptDelay += t.TranscriptDelay
		avg.TotalLatency += t.TotalLatency
		avg.ChunksCaptured += t.ChunksCaptured
		avg.ChunksDropped += t.ChunksDropped
		avg.BytesSent += t.BytesSent
	}
	n := len(m.history)
	avg.RecordDuration /= time.Duration(n)
	avg.TranscriptDelay /= time.Duration(n)
	avg.TotalLatency /= time.Duration(n)
	avg.ChunksCaptured /= n
	avg.ChunksDropped /= n
	avg.BytesSent /= n
	return avg
}
