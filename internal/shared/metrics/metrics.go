package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	pipelineStartedTotal   atomic.Uint64
	pipelineCompletedTotal atomic.Uint64
	pipelineFailedTotal    atomic.Uint64

	pipelineJobsReceivedTotal             atomic.Uint64
	pipelineJobsCompletedTotal            atomic.Uint64
	pipelineJobsFailedTotal               atomic.Uint64
	pipelineJobsDeletedUnrecoverableTotal atomic.Uint64

	statusRecordsReapedTotal atomic.Uint64

	pipelineDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000, 300000})
)

// IncPipelineStarted increments the started counter.
func IncPipelineStarted() {
	pipelineStartedTotal.Add(1)
}

// IncPipelineCompleted increments the completed counter.
func IncPipelineCompleted() {
	pipelineCompletedTotal.Add(1)
}

// IncPipelineFailed increments the failed counter.
func IncPipelineFailed() {
	pipelineFailedTotal.Add(1)
}

// IncPipelineJobsReceived increments the queue-received counter.
func IncPipelineJobsReceived() {
	pipelineJobsReceivedTotal.Add(1)
}

// IncPipelineJobsCompleted increments the queue-completed counter.
func IncPipelineJobsCompleted() {
	pipelineJobsCompletedTotal.Add(1)
}

// IncPipelineJobsFailed increments the queue-failed counter.
func IncPipelineJobsFailed() {
	pipelineJobsFailedTotal.Add(1)
}

// IncPipelineJobsDeletedUnrecoverable increments the unrecoverable-delete counter.
func IncPipelineJobsDeletedUnrecoverable() {
	pipelineJobsDeletedUnrecoverableTotal.Add(1)
}

// AddStatusRecordsReaped adds to the reaped-records counter.
func AddStatusRecordsReaped(n uint64) {
	statusRecordsReapedTotal.Add(n)
}

// ObservePipelineDurationMs records a pipeline duration in milliseconds.
func ObservePipelineDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	pipelineDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "pipeline_started_total", "Total pipelines started", pipelineStartedTotal.Load())
	writeCounter(&buf, "pipeline_completed_total", "Total pipelines completed", pipelineCompletedTotal.Load())
	writeCounter(&buf, "pipeline_failed_total", "Total pipelines failed", pipelineFailedTotal.Load())
	writeCounter(&buf, "pipeline_jobs_received_total", "Total queue messages received", pipelineJobsReceivedTotal.Load())
	writeCounter(&buf, "pipeline_jobs_completed_total", "Total queue messages processed successfully", pipelineJobsCompletedTotal.Load())
	writeCounter(&buf, "pipeline_jobs_failed_total", "Total queue messages that failed processing", pipelineJobsFailedTotal.Load())
	writeCounter(&buf, "pipeline_jobs_deleted_unrecoverable_total", "Total queue messages deleted as unrecoverable", pipelineJobsDeletedUnrecoverableTotal.Load())
	writeCounter(&buf, "status_records_reaped_total", "Total status records removed by the reaper", statusRecordsReapedTotal.Load())
	writeHistogram(&buf, "pipeline_duration_ms", "Pipeline duration in milliseconds", pipelineDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
