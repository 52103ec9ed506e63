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
	chatTurnsTotal        atomic.Uint64
	streamSuccessTotal    atomic.Uint64
	streamFailureTotal    atomic.Uint64
	fallbackTotal         atomic.Uint64
	fallbackFailureTotal  atomic.Uint64
	uploadsProcessedTotal atomic.Uint64
	uploadsFailedTotal    atomic.Uint64
	submissionsTotal      atomic.Uint64
	rateLimitedTotal      atomic.Uint64
	jobsReceivedTotal     atomic.Uint64
	jobsCompletedTotal    atomic.Uint64
	jobsFailedTotal       atomic.Uint64
	jobsDroppedTotal      atomic.Uint64

	streamDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncChatTurn counts one user chat turn.
func IncChatTurn() {
	chatTurnsTotal.Add(1)
}

// IncStreamSuccess counts a stream session that resolved successfully.
func IncStreamSuccess() {
	streamSuccessTotal.Add(1)
}

// IncStreamFailure counts a stream session that resolved as a failure.
func IncStreamFailure() {
	streamFailureTotal.Add(1)
}

// IncFallback counts a blocking fallback attempt.
func IncFallback() {
	fallbackTotal.Add(1)
}

// IncFallbackFailure counts a fallback that ended with the apology message.
func IncFallbackFailure() {
	fallbackFailureTotal.Add(1)
}

// IncUploadProcessed counts an uploaded file loaded as a record.
func IncUploadProcessed() {
	uploadsProcessedTotal.Add(1)
}

// IncUploadFailed counts an uploaded file that aborted its batch.
func IncUploadFailed() {
	uploadsFailedTotal.Add(1)
}

// IncSubmission counts a submit of the active record.
func IncSubmission() {
	submissionsTotal.Add(1)
}

// IncRateLimited counts a request rejected by the rate limiter.
func IncRateLimited() {
	rateLimitedTotal.Add(1)
}

// IncSubmissionJobReceived counts a submission message taken off the queue.
func IncSubmissionJobReceived() {
	jobsReceivedTotal.Add(1)
}

// IncSubmissionJobCompleted counts a submission message handled and deleted.
func IncSubmissionJobCompleted() {
	jobsCompletedTotal.Add(1)
}

// IncSubmissionJobFailed counts a submission message left for redelivery.
func IncSubmissionJobFailed() {
	jobsFailedTotal.Add(1)
}

// IncSubmissionJobDropped counts an undecodable message deleted unprocessed.
func IncSubmissionJobDropped() {
	jobsDroppedTotal.Add(1)
}

// ObserveStreamDurationMs records a stream session duration in milliseconds.
func ObserveStreamDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	streamDuration.Observe(value)
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
	writeCounter(&buf, "chat_turns_total", "Total chat turns", chatTurnsTotal.Load())
	writeCounter(&buf, "chat_stream_success_total", "Stream sessions resolved successfully", streamSuccessTotal.Load())
	writeCounter(&buf, "chat_stream_failure_total", "Stream sessions resolved as failure", streamFailureTotal.Load())
	writeCounter(&buf, "chat_fallback_total", "Blocking fallback attempts", fallbackTotal.Load())
	writeCounter(&buf, "chat_fallback_failure_total", "Fallbacks answered with the apology", fallbackFailureTotal.Load())
	writeCounter(&buf, "uploads_processed_total", "Uploaded files loaded as records", uploadsProcessedTotal.Load())
	writeCounter(&buf, "uploads_failed_total", "Uploaded files that aborted their batch", uploadsFailedTotal.Load())
	writeCounter(&buf, "submissions_total", "Record submissions", submissionsTotal.Load())
	writeCounter(&buf, "http_rate_limited_total", "Requests rejected by the rate limiter", rateLimitedTotal.Load())
	writeCounter(&buf, "submission_jobs_received_total", "Submission messages received by the worker", jobsReceivedTotal.Load())
	writeCounter(&buf, "submission_jobs_completed_total", "Submission messages processed", jobsCompletedTotal.Load())
	writeCounter(&buf, "submission_jobs_failed_total", "Submission messages left for redelivery", jobsFailedTotal.Load())
	writeCounter(&buf, "submission_jobs_dropped_total", "Undecodable submission messages deleted", jobsDroppedTotal.Load())
	writeHistogram(&buf, "chat_stream_duration_ms", "Stream session duration in milliseconds", streamDuration.Snapshot())
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
			break
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

// SinceMillis returns the milliseconds elapsed since start.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
