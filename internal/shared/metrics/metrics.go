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
	sessionsStartedTotal   atomic.Uint64
	sessionsCompletedTotal atomic.Uint64
	sessionsFailedTotal    atomic.Uint64
	sessionsAbandonedTotal atomic.Uint64

	answersUnresolvedTotal atomic.Uint64
	remoteRetriesTotal     atomic.Uint64

	submissionsTotal      atomic.Uint64
	trackingFallbackTotal atomic.Uint64
	reconciledTotal       atomic.Uint64

	reconcileJobsReceivedTotal  atomic.Uint64
	reconcileJobsCompletedTotal atomic.Uint64
	reconcileJobsFailedTotal    atomic.Uint64
	reconcileJobsDroppedTotal   atomic.Uint64

	remoteCallDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000})
)

// IncSessionStarted increments the started counter.
func IncSessionStarted() {
	sessionsStartedTotal.Add(1)
}

// IncSessionCompleted increments the completed counter.
func IncSessionCompleted() {
	sessionsCompletedTotal.Add(1)
}

// IncSessionFailed increments the failed counter.
func IncSessionFailed() {
	sessionsFailedTotal.Add(1)
}

// IncSessionAbandoned increments the abandoned counter.
func IncSessionAbandoned() {
	sessionsAbandonedTotal.Add(1)
}

// IncAnswerUnresolved counts answers the interpreter could not turn into a value.
func IncAnswerUnresolved() {
	answersUnresolvedTotal.Add(1)
}

// IncRemoteRetry counts retried extraction/interpretation calls.
func IncRemoteRetry() {
	remoteRetriesTotal.Add(1)
}

// IncSubmission counts finalized submissions.
func IncSubmission() {
	submissionsTotal.Add(1)
}

// IncTrackingFallback counts submissions that kept a locally generated tracking ID.
func IncTrackingFallback() {
	trackingFallbackTotal.Add(1)
}

// IncReconciled counts provisional submissions later registered with the case store.
func IncReconciled() {
	reconciledTotal.Add(1)
}

// IncReconcileJobsReceived increments the received counter.
func IncReconcileJobsReceived() {
	reconcileJobsReceivedTotal.Add(1)
}

// IncReconcileJobsCompleted increments the completed counter.
func IncReconcileJobsCompleted() {
	reconcileJobsCompletedTotal.Add(1)
}

// IncReconcileJobsFailed increments the failed counter.
func IncReconcileJobsFailed() {
	reconcileJobsFailedTotal.Add(1)
}

// IncReconcileJobsDropped counts unrecoverable messages deleted without processing.
func IncReconcileJobsDropped() {
	reconcileJobsDroppedTotal.Add(1)
}

// ObserveRemoteCallMs records a remote inference call duration in milliseconds.
func ObserveRemoteCallMs(value float64) {
	if value < 0 {
		value = 0
	}
	remoteCallDuration.Observe(value)
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
	writeCounter(&buf, "intake_sessions_started_total", "Total intake sessions started", sessionsStartedTotal.Load())
	writeCounter(&buf, "intake_sessions_completed_total", "Total intake sessions completed", sessionsCompletedTotal.Load())
	writeCounter(&buf, "intake_sessions_failed_total", "Total intake sessions failed", sessionsFailedTotal.Load())
	writeCounter(&buf, "intake_sessions_abandoned_total", "Total intake sessions abandoned", sessionsAbandonedTotal.Load())
	writeCounter(&buf, "intake_answers_unresolved_total", "Answers that produced no value", answersUnresolvedTotal.Load())
	writeCounter(&buf, "intake_remote_retries_total", "Retried remote inference calls", remoteRetriesTotal.Load())
	writeCounter(&buf, "intake_submissions_total", "Total submissions handed off", submissionsTotal.Load())
	writeCounter(&buf, "intake_tracking_fallback_total", "Submissions with a locally generated tracking ID", trackingFallbackTotal.Load())
	writeCounter(&buf, "intake_submissions_reconciled_total", "Provisional submissions registered after handoff", reconciledTotal.Load())
	writeCounter(&buf, "intake_reconcile_jobs_received_total", "Reconcile jobs received", reconcileJobsReceivedTotal.Load())
	writeCounter(&buf, "intake_reconcile_jobs_completed_total", "Reconcile jobs completed", reconcileJobsCompletedTotal.Load())
	writeCounter(&buf, "intake_reconcile_jobs_failed_total", "Reconcile jobs failed", reconcileJobsFailedTotal.Load())
	writeCounter(&buf, "intake_reconcile_jobs_dropped_total", "Unrecoverable reconcile messages deleted", reconcileJobsDroppedTotal.Load())
	writeHistogram(&buf, "intake_remote_call_ms", "Remote inference call duration in milliseconds", remoteCallDuration.Snapshot())
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
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
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

// Since returns the elapsed milliseconds since start.
func Since(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
