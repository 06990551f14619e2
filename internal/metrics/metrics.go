// Package metrics exposes Prometheus instruments for frame I/O.
//
// A nil *Recorder is valid and records nothing, so library code can call it
// unconditionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imageseq"

// Recorder holds the imageseq collectors.
type Recorder struct {
	FramesDecoded   *prometheus.CounterVec
	FramesEncoded   *prometheus.CounterVec
	FramesSkipped   prometheus.Counter
	Uploads         prometheus.Counter
	ActiveWorkers   *prometheus.GaugeVec
	OperationTime   *prometheus.HistogramVec
	OperationsTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. A nil reg uses a fresh private
// registry so repeated construction in tests never collides.
func New(reg prometheus.Registerer) *Recorder {
	var gatherer prometheus.Gatherer
	if reg == nil {
		private := prometheus.NewRegistry()
		reg, gatherer = private, private
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Recorder{
		FramesDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Frames decoded, by result.",
		}, []string{"result"}),
		FramesEncoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_encoded_total",
			Help:      "Frames encoded during export, by result.",
		}, []string{"result"}),
		FramesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_skipped_total",
			Help:      "Export frames skipped because the destination already existed.",
		}),
		Uploads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_uploads_total",
			Help:      "Frames handed to the display uploader.",
		}),
		ActiveWorkers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Background workers currently alive, by operation.",
		}, []string{"operation"}),
		OperationTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall time of import, export and load operations.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"operation"}),
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Finished operations, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		gatherer: gatherer,
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// FrameDecoded counts one decode attempt.
func (r *Recorder) FrameDecoded(ok bool) {
	if r == nil {
		return
	}
	r.FramesDecoded.WithLabelValues(result(ok)).Inc()
}

// FrameEncoded counts one encode attempt.
func (r *Recorder) FrameEncoded(ok bool) {
	if r == nil {
		return
	}
	r.FramesEncoded.WithLabelValues(result(ok)).Inc()
}

// FrameSkipped counts an export frame left untouched.
func (r *Recorder) FrameSkipped() {
	if r == nil {
		return
	}
	r.FramesSkipped.Inc()
}

// FrameUploaded counts one display upload.
func (r *Recorder) FrameUploaded() {
	if r == nil {
		return
	}
	r.Uploads.Inc()
}

// WorkerStarted and WorkerStopped track live workers per operation.
func (r *Recorder) WorkerStarted(operation string) {
	if r == nil {
		return
	}
	r.ActiveWorkers.WithLabelValues(operation).Inc()
}

func (r *Recorder) WorkerStopped(operation string) {
	if r == nil {
		return
	}
	r.ActiveWorkers.WithLabelValues(operation).Dec()
}

// OperationFinished records the duration and outcome of an operation.
func (r *Recorder) OperationFinished(operation, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.OperationTime.WithLabelValues(operation).Observe(elapsed.Seconds())
	r.OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// Handler serves the registry the recorder was built with. It falls back to
// the default gatherer when the registerer could not gather.
func (r *Recorder) Handler() http.Handler {
	if r == nil || r.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
