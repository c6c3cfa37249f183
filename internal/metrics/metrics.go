// Package metrics wraps the handful of Prometheus collectors the VFS
// layer records against: per-syscall outcome counts, byte throughput,
// and the number of descriptors currently in use.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder is nil-safe: every method is a no-op on a nil *Recorder, so
// callers that don't care about metrics can pass nil.
type Recorder struct {
	opsTotal       *prometheus.CounterVec
	bytesTotal     *prometheus.CounterVec
	openFilesInUse prometheus.Gauge
}

// New registers and returns a Recorder against reg. Pass
// prometheus.NewRegistry() for an isolated registry, or nil to use the
// default global registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slowfs",
			Name:      "vfs_ops_total",
			Help:      "Number of VFS syscalls, labeled by name and outcome.",
		}, []string{"op", "outcome"}),
		bytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slowfs",
			Name:      "vfs_bytes_total",
			Help:      "Bytes moved through read/write, labeled by direction.",
		}, []string{"direction"}),
		openFilesInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "slowfs",
			Name:      "open_files_in_use",
			Help:      "Number of descriptors currently occupied across all processes.",
		}),
	}

	reg.MustRegister(r.opsTotal, r.bytesTotal, r.openFilesInUse)
	return r
}

// Op records one syscall's outcome. outcome should be "ok" or an
// errno name (e.g. "ENOENT").
func (r *Recorder) Op(op, outcome string) {
	if r == nil {
		return
	}
	r.opsTotal.WithLabelValues(op, outcome).Inc()
}

// Bytes records n bytes moved in the given direction ("read" or "write").
func (r *Recorder) Bytes(direction string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.bytesTotal.WithLabelValues(direction).Add(float64(n))
}

// FileOpened increments the open-descriptor gauge.
func (r *Recorder) FileOpened() {
	if r == nil {
		return
	}
	r.openFilesInUse.Inc()
}

// FileClosed decrements the open-descriptor gauge.
func (r *Recorder) FileClosed() {
	if r == nil {
		return
	}
	r.openFilesInUse.Dec()
}
