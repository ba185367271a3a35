// Package metrics records export and restore outcomes with Prometheus
// collectors. The CLI writes them to a node_exporter textfile when one is
// configured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values
const (
	StatusOK     = "ok"
	StatusError  = "error"
	StatusDenied = "auth_failed"
	StatusEmpty  = "empty"
)

// Metrics holds the statevault collectors.
type Metrics struct {
	exports       *prometheus.CounterVec
	restores      *prometheus.CounterVec
	keyDerivation prometheus.Histogram
	vaultSize     prometheus.Gauge
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		exports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "statevault_exports_total",
			Help: "Vault exports by scope and status",
		}, []string{"scope", "status"}),
		restores: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "statevault_restores_total",
			Help: "Vault restores by mode and status",
		}, []string{"mode", "status"}),
		keyDerivation: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "statevault_key_derivation_seconds",
			Help:    "Time spent deriving vault keys",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		vaultSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "statevault_last_export_bytes",
			Help: "Size of the most recent sealed vault in bytes",
		}),
	}
}

// Nop returns unregistered collectors.
func Nop() *Metrics {
	return New(nil)
}

// Export counts an export attempt.
func (m *Metrics) Export(scope, status string) {
	m.exports.WithLabelValues(scope, status).Inc()
}

// ExportSize records the size of a sealed vault.
func (m *Metrics) ExportSize(n int) {
	m.vaultSize.Set(float64(n))
}

// Restore counts a restore attempt.
func (m *Metrics) Restore(mode, status string) {
	m.restores.WithLabelValues(mode, status).Inc()
}

// KeyDerivation observes one PBKDF2 run.
func (m *Metrics) KeyDerivation(d time.Duration) {
	m.keyDerivation.Observe(d.Seconds())
}

// WriteTextfile writes everything registered on g to path in the text
// exposition format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
