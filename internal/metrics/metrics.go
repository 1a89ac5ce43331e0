// Package metrics instruments install attempts with Prometheus collectors.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder captures deployer metrics.
type Recorder interface {
	ObserveInstall(kind, outcome string, durationSeconds float64)
	IncVerification(policy, outcome string)
	IncMetadataRestored()
}

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) ObserveInstall(string, string, float64) {}
func (Noop) IncVerification(string, string)         {}
func (Noop) IncMetadataRestored()                   {}

// Prom implements Recorder backed by Prometheus collectors.
type Prom struct {
	installs         *prometheus.CounterVec
	installDuration  *prometheus.HistogramVec
	verifications    *prometheus.CounterVec
	metadataRestored prometheus.Counter
}

// NewProm creates the collectors and registers them with reg.
func NewProm(namespace string, reg prometheus.Registerer) (*Prom, error) {
	p := &Prom{
		installs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installs_total",
			Help:      "Install attempts by deployment kind and outcome",
		}, []string{"kind", "outcome"}),
		installDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "install_duration_seconds",
			Help:      "Install attempt duration by deployment kind",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Package verifications by policy and outcome",
		}, []string{"policy", "outcome"}),
		metadataRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_restored_total",
			Help:      "Metadata slots restored after a failed install hand-off",
		}),
	}

	for _, collector := range []prometheus.Collector{p.installs, p.installDuration, p.verifications, p.metadataRestored} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return p, nil
}

// ObserveInstall counts an install attempt and records its duration.
func (p *Prom) ObserveInstall(kind, outcome string, durationSeconds float64) {
	p.installs.WithLabelValues(kind, outcome).Inc()
	p.installDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// IncVerification counts a verification decision.
func (p *Prom) IncVerification(policy, outcome string) {
	p.verifications.WithLabelValues(policy, outcome).Inc()
}

// IncMetadataRestored counts a metadata rollback.
func (p *Prom) IncMetadataRestored() {
	p.metadataRestored.Inc()
}

// WriteTextfile dumps everything gathered by g in the text exposition format,
// suitable for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}
