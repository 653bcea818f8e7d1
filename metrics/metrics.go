package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts pipeline outcomes so operators can see extraction failures
// and duplicate submissions without reading logs.
type Metrics struct {
	ExtractionsTotal   *prometheus.CounterVec
	RegistrationsTotal *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ExtractionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "id_register_extractions_total",
			Help: "Total number of OCR extraction attempts by outcome",
		}, []string{"outcome"}),
		RegistrationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "id_register_registrations_total",
			Help: "Total number of registration attempts by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) RecordExtraction(outcome string) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}
