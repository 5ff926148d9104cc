package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pyvet/pyvet/pkg/validate"
)

// metrics tracks refresh outcomes and the shape of the current report.
type metrics struct {
	registry *prometheus.Registry

	refreshes *prometheus.CounterVec
	records   *prometheus.GaugeVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pyvet_validations_total",
			Help: "Validation runs by outcome (pass, fail, error).",
		}, []string{"outcome"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pyvet_validation_records",
			Help: "Records in the current report by explain code.",
		}, []string{"explain"}),
	}
	m.registry.MustRegister(m.refreshes, m.records)
	return m
}

// observe records one refresh. A failed refresh keeps the record gauges
// at their previous values.
func (m *metrics) observe(report *validate.Report, err error) {
	if err != nil {
		m.refreshes.WithLabelValues("error").Inc()
		return
	}
	outcome := "pass"
	if report.Failures() > 0 {
		outcome = "fail"
	}
	m.refreshes.WithLabelValues(outcome).Inc()

	counts := map[validate.Explain]int{}
	for _, r := range report.Records {
		counts[r.Explain]++
	}
	m.records.Reset()
	for _, explain := range []validate.Explain{validate.Matched, validate.Unrequired, validate.Misdefined, validate.Missing} {
		m.records.WithLabelValues(string(explain)).Set(float64(counts[explain]))
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
