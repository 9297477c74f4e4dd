package doser

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports dosing gauges and counters on a private registry so tests
// can build controllers without global registration clashes.
type Metrics struct {
	registry      *prometheus.Registry
	remainingMl   *prometheus.GaugeVec
	daysRemaining *prometheus.GaugeVec
	dosesTotal    *prometheus.CounterVec
	dosedMl       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		remainingMl: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "doser_remaining_ml",
			Help: "Remaining bottle volume per channel, in milliliters.",
		}, []string{"channel"}),
		daysRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "doser_days_remaining",
			Help: "Projected days of supply per channel (366 means more than a year).",
		}, []string{"channel"}),
		dosesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doser_doses_total",
			Help: "Completed doses per channel and kind.",
		}, []string{"channel", "kind"}),
		dosedMl: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doser_dispensed_ml_total",
			Help: "Total dispensed volume per channel, in milliliters.",
		}, []string{"channel"}),
	}
	m.registry.MustRegister(m.remainingMl, m.daysRemaining, m.dosesTotal, m.dosedMl)
	return m
}

// Handler serves the registry, mounted at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeDose(channel int, volumeMl float32, kind string) {
	ch := strconv.Itoa(channel)
	m.dosesTotal.WithLabelValues(ch, kind).Inc()
	if volumeMl > 0 {
		m.dosedMl.WithLabelValues(ch).Add(float64(volumeMl))
	}
}

func (m *Metrics) observeInventory(channel int, remainingMl float32, days int32) {
	ch := strconv.Itoa(channel)
	m.remainingMl.WithLabelValues(ch).Set(float64(remainingMl))
	m.daysRemaining.WithLabelValues(ch).Set(float64(days))
}
