package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DomainMetrics counts configurator activity. Methods on a nil
// *DomainMetrics are no-ops so components can run without metrics.
type DomainMetrics struct {
	Quotes      *prometheus.CounterVec
	Promos      *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Saves       *prometheus.CounterVec
	Restores    *prometheus.CounterVec
}

// NewDomainMetrics registers the configurator collectors on reg.
func NewDomainMetrics(namespace string, reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &DomainMetrics{
		Quotes: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_quotes_total",
			Help:      "Price breakdowns computed, by region.",
		}, []string{"region"})),
		Promos: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_applications_total",
			Help:      "Promo code applications by outcome.",
		}, []string{"result"})),
		Transitions: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "configuration_transitions_total",
			Help:      "Configuration state transitions by intent and outcome.",
		}, []string{"intent", "result"})),
		Saves: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "configurations_saved_total",
			Help:      "Saved configuration writes by store and outcome.",
		}, []string{"store", "result"})),
		Restores: mustRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_restores_total",
			Help:      "Share link restore attempts by outcome.",
		}, []string{"result"})),
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// ObserveQuote counts one computed breakdown.
func (m *DomainMetrics) ObserveQuote(region string) {
	if m == nil {
		return
	}
	if region == "" {
		region = "DEFAULT"
	}
	m.Quotes.WithLabelValues(region).Inc()
}

// ObservePromo counts a promo application.
func (m *DomainMetrics) ObservePromo(valid bool) {
	if m == nil {
		return
	}
	label := "accepted"
	if !valid {
		label = "rejected"
	}
	m.Promos.WithLabelValues(label).Inc()
}

// ObserveTransition counts one state machine intent.
func (m *DomainMetrics) ObserveTransition(intent string, err error) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(intent, result(err == nil)).Inc()
}

// ObserveSave counts a saved configuration write.
func (m *DomainMetrics) ObserveSave(store string, err error) {
	if m == nil {
		return
	}
	m.Saves.WithLabelValues(store, result(err == nil)).Inc()
}

// ObserveRestore counts a share link restore. outcome is a short label such
// as "ok", "malformed" or "stale".
func (m *DomainMetrics) ObserveRestore(outcome string) {
	if m == nil {
		return
	}
	m.Restores.WithLabelValues(outcome).Inc()
}
