package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics tracks quote and submission outcomes.
type OrderMetrics struct {
	quotes      *prometheus.CounterVec
	submissions *prometheus.CounterVec
	coveredBags prometheus.Counter
}

// NewOrderMetrics registers the order flow metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "freshfold",
		Name:      "order_quotes_total",
		Help:      "Order quote requests by outcome.",
	}, []string{"outcome"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "freshfold",
		Name:      "order_submissions_total",
		Help:      "Order submissions by outcome.",
	}, []string{"outcome"})
	coveredBags := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "freshfold",
		Name:      "order_covered_bags_total",
		Help:      "Bags covered by subscription entitlement across submitted orders.",
	})
	reg.MustRegister(quotes, submissions, coveredBags)
	return &OrderMetrics{
		quotes:      quotes,
		submissions: submissions,
		coveredBags: coveredBags,
	}
}

// IncQuote records a quote request outcome (ok, invalid_items, no_active_period).
func (o *OrderMetrics) IncQuote(outcome string) {
	if o == nil || o.quotes == nil {
		return
	}
	o.quotes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncSubmission records a submission outcome (ok, exhausted, invalid_items).
func (o *OrderMetrics) IncSubmission(outcome string) {
	if o == nil || o.submissions == nil {
		return
	}
	o.submissions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddCoveredBags adds to the covered-bag counter after a successful submission.
func (o *OrderMetrics) AddCoveredBags(n int) {
	if o == nil || o.coveredBags == nil || n <= 0 {
		return
	}
	o.coveredBags.Add(float64(n))
}
