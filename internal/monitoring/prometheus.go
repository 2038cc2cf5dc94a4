package monitoring

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver exports scoring and profile metrics to Prometheus.
type PrometheusObserver struct {
	scoringDuration   *prometheus.HistogramVec
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	confidence        prometheus.Histogram
	reviews           prometheus.Counter
}

// NewPrometheusObserver registers the collectors on reg (the default
// registerer when nil). Registering twice reuses the existing collectors.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "learning_profile"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		scoringDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_duration_seconds",
			Help:      "Time spent scoring one assessment.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		}, []string{"quiz_type"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of profile service operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Count of failed profile service operations.",
		}, []string{"operation"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "consolidation_confidence",
			Help:      "Confidence of consolidated profiles, 0-100.",
			Buckets:   prometheus.LinearBuckets(10, 10, 9),
		}),
		reviews: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consolidations_requiring_review_total",
			Help:      "Consolidations with at least one severe conflict.",
		}),
	}

	var err error
	if o.scoringDuration, err = registerOrReuse(reg, o.scoringDuration, "scoring histogram"); err != nil {
		return nil, err
	}
	if o.operationDuration, err = registerOrReuse(reg, o.operationDuration, "operation histogram"); err != nil {
		return nil, err
	}
	if o.operationErrors, err = registerOrReuse(reg, o.operationErrors, "operation error counter"); err != nil {
		return nil, err
	}
	if o.confidence, err = registerOrReuse(reg, o.confidence, "confidence histogram"); err != nil {
		return nil, err
	}
	if o.reviews, err = registerOrReuse(reg, o.reviews, "review counter"); err != nil {
		return nil, err
	}
	return o, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C, what string) (C, error) {
	if err := reg.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register %s: %w", what, err)
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return c, fmt.Errorf("register %s: %w", what, err)
		}
		return existing, nil
	}
	return c, nil
}

// ObserveScoring records one scored assessment.
func (o *PrometheusObserver) ObserveScoring(quizType string, duration time.Duration) {
	if o == nil {
		return
	}
	if quizType == "" {
		quizType = "general"
	}
	o.scoringDuration.WithLabelValues(quizType).Observe(duration.Seconds())
}

// ObserveConsolidation records the outcome of one consolidation.
func (o *PrometheusObserver) ObserveConsolidation(sources int, confidence float64, requiresReview bool, duration time.Duration) {
	if o == nil {
		return
	}
	o.operationDuration.WithLabelValues("consolidate").Observe(duration.Seconds())
	if sources > 0 {
		o.confidence.Observe(confidence)
	}
	if requiresReview {
		o.reviews.Inc()
	}
}

// ObserveOperation records latency and failure of a service operation.
func (o *PrometheusObserver) ObserveOperation(op string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		o.operationErrors.WithLabelValues(op).Inc()
	}
}
