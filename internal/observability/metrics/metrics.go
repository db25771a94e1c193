package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the inbound message flow.
type PipelineMetrics struct {
	inboundTotal    *prometheus.CounterVec
	replyDecisions  *prometheus.CounterVec
	outboundTotal   *prometheus.CounterVec
	webhookLatency  *prometheus.HistogramVec
	draftConfidence prometheus.Histogram
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Total inbound WhatsApp webhook deliveries",
		}, []string{"field", "status"}),
		replyDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "ai",
			Name:      "reply_decisions_total",
			Help:      "Auto-reply gate outcomes",
		}, []string{"decision"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "whatsapp",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends",
		}, []string{"status", "auto"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of webhook payload processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"field"}),
		draftConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "ai",
			Name:      "draft_confidence",
			Help:      "Confidence scores of drafted replies",
			Buckets:   []float64{0.3, 0.5, 0.85, 0.95, 0.98, 1},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.replyDecisions, m.outboundTotal, m.webhookLatency, m.draftConfidence)
	return m
}

func (m *PipelineMetrics) ObserveInbound(field, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(field, status).Inc()
}

func (m *PipelineMetrics) ObserveReplyDecision(decision string) {
	if m == nil {
		return
	}
	m.replyDecisions.WithLabelValues(decision).Inc()
}

func (m *PipelineMetrics) ObserveOutbound(status string, auto bool) {
	if m == nil {
		return
	}
	label := "false"
	if auto {
		label = "true"
	}
	m.outboundTotal.WithLabelValues(status, label).Inc()
}

func (m *PipelineMetrics) ObserveWebhookLatency(field string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(field).Observe(seconds)
}

func (m *PipelineMetrics) ObserveDraftConfidence(score float64) {
	if m == nil {
		return
	}
	m.draftConfidence.Observe(score)
}
