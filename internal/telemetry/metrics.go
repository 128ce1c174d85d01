package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Kestrel/flow"
)

// Metrics — Prometheus метрики выполнения flow.
type Metrics struct {
	// FlowsStarted — количество запущенных flow.
	FlowsStarted *prometheus.CounterVec

	// FlowsFinished — количество завершённых flow по итоговому статусу.
	FlowsFinished *prometheus.CounterVec

	// FlowDuration — длительность выполнения flow.
	FlowDuration *prometheus.HistogramVec

	// StepsTotal — количество шагов по финальному статусу.
	StepsTotal *prometheus.CounterVec

	// StepDuration — длительность выполнения шага.
	StepDuration *prometheus.HistogramVec

	// StepsRunning — количество выполняющихся шагов.
	StepsRunning prometheus.Gauge
}

// NewMetrics создаёт и регистрирует метрики в реестре.
// Nil реестр означает prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		FlowsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "flows_started_total",
			Help:      "Number of flow executions started.",
		}, []string{"flow"}),

		FlowsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "flows_finished_total",
			Help:      "Number of flow executions finished, by outcome.",
		}, []string{"flow", "status"}),

		FlowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kestrel",
			Name:      "flow_duration_seconds",
			Help:      "Flow execution duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"flow"}),

		StepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "steps_total",
			Help:      "Number of steps by final status.",
		}, []string{"flow", "status"}),

		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kestrel",
			Name:      "step_duration_seconds",
			Help:      "Step execution duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"flow", "step"}),

		StepsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kestrel",
			Name:      "steps_running",
			Help:      "Number of steps currently running.",
		}),
	}

	reg.MustRegister(
		m.FlowsStarted,
		m.FlowsFinished,
		m.FlowDuration,
		m.StepsTotal,
		m.StepDuration,
		m.StepsRunning,
	)
	return m
}

// MetricsObserver — flow.Observer, пишущий метрики выполнения.
//
// Один observer привязан к одному flow по имени; для нескольких
// flow создаются отдельные observers над общим Metrics.
type MetricsObserver struct {
	flow.NopObserver

	metrics  *Metrics
	flowName string
	started  time.Time
}

// NewMetricsObserver создаёт observer для flow с именем flowName.
func NewMetricsObserver(metrics *Metrics, flowName string) *MetricsObserver {
	return &MetricsObserver{metrics: metrics, flowName: flowName}
}

func (o *MetricsObserver) OnFlowStart(flow.Input) {
	o.started = time.Now()
	o.metrics.FlowsStarted.WithLabelValues(o.flowName).Inc()
}

func (o *MetricsObserver) OnStepStart(string) {
	o.metrics.StepsRunning.Inc()
}

func (o *MetricsObserver) OnStepComplete(step string, _ flow.Output, elapsed time.Duration) {
	o.metrics.StepsRunning.Dec()
	o.metrics.StepsTotal.WithLabelValues(o.flowName, string(flow.StatusCompleted)).Inc()
	o.metrics.StepDuration.WithLabelValues(o.flowName, step).Observe(elapsed.Seconds())
}

func (o *MetricsObserver) OnStepFailed(string, error) {
	o.metrics.StepsRunning.Dec()
	o.metrics.StepsTotal.WithLabelValues(o.flowName, string(flow.StatusFailed)).Inc()
}

func (o *MetricsObserver) OnStepRecovered(string, flow.Output) {
	o.metrics.StepsRunning.Dec()
	o.metrics.StepsTotal.WithLabelValues(o.flowName, string(flow.StatusRecovered)).Inc()
}

func (o *MetricsObserver) OnStepSkipped(string, flow.Skip) {
	o.metrics.StepsTotal.WithLabelValues(o.flowName, string(flow.StatusSkipped)).Inc()
}

func (o *MetricsObserver) OnFlowFinish(result *flow.Result) {
	s := result.Summarize()

	status := "succeeded"
	switch {
	case s.Failed > 0:
		status = "failed"
	case s.Recovered > 0 || s.Skipped > 0:
		status = "partial"
	}

	o.metrics.FlowsFinished.WithLabelValues(o.flowName, status).Inc()
	o.metrics.FlowDuration.WithLabelValues(o.flowName).Observe(time.Since(o.started).Seconds())
}
