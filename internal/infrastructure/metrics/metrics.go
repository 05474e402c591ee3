package metrics

import (
	"net/http"
	"time"

	"imaginebot/internal/application"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus は、application.Metrics を Prometheus のメトリクスとして記録します
type Prometheus struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	engineDuration *prometheus.HistogramVec
	engineErrors   *prometheus.CounterVec
	queueDepth     prometheus.Gauge
}

var _ application.Metrics = (*Prometheus)(nil)

// NewPrometheus は、専用のレジストリにメトリクスを登録して返します
func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Prometheus{
		registry: registry,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imaginebot_requests_total",
				Help: "Total number of /imagine requests by outcome.",
			},
			[]string{"outcome"},
		),
		engineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imaginebot_engine_call_duration_seconds",
				Help:    "Duration of a single image engine call.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. 256s
			},
			[]string{"backend"},
		),
		engineErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imaginebot_engine_errors_total",
				Help: "Total number of failed image engine calls.",
			},
			[]string{"backend"},
		),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "imaginebot_queue_depth",
			Help: "Number of requests holding a queue slot (waiting or running).",
		}),
	}
}

// ObserveRequest は、リクエストの結果を記録します
func (p *Prometheus) ObserveRequest(outcome string) {
	p.requests.WithLabelValues(outcome).Inc()
}

// ObserveEngineCall は、エンジン呼び出しの所要時間と失敗を記録します
func (p *Prometheus) ObserveEngineCall(backend string, duration time.Duration, err error) {
	p.engineDuration.WithLabelValues(backend).Observe(duration.Seconds())
	if err != nil {
		p.engineErrors.WithLabelValues(backend).Inc()
	}
}

// SetQueueDepth は、現在のキューの使用数を記録します
func (p *Prometheus) SetQueueDepth(depth int) {
	p.queueDepth.Set(float64(depth))
}

// Registry は、メトリクスのレジストリを返します
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler は、/metrics 用の HTTP ハンドラを返します
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
