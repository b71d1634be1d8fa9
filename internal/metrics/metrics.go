package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records session request metrics.
type Recorder interface {
	// Record observes one request/response round trip of command cmd.
	Record(cmd string, resTime time.Duration, hasErr bool)
	// SetWindowSize reports the number of outstanding requests.
	SetWindowSize(n int)
}

type dummy struct{}

// NewDummy constructs a new dummy metrics recorder.
func NewDummy() Recorder {
	return &dummy{}
}

func (m *dummy) Record(string, time.Duration, bool) {}
func (m *dummy) SetWindowSize(int)                  {}

type prom struct {
	reqCount   *prometheus.CounterVec
	errCount   *prometheus.CounterVec
	resTime    *prometheus.SummaryVec
	windowSize prometheus.Gauge
}

// NewPrometheus constructs a new Prometheus metrics recorder registering its
// collectors with reg. A nil reg uses the default registerer.
func NewPrometheus(service string, reg prometheus.Registerer) Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &prom{
		reqCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: service + "_request_total",
			Help: "The total number of sent requests",
		}, []string{"command"}),
		errCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: service + "_errors_total",
			Help: "The total number of requests that failed or timed out",
		}, []string{"command"}),
		resTime: factory.NewSummaryVec(prometheus.SummaryOpts{
			Name: service + "_response_time",
			Help: "Response times",
		}, []string{"command"}),
		windowSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: service + "_window_size",
			Help: "Outstanding requests in the send window",
		}),
	}
}

func (m *prom) Record(cmd string, resTime time.Duration, hasErr bool) {
	m.reqCount.WithLabelValues(cmd).Inc()
	m.resTime.WithLabelValues(cmd).Observe(resTime.Seconds())
	if hasErr {
		m.errCount.WithLabelValues(cmd).Inc()
	}
}

func (m *prom) SetWindowSize(n int) {
	m.windowSize.Set(float64(n))
}
