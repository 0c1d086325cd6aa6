package transport

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "metainfo"

// Header directions counted by headerCounter.
const (
	dirRequestOut  = "request_out"
	dirRequestIn   = "request_in"
	dirResponseOut = "response_out"
	dirResponseIn  = "response_in"
)

var (
	requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "transport",
		Name:      "requests_total",
		Help:      "RPC requests by side, method and result code.",
	}, []string{"side", "method", "code"})

	headerCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "transport",
		Name:      "headers_total",
		Help:      "Metainfo keys carried on the wire by direction.",
	}, []string{"direction"})
)

// RegisterMetrics adds the transport collectors to reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{requestCounter, headerCounter} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func MustRegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(requestCounter, headerCounter)
}

func observeRequest(side, method string, code int32) {
	requestCounter.WithLabelValues(side, method, strconv.Itoa(int(code))).Inc()
}

func observeHeaders(direction string, n int) {
	if n <= 0 {
		return
	}
	headerCounter.WithLabelValues(direction).Add(float64(n))
}
