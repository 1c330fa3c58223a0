package rtsp

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "requests_total",
		Namespace: "rtsp_socket",
		Help:      "number of RTSP requests written",
	}, []string{"method"})
	responsesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "responses_total",
		Namespace: "rtsp_socket",
		Help:      "number of RTSP responses read, by status code",
	}, []string{"method", "code"})
	authRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "auth_retries_total",
		Namespace: "rtsp_socket",
		Help:      "number of requests resent with a digest Authorization header",
	}, []string{"method"})
)

func observeResponse(method Method, code int) {
	responsesRead.WithLabelValues(method.String(), strconv.Itoa(code)).Inc()
}
