package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatclient_gateway_requests_total",
			Help: "Total number of request-gateway calls issued by the client.",
		},
		[]string{"op", "status"},
	)
	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatclient_gateway_request_duration_seconds",
			Help:    "Request-gateway call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	channelConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatclient_channel_connected",
			Help: "Whether the event channel currently holds a live transport (0 or 1).",
		},
	)
	channelEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatclient_channel_events_total",
			Help: "Total number of event-channel events by direction.",
		},
		[]string{"direction", "event"},
	)
	channelReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatclient_channel_reconnects_total",
			Help: "Total number of successful event-channel reconnects.",
		},
	)
	channelDroppedEmitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatclient_channel_dropped_emits_total",
			Help: "Total number of outbound events dropped because the channel was down.",
		},
	)
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatclient_sends_total",
			Help: "Total number of local sends by outcome.",
		},
		[]string{"result"},
	)
	pendingEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatclient_transcript_pending_entries",
			Help: "Number of optimistic transcript entries awaiting confirmation.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatclient_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	opsRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatclient_ops_requests_total",
			Help: "Total number of HTTP requests served by the local ops endpoint.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		gatewayRequestsTotal,
		gatewayRequestDuration,
		channelConnected,
		channelEventsTotal,
		channelReconnectsTotal,
		channelDroppedEmitsTotal,
		sendsTotal,
		pendingEntries,
		amqpPublishErrorsTotal,
		opsRequestsTotal,
	)
}

// ObserveGatewayRequest records one gateway call.
func ObserveGatewayRequest(op, status string, elapsed time.Duration) {
	gatewayRequestsTotal.WithLabelValues(op, status).Inc()
	gatewayRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func SetChannelConnected(up bool) {
	if up {
		channelConnected.Set(1)
		return
	}
	channelConnected.Set(0)
}

func IncChannelEvent(direction, event string) {
	channelEventsTotal.WithLabelValues(direction, event).Inc()
}

func IncChannelReconnect() {
	channelReconnectsTotal.Inc()
}

func IncDroppedEmit() {
	channelDroppedEmitsTotal.Inc()
}

func IncSend(result string) {
	sendsTotal.WithLabelValues(result).Inc()
}

func SetPendingEntries(n int) {
	pendingEntries.Set(float64(n))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

// OpsMetricsMiddleware counts requests on the local ops router.
func OpsMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		opsRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
