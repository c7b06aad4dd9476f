package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the OSC bridge.
type Metrics struct {
	// UDP server metrics
	PacketsReceived    prometheus.Counter
	MessagesDispatched prometheus.Counter
	DecodeErrors       prometheus.Counter
	PacketsDropped     prometheus.Counter
	UnroutedMessages   prometheus.Counter
	QueueSize          prometheus.Gauge

	// Bridge handler metrics
	MessagesRejected      *prometheus.CounterVec
	ExtraArgumentsIgnored prometheus.Counter
	ValuesFannedOut       prometheus.Counter
	ValuesStored          prometheus.Counter
	AggregatesEmitted     prometheus.Counter
	SlotsPopulated        prometheus.Gauge

	// Outbound sender metrics
	MessagesSent prometheus.Counter
	SendErrors   prometheus.Counter

	// MQTT tap metrics
	TapMessagesPublished prometheus.Counter
	TapPublishErrors     prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all bridge metrics and registers them with the given
// registerer. Pass prometheus.DefaultRegisterer in main; tests use a private
// registry so repeated construction does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// UDP server metrics
		PacketsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "osc_bridge_packets_received_total",
			Help: "Total number of UDP datagrams received",
		}),
		MessagesDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "osc_bridge_messages_dispatched_total",
			Help: "Total number of decoded messages dispatched to handlers",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "osc_bridge_decode_errors_total",
			Help: "Total number of datagrams that failed OSC decoding",
		}),
		PacketsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "osc_bridge_packets_dropped_total",
			Help: "Total number of datagrams dropped because the queue was full",
		}),
		UnroutedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "osc_bridge_unrouted_messages_total",
			Help: "Total number of messages that matched no registered pattern",
		}),
		QueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "osc_bridge_packet_queue_size",
			Help: "Current number of datagrams in the processing queue",
		}),

		// Bridge handler metrics
		MessagesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "osc_bridge_messages_rejected_total",
			Help: "Total number of messages dropped by a bridge handler",
		}, []string{"reason"}),
		ExtraArgumentsIgnored: factory.NewCounter(prometheus.CounterOpts{
			Name: "osc_bridge_extra_arguments_ignored_total",
			Help: "Total number of indexed messages that carried more than one argument",
		}),
		ValuesFannedOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "osc_bridge_values_fanned_out_total",
			Help: "Total number of indexed messages produced by the splitter",
		}),
		ValuesStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "osc_bridge_values_stored_total",
			Help: "Total number of values stored into the reassembler slot table",
		}),
		AggregatesEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "osc_bridge_aggregates_emitted_total",
			Help: "Total number of aggregate messages emitted by the reassembler",
		}),
		SlotsPopulated: factory.NewGauge(prometheus.GaugeOpts{
			Name: "osc_bridge_slots_populated",
			Help: "Current number of populated reassembler slots",
		}),

		// Outbound sender metrics
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "osc_bridge_messages_sent_total",
			Help: "Total number of outbound messages sent",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "osc_bridge_send_errors_total",
			Help: "Total number of outbound send failures",
		}),

		// MQTT tap metrics
		TapMessagesPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "osc_bridge_tap_messages_published_total",
			Help: "Total number of messages mirrored to the MQTT tap",
		}),
		TapPublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "osc_bridge_tap_publish_errors_total",
			Help: "Total number of MQTT tap publish failures",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "osc_bridge_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "osc_bridge_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "osc_bridge_http_errors_total",
			Help: "Total number of HTTP error responses",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordPacketReceived increments the datagrams received counter.
func (m *Metrics) RecordPacketReceived() {
	m.PacketsReceived.Inc()
}

// RecordMessageDispatched increments the dispatched messages counter.
func (m *Metrics) RecordMessageDispatched() {
	m.MessagesDispatched.Inc()
}

// RecordDecodeError increments the decode errors counter.
func (m *Metrics) RecordDecodeError() {
	m.DecodeErrors.Inc()
}

// RecordPacketDropped increments the dropped datagrams counter.
func (m *Metrics) RecordPacketDropped() {
	m.PacketsDropped.Inc()
}

// RecordUnroutedMessage increments the unrouted messages counter.
func (m *Metrics) RecordUnroutedMessage() {
	m.UnroutedMessages.Inc()
}

// SetQueueSize sets the current processing queue size.
func (m *Metrics) SetQueueSize(size int) {
	m.QueueSize.Set(float64(size))
}

// RecordRejected counts a message dropped by a bridge handler for the given
// reason (empty_payload, malformed_address, out_of_range_index).
func (m *Metrics) RecordRejected(reason string) {
	m.MessagesRejected.WithLabelValues(reason).Inc()
}

// RecordExtraArgumentsIgnored counts an indexed message whose surplus
// arguments were discarded.
func (m *Metrics) RecordExtraArgumentsIgnored() {
	m.ExtraArgumentsIgnored.Inc()
}

// RecordValueFannedOut increments the splitter fan-out counter.
func (m *Metrics) RecordValueFannedOut() {
	m.ValuesFannedOut.Inc()
}

// RecordValueStored increments the stored values counter.
func (m *Metrics) RecordValueStored() {
	m.ValuesStored.Inc()
}

// RecordAggregateEmitted increments the emitted aggregates counter.
func (m *Metrics) RecordAggregateEmitted() {
	m.AggregatesEmitted.Inc()
}

// SetSlotsPopulated sets the populated slot count gauge.
func (m *Metrics) SetSlotsPopulated(count int) {
	m.SlotsPopulated.Set(float64(count))
}

// RecordMessageSent increments the outbound messages counter.
func (m *Metrics) RecordMessageSent() {
	m.MessagesSent.Inc()
}

// RecordSendError increments the outbound send failures counter.
func (m *Metrics) RecordSendError() {
	m.SendErrors.Inc()
}

// RecordTapPublished increments the tap published counter.
func (m *Metrics) RecordTapPublished() {
	m.TapMessagesPublished.Inc()
}

// RecordTapError increments the tap publish failures counter.
func (m *Metrics) RecordTapError() {
	m.TapPublishErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error response.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
