package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sampler Metrics
var (
	// SamplerTicksTotal tracks completed sampling passes
	SamplerTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sampler_ticks_total",
			Help: "Total completed sampler ticks",
		},
	)

	// SamplerOverrunsTotal tracks ticks that took longer than the sampling interval
	SamplerOverrunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sampler_overruns_total",
			Help: "Total sampler ticks that exceeded the configured interval",
		},
	)

	// SamplerTickDuration tracks the time spent reading the device per tick
	SamplerTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sampler_tick_duration_seconds",
			Help:    "Time spent sampling the device per tick in seconds",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// SamplerHealthy is 1 while the sampler loop is running without a device failure
	SamplerHealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sampler_healthy",
			Help: "Whether the sampler loop is healthy (1) or stopped on a device failure (0)",
		},
	)
)

// Device Metrics
var (
	// DeviceErrorsTotal tracks failed device operations by caller
	DeviceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_errors_total",
			Help: "Total device I/O failures by source (sampler/command)",
		},
		[]string{"source"},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Broadcast Metrics
var (
	// BroadcastSubscribers tracks currently registered subscribers
	BroadcastSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_subscribers",
			Help: "Number of registered broadcast subscribers",
		},
	)

	// BroadcastMessagesTotal tracks messages fanned out to at least one subscriber
	BroadcastMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Total messages serialized and fanned out",
		},
	)

	// BroadcastDeliveriesTotal tracks per-subscriber deliveries
	BroadcastDeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Total messages handed to subscriber sinks",
		},
	)

	// BroadcastDroppedTotal tracks messages dropped because the registry queue was full
	BroadcastDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_dropped_total",
			Help: "Total broadcast messages dropped because the registry queue was full",
		},
	)

	// BroadcastEvictionsTotal tracks subscribers removed after a failed send
	BroadcastEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_evictions_total",
			Help: "Total subscribers removed after a failed or overflowing send",
		},
	)

	// BroadcastFanoutDuration tracks time spent matching and handing one message to sinks
	BroadcastFanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_fanout_duration_seconds",
			Help:    "Time spent fanning out one message in seconds",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
	)

	// BroadcastCommandChannelDepth tracks pending commands in the registry actor
	BroadcastCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_command_channel_depth",
			Help: "Number of pending commands in the broadcast registry queue",
		},
	)

	// BroadcastStopTimeoutsTotal tracks registry shutdowns that did not finish in time
	BroadcastStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_stop_timeouts_total",
			Help: "Total broadcast registry stops that exceeded the timeout",
		},
	)

	// BroadcastPanicsTotal tracks recovered panics in the registry actor
	BroadcastPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_panics_total",
			Help: "Total panics recovered in the broadcast registry",
		},
	)
)

// Envelope and Command Metrics
var (
	// EnvelopesTotal tracks emitted envelopes by operation kind
	EnvelopesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envelopes_total",
			Help: "Total operation envelopes emitted by kind (input/output/settings)",
		},
		[]string{"kind"},
	)

	// CommandsTotal tracks dispatched commands by command and result
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commands_total",
			Help: "Total dispatched commands by command and result (ok/invalid/error)",
		},
		[]string{"command", "result"},
	)

	// CommandDuration tracks command execution latency
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Command execution duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"command"},
	)
)

// WebSocket Metrics
var (
	// WebSocketConnectionsCurrent tracks current active WebSocket connections
	WebSocketConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_current",
			Help: "Current number of active WebSocket connections",
		},
	)

	// WebSocketConnectionsTotal tracks total WebSocket connection attempts by result
	WebSocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total WebSocket connection attempts by result (success/error/rejected)",
		},
		[]string{"result"},
	)

	// WebSocketMessageSendDuration tracks WebSocket message send duration
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// WebSocketConnectionDuration tracks WebSocket connection duration
	WebSocketConnectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_connection_duration_seconds",
			Help:    "WebSocket connection duration in seconds",
			Buckets: []float64{1, 10, 60, 300, 1800, 3600, 7200},
		},
	)

	// WebSocketPingFailures tracks WebSocket ping failures
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping failures (client not responding)",
		},
	)

	// WebSocketConnectionsRejected tracks rejected connection attempts by reason
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total WebSocket connections rejected by reason (rate_limit/ip_limit/global_limit/filter)",
		},
		[]string{"reason"},
	)

	// WebSocketConnectionCapacity tracks current connection capacity utilization as percentage
	WebSocketConnectionCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connection_capacity_percent",
			Help: "Current WebSocket connection capacity utilization (0-100%)",
		},
	)

	// WebSocketUniqueIPs tracks number of unique IP addresses with active connections
	WebSocketUniqueIPs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_unique_ips",
			Help: "Number of unique IP addresses with active WebSocket connections",
		},
	)
)

// Datalog Metrics
var (
	// DatalogRowsTotal tracks rows appended to the CSV log
	DatalogRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datalog_rows_total",
			Help: "Total rows appended to the data log",
		},
	)

	// DatalogErrorsTotal tracks failed data log writes
	DatalogErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datalog_errors_total",
			Help: "Total failed data log writes",
		},
	)
)

// HTTP Metrics
var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPInFlightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)
