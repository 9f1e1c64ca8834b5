// Package metrics collects counters, gauges and stopwatches from the shipping
// pipeline and fans every record out to the registered reporters.
package metrics

// Policy defines how multiple values of one metric combine.
type Policy int

const (
	Policy_None      Policy = iota // no aggregation policy
	Policy_Set                     // last value wins
	Policy_Sum                     // values add up
	Policy_Avg                     // mean of values
	Policy_Max                     // highest value
	Policy_Min                     // lowest value
	Policy_Stopwatch               // mean duration in milliseconds
)

// Value is a metric value.
type Value float64

// Dimension is a set of labels attached to one record.
type Dimension map[string]string

// GroupLogship is the group of every metric the pipeline emits.
const GroupLogship = "logship"

const (
	// NameEnqueueTotal counts events accepted by the queue.
	// dimension: shipper
	NameEnqueueTotal = "enqueue_total"

	// NameEnqueueRejectedTotal counts events refused because the queue stayed full
	// past the enqueue timeout.
	// dimension: shipper
	NameEnqueueRejectedTotal = "enqueue_rejected_total"

	// NameQueueLength is the queue depth observed after each enqueue and dequeue.
	// dimension: shipper
	NameQueueLength = "queue_length"

	// NameSendTotal counts frames handed to the transport successfully.
	// dimension: shipper, transport
	NameSendTotal = "send_total"

	// NameSendBytesTotal counts framed bytes sent.
	// dimension: shipper, transport
	NameSendBytesTotal = "send_bytes_total"

	// NameSendFailedTotal counts failed send attempts. Each one is retried.
	// dimension: shipper, transport
	NameSendFailedTotal = "send_failed_total"

	// NameSendDroppedTotal counts events abandoned after the maximum number of attempts.
	// dimension: shipper, transport
	NameSendDroppedTotal = "send_dropped_total"

	// NameSendLatencyMS is the time from the first send attempt to success.
	// dimension: shipper, transport
	NameSendLatencyMS = "send_latency_ms"

	// NameLostTotal counts events still queued or in flight at shutdown.
	// dimension: shipper
	NameLostTotal = "lost_total"

	// NameSupervisorRestartTotal counts dispatch loop restarts after a fault.
	// dimension: shipper
	NameSupervisorRestartTotal = "supervisor_restart_total"

	// NameTransportConnectTotal counts connect attempts.
	// dimension: transport, result
	NameTransportConnectTotal = "transport_connect_total"
)

// Dimension keys.
const (
	// DimShipper is the shipper instance id.
	DimShipper = "shipper"
	// DimTransport is the transport name (udp, tcp, kcp, memory).
	DimTransport = "transport"
	// DimResult is "ok" or "fail".
	DimResult = "result"
)
