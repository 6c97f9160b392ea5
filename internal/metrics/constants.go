package metrics

// Metric names
const (
	MetricNameRPCsSent           = "spawnmaster_rpcs_sent_total"
	MetricNameRPCsReceived       = "spawnmaster_rpcs_received_total"
	MetricNameRPCsRejected       = "spawnmaster_rpcs_rejected_total"
	MetricNamePropertyUpdates    = "spawnmaster_property_updates_total"
	MetricNameEquipTransitions   = "spawnmaster_equip_transitions_total"
	MetricNameEquippablesDropped = "spawnmaster_equippables_dropped_total"
	MetricNameMontageCorrections = "spawnmaster_montage_corrections_total"
	MetricNameConnections        = "spawnmaster_connections"
	MetricNameTickDuration       = "spawnmaster_tick_duration_seconds"
)

// Metric help text
const (
	HelpTextRPCsSent           = "Total number of RPCs sent to a remote world"
	HelpTextRPCsReceived       = "Total number of RPCs received from a remote world"
	HelpTextRPCsRejected       = "Total number of received RPCs rejected by ownership or routing checks"
	HelpTextPropertyUpdates    = "Total number of replicated property updates sent"
	HelpTextEquipTransitions   = "Total number of equip state machine transitions"
	HelpTextEquippablesDropped = "Total number of equippables dropped into the world"
	HelpTextMontageCorrections = "Total number of montage replication corrections applied by observers"
	HelpTextConnections        = "Current number of replication connections"
	HelpTextTickDuration       = "World tick processing time in seconds"
)

// Label names
const (
	LabelMethod    = "method"
	LabelComponent = "component"
	LabelProperty  = "property"
	LabelReason    = "reason"
	LabelStatus    = "status"
	LabelKind      = "kind"
	LabelNetMode   = "net_mode"
)

// Montage correction kinds
const (
	CorrectionRestart      = "restart"
	CorrectionPlayRate     = "play_rate"
	CorrectionStop         = "stop"
	CorrectionNextSection  = "next_section"
	CorrectionTeleport     = "section_teleport"
	CorrectionPosition     = "position"
	CorrectionPredictMiss  = "prediction_rejected"
	CorrectionPendingDefer = "pending"
)

// TickLatencyBuckets spans sub-millisecond to one frame at 10 Hz.
var TickLatencyBuckets = []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1}
