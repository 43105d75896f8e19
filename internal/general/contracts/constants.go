package contracts

// Exchanges
const (
	ExchangeDispatchTopic = "dispatch_topic"
	ExchangePaymentTopic  = "payment_topic"
)

// Queues
const (
	QueueDeliveryAssignments = "delivery_assignments"
	QueueMessageArchive      = "message_archive"
)

// Routing patterns
const (
	RouteDispatchPrefix     = "dispatch."          // {room_kind}.{event}
	RouteDispatchMessages   = "dispatch.*.newMessage"
	RoutePaymentConfirmed   = "payment.confirmed." // {order_id}
	BindingPaymentConfirmed = "payment.confirmed.*"
)

// Error codes sent back to the originating connection.
const (
	CodeBadRequest        = "bad_request"
	CodeForbidden         = "forbidden"
	CodeInvalidTransition = "invalid_transition"
	CodeNotFound          = "not_found"
	CodeStaleSample       = "stale_sample"
	CodeUnknownEvent      = "unknown_event"
	CodeInternal          = "internal"
)
