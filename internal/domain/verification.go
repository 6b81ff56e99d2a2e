package domain

// DispatchMessage asks the mailer to deliver a verification link.
// It is written once per registration and never mutated.
type DispatchMessage struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// DispatchOutcome tells the channel what to do with a consumed message.
type DispatchOutcome int

const (
	// DispatchAck removes the message permanently.
	DispatchAck DispatchOutcome = iota
	// DispatchRequeue hands the message back for redelivery.
	DispatchRequeue
	// DispatchReject drops the message, dead-lettering it when the queue has a route.
	DispatchReject
)

func (o DispatchOutcome) String() string {
	switch o {
	case DispatchAck:
		return "ack"
	case DispatchRequeue:
		return "requeue"
	case DispatchReject:
		return "reject"
	default:
		return "unknown"
	}
}
