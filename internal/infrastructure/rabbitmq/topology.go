package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// declarer is the subset of *amqp.Channel needed to declare queues.
type declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

// Topology describes the work queue shared by producer and consumer. Both
// sides must declare it identically or the broker refuses the second one.
type Topology struct {
	Queue string
	// MaxDeliveries caps redeliveries; zero keeps a plain durable queue
	// with unbounded requeue.
	MaxDeliveries int
}

// DeadLetterQueue is where messages land once MaxDeliveries is exhausted.
func (t Topology) DeadLetterQueue() string {
	return t.Queue + ".dead-letter"
}

func (t Topology) args() amqp.Table {
	if t.MaxDeliveries <= 0 {
		return nil
	}
	return amqp.Table{
		amqp.QueueTypeArg:           amqp.QueueTypeQuorum,
		"x-delivery-limit":          int32(t.MaxDeliveries),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": t.DeadLetterQueue(),
	}
}

// Declare creates the dead-letter queue (when bounded) and the work queue.
func (t Topology) Declare(ch declarer) error {
	if t.MaxDeliveries > 0 {
		if _, err := ch.QueueDeclare(t.DeadLetterQueue(), true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", t.DeadLetterQueue(), err)
		}
	}
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, t.args()); err != nil {
		return fmt.Errorf("declare %s: %w", t.Queue, err)
	}
	return nil
}
