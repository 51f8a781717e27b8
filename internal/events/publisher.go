package events

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/lotte-kokodo/order-service/internal/domain/order"
)

const publishTimeout = 3 * time.Second

var _ order.Events = (*Publisher)(nil)

// Publisher publishes order side-effect events to RabbitMQ. Publication is
// fire-and-forget: callers return immediately after the local commit and a
// failed publish is logged, not retried here — delivery guarantees are the
// messaging layer's concern.
type Publisher struct {
	ch *amqp.Channel
	lg *zap.Logger
	wg sync.WaitGroup
}

// NewPublisher opens a channel on conn and declares the durable event queues
// so publishing never fails on missing infrastructure.
func NewPublisher(conn *amqp.Connection, lg *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open channel")
	}

	for _, queue := range []string{TopicStockDecrement, TopicCouponConsumption} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return nil, errors.Wrapf(err, "declare %s", queue)
		}
	}

	return &Publisher{ch: ch, lg: lg}, nil
}

// Close waits for in-flight publishes and closes the channel.
func (p *Publisher) Close() error {
	p.wg.Wait()
	return p.ch.Close()
}

// StockDecrement publishes the aggregated quantities to subtract for an order.
func (p *Publisher) StockDecrement(ctx context.Context, orderID int64, quantities map[int64]int) {
	event := NewStockDecrement(orderID, quantities)
	p.publishAsync(ctx, TopicStockDecrement, event.EventID, event.Encode())
}

// CouponConsumption publishes the coupons applied to an order.
func (p *Publisher) CouponConsumption(ctx context.Context, orderID, memberID int64, fixedCouponIDs []int64, rateCouponNames []string) {
	event := NewCouponConsumption(orderID, memberID, fixedCouponIDs, rateCouponNames)
	p.publishAsync(ctx, TopicCouponConsumption, event.EventID, event.Encode())
}

// publishAsync hands the publish to a goroutine so the order-creation caller
// never blocks on the broker. The publish gets its own deadline, detached
// from the request context: the order is already committed, so a caller
// abort must not cancel the event.
func (p *Publisher) publishAsync(ctx context.Context, topic, eventID string, body []byte) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		err := p.ch.PublishWithContext(pubCtx,
			"",    // default exchange
			topic, // queue name as routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				MessageId:    eventID,
				DeliveryMode: amqp.Persistent,
				Body:         body,
			},
		)
		if err != nil {
			p.lg.Error("event publish failed",
				zap.String("topic", topic),
				zap.String("event_id", eventID),
				zap.Error(err),
			)
			return
		}
		p.lg.Debug("event published",
			zap.String("topic", topic),
			zap.String("event_id", eventID),
		)
	}()
}
