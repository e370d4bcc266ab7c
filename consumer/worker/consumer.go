package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tnqbao/gau-ads-orchestrator/infra"
)

// ErrPoisonMessage marks a delivery that can never succeed. It is dropped without requeue.
var ErrPoisonMessage = errors.New("poison message")

// Handler processes one message body.
type Handler func(ctx context.Context, body []byte) error

// Acknowledger is the part of amqp.Delivery a handler outcome is reported to.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Runner retries a handler and settles the delivery.
type Runner struct {
	logger     *infra.LoggerClient
	maxRetries int
	backoff    time.Duration
	sleep      func(time.Duration)
}

func NewRunner(logger *infra.LoggerClient, maxRetries int, backoff time.Duration) *Runner {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Runner{logger: logger, maxRetries: maxRetries, backoff: backoff, sleep: time.Sleep}
}

// Listen registers on queue and handles deliveries until ctx is done or the channel closes.
func (r *Runner) Listen(ctx context.Context, channel Consumer, queue, tag string, handle Handler) error {
	msgs, err := channel.Consume(
		queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register %s consumer: %w", tag, err)
	}

	r.logger.InfoWithContextf(ctx, "[%s] Started listening on queue: %s", tag, queue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				r.logger.InfoWithContextf(ctx, "[%s] Shutting down...", tag)
				return
			case msg, ok := <-msgs:
				if !ok {
					r.logger.WarningWithContextf(ctx, "[%s] Channel closed", tag)
					return
				}
				r.Settle(ctx, tag, &msg, msg.Body, handle)
			}
		}
	}()

	return nil
}

// Settle acks on success, drops poison messages and requeues after maxRetries failures.
func (r *Runner) Settle(ctx context.Context, tag string, ack Acknowledger, body []byte, handle Handler) {
	var err error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		err = handle(ctx, body)
		if err == nil {
			_ = ack.Ack(false)
			return
		}
		if errors.Is(err, ErrPoisonMessage) {
			r.logger.ErrorWithContextf(ctx, err, "[%s] Dropping message", tag)
			_ = ack.Nack(false, false)
			return
		}

		r.logger.ErrorWithContextf(ctx, err, "[%s] Attempt %d/%d failed", tag, attempt, r.maxRetries)
		if attempt < r.maxRetries {
			r.sleep(time.Duration(attempt) * r.backoff)
		}
	}

	r.logger.ErrorWithContextf(ctx, err, "[%s] Failed after %d attempts, requeueing message", tag, r.maxRetries)
	_ = ack.Nack(false, true)
}

func poison(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPoisonMessage, fmt.Sprintf(format, args...))
}
