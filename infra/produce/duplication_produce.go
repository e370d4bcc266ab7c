package produce

import (
	"context"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DuplicationExchange = "duplication.exchange"

	BatchPollQueue      = "duplication.poll"
	BatchPollRoutingKey = "duplication.poll"

	// Messages wait here until their TTL expires, then dead-letter into BatchPollQueue.
	BatchPollDelayQueue      = "duplication.poll.delay"
	BatchPollDelayRoutingKey = "duplication.poll.delay"
)

// BatchPollMessage asks the worker to poll the async batches of a duplication job.
type BatchPollMessage struct {
	JobID       string `json:"job_id"`
	AccessToken string `json:"access_token,omitempty"`
	Attempt     int    `json:"attempt"`
	Timestamp   int64  `json:"timestamp"`
}

type DuplicationProduceService struct {
	publisher Publisher
}

func InitDuplicationProduceService(channel *amqp.Channel) *DuplicationProduceService {
	declareExchange(channel, DuplicationExchange)
	declareBoundQueue(channel, DuplicationExchange, BatchPollQueue, BatchPollRoutingKey, nil)
	declareBoundQueue(channel, DuplicationExchange, BatchPollDelayQueue, BatchPollDelayRoutingKey, amqp.Table{
		"x-dead-letter-exchange":    DuplicationExchange,
		"x-dead-letter-routing-key": BatchPollRoutingKey,
	})

	return &DuplicationProduceService{publisher: channel}
}

func NewDuplicationProduceService(publisher Publisher) *DuplicationProduceService {
	return &DuplicationProduceService{publisher: publisher}
}

// PublishBatchPoll schedules a poll after delay. A zero delay goes straight to the poll queue.
func (s *DuplicationProduceService) PublishBatchPoll(ctx context.Context, msg BatchPollMessage, delay time.Duration) error {
	msg.Timestamp = time.Now().Unix()
	if delay <= 0 {
		return publishJSON(ctx, s.publisher, DuplicationExchange, BatchPollRoutingKey, msg, "")
	}
	expiration := strconv.FormatInt(delay.Milliseconds(), 10)
	return publishJSON(ctx, s.publisher, DuplicationExchange, BatchPollDelayRoutingKey, msg, expiration)
}
