package produce

import (
	"context"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	NotificationExchange = "notification_exchange"

	NotificationBreakerRoutingKey     = "ops.breaker_open"
	NotificationDuplicationRoutingKey = "ops.duplication_done"
)

type NotificationMessage struct {
	Type     string            `json:"type"`
	Severity string            `json:"severity"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Fields   map[string]string `json:"fields,omitempty"`
	SentAt   int64             `json:"sent_at"`
}

// NotificationService publishes operational notifications. Formatting and delivery
// (Telegram, email) belong to the notification consumer owned by another service.
type NotificationService struct {
	publisher Publisher
}

func InitNotificationService(channel *amqp.Channel) *NotificationService {
	declareExchange(channel, NotificationExchange)
	return &NotificationService{publisher: channel}
}

func NewNotificationService(publisher Publisher) *NotificationService {
	return &NotificationService{publisher: publisher}
}

func (s *NotificationService) SendBreakerOpened(ctx context.Context, service, from string, threshold uint32) error {
	message := NotificationMessage{
		Type:     "breaker_open",
		Severity: "critical",
		Title:    "Circuit breaker opened: " + service,
		Content:  "Calls to " + service + " are failing fast until the cooldown elapses.",
		Fields: map[string]string{
			"service":           service,
			"previous_state":    from,
			"failure_threshold": strconv.FormatUint(uint64(threshold), 10),
		},
	}
	return s.publish(ctx, NotificationBreakerRoutingKey, message)
}

func (s *NotificationService) SendDuplicationFinished(ctx context.Context, jobID, status, newID string, succeeded, failed int) error {
	severity := "info"
	if failed > 0 {
		severity = "warning"
	}
	message := NotificationMessage{
		Type:     "duplication_done",
		Severity: severity,
		Title:    "Duplication " + status,
		Content:  "Duplication job " + jobID + " finished with status " + status,
		Fields: map[string]string{
			"job_id":    jobID,
			"new_id":    newID,
			"succeeded": strconv.Itoa(succeeded),
			"failed":    strconv.Itoa(failed),
		},
	}
	return s.publish(ctx, NotificationDuplicationRoutingKey, message)
}

func (s *NotificationService) publish(ctx context.Context, routingKey string, message NotificationMessage) error {
	message.SentAt = time.Now().Unix()
	return publishJSON(ctx, s.publisher, NotificationExchange, routingKey, message, "")
}
