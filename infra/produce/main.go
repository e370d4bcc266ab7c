package produce

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the part of *amqp.Channel the producers need.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Produce struct {
	CreativeService     *CreativeProduceService
	DuplicationService  *DuplicationProduceService
	NotificationService *NotificationService
}

var produceInstance *Produce

func InitProduce(channel *amqp.Channel) *Produce {
	if produceInstance != nil {
		return produceInstance
	}

	creativeService := InitCreativeProduceService(channel)
	if creativeService == nil {
		panic("Failed to initialize Creative produce service")
	}

	duplicationService := InitDuplicationProduceService(channel)
	if duplicationService == nil {
		panic("Failed to initialize Duplication produce service")
	}

	notificationService := InitNotificationService(channel)
	if notificationService == nil {
		panic("Failed to initialize Notification service")
	}

	produceInstance = &Produce{
		CreativeService:     creativeService,
		DuplicationService:  duplicationService,
		NotificationService: notificationService,
	}

	return produceInstance
}

func GetProduce() *Produce {
	if produceInstance == nil {
		panic("Produce not initialized. Call InitProduce() first.")
	}
	return produceInstance
}

func declareExchange(channel *amqp.Channel, exchange string) {
	err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare exchange " + exchange + ": " + err.Error())
	}
}

func declareBoundQueue(channel *amqp.Channel, exchange, queue, routingKey string, args amqp.Table) {
	_, err := channel.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		args,
	)
	if err != nil {
		panic("Failed to declare queue " + queue + ": " + err.Error())
	}

	err = channel.QueueBind(
		queue,
		routingKey,
		exchange,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to bind queue " + queue + ": " + err.Error())
	}
}

func publishJSON(ctx context.Context, publisher Publisher, exchange, routingKey string, message interface{}, expiration string) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", routingKey, err)
	}

	err = publisher.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Expiration:   expiration,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s message: %w", routingKey, err)
	}
	return nil
}
