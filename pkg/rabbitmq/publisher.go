package rabbitmq

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"training-relay/config"
)

const exchangeName = "training_exchange"

// Publisher emits lifecycle events onto the training exchange. Consumers
// (evaluation trigger, notifications) live in other services.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	Close() error
}

type publisher struct {
	ch  *amqp.Channel
	cfg *config.RabbitMQ
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) (Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(exchangeName, cfg.Kind, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, err
	}

	return &publisher{
		ch:  ch,
		cfg: cfg,
	}, nil
}

func (p *publisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("routing_key", routingKey).Msg("failed to publish message")
		return err
	}

	return nil
}

func (p *publisher) Close() error {
	return p.ch.Close()
}
