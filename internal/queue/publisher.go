package queue

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/cinema-reservation/internal/logger"
)

// Publisher sends ReservationEvents to a durable queue.  It dials per
// publish so a broker outage never blocks startup; failures are logged
// and returned for the caller to ignore.
type Publisher struct {
    url   string
    queue string
    log   *logger.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url, queue string, log *logger.Logger) *Publisher {
    return &Publisher{url: url, queue: queue, log: log.WithComponent("event-publisher")}
}

// Publish marshals the event and publishes it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        p.log.WarnContext(ctx, "rabbitmq dial failed", "error", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.log.WarnContext(ctx, "rabbitmq channel open failed", "error", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    if err := declare(ch, p.queue); err != nil {
        p.log.WarnContext(ctx, "rabbitmq queue declare failed", "error", err)
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         ev.Type,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
        p.log.WarnContext(ctx, "rabbitmq publish failed", "error", err, "type", ev.Type)
        return err
    }
    return nil
}

// declare makes sure the durable queue exists.
func declare(ch *amqp.Channel, name string) error {
    _, err := ch.QueueDeclare(
        name,
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,
    )
    return err
}
