// README: RabbitMQ publisher for ride status events on the ride_topic exchange.
package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const rideExchange = "ride_topic"

var ErrBrokerClosed = errors.New("broker connection is closed")

type amqpConn interface {
	Channel() (amqpChannel, error)
	IsClosed() bool
	Close() error
}

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type dialedConn struct {
	*amqp.Connection
}

func (c dialedConn) Channel() (amqpChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string) (amqpConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return dialedConn{conn}, nil
}

type Broker struct {
	url  string
	dial func(url string) (amqpConn, error)
	mu   sync.Mutex
	conn amqpConn
	ch   amqpChannel
}

func NewBroker(url string) (*Broker, error) {
	b := &Broker{url: url, dial: dialAMQP}
	if err := b.connect(); err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	return b, nil
}

// connect reopens the channel on a live connection and only redials when
// that fails. A replaced connection is closed so its socket is not leaked.
func (b *Broker) connect() error {
	if b.ch != nil && !b.ch.IsClosed() {
		_ = b.ch.Close()
	}
	b.ch = nil
	if b.conn != nil && !b.conn.IsClosed() {
		if err := b.openChannel(b.conn); err == nil {
			return nil
		}
		_ = b.conn.Close()
	}
	b.conn = nil

	conn, err := b.dial(b.url)
	if err != nil {
		return err
	}
	if err := b.openChannel(conn); err != nil {
		_ = conn.Close()
		return err
	}
	b.conn = conn
	return nil
}

func (b *Broker) openChannel(conn amqpConn) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(rideExchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return err
	}
	b.ch = ch
	return nil
}

// Publish sends payload as JSON. A closed channel or connection is restored once.
func (b *Broker) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil || b.conn.IsClosed() || b.ch == nil || b.ch.IsClosed() {
		if err := b.connect(); err != nil {
			return fmt.Errorf("%w: %v", ErrBrokerClosed, err)
		}
	}
	return b.ch.PublishWithContext(ctx, rideExchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != nil && !b.ch.IsClosed() {
		if err := b.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if b.conn != nil && !b.conn.IsClosed() {
		if err := b.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}
