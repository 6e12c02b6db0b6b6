package talent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
)

// NewPublisher builds the publisher selected by cfg.Publisher.
func NewPublisher(cfg config.TalentConfig, logger *errors.Logger) (Publisher, error) {
	switch cfg.Publisher {
	case "", "log":
		return NewLogPublisher(logger), nil
	case "amqp":
		p, err := NewAMQPPublisher(cfg.AMQP, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported talent publisher: %s", cfg.Publisher), nil)
	}
}

// LogPublisher simulates the talent network by logging submissions.
type LogPublisher struct {
	logger *errors.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *errors.Logger) *LogPublisher {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, s Submission) error {
	p.logger.Info("Talent submission (simulated)",
		"submission_id", s.ID,
		"session_id", s.SessionID,
		"candidate", s.CV.PersonalInfo.FullName)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// amqpChannel is the subset of *amqp.Channel the publisher uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes submissions as persistent JSON messages to RabbitMQ.
type AMQPPublisher struct {
	mu         sync.Mutex
	conn       *amqp.Connection
	channel    amqpChannel
	exchange   string
	routingKey string
	logger     *errors.Logger
}

// NewAMQPPublisher dials RabbitMQ and declares the durable submissions queue.
func NewAMQPPublisher(cfg config.AMQPConfig, logger *errors.Logger) (*AMQPPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "AMQP URL is required", nil)
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodePublishFailed, "Failed to connect to RabbitMQ", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.NewNetworkError(errors.ErrCodePublishFailed, "Failed to open RabbitMQ channel", err)
	}

	p, err := newAMQPPublisher(ch, cfg, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch amqpChannel, cfg config.AMQPConfig, logger *errors.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	routingKey := cfg.RoutingKey
	if cfg.Queue != "" {
		if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
			return nil, errors.NewNetworkError(errors.ErrCodePublishFailed,
				fmt.Sprintf("Failed to declare queue %s", cfg.Queue), err)
		}
		// The default exchange routes by queue name and cannot be bound.
		if cfg.Exchange != "" {
			if err := ch.QueueBind(cfg.Queue, routingKey, cfg.Exchange, false, nil); err != nil {
				return nil, errors.NewNetworkError(errors.ErrCodePublishFailed,
					fmt.Sprintf("Failed to bind queue %s to %s", cfg.Queue, cfg.Exchange), err)
			}
		} else {
			routingKey = cfg.Queue
		}
	}

	logger.Info("Talent publisher ready",
		"exchange", cfg.Exchange,
		"routing_key", routingKey,
		"queue", cfg.Queue)

	return &AMQPPublisher{
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, s Submission) error {
	body, err := json.Marshal(s)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodePublishFailed, "Failed to encode submission", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    s.ID,
		Timestamp:    s.SubmittedAt,
		Body:         body,
	}

	// Channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, msg); err != nil {
		p.logger.LogError(err, "Failed to publish talent submission", "submission_id", s.ID)
		return errors.NewNetworkError(errors.ErrCodePublishFailed, "Failed to publish submission to RabbitMQ", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
