/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package amqp

import (
	"context"
	"fmt"
	"sync"
	"time"

	wmamqp "github.com/ThreeDotsLabs/watermill-amqp/v2/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/lifecycle"
	"github.com/weft-social/weft/pkg/pubsub/spi"
	"github.com/weft-social/weft/pkg/pubsub/wmlogger"
)

var logger = log.New("pubsub")

const (
	defaultMaxConnectRetries     = 25
	defaultMaxConnectInterval    = 5 * time.Second
	defaultMaxConnectElapsedTime = 3 * time.Minute

	exchange           = "weft"
	deadLetterExchange = "weft.undeliverable"

	metadataDeadLetterExchange = "x-dead-letter-exchange"
)

// Config holds the configuration for the AMQP publisher/subscriber.
type Config struct {
	URI                   string
	MaxConnectRetries     uint64
	MaxConnectInterval    time.Duration
	MaxConnectElapsedTime time.Duration
}

// PubSub implements a publisher/subscriber that connects to an AMQP-compatible
// message queue, such as RabbitMQ. Messages that are Nacked are routed to the
// dead-letter exchange and end up on the undeliverable topic.
type PubSub struct {
	*lifecycle.Lifecycle
	Config

	amqpConfig wmamqp.Config
	subscriber message.Subscriber
	publisher  message.Publisher
	mutex      sync.Mutex
}

// New returns a new AMQP publisher/subscriber.
func New(cfg Config) (*PubSub, error) {
	cfg = initConfig(cfg)

	amqpConfig := wmamqp.NewDurableQueueConfig(cfg.URI)
	amqpConfig.Exchange.GenerateName = func(string) string { return exchange }
	amqpConfig.Queue.Arguments = amqp091.Table{
		metadataDeadLetterExchange: deadLetterExchange,
	}

	p := &PubSub{
		Config:     cfg,
		amqpConfig: amqpConfig,
	}

	p.Lifecycle = lifecycle.New("amqp", lifecycle.WithStop(p.stop))

	if err := p.connect(); err != nil {
		return nil, fmt.Errorf("connect to message queue at %s: %w", cfg.URI, err)
	}

	p.Start()

	return p, nil
}

func (p *PubSub) connect() error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = p.MaxConnectInterval
	bo.MaxElapsedTime = p.MaxConnectElapsedTime

	return backoff.Retry(func() error {
		subscriber, err := wmamqp.NewSubscriber(p.amqpConfig, wmlogger.New())
		if err != nil {
			logger.Info("Error connecting subscriber to message queue. Retrying...", log.WithError(err))

			return err
		}

		publisher, err := wmamqp.NewPublisher(p.amqpConfig, wmlogger.New())
		if err != nil {
			logger.Info("Error connecting publisher to message queue. Retrying...", log.WithError(err))

			return err
		}

		p.subscriber = subscriber
		p.publisher = publisher

		return nil
	}, backoff.WithMaxRetries(bo, p.MaxConnectRetries))
}

// Subscribe subscribes to the given topic.
func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.SubscribeWithOpts(ctx, topic)
}

// SubscribeWithOpts subscribes to the given topic. If a pool size is specified then
// multiple consumers are started against the same queue so that messages are processed
// concurrently, at-least-once.
func (p *PubSub) SubscribeWithOpts(ctx context.Context, topic string, opts ...spi.Option) (<-chan *message.Message, error) {
	if p.State() != lifecycle.StateStarted {
		return nil, lifecycle.ErrNotStarted
	}

	options := &spi.Options{}

	for _, opt := range opts {
		opt(options)
	}

	if options.PoolSize <= 1 {
		return p.subscriber.Subscribe(ctx, topic)
	}

	logger.Debug("Creating pooled subscriber", log.WithTopic(topic), log.WithSize(options.PoolSize))

	msgChan := make(chan *message.Message, options.PoolSize)

	for i := 0; i < options.PoolSize; i++ {
		consumerChan, err := p.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("subscribe to topic [%s]: %w", topic, err)
		}

		go func() {
			for msg := range consumerChan {
				msgChan <- msg
			}
		}()
	}

	return msgChan, nil
}

// Publish publishes the given messages to the given topic.
func (p *PubSub) Publish(topic string, messages ...*message.Message) error {
	if p.State() != lifecycle.StateStarted {
		return lifecycle.ErrNotStarted
	}

	return p.publisher.Publish(topic, messages...)
}

// PublishWithOpts publishes the given message to the given topic. Options are
// currently not supported by this implementation.
func (p *PubSub) PublishWithOpts(topic string, msg *message.Message, _ ...spi.Option) error {
	return p.Publish(topic, msg)
}

// Close closes the underlying subscriber and publisher.
func (p *PubSub) Close() error {
	p.Stop()

	return nil
}

// IsConnected returns true if the subscriber and publisher have been created.
func (p *PubSub) IsConnected() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.subscriber != nil && p.publisher != nil
}

func (p *PubSub) stop() {
	logger.Info("Closing AMQP publisher/subscriber...")

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.publisher != nil {
		if err := p.publisher.Close(); err != nil {
			logger.Warn("Error closing publisher", log.WithError(err))
		}
	}

	if p.subscriber != nil {
		if err := p.subscriber.Close(); err != nil {
			logger.Warn("Error closing subscriber", log.WithError(err))
		}
	}
}

func initConfig(cfg Config) Config {
	if cfg.MaxConnectRetries == 0 {
		cfg.MaxConnectRetries = defaultMaxConnectRetries
	}

	if cfg.MaxConnectInterval == 0 {
		cfg.MaxConnectInterval = defaultMaxConnectInterval
	}

	if cfg.MaxConnectElapsedTime == 0 {
		cfg.MaxConnectElapsedTime = defaultMaxConnectElapsedTime
	}

	return cfg
}
