/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package delivery federates activities to remote inboxes: each queued
// delivery is a signed HTTP POST of the activity in its external form.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmhttp "github.com/ThreeDotsLabs/watermill-http/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/activitypub/client/transport"
	"github.com/weft-social/weft/pkg/activitypub/httpsig"
	"github.com/weft-social/weft/pkg/activitypub/vocab"
	"github.com/weft-social/weft/pkg/lifecycle"
	pubsubspi "github.com/weft-social/weft/pkg/pubsub/spi"
)

// ActivityTopic is the topic on which deliveries are queued.
const ActivityTopic = "weft.activities.deliver"

const (
	metadataAttempt = "delivery_attempt"

	defaultConcurrency          = 10
	defaultMaxRetries           = 10
	defaultRetryInitialInterval = 2 * time.Second
	defaultRetryMaxInterval     = 5 * time.Minute
	defaultRetryMultiplier      = 1.5
	defaultSendTimeout          = 30 * time.Second
)

var logger = log.New("activitypub_delivery")

type payload struct {
	SenderIRI string         `json:"sender"`
	Inbox     string         `json:"inbox"`
	Activity  vocab.Document `json:"activity"`
}

type httpTransport interface {
	Post(ctx context.Context, req *transport.Request, payload []byte) (*http.Response, error)
}

type actorResolver interface {
	Resolve(iri string) (*vocab.Object, error)
}

type pubSub interface {
	Publish(topic string, messages ...*message.Message) error
	SubscribeWithOpts(ctx context.Context, topic string,
		opts ...pubsubspi.Option) (<-chan *message.Message, error)
}

type metricsProvider interface {
	DeliveryTime(value time.Duration)
	DeliveryRetry()
	DeliveryDropped()
}

// Config holds the configuration parameters of the delivery engine.
type Config struct {
	ServiceName string

	// Concurrency is the number of concurrent delivery workers.
	Concurrency int

	// MaxRetries is the number of times a failed delivery is retried before it
	// is posted to the undeliverable queue.
	MaxRetries int

	// RetryInitialInterval is the backoff interval of the first retry.
	RetryInitialInterval time.Duration

	// RetryMaxInterval caps the backoff interval.
	RetryMaxInterval time.Duration

	// RetryMultiplier is the backoff interval growth factor.
	RetryMultiplier float64

	// SendTimeout is the timeout of a single delivery POST.
	SendTimeout time.Duration
}

// Service delivers activities to remote inboxes with at-least-once semantics.
type Service struct {
	*lifecycle.Lifecycle
	*Config

	pubSub    pubSub
	transport httpTransport
	resolver  actorResolver
	metrics   metricsProvider

	handlerCtx    context.Context
	handlerCancel context.CancelFunc
}

// New returns a new delivery service.
func New(cfg *Config, ps pubSub, t httpTransport, resolver actorResolver,
	metrics metricsProvider) *Service {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = defaultConcurrency
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	if cfg.RetryInitialInterval == 0 {
		cfg.RetryInitialInterval = defaultRetryInitialInterval
	}

	if cfg.RetryMaxInterval == 0 {
		cfg.RetryMaxInterval = defaultRetryMaxInterval
	}

	if cfg.RetryMultiplier == 0 {
		cfg.RetryMultiplier = defaultRetryMultiplier
	}

	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = defaultSendTimeout
	}

	s := &Service{
		Config:    cfg,
		pubSub:    ps,
		transport: t,
		resolver:  resolver,
		metrics:   metrics,
	}

	s.handlerCtx, s.handlerCancel = context.WithCancel(context.Background())

	s.Lifecycle = lifecycle.New(cfg.ServiceName,
		lifecycle.WithStart(s.start),
		lifecycle.WithStop(s.stop))

	return s
}

func (s *Service) start() {
	msgChan, err := s.pubSub.SubscribeWithOpts(s.handlerCtx, ActivityTopic,
		pubsubspi.WithPool(s.Concurrency))
	if err != nil {
		panic(fmt.Errorf("subscribe to topic [%s]: %w", ActivityTopic, err))
	}

	go s.listen(msgChan)
}

func (s *Service) stop() {
	s.handlerCancel()
}

// Enqueue queues the given activity for delivery to the given inbox on behalf
// of the given local actor.
func (s *Service) Enqueue(senderIRI, inbox string, activity *vocab.Activity) error {
	if s.State() != lifecycle.StateStarted {
		return lifecycle.ErrNotStarted
	}

	msgPayload, err := json.Marshal(&payload{
		SenderIRI: senderIRI,
		Inbox:     inbox,
		Activity:  activity.Doc(),
	})
	if err != nil {
		return fmt.Errorf("marshal delivery [%s]: %w", activity.ID(), err)
	}

	msg := message.NewMessage(watermill.NewUUID(), msgPayload)

	msg.Metadata.Set(metadataAttempt, "0")

	logger.Debug("Enqueueing delivery", log.WithActivityID(activity.ID()),
		log.WithTargetIRI(inbox), log.WithMessageID(msg.UUID))

	return s.pubSub.Publish(ActivityTopic, msg)
}

func (s *Service) listen(msgChan <-chan *message.Message) {
	for msg := range msgChan {
		s.handle(msg)
	}
}

func (s *Service) handle(msg *message.Message) {
	startTime := time.Now()

	defer func() {
		s.metrics.DeliveryTime(time.Since(startTime))
	}()

	d := &payload{}

	if err := json.Unmarshal(msg.Payload, d); err != nil {
		logger.Error("Error unmarshalling delivery. Dropping message.",
			log.WithMessageID(msg.UUID), log.WithError(err))

		msg.Ack()

		return
	}

	err := s.send(msg, d)
	if err == nil {
		msg.Ack()

		return
	}

	if !isRetryable(err) {
		logger.Warn("Delivery failed permanently. Dropping.", log.WithMessageID(msg.UUID),
			log.WithTargetIRI(d.Inbox), log.WithError(err))

		s.metrics.DeliveryDropped()

		msg.Ack()

		return
	}

	s.requeue(msg, d, err)
}

// send posts the activity to the inbox, signed with the sending actor's key.
// The actor is re-resolved at send time so that key material never travels
// through the queue.
func (s *Service) send(msg *message.Message, d *payload) error {
	activity := vocab.NewActivity(d.Activity)

	body, err := json.Marshal(vocab.Compact(d.Activity))
	if err != nil {
		return &permanentError{fmt.Errorf("marshal activity [%s]: %w", activity.ID(), err)}
	}

	sender, err := s.resolver.Resolve(d.SenderIRI)
	if err != nil {
		return fmt.Errorf("resolve sender [%s]: %w", d.SenderIRI, err)
	}

	privateKey, err := httpsig.ParsePrivateKeyPem(sender.PrivateKeyPem())
	if err != nil {
		return &permanentError{fmt.Errorf("private key of [%s]: %w", d.SenderIRI, err)}
	}

	signer := transport.NewKeySigner(httpsig.DefaultPostSignerConfig(),
		d.SenderIRI+"#main-key", privateKey)

	ctx, cancel := context.WithTimeout(context.Background(), s.SendTimeout)
	defer cancel()

	resp, err := s.transport.Post(ctx,
		transport.NewRequest(d.Inbox, signer,
			transport.WithHeader(wmhttp.HeaderUUID, msg.UUID)),
		body)
	if err != nil {
		return fmt.Errorf("post to [%s]: %w", d.Inbox, err)
	}

	if err := resp.Body.Close(); err != nil {
		log.CloseResponseBodyError(logger, err)
	}

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		logger.Debug("Delivered activity", log.WithActivityID(activity.ID()),
			log.WithTargetIRI(d.Inbox), log.WithHTTPStatus(resp.StatusCode))

		return nil
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("post to [%s]: status %d", d.Inbox, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("post to [%s]: status %d", d.Inbox, resp.StatusCode)
	default:
		return &permanentError{fmt.Errorf("post to [%s]: status %d", d.Inbox, resp.StatusCode)}
	}
}

// requeue republishes the message with an incremented attempt count after a
// backoff delay. A message that exhausts its retries is posted to the
// undeliverable queue.
func (s *Service) requeue(msg *message.Message, d *payload, cause error) {
	attempt, convErr := strconv.Atoi(msg.Metadata.Get(metadataAttempt))
	if convErr != nil {
		attempt = 0
	}

	attempt++

	if attempt > s.MaxRetries {
		logger.Warn("Delivery retries exhausted. Posting to undeliverable queue.",
			log.WithMessageID(msg.UUID), log.WithTargetIRI(d.Inbox),
			log.WithAttempt(attempt), log.WithError(cause))

		s.metrics.DeliveryDropped()

		undeliverable := message.NewMessage(msg.UUID, msg.Payload)
		undeliverable.Metadata = msg.Metadata

		if err := s.pubSub.Publish(pubsubspi.UndeliverableTopic, undeliverable); err != nil {
			logger.Error("Error posting to undeliverable queue", log.WithMessageID(msg.UUID),
				log.WithError(err))
		}

		msg.Ack()

		return
	}

	delay := s.backoffDelay(attempt)

	logger.Info("Delivery failed. Retrying.", log.WithMessageID(msg.UUID),
		log.WithTargetIRI(d.Inbox), log.WithAttempt(attempt), log.WithBackoff(delay),
		log.WithError(cause))

	s.metrics.DeliveryRetry()

	retry := message.NewMessage(msg.UUID, msg.Payload)
	retry.Metadata = msg.Metadata
	retry.Metadata.Set(metadataAttempt, strconv.Itoa(attempt))

	time.AfterFunc(delay, func() {
		if err := s.pubSub.Publish(ActivityTopic, retry); err != nil {
			logger.Error("Error requeueing delivery", log.WithMessageID(msg.UUID),
				log.WithError(err))
		}
	})

	msg.Ack()
}

func (s *Service) backoffDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()

	b.InitialInterval = s.RetryInitialInterval
	b.MaxInterval = s.RetryMaxInterval
	b.Multiplier = s.RetryMultiplier
	b.MaxElapsedTime = 0

	delay := b.NextBackOff()

	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}

	return delay
}

type permanentError struct {
	cause error
}

func (e *permanentError) Error() string {
	return e.cause.Error()
}

func (e *permanentError) Unwrap() error {
	return e.cause
}

func isRetryable(err error) bool {
	var pe *permanentError

	return !errors.As(err, &pe)
}
