/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package startcmd provides the command that assembles and starts the server.
package startcmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/weft-social/weft/internal/pkg/log"
	"github.com/weft-social/weft/pkg/activitypub/audience"
	"github.com/weft-social/weft/pkg/activitypub/client/transport"
	"github.com/weft-social/weft/pkg/activitypub/resolver"
	"github.com/weft-social/weft/pkg/activitypub/resthandler"
	"github.com/weft-social/weft/pkg/activitypub/service/activityhandler"
	"github.com/weft-social/weft/pkg/activitypub/service/collection"
	"github.com/weft-social/weft/pkg/activitypub/service/delivery"
	"github.com/weft-social/weft/pkg/activitypub/service/outbox"
	"github.com/weft-social/weft/pkg/activitypub/store/memstore"
	"github.com/weft-social/weft/pkg/activitypub/store/mongostore"
	storespi "github.com/weft-social/weft/pkg/activitypub/store/spi"
	"github.com/weft-social/weft/pkg/healthcheck"
	"github.com/weft-social/weft/pkg/httpserver"
	"github.com/weft-social/weft/pkg/nodeinfo"
	"github.com/weft-social/weft/pkg/observability/metrics/prometheus"
	"github.com/weft-social/weft/pkg/pubsub/amqp"
	"github.com/weft-social/weft/pkg/pubsub/mempubsub"
	pubsubspi "github.com/weft-social/weft/pkg/pubsub/spi"
	"github.com/weft-social/weft/pkg/webfinger"
)

const (
	serviceName = "weft"

	databaseName = "weft"

	serverIdleTimeout       = 2 * time.Minute
	serverReadHeaderTimeout = 20 * time.Second
	shutdownTimeout         = 10 * time.Second
)

var logger = log.New("startcmd")

type pubSub interface {
	Publish(topic string, messages ...*message.Message) error
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	SubscribeWithOpts(ctx context.Context, topic string, opts ...pubsubspi.Option) (<-chan *message.Message, error)
	IsConnected() bool
	Close() error
}

// GetStartCmd returns the command that starts the server.
func GetStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start weft-server",
		Long:  "Start the Weft federated social server",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := getServerParams(cmd)
			if err != nil {
				return err
			}

			return startServer(params)
		},
	}

	createFlags(cmd)

	return cmd
}

//nolint:funlen
func startServer(params *serverParams) error {
	if params.logSpec != "" {
		if err := log.SetSpec(params.logSpec); err != nil {
			return fmt.Errorf("set log spec: %w", err)
		}
	}

	store, db, closeStore, err := createStore(params)
	if err != nil {
		return err
	}

	ps, err := createPubSub(params)
	if err != nil {
		return err
	}

	t := transport.New(&http.Client{})
	rslv := resolver.New(params.externalEndpoint, store, t)
	collections := collection.New(params.externalEndpoint, store,
		collection.WithPageSize(params.pageSize))
	handler := activityhandler.New(params.externalEndpoint, store, rslv, collections)
	aud := audience.New(rslv, collections, collections)

	pm := prometheus.GetMetrics()

	deliverySvc := delivery.New(&delivery.Config{
		ServiceName:          serviceName + "-delivery",
		Concurrency:          params.deliveryConcurrency,
		MaxRetries:           params.deliveryMaxRetries,
		RetryInitialInterval: params.deliveryRetryInitialInterval,
		RetryMaxInterval:     params.deliveryRetryMaxInterval,
		SendTimeout:          params.deliverySendTimeout,
	}, ps, t, rslv, pm)

	ob := outbox.New(&outbox.Config{
		ServiceName: serviceName + "-outbox",
		BaseURL:     params.externalEndpoint,
	}, store, rslv, aud, handler, collections, deliverySvc, ps, pm)

	nodeInfoSvc := nodeinfo.NewService(ob.Subscribe())

	deliverySvc.Start()
	ob.Start()
	nodeInfoSvc.Start()

	webFingerHandler, err := webfinger.NewHandler(params.externalEndpoint, rslv, collections)
	if err != nil {
		return fmt.Errorf("create webfinger handler: %w", err)
	}

	restCfg := &resthandler.Config{BaseURL: params.externalEndpoint}

	srv := httpserver.New(params.hostURL, params.tlsCertificate, params.tlsKey,
		serverIdleTimeout, serverReadHeaderTimeout,
		resthandler.NewPostOutbox(restCfg, ob, collections),
		resthandler.NewReadOutbox(restCfg, rslv, collections),
		webFingerHandler,
		nodeinfo.NewHandler(nodeinfo.V2_0, nodeInfoSvc),
		nodeinfo.NewHandler(nodeinfo.V2_1, nodeInfoSvc),
		nodeinfo.NewWellKnownHandler(params.externalEndpoint),
		healthcheck.NewHandler(ps, db, map[string]healthcheck.Service{
			"outbox":   ob,
			"delivery": deliverySvc,
		}),
		prometheus.NewHandler(),
	)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}

	logger.Info("Started weft-server", log.WithAddress(params.hostURL))

	interrupt := make(chan os.Signal, 1)

	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	<-interrupt

	logger.Info("Shutting down ...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		logger.Warn("Error stopping HTTP server", log.WithError(err))
	}

	ob.Stop()
	deliverySvc.Stop()
	nodeInfoSvc.Stop()

	if err := ps.Close(); err != nil {
		logger.Warn("Error closing publisher/subscriber", log.WithError(err))
	}

	if err := closeStore(); err != nil {
		logger.Warn("Error closing activity store", log.WithError(err))
	}

	logger.Info("Stopped weft-server")

	return nil
}

func createStore(params *serverParams) (storespi.Store, healthcheck.DB, func() error, error) {
	if params.databaseType == databaseTypeMem {
		return memstore.New(serviceName), nil, func() error { return nil }, nil
	}

	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(params.databaseURL))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to MongoDB at %s: %w", params.databaseURL, err)
	}

	store, err := mongostore.New(client, databaseName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create MongoDB activity store: %w", err)
	}

	return store, &mongoDB{client: client}, func() error {
		return client.Disconnect(context.Background())
	}, nil
}

type mongoDB struct {
	client *mongo.Client
}

func (d *mongoDB) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return d.client.Ping(ctx, nil)
}

func createPubSub(params *serverParams) (pubSub, error) {
	if params.queueType == queueTypeMem {
		return mempubsub.New(mempubsub.DefaultConfig()), nil
	}

	ps, err := amqp.New(amqp.Config{URI: params.queueURL})
	if err != nil {
		return nil, fmt.Errorf("create AMQP publisher/subscriber: %w", err)
	}

	return ps, nil
}
