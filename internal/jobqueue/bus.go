// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package jobqueue

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/lkmcompany/gorgone/internal/config"
)

// wakeBus is a best-effort notification channel the dispatcher uses to wake
// a topic's idle workers the moment a job is enqueued, instead of always
// waiting out the full poll interval. The jobs table, not the bus, remains
// the single source of truth for what work exists and who owns it: a
// dropped or duplicated wake message only costs latency, never correctness.
//
// By default this runs over an in-process Watermill GoChannel. When
// config.NATSConfig.Enabled, it runs over NATS JetStream instead, so wake
// signals cross process boundaries in a multi-instance deployment.
type wakeBus struct {
	pub      message.Publisher
	sub      message.Subscriber
	embedded *embeddedNATS
}

func newWakeBus(cfg config.NATSConfig, logger watermill.LoggerAdapter) (*wakeBus, error) {
	if !cfg.Enabled {
		gc := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		return &wakeBus{pub: gc, sub: gc}, nil
	}

	var embedded *embeddedNATS
	url := cfg.URL
	if cfg.EmbeddedServer {
		var err error
		embedded, err = newEmbeddedNATS(cfg)
		if err != nil {
			return nil, fmt.Errorf("jobqueue: start embedded nats: %w", err)
		}
		url = embedded.ClientURL()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    false,
		},
	}, logger)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown(context.Background())
		}
		return nil, fmt.Errorf("jobqueue: nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:            url,
		AckWaitTimeout: cfg.AckWait,
		NatsOptions:    natsOpts,
		Unmarshaler:    &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			AckAsync:      false,
			DurablePrefix: cfg.DurableName,
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		if embedded != nil {
			embedded.Shutdown(context.Background())
		}
		return nil, fmt.Errorf("jobqueue: nats subscriber: %w", err)
	}

	return &wakeBus{pub: pub, sub: sub, embedded: embedded}, nil
}

// notify publishes a wake message for topic. Best-effort: the caller never
// treats a publish failure as fatal to the enqueue it followed.
func (b *wakeBus) notify(topic string) {
	msg := message.NewMessage(watermill.NewUUID(), []byte("1"))
	_ = b.pub.Publish(topic, msg)
}

// listen subscribes to a topic's wake messages. The returned channel closes
// when ctx is canceled or the bus is closed.
func (b *wakeBus) listen(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.sub.Subscribe(ctx, topic)
}

func (b *wakeBus) Close() error {
	_ = b.pub.Close()
	err := b.sub.Close()
	if b.embedded != nil {
		b.embedded.Shutdown(context.Background())
	}
	return err
}
