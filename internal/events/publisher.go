// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/marekvk/fotofable/internal/logging"
	"github.com/marekvk/fotofable/internal/metrics"
)

const streamName = "FOTOFABLE"

// publisher wraps the Watermill NATS publisher with stream provisioning and
// publish metrics.
type publisher struct {
	pub    message.Publisher
	conn   *natsgo.Conn
	prefix string
}

func newPublisher(url, prefix string) (*publisher, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	conn, err := natsgo.Connect(url, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	if err := ensureStream(conn, prefix); err != nil {
		conn.Close()
		return nil, err
	}

	pub, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, watermillLogger{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return &publisher{pub: pub, conn: conn, prefix: prefix}, nil
}

// ensureStream provisions the JetStream stream covering every subject under
// the prefix. Idempotent: an existing stream gets its config updated.
func ensureStream(conn *natsgo.Conn, prefix string) error {
	js, err := jetstream.New(conn)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       streamName,
		Subjects:   []string{prefix + ".>"},
		Retention:  jetstream.LimitsPolicy,
		Storage:    jetstream.FileStorage,
		MaxAge:     7 * 24 * time.Hour,
		Discard:    jetstream.DiscardOld,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", streamName, err)
	}
	return nil
}

// publish sends one serialized event; the message UUID doubles as the
// Nats-Msg-Id for JetStream deduplication.
func (p *publisher) publish(suffix string, payload []byte) error {
	subject := p.prefix + "." + suffix
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)

	err := p.pub.Publish(subject, msg)
	metrics.RecordEventPublish(subject, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (p *publisher) close() error {
	err := p.pub.Close()
	p.conn.Close()
	return err
}

// watermillLogger adapts Watermill's logging to zerolog.
type watermillLogger struct {
	fields watermill.LogFields
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(logging.Warn().Err(err), fields).Msg("Watermill: " + msg)
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(logging.Debug(), fields).Msg("Watermill: " + msg)
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(logging.Debug(), fields).Msg("Watermill: " + msg)
}

func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(logging.Debug(), fields).Msg("Watermill: " + msg)
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return watermillLogger{fields: merged}
}

func (l watermillLogger) event(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range l.fields {
		ev = ev.Interface(k, v)
	}
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}
