package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamRelayConfig holds configuration for the JetStream relay
type JetStreamRelayConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep relayed envelopes
	Replicas        int
	DuplicateWindow time.Duration // Window for Nats-Msg-Id dedup
}

// DefaultJetStreamRelayConfig returns default JetStream relay configuration
func DefaultJetStreamRelayConfig() JetStreamRelayConfig {
	return JetStreamRelayConfig{
		URL:             nats.DefaultURL,
		StreamName:      "SYNCDECK_EVENTS",
		SubjectPrefix:   "syncdeck.sessions",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
	}
}

// JetStreamRelay publishes session envelopes to a stream and feeds every
// gateway instance through its own ordered consumer, so students connected to
// any instance see the manager's messages in order.
type JetStreamRelay struct {
	broadcaster Broadcaster
	nc          *nats.Conn
	js          jetstream.JetStream
	config      JetStreamRelayConfig
}

// NewJetStreamRelay connects to NATS and ensures the relay stream exists.
func NewJetStreamRelay(b Broadcaster, config JetStreamRelayConfig) (*JetStreamRelay, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	r := &JetStreamRelay{broadcaster: b, nc: nc, js: js, config: config}
	if err := r.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return r, nil
}

func (r *JetStreamRelay) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        r.config.StreamName,
		Description: "SyncDeck session relay",
		Subjects:    []string{r.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      r.config.MaxAge,
		Storage:     jetstream.MemoryStorage,
		Replicas:    r.config.Replicas,
		Duplicates:  r.config.DuplicateWindow,
	}

	if _, err := r.js.CreateOrUpdateStream(ctx, sc); err != nil {
		return fmt.Errorf("create or update stream: %w", err)
	}
	log.Info().Str("stream", r.config.StreamName).Msg("JetStream relay stream ready")
	return nil
}

func (r *JetStreamRelay) subject(sessionID string) string {
	return r.config.SubjectPrefix + "." + sessionID
}

// Publish appends msg to the session's subject. The message id makes a retried
// publish of the same sequence a no-op on the server.
func (r *JetStreamRelay) Publish(ctx context.Context, msg RelayMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal relay message: %w", err)
	}

	subject := r.subject(msg.SessionID)
	ack, err := r.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Session-ID": []string{msg.SessionID},
			"Action":     []string{string(msg.Envelope.Action)},
		},
	},
		jetstream.WithMsgID(msg.SessionID+":"+strconv.FormatUint(msg.Seq, 10)),
		jetstream.WithExpectStream(r.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Uint64("seq", msg.Seq).
		Uint64("stream_sequence", ack.Sequence).
		Msg("relayed envelope")
	return nil
}

// Start consumes new relay messages until ctx is done.
func (r *JetStreamRelay) Start(ctx context.Context) error {
	consumer, err := r.js.OrderedConsumer(ctx, r.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{r.config.SubjectPrefix + ".>"},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create ordered consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		var relayed RelayMessage
		if err := json.Unmarshal(msg.Data(), &relayed); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to decode relay message")
			return
		}
		r.broadcaster.BroadcastToSession(relayed)
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	log.Info().Str("stream", r.config.StreamName).Msg("JetStream relay consuming")
	<-ctx.Done()
	log.Info().Msg("JetStream relay shutting down")
	return nil
}

func (r *JetStreamRelay) Close() error {
	if r.nc == nil {
		return nil
	}
	return r.nc.Drain()
}
