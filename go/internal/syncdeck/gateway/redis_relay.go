package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisRelayConfig holds configuration for the Redis pub/sub relay
type RedisRelayConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// DefaultRedisRelayConfig returns default Redis relay configuration
func DefaultRedisRelayConfig() RedisRelayConfig {
	return RedisRelayConfig{
		Addr:          "localhost:6379",
		ChannelPrefix: "syncdeck:sessions",
	}
}

// RedisRelay fans envelopes out over Redis pub/sub. Delivery is at most once;
// students tolerate gaps and drop duplicates by sequence.
type RedisRelay struct {
	broadcaster Broadcaster
	rdb         *redis.Client
	config      RedisRelayConfig
}

// NewRedisRelay connects to Redis and checks the connection.
func NewRedisRelay(b Broadcaster, config RedisRelayConfig) (*RedisRelay, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	return &RedisRelay{broadcaster: b, rdb: rdb, config: config}, nil
}

func (r *RedisRelay) channel(sessionID string) string {
	return r.config.ChannelPrefix + ":" + sessionID
}

func (r *RedisRelay) Publish(ctx context.Context, msg RelayMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal relay message: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel(msg.SessionID), data).Err(); err != nil {
		return fmt.Errorf("publish to Redis: %w", err)
	}
	return nil
}

// Start subscribes to every session channel until ctx is done.
func (r *RedisRelay) Start(ctx context.Context) error {
	pubsub := r.rdb.PSubscribe(ctx, r.config.ChannelPrefix+":*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to Redis: %w", err)
	}
	log.Info().Str("pattern", r.config.ChannelPrefix+":*").Msg("Redis relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Redis relay shutting down")
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var relayed RelayMessage
			if err := json.Unmarshal([]byte(m.Payload), &relayed); err != nil {
				log.Error().Err(err).Str("channel", m.Channel).Msg("failed to decode relay message")
				continue
			}
			r.broadcaster.BroadcastToSession(relayed)
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.rdb.Close()
}
