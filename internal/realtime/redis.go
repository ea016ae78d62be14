package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// Sink receives change events relayed from Redis.
type Sink interface {
	Publish(ctx context.Context, ev model.ChangeEvent) error
}

// RedisPublisher fans change events out to every instance through a Redis
// pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev model.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	return p.client.Publish(ctx, p.channel, data).Err()
}

// Relay forwards events published on channel into sink until ctx is done.
// A closed pub/sub channel is reopened after a second.
func Relay(ctx context.Context, logger *zap.Logger, rc *redis.Client, channel string, sink Sink) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev model.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Error("unable to parse change event", zap.Error(err))
					continue
				}
				if err := sink.Publish(ctx, ev); err != nil {
					logger.Error("relay change event", zap.Error(err))
				}
			}
		}
		sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting", zap.String("channel", channel))
		time.Sleep(time.Second)
	}
}
