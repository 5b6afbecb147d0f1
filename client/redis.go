package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"ticketchat/logger"
	"ticketchat/transcript"
)

// RedisFeed delivers channel events from Redis pub/sub.
// It implements transcript.Feed for deployments that fan events out through Redis.
type RedisFeed struct {
	rdb *redis.Client
	log logger.Logger
}

// NewRedisFeed wraps an existing client
func NewRedisFeed(rdb *redis.Client, log logger.Logger) *RedisFeed {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisFeed{rdb: rdb, log: log}
}

type redisSubscription struct {
	ps   *redis.PubSub
	once sync.Once
	done chan struct{}
	err  error
}

func (s *redisSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
		<-s.done
	})
	return s.err
}

// Subscribe starts delivering messages published on channel to handler, one at a time
func (f *RedisFeed) Subscribe(ctx context.Context, channel string, handler func([]byte)) (transcript.Subscription, error) {
	ps := f.rdb.Subscribe(ctx, channel)
	// wait for the confirmation so no message published after Subscribe returns is lost
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	sub := &redisSubscription{ps: ps, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for msg := range ps.Channel() {
			handler([]byte(msg.Payload))
		}
		f.log.Debug(context.Background(), "redis subscription ended", logger.F("channel", channel))
	}()
	return sub, nil
}

// Publish sends payload on channel; the reference server uses it to relay hub events
func (f *RedisFeed) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := f.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}
