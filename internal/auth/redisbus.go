package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/hagwonmatch/internal/model"
)

// RedisBus はRedis Pub/Subでイベントを配信するEventBus。
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisBus はRedisに接続し、疎通確認を行ったうえでRedisBusを生成する。
func NewRedisBus(addr, password string, db int, channel string, logger *slog.Logger) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisBus{client: client, channel: channel, logger: logger}, nil
}

// Publish はイベントをチャネルへPUBLISHする。
func (b *RedisBus) Publish(ctx context.Context, ev model.AuthEvent) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish auth event: %w", err)
	}
	return nil
}

// Subscribe はチャネルをSUBSCRIBEする。購読確立を待ってから戻る。
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan model.AuthEvent, func(), error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	messages := pubsub.Channel()
	out := make(chan model.AuthEvent, subscriberBuffer)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		for {
			select {
			case <-stop:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				ev, err := decodeEvent(msg.Payload)
				if err != nil {
					b.logger.Warn("dropping malformed auth event", slog.String("error", err.Error()))
					continue
				}
				if !forward(out, ev, stop) {
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			pubsub.Close()
		})
	}
	return out, cancel, nil
}

// Close はRedisクライアントを閉じる。
func (b *RedisBus) Close() error {
	return b.client.Close()
}

// compile-time interface check
var _ EventBus = (*RedisBus)(nil)
