package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hitoshi/hagwonmatch/internal/model"
)

// EventBus はセッション変更イベントの配信路。
// 購読者には発行順にイベントが届く。
type EventBus interface {
	// Publish はイベントを全購読者へ配信する。
	Publish(ctx context.Context, ev model.AuthEvent) error
	// Subscribe は購読を開始する。返されたcancelを呼ぶと購読が解除され、チャネルが閉じられる。
	Subscribe(ctx context.Context) (<-chan model.AuthEvent, func(), error)
	// Close はバスが保持する接続を解放する。
	Close() error
}

const subscriberBuffer = 16

// MemoryBus はプロセス内でイベントを配信するEventBus。
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*memorySub
}

type memorySub struct {
	out  chan model.AuthEvent
	done chan struct{}
}

// NewMemoryBus はMemoryBusを生成する。
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]*memorySub)}
}

// Publish はイベントを全購読者へ配信する。
// 購読者のバッファが埋まっている場合は受信されるまで待つ。
func (b *MemoryBus) Publish(ctx context.Context, ev model.AuthEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.out <- ev:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe は購読を開始する。
func (b *MemoryBus) Subscribe(_ context.Context) (<-chan model.AuthEvent, func(), error) {
	sub := &memorySub{
		out:  make(chan model.AuthEvent, subscriberBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			// 送信中のPublishを先に解放してからロックを取る
			close(sub.done)
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.out)
		})
	}
	return sub.out, cancel, nil
}

// Close は何もしない。
func (b *MemoryBus) Close() error {
	return nil
}

// encodeEvent はイベントをバス送信用のJSONにエンコードする。
// アクセストークンはプロセス外へ流さないため取り除く。
func encodeEvent(ev model.AuthEvent) (string, error) {
	if ev.Session != nil && ev.Session.AccessToken != "" {
		session := *ev.Session
		session.AccessToken = ""
		ev.Session = &session
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode auth event: %w", err)
	}
	return string(payload), nil
}

// decodeEvent はバスから受信したJSONをイベントにデコードする。
func decodeEvent(payload string) (model.AuthEvent, error) {
	var ev model.AuthEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return model.AuthEvent{}, fmt.Errorf("failed to decode auth event: %w", err)
	}
	return ev, nil
}

// forward はデコード済みイベントを購読チャネルへ転送する。stopが閉じられると戻る。
func forward(out chan<- model.AuthEvent, ev model.AuthEvent, stop <-chan struct{}) bool {
	select {
	case out <- ev:
		return true
	case <-stop:
		return false
	}
}

// compile-time interface check
var _ EventBus = (*MemoryBus)(nil)
